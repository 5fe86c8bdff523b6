package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Run is one pipeline invocation.
type Run struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Stage            string    `gorm:"index" json:"stage"`
	ReferenceAddress string    `json:"reference_address"`
	MergedCount      int       `json:"merged_count"`
	ShortlistCount   int       `json:"shortlist_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// MergedRow stores a merged record. The searchable columns are copied out of
// the JSON payload.
type MergedRow struct {
	ID          uint    `gorm:"primaryKey"`
	RunID       string  `gorm:"index;not null"`
	Run         Run     `gorm:"constraint:OnDelete:CASCADE"`
	AddressFull string  `gorm:"index"`
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	MatchType   string `gorm:"index"`
	MatchScore  float64
	SalePrice   *float64
	AreaM2      *float64
	Payload     string
}

func (MergedRow) TableName() string { return "merged_records" }

// ShortlistEntry is one ranked comparable of a run.
type ShortlistEntry struct {
	ID              uint   `gorm:"primaryKey"`
	RunID           string `gorm:"index;not null"`
	Run             Run    `gorm:"constraint:OnDelete:CASCADE"`
	Rank            int
	AddressFull     string
	MatchType       string
	SimilarityScore float64
	FinalScore      float64
	Payload         string
}

func (ShortlistEntry) TableName() string { return "shortlist_entries" }

type Database struct {
	sqlDB *sql.DB
	db    *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Database{sqlDB: sqlDB, db: db}, nil
}

// GetDB exposes the gorm handle for transactional writers.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.sqlDB.Close()
}

func (d *Database) CreateRun(stage, referenceAddress string) (*Run, error) {
	run := &Run{
		ID:               uuid.NewString(),
		Stage:            stage,
		ReferenceAddress: referenceAddress,
		CreatedAt:        time.Now().UTC(),
	}
	if err := d.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (d *Database) GetRun(id string) (*Run, error) {
	var run Run
	err := d.db.First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first. A limit of zero returns all.
func (d *Database) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	q := d.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// SaveMergedBatch inserts merged records inside the caller's transaction.
func SaveMergedBatch(tx *gorm.DB, runID string, batch []models.MergedRecord) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([]MergedRow, 0, len(batch))
	for _, rec := range batch {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode merged record %q: %w", rec.AddressFull, err)
		}
		rows = append(rows, MergedRow{
			RunID:       runID,
			AddressFull: rec.AddressFull,
			Street:      rec.Street,
			HouseNumber: rec.HouseUnit(),
			PostalCode:  rec.PostalCode,
			City:        rec.City,
			MatchType:   string(rec.MatchType),
			MatchScore:  rec.MatchScore,
			SalePrice:   rec.SalePrice(),
			AreaM2:      rec.Area(),
			Payload:     string(payload),
		})
	}

	if err := tx.Omit("Run").Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert merged records: %w", err)
	}
	return tx.Model(&Run{}).Where("id = ?", runID).
		UpdateColumn("merged_count", gorm.Expr("merged_count + ?", len(rows))).Error
}

// SaveMergedBatch writes one batch in its own transaction.
func (d *Database) SaveMergedBatch(runID string, batch []models.MergedRecord) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return SaveMergedBatch(tx, runID, batch)
	})
}

// SaveShortlist replaces the shortlist of a run.
func (d *Database) SaveShortlist(runID string, results []models.SimilarityResult) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&ShortlistEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear shortlist: %w", err)
		}

		entries := make([]ShortlistEntry, 0, len(results))
		for _, r := range results {
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode shortlist entry %d: %w", r.Rank, err)
			}
			entries = append(entries, ShortlistEntry{
				RunID:           runID,
				Rank:            r.Rank,
				AddressFull:     r.Record.AddressFull,
				MatchType:       string(r.Record.MatchType),
				SimilarityScore: r.SimilarityScore,
				FinalScore:      r.FinalScore,
				Payload:         string(payload),
			})
		}
		if len(entries) > 0 {
			if err := tx.Omit("Run").Create(&entries).Error; err != nil {
				return fmt.Errorf("failed to insert shortlist: %w", err)
			}
		}

		return tx.Model(&Run{}).Where("id = ?", runID).
			UpdateColumn("shortlist_count", len(entries)).Error
	})
}

// ListMerged returns the merged records of a run, optionally filtered by match type.
func (d *Database) ListMerged(runID string, matchType string) ([]models.MergedRecord, error) {
	if _, err := d.GetRun(runID); err != nil {
		return nil, err
	}

	var rows []MergedRow
	q := d.db.Where("run_id = ?", runID)
	if matchType != "" {
		q = q.Where("match_type = ?", matchType)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list merged records: %w", err)
	}

	records := make([]models.MergedRecord, 0, len(rows))
	for _, row := range rows {
		var rec models.MergedRecord
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode merged record %d: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListShortlist returns the shortlist of a run in rank order.
func (d *Database) ListShortlist(runID string) ([]models.SimilarityResult, error) {
	if _, err := d.GetRun(runID); err != nil {
		return nil, err
	}

	var entries []ShortlistEntry
	if err := d.db.Where("run_id = ?", runID).Order("rank").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list shortlist: %w", err)
	}

	results := make([]models.SimilarityResult, 0, len(entries))
	for _, e := range entries {
		var r models.SimilarityResult
		if err := json.Unmarshal([]byte(e.Payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode shortlist entry %d: %w", e.ID, err)
		}
		results = append(results, r)
	}
	return results, nil
}
