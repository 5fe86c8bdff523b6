package processor

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// Transactor is the part of *gorm.DB the writer needs.
type Transactor interface {
	Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error
}

// BatchWriter persists merged records in bounded transactional chunks
type BatchWriter struct {
	db     Transactor
	logger *logrus.Logger
	config *config.Config
}

// NewBatchWriter creates a new batch writer instance
func NewBatchWriter(db Transactor, config *config.Config, logger *logrus.Logger) *BatchWriter {
	if logger == nil {
		logger = logrus.New()
	}
	return &BatchWriter{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Write stores records for a run. It stops at the first chunk that fails all retries;
// earlier chunks stay committed.
func (w *BatchWriter) Write(runID string, records []models.MergedRecord) error {
	size := w.config.BatchProcessing.MaxBatchSize
	if size <= 0 {
		size = len(records)
	}

	written := 0
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := w.processBatch(runID, records[start:end]); err != nil {
			return fmt.Errorf("failed to write records %d-%d: %w", start, end, err)
		}
		written += end - start
	}

	w.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"records": written,
	}).Info("Persisted merged records")
	return nil
}

// processBatch handles a single batch of records with transaction and retry logic
func (w *BatchWriter) processBatch(runID string, batch []models.MergedRecord) error {
	attempts := max(w.config.BatchProcessing.MaxRetries, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			w.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, attempts)
			time.Sleep(time.Duration(w.config.BatchProcessing.RetryDelay) * time.Second)
		}

		err = w.db.Transaction(func(tx *gorm.DB) error {
			if err := database.SaveMergedBatch(tx, runID, batch); err != nil {
				return fmt.Errorf("failed to save merged batch: %w", err)
			}
			return nil
		})

		if err == nil {
			w.logger.Debugf("Successfully processed batch of %d records", len(batch))
			return nil
		}

		w.logger.Errorf("Batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process batch after %d attempts: %w", attempts, err)
}
