package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/processor"
)

// RunStore records runs in the sqlite database.
type RunStore struct {
	db     *database.Database
	writer *processor.BatchWriter
	logger *logrus.Logger
}

func NewRunStore(db *database.Database, cfg *config.Config, logger *logrus.Logger) *RunStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &RunStore{
		db:     db,
		writer: processor.NewBatchWriter(db.GetDB(), cfg, logger),
		logger: logger,
	}
}

func (s *RunStore) Record(stage string, ref *models.ReferenceProperty, merged []models.MergedRecord, shortlist []models.SimilarityResult) (string, error) {
	reference := ""
	if ref != nil {
		reference = ref.AddressFull
	}

	run, err := s.db.CreateRun(stage, reference)
	if err != nil {
		return "", err
	}
	if err := s.writer.Write(run.ID, merged); err != nil {
		return run.ID, fmt.Errorf("failed to record merged records: %w", err)
	}
	if err := s.db.SaveShortlist(run.ID, shortlist); err != nil {
		return run.ID, fmt.Errorf("failed to record shortlist: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":    run.ID,
		"merged":    len(merged),
		"shortlist": len(shortlist),
	}).Info("Recorded run")
	return run.ID, nil
}
