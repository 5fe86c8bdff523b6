package database

import "fmt"

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&Run{}, &MergedRow{}, &ShortlistEntry{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Lookup of a run's rows by match type
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_merged_records_run_match
		ON merged_records(run_id, match_type);
	`).Error; err != nil {
		return fmt.Errorf("failed to create merged records index: %w", err)
	}

	return nil
}
