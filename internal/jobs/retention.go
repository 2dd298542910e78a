package jobs

import (
	"log/slog"
	"time"

	"analyzr/internal/config"
	"analyzr/internal/database"
	"analyzr/internal/events"
)

// RetentionJob removes analytics rows older than the configured
// retention period.
type RetentionJob struct {
	dbManager *database.Manager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewRetentionJob(dbManager *database.Manager, logger *slog.Logger, cfg *config.Config) *RetentionJob {
	return &RetentionJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes rows past the retention horizon. A retention of zero days
// keeps everything.
func (j *RetentionJob) Run() error {
	retentionDays := j.cfg.EventsRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Retention disabled, keeping all rows")
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	j.logger.Info("Starting cleanup of old analytics rows",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := events.DeleteRowsOlderThan(j.dbManager.GetConnection(), cutoff)
	if err != nil {
		j.logger.Error("Failed to delete old analytics rows", slog.Any("error", err))
		return err
	}

	if deleted == 0 {
		j.logger.Debug("No old analytics rows to clean up")
		return nil
	}

	j.logger.Info("Cleaned up old analytics rows",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", retentionDays))
	return nil
}
