package jobs

import (
	"log/slog"

	"analyzr/internal/database"
)

// CheckpointJob periodically folds the SQLite WAL back into the main
// database file so the WAL does not grow without bound under sustained
// ingestion.
type CheckpointJob struct {
	dbManager *database.Manager
	logger    *slog.Logger
}

func NewCheckpointJob(dbManager *database.Manager, logger *slog.Logger) *CheckpointJob {
	return &CheckpointJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

// Run issues a passive checkpoint: it never blocks writers.
func (j *CheckpointJob) Run() error {
	if err := j.dbManager.CheckpointWAL("PASSIVE"); err != nil {
		j.logger.Warn("WAL checkpoint failed", slog.Any("error", err))
		return err
	}
	j.logger.Debug("WAL checkpoint completed")
	return nil
}
