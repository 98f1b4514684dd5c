package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultRetention = 30 * 24 * time.Hour

type cleanupStore interface {
	DeleteReadOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// CleanupJob handles notification retention cleanup
type CleanupJob struct {
	repo      cleanupStore
	retention time.Duration
}

// NewCleanupJob creates a cleanup job. Read notifications older than retention are removed.
func NewCleanupJob(repo cleanupStore, retention time.Duration) *CleanupJob {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &CleanupJob{repo: repo, retention: retention}
}

// Start runs the cleanup immediately and then on every tick until ctx is done.
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Notification cleanup job stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *CleanupJob) run(ctx context.Context) {
	rows, err := j.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old notifications")
		return
	}
	if rows > 0 {
		log.Info().
			Int64("deleted", rows).
			Dur("retention", j.retention).
			Msg("Cleaned up old notifications")
	}
}

// RunOnce runs cleanup once (for manual trigger or testing)
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	return j.repo.DeleteReadOlderThan(ctx, j.retention)
}
