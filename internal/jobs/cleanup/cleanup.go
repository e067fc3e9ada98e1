package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mediasvc "github.com/dmarchetti/faisca/internal/services/media"
)

// Job sweeps the audio bucket for orphaned voice blobs: uploads whose send
// transaction rolled back and whose compensating delete also failed. Blobs
// younger than minAge are skipped so an in-flight send is never raced.
type Job struct {
	storage  audioStorage
	messages messageChecker
	minAge   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type audioStorage interface {
	ListAudio(ctx context.Context) ([]mediasvc.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type messageChecker interface {
	ExistsWithAudioKey(ctx context.Context, key string) (bool, error)
}

func NewOrphanedAudioJob(storage audioStorage, messages messageChecker, minAge time.Duration, logger *zap.Logger) *Job {
	if minAge <= 0 {
		minAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		storage:  storage,
		messages: messages,
		minAge:   minAge,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.storage == nil || j.messages == nil {
		return nil
	}

	objects, err := j.storage.ListAudio(ctx)
	if err != nil {
		return fmt.Errorf("list audio blobs: %w", err)
	}

	cutoff := j.now().Add(-j.minAge)
	deleted := 0
	for _, object := range objects {
		if object.LastModified.After(cutoff) {
			continue
		}

		referenced, err := j.messages.ExistsWithAudioKey(ctx, object.Key)
		if err != nil {
			return fmt.Errorf("check audio blob reference: %w", err)
		}
		if referenced {
			continue
		}

		if err := j.storage.Delete(ctx, object.Key); err != nil {
			j.logger.Warn("failed to delete orphaned audio blob", zap.Error(err), zap.String("key", object.Key))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		j.logger.Info("orphaned audio cleanup completed", zap.Int("deleted", deleted))
	}
	return nil
}
