package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/session"
)

type SessionCleanupJob struct {
	store *session.Store
}

func NewSessionCleanupJob(store *session.Store) *SessionCleanupJob {
	return &SessionCleanupJob{store: store}
}

func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	removed := j.store.Sweep()
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired sessions removed",
			zap.Int("removed", removed),
			zap.Int("remaining", j.store.Len()),
		)
	}
	return nil
}
