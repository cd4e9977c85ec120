package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Recomputer resolves and persists a subtree's effective permission sets.
type Recomputer interface {
	RecomputeSubtree(ctx context.Context, rootID string) error
}

// RecomputeJob processes TaskRolesRecompute tasks.
type RecomputeJob struct {
	service Recomputer
	logger  *slog.Logger
}

// NewRecomputeJob builds the recompute job handler.
func NewRecomputeJob(service Recomputer, logger *slog.Logger) *RecomputeJob {
	return &RecomputeJob{service: service, logger: logger}
}

// Handle recomputes one subtree. A malformed payload is dropped rather than
// retried.
func (j *RecomputeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RecomputePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RoleID == "" {
		return asynq.SkipRetry
	}
	if err := j.service.RecomputeSubtree(ctx, payload.RoleID); err != nil {
		j.logger.Error("recompute subtree", slog.String("role", payload.RoleID), slog.Any("error", err))
		return err
	}
	j.logger.Info("recomputed subtree", slog.String("role", payload.RoleID))
	return nil
}
