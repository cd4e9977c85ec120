package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/hierarchy"
	"github.com/meridian-erp/meridian/internal/observability"
)

// SnapshotProvider loads the current role set as an immutable snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*hierarchy.Snapshot, error)
}

// IntegrityJob walks the whole hierarchy looking for cycles, level
// inversions and illegal overrides that slipped past the write path, for
// example through out-of-band edits to the role store.
type IntegrityJob struct {
	provider SnapshotProvider
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewIntegrityJob builds the scan handler.
func NewIntegrityJob(provider SnapshotProvider, metrics *observability.Metrics, logger *slog.Logger) *IntegrityJob {
	return &IntegrityJob{provider: provider, metrics: metrics, logger: logger}
}

// Handle processes TaskHierarchyIntegrity tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	snap, err := j.provider.Snapshot(ctx)
	if err != nil {
		j.logger.Error("integrity scan: load role set", slog.Any("error", err))
		return err
	}

	total := 0
	for _, id := range snap.IDs() {
		role, ok := snap.Role(id)
		if !ok {
			continue
		}
		violations := snap.Validate(role)
		total += len(violations)
		for _, v := range violations {
			j.metrics.ObserveViolation(string(v.Kind))
			j.logger.Warn("hierarchy violation",
				slog.String("kind", string(v.Kind)),
				slog.String("role", v.RoleID),
				slog.String("detail", v.Message),
			)
		}
	}
	j.logger.Info("integrity scan finished",
		slog.Int("roles", snap.Len()),
		slog.Int("violations", total),
	)
	return nil
}
