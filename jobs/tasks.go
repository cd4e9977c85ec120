// Package jobs wires background processing: subtree recomputation after
// role mutations and the scheduled hierarchy integrity scan.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRolesRecompute recomputes effective permissions for a mutated
	// role's subtree.
	TaskRolesRecompute = "roles:recompute"
	// TaskHierarchyIntegrity scans the whole role set for structural
	// violations.
	TaskHierarchyIntegrity = "roles:integrity"
)

// RecomputePayload names the subtree root to recompute.
type RecomputePayload struct {
	RoleID string `json:"role_id"`
}

// NewRecomputeTask constructs an Asynq task for one subtree.
func NewRecomputeTask(payload RecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRolesRecompute, data), nil
}

// NewIntegrityTask constructs the scheduled integrity scan task.
func NewIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskHierarchyIntegrity, nil)
}
