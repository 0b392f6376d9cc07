package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusOnHold     TaskStatus = "on_hold"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusCancelled, TaskStatusOnHold:
		return true
	}
	return false
}

// CompletionBehavior governs whether a parent auto-completes when all of its
// subtasks are completed.
type CompletionBehavior string

const (
	CompletionManual       CompletionBehavior = "manual"
	CompletionAutoSubtasks CompletionBehavior = "auto_when_subtasks_complete"
)

func (b CompletionBehavior) Valid() bool {
	return b == CompletionManual || b == CompletionAutoSubtasks
}

// ProgressCalculation governs how a task's progress is derived.
type ProgressCalculation string

const (
	ProgressManual           ProgressCalculation = "manual"
	ProgressAverageSubtasks  ProgressCalculation = "average_subtasks"
	ProgressWeightedSubtasks ProgressCalculation = "weighted_subtasks"
)

func (p ProgressCalculation) Valid() bool {
	switch p {
	case ProgressManual, ProgressAverageSubtasks, ProgressWeightedSubtasks:
		return true
	}
	return false
}

// Task is a node in an owner's task tree. HierarchyLevel, HierarchyPath,
// SubtaskCount and CompletedSubtaskCount are derived columns: only the tree
// engine writes them, everything else treats them as read-only.
type Task struct {
	ID                    uuid.UUID           `json:"id"`
	OwnerID               uuid.UUID           `json:"owner_id"`
	ParentTaskID          *uuid.UUID          `json:"parent_task_id,omitempty"`
	HierarchyLevel        int                 `json:"hierarchy_level"`
	HierarchyPath         string              `json:"hierarchy_path"`
	SubtaskOrder          int                 `json:"subtask_order"`
	SubtaskCount          int                 `json:"subtask_count"`
	CompletedSubtaskCount int                 `json:"completed_subtask_count"`
	CompletionBehavior    CompletionBehavior  `json:"completion_behavior"`
	ProgressCalculation   ProgressCalculation `json:"progress_calculation"`
	Progress              int                 `json:"progress"`
	Status                TaskStatus          `json:"status"`
	Title                 string              `json:"title"`
	Description           string              `json:"description,omitempty"`
	EstimatedMinutes      *int                `json:"estimated_minutes,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	Version               int64               `json:"version"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentTaskID == nil
}

// OrderAssignment pairs a task with its new position among siblings.
type OrderAssignment struct {
	TaskID   uuid.UUID `json:"task_id"`
	NewOrder int       `json:"new_order"`
}

// TaskRepository is the persistence contract for task rows. Implementations
// must map "no such row" to ErrNotFound and concurrent-modification failures
// (version mismatch, serialization failure, deadlock) to ErrConflict.
type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Task, error)
	// GetForUpdate locks the row for the duration of the enclosing
	// transaction. Only valid inside TaskStore.InTx.
	GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*Task, error)
	ListRoots(ctx context.Context, ownerID uuid.UUID) ([]*Task, error)
	// ListChildren returns direct children ordered by subtask_order.
	ListChildren(ctx context.Context, ownerID, parentID uuid.UUID) ([]*Task, error)
	// ListDescendants returns every task whose hierarchy_path starts with
	// pathPrefix and whose level is at most maxLevel, ordered by
	// (hierarchy_level, subtask_order).
	ListDescendants(ctx context.Context, ownerID uuid.UUID, pathPrefix string, maxLevel int) ([]*Task, error)
	MaxSiblingOrder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) (int, error)
	// Update writes the full row, checked against t.Version; on success
	// t.Version is advanced.
	Update(ctx context.Context, t *Task) error
	// UpdateHierarchy writes parent/level/path/order, version-checked.
	UpdateHierarchy(ctx context.Context, t *Task) error
	// UpdateAggregates writes counts/progress/status/completed_at without a
	// version check; only the aggregation engine calls this, always inside
	// the same transaction that locked the row.
	UpdateAggregates(ctx context.Context, t *Task) error
	UpdateOrder(ctx context.Context, ownerID, id uuid.UUID, order int) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// DeleteSubtree removes the task and every descendant under pathPrefix.
	// Returns the number of rows removed.
	DeleteSubtree(ctx context.Context, ownerID, id uuid.UUID, pathPrefix string) (int64, error)
}

// TaskStore provides repository access plus a transactional scope. The
// repository passed to the InTx callback runs every operation on the same
// transaction; the transaction commits iff the callback returns nil.
type TaskStore interface {
	Tasks() TaskRepository
	InTx(ctx context.Context, fn func(ctx context.Context, tasks TaskRepository) error) error
}
