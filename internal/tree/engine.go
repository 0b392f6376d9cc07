// Package tree implements the task hierarchy engine: tree mutations with
// materialized-path maintenance, sibling ordering, bottom-up aggregate
// recomputation and subtree queries. Every mutation runs in a single storage
// transaction and either commits fully or leaves the tree untouched.
package tree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskgrove/taskgrove/internal/domain"
)

const (
	txAttempts     = 3
	txRetryBackoff = 50 * time.Millisecond
)

// EventPublisher receives tree change notifications after a mutation commits.
// *redis.PubSub satisfies this interface.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ChannelFunc names the event channel for an owner's tree.
type ChannelFunc func(ownerID uuid.UUID) string

// Engine orchestrates all writes to the task tree. It is safe for concurrent
// use; consistency across concurrent mutations comes from row locks and
// version checks inside the store, not from engine-internal state.
type Engine struct {
	store   domain.TaskStore
	events  EventPublisher // nil disables event publishing
	channel ChannelFunc
	log     zerolog.Logger
}

func New(store domain.TaskStore, events EventPublisher, channel ChannelFunc, log zerolog.Logger) *Engine {
	return &Engine{store: store, events: events, channel: channel, log: log}
}

// CreatePayload carries caller-supplied fields for a new task. Zero-value
// enums default to manual.
type CreatePayload struct {
	Title               string
	Description         string
	EstimatedMinutes    *int
	CompletionBehavior  domain.CompletionBehavior
	ProgressCalculation domain.ProgressCalculation
	SubtaskOrder        *int
}

func (p *CreatePayload) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if p.CompletionBehavior == "" {
		p.CompletionBehavior = domain.CompletionManual
	}
	if p.ProgressCalculation == "" {
		p.ProgressCalculation = domain.ProgressManual
	}
	if !p.CompletionBehavior.Valid() {
		return fmt.Errorf("unknown completion behavior %q: %w", p.CompletionBehavior, domain.ErrValidation)
	}
	if !p.ProgressCalculation.Valid() {
		return fmt.Errorf("unknown progress calculation %q: %w", p.ProgressCalculation, domain.ErrValidation)
	}
	if p.SubtaskOrder != nil && *p.SubtaskOrder < 0 {
		return fmt.Errorf("subtask order must be >= 0: %w", domain.ErrValidation)
	}
	if p.EstimatedMinutes != nil && *p.EstimatedMinutes < 0 {
		return fmt.Errorf("estimated minutes must be >= 0: %w", domain.ErrValidation)
	}
	return nil
}

func newTask(ownerID uuid.UUID, p CreatePayload) *domain.Task {
	now := time.Now()
	return &domain.Task{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		CompletionBehavior:  p.CompletionBehavior,
		ProgressCalculation: p.ProgressCalculation,
		Status:              domain.TaskStatusPending,
		Title:               p.Title,
		Description:         p.Description,
		EstimatedMinutes:    p.EstimatedMinutes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// CreateRoot creates a task with no parent at level 0.
func (e *Engine) CreateRoot(ctx context.Context, ownerID uuid.UUID, payload CreatePayload) (*domain.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("tree.CreateRoot: %w", err)
	}

	task := newTask(ownerID, payload)

	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		if payload.SubtaskOrder != nil {
			task.SubtaskOrder = *payload.SubtaskOrder
		} else {
			max, err := tasks.MaxSiblingOrder(ctx, ownerID, nil)
			if err != nil {
				return err
			}
			task.SubtaskOrder = max + 1
		}
		return tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("tree.CreateRoot: %w", err)
	}

	e.publish(ctx, "task.created", ownerID, task.ID)
	return task, nil
}

// CreateSubtask creates a task under parentID, inheriting level and path from
// the parent. The new id cannot appear in any existing path, so the cycle
// check passes trivially; the depth bound still applies.
func (e *Engine) CreateSubtask(ctx context.Context, ownerID, parentID uuid.UUID, payload CreatePayload) (*domain.Task, error) {
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("tree.CreateSubtask: %w", err)
	}

	task := newTask(ownerID, payload)

	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		parent, err := tasks.GetForUpdate(ctx, ownerID, parentID)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		if err := domain.ValidateAttachment(task, parent); err != nil {
			return err
		}

		task.ParentTaskID = &parent.ID
		task.HierarchyLevel = parent.HierarchyLevel + 1
		task.HierarchyPath = domain.ChildPath(parent)

		if payload.SubtaskOrder != nil {
			task.SubtaskOrder = *payload.SubtaskOrder
		} else {
			max, err := tasks.MaxSiblingOrder(ctx, ownerID, &parent.ID)
			if err != nil {
				return err
			}
			task.SubtaskOrder = max + 1
		}

		if err := tasks.Create(ctx, task); err != nil {
			return err
		}

		return e.recomputeFrom(ctx, tasks, ownerID, parent.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("tree.CreateSubtask: %w", err)
	}

	e.publish(ctx, "task.created", ownerID, task.ID)
	return task, nil
}

// ChangeParent re-attaches taskID under newParentID, or detaches it to a root
// when newParentID is nil. The level delta and path prefix rewrite cascade to
// every descendant inside the same transaction.
func (e *Engine) ChangeParent(ctx context.Context, ownerID, taskID uuid.UUID, newParentID *uuid.UUID) (*domain.Task, error) {
	var task *domain.Task

	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		var err error
		task, err = tasks.GetForUpdate(ctx, ownerID, taskID)
		if err != nil {
			return err
		}

		oldParentID := task.ParentTaskID
		oldChildPrefix := domain.ChildPath(task)

		var newLevel int
		var newPath string
		var parent *domain.Task
		if newParentID != nil {
			parent, err = tasks.GetForUpdate(ctx, ownerID, *newParentID)
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			if err := domain.ValidateAttachment(task, parent); err != nil {
				return err
			}
			newLevel = parent.HierarchyLevel + 1
			newPath = domain.ChildPath(parent)
		}

		// Descendants shift by the same delta; the bound must hold for the
		// deepest of them, not just the moved node.
		descendants, err := tasks.ListDescendants(ctx, ownerID, oldChildPrefix, domain.MaxHierarchyLevel)
		if err != nil {
			return err
		}
		offset := newLevel - task.HierarchyLevel
		for _, d := range descendants {
			if d.HierarchyLevel+offset > domain.MaxHierarchyLevel {
				return fmt.Errorf("descendant %s would land at level %d: %w",
					d.ID, d.HierarchyLevel+offset, domain.ErrDepthExceeded)
			}
		}

		sameParent := (oldParentID == nil && newParentID == nil) ||
			(oldParentID != nil && newParentID != nil && *oldParentID == *newParentID)

		task.ParentTaskID = newParentID
		task.HierarchyLevel = newLevel
		task.HierarchyPath = newPath
		if !sameParent {
			max, err := tasks.MaxSiblingOrder(ctx, ownerID, newParentID)
			if err != nil {
				return err
			}
			task.SubtaskOrder = max + 1
		}

		if err := tasks.UpdateHierarchy(ctx, task); err != nil {
			return err
		}

		newChildPrefix := domain.ChildPath(task)
		for _, d := range descendants {
			d.HierarchyLevel += offset
			d.HierarchyPath = newChildPrefix + strings.TrimPrefix(d.HierarchyPath, oldChildPrefix)
			if err := tasks.UpdateHierarchy(ctx, d); err != nil {
				return err
			}
		}

		if oldParentID != nil && !sameParent {
			if err := e.recomputeFrom(ctx, tasks, ownerID, *oldParentID); err != nil {
				return err
			}
		}
		if parent != nil {
			if err := e.recomputeFrom(ctx, tasks, ownerID, parent.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tree.ChangeParent: %w", err)
	}

	e.publish(ctx, "task.moved", ownerID, taskID)
	return task, nil
}

// Delete removes taskID. With children and cascade disabled it fails with
// ErrHasChildren; with cascade the whole subtree goes in one transaction.
func (e *Engine) Delete(ctx context.Context, ownerID, taskID uuid.UUID, cascade bool) error {
	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		task, err := tasks.GetForUpdate(ctx, ownerID, taskID)
		if err != nil {
			return err
		}

		children, err := tasks.ListChildren(ctx, ownerID, taskID)
		if err != nil {
			return err
		}

		switch {
		case len(children) > 0 && !cascade:
			return fmt.Errorf("task has %d subtasks: %w", len(children), domain.ErrHasChildren)
		case len(children) > 0:
			if _, err := tasks.DeleteSubtree(ctx, ownerID, taskID, domain.ChildPath(task)); err != nil {
				return err
			}
		default:
			if err := tasks.Delete(ctx, ownerID, taskID); err != nil {
				return err
			}
		}

		if task.ParentTaskID != nil {
			return e.recomputeFrom(ctx, tasks, ownerID, *task.ParentTaskID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tree.Delete: %w", err)
	}

	e.publish(ctx, "task.deleted", ownerID, taskID)
	return nil
}

// SetStatus updates a task's status and propagates the change up the
// ancestor chain (counts, progress, auto-completion).
func (e *Engine) SetStatus(ctx context.Context, ownerID, taskID uuid.UUID, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("tree.SetStatus: unknown status %q: %w", status, domain.ErrValidation)
	}

	var task *domain.Task
	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		var err error
		task, err = tasks.GetForUpdate(ctx, ownerID, taskID)
		if err != nil {
			return err
		}

		stampCompletion(task, status)
		task.Status = status
		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		if task.ParentTaskID != nil {
			return e.recomputeFrom(ctx, tasks, ownerID, *task.ParentTaskID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tree.SetStatus: %w", err)
	}

	e.publish(ctx, "task.updated", ownerID, taskID)
	return task, nil
}

// SetProgress sets manual progress. Tasks whose progress derives from their
// subtasks reject manual writes.
func (e *Engine) SetProgress(ctx context.Context, ownerID, taskID uuid.UUID, progress int) (*domain.Task, error) {
	if progress < 0 || progress > 100 {
		return nil, fmt.Errorf("tree.SetProgress: progress must be 0-100: %w", domain.ErrValidation)
	}

	var task *domain.Task
	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		var err error
		task, err = tasks.GetForUpdate(ctx, ownerID, taskID)
		if err != nil {
			return err
		}
		if task.ProgressCalculation != domain.ProgressManual {
			return fmt.Errorf("progress is derived from subtasks: %w", domain.ErrValidation)
		}

		task.Progress = progress
		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		if task.ParentTaskID != nil {
			return e.recomputeFrom(ctx, tasks, ownerID, *task.ParentTaskID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tree.SetProgress: %w", err)
	}

	e.publish(ctx, "task.updated", ownerID, taskID)
	return task, nil
}

// UpdatePayload carries optional field updates; nil fields are untouched.
type UpdatePayload struct {
	Title               *string
	Description         *string
	EstimatedMinutes    *int
	CompletionBehavior  *domain.CompletionBehavior
	ProgressCalculation *domain.ProgressCalculation
}

// Update patches non-hierarchy fields. Switching the completion behavior or
// progress calculation re-derives the task's aggregates immediately.
func (e *Engine) Update(ctx context.Context, ownerID, taskID uuid.UUID, payload UpdatePayload) (*domain.Task, error) {
	if payload.Title != nil && strings.TrimSpace(*payload.Title) == "" {
		return nil, fmt.Errorf("tree.Update: title cannot be empty: %w", domain.ErrValidation)
	}
	if payload.CompletionBehavior != nil && !payload.CompletionBehavior.Valid() {
		return nil, fmt.Errorf("tree.Update: unknown completion behavior: %w", domain.ErrValidation)
	}
	if payload.ProgressCalculation != nil && !payload.ProgressCalculation.Valid() {
		return nil, fmt.Errorf("tree.Update: unknown progress calculation: %w", domain.ErrValidation)
	}

	var task *domain.Task
	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		var err error
		task, err = tasks.GetForUpdate(ctx, ownerID, taskID)
		if err != nil {
			return err
		}

		rederive := false
		if payload.Title != nil {
			task.Title = *payload.Title
		}
		if payload.Description != nil {
			task.Description = *payload.Description
		}
		if payload.EstimatedMinutes != nil {
			task.EstimatedMinutes = payload.EstimatedMinutes
		}
		if payload.CompletionBehavior != nil && *payload.CompletionBehavior != task.CompletionBehavior {
			task.CompletionBehavior = *payload.CompletionBehavior
			rederive = true
		}
		if payload.ProgressCalculation != nil && *payload.ProgressCalculation != task.ProgressCalculation {
			task.ProgressCalculation = *payload.ProgressCalculation
			rederive = true
		}

		if err := tasks.Update(ctx, task); err != nil {
			return err
		}

		if rederive {
			return e.recomputeFrom(ctx, tasks, ownerID, task.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tree.Update: %w", err)
	}

	e.publish(ctx, "task.updated", ownerID, taskID)
	return task, nil
}

// inTx runs fn transactionally, retrying a bounded number of times when the
// store reports a concurrent-modification conflict. fn re-reads all state on
// each attempt, so retrying is idempotent-safe.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, tasks domain.TaskRepository) error) error {
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(txRetryBackoff << (attempt - 1)):
			}
			e.log.Debug().Int("attempt", attempt+1).Msg("retrying tree transaction after conflict")
		}

		err = e.store.InTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return err
}

type treeEvent struct {
	Kind    string    `json:"kind"`
	TaskID  uuid.UUID `json:"task_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	At      time.Time `json:"at"`
}

// publish emits a tree change event. Best effort: delivery failures are
// logged, never surfaced to the caller whose mutation already committed.
func (e *Engine) publish(ctx context.Context, kind string, ownerID, taskID uuid.UUID) {
	if e.events == nil || e.channel == nil {
		return
	}

	payload, err := json.Marshal(treeEvent{Kind: kind, TaskID: taskID, OwnerID: ownerID, At: time.Now()})
	if err != nil {
		e.log.Warn().Err(err).Msg("marshal tree event")
		return
	}
	if err := e.events.Publish(ctx, e.channel(ownerID), payload); err != nil {
		e.log.Warn().Err(err).Str("kind", kind).Msg("publish tree event")
	}
}
