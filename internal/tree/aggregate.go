package tree

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
)

// recomputeFrom re-derives one node's aggregates from its live children, then
// walks up the ancestor chain to the root. The walk stops early once a node's
// stored values come out unchanged: nothing above it can have changed either.
// Bounded by the depth limit, so at most MaxHierarchyLevel+1 nodes.
func (e *Engine) recomputeFrom(ctx context.Context, tasks domain.TaskRepository, ownerID, taskID uuid.UUID) error {
	next := &taskID
	for next != nil {
		task, err := tasks.GetForUpdate(ctx, ownerID, *next)
		if err != nil {
			return err
		}

		changed, err := recomputeNode(ctx, tasks, task)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		next = task.ParentTaskID
	}
	return nil
}

// recomputeNode recounts children wholesale and re-derives progress and
// auto-completion for a single node. Counts are never incremented in place;
// recounting from the authoritative child set is what keeps them from
// drifting under concurrent mutation.
func recomputeNode(ctx context.Context, tasks domain.TaskRepository, task *domain.Task) (bool, error) {
	children, err := tasks.ListChildren(ctx, task.OwnerID, task.ID)
	if err != nil {
		return false, err
	}

	completed := 0
	for _, c := range children {
		if c.Status == domain.TaskStatusCompleted {
			completed++
		}
	}

	prev := *task
	task.SubtaskCount = len(children)
	task.CompletedSubtaskCount = completed

	switch task.ProgressCalculation {
	case domain.ProgressAverageSubtasks:
		task.Progress = averageProgress(children)
	case domain.ProgressWeightedSubtasks:
		task.Progress = weightedProgress(children)
	}

	applyCompletionBehavior(task, len(children), completed)

	if task.SubtaskCount == prev.SubtaskCount &&
		task.CompletedSubtaskCount == prev.CompletedSubtaskCount &&
		task.Progress == prev.Progress &&
		task.Status == prev.Status {
		return false, nil
	}

	if err := tasks.UpdateAggregates(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}

// applyCompletionBehavior derives completion for auto nodes: completed iff
// all of at least one child are completed. A node completed this way reverts
// to in_progress when a child is later reopened; cancelled nodes are left
// alone. (Manual-behavior nodes are never touched here.)
func applyCompletionBehavior(task *domain.Task, childCount, completed int) {
	if task.CompletionBehavior != domain.CompletionAutoSubtasks || childCount == 0 {
		return
	}
	if task.Status == domain.TaskStatusCancelled {
		return
	}

	allDone := completed == childCount
	switch {
	case allDone && task.Status != domain.TaskStatusCompleted:
		task.Status = domain.TaskStatusCompleted
		now := time.Now()
		task.CompletedAt = &now
	case !allDone && task.Status == domain.TaskStatusCompleted:
		task.Status = domain.TaskStatusInProgress
		task.CompletedAt = nil
	}
}

// averageProgress is the arithmetic mean of the children's progress, rounded
// to the nearest integer. Zero for childless nodes.
func averageProgress(children []*domain.Task) int {
	if len(children) == 0 {
		return 0
	}
	sum := 0
	for _, c := range children {
		sum += c.Progress
	}
	return int(math.Round(float64(sum) / float64(len(children))))
}

// weightedProgress weights each child by its estimated duration. Children
// without an estimate weigh nothing; when no child has one, this degrades to
// the plain average.
func weightedProgress(children []*domain.Task) int {
	if len(children) == 0 {
		return 0
	}

	var weightSum, weighted float64
	for _, c := range children {
		if c.EstimatedMinutes == nil || *c.EstimatedMinutes <= 0 {
			continue
		}
		w := float64(*c.EstimatedMinutes)
		weightSum += w
		weighted += w * float64(c.Progress)
	}
	if weightSum == 0 {
		return averageProgress(children)
	}

	return int(math.Round(weighted / weightSum))
}

// stampCompletion maintains the completion timestamp across status changes.
func stampCompletion(task *domain.Task, next domain.TaskStatus) {
	switch {
	case next == domain.TaskStatusCompleted && task.Status != domain.TaskStatusCompleted:
		now := time.Now()
		task.CompletedAt = &now
		if task.ProgressCalculation == domain.ProgressManual {
			task.Progress = 100
		}
	case next != domain.TaskStatusCompleted && task.Status == domain.TaskStatusCompleted:
		task.CompletedAt = nil
	}
}
