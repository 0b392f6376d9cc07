package tree

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
)

// maxReorderBatch bounds a single reorder request.
const maxReorderBatch = 100

// Reorder applies new sibling positions for direct children of parentID.
// All updates land in one transaction: either the whole batch applies or the
// stored order stays untouched. Gaps between order values are allowed; only
// the relative order is meaningful.
func (e *Engine) Reorder(ctx context.Context, ownerID, parentID uuid.UUID, assignments []domain.OrderAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, fmt.Errorf("tree.Reorder: empty batch: %w", domain.ErrValidation)
	}
	if len(assignments) > maxReorderBatch {
		return 0, fmt.Errorf("tree.Reorder: batch of %d exceeds %d: %w",
			len(assignments), maxReorderBatch, domain.ErrValidation)
	}
	for _, a := range assignments {
		if a.NewOrder < 0 {
			return 0, fmt.Errorf("tree.Reorder: order %d for %s must be >= 0: %w",
				a.NewOrder, a.TaskID, domain.ErrValidation)
		}
	}

	seenTask := make(map[uuid.UUID]struct{}, len(assignments))
	seenOrder := make(map[int]struct{}, len(assignments))
	for _, a := range assignments {
		if _, dup := seenTask[a.TaskID]; dup {
			return 0, fmt.Errorf("tree.Reorder: task %s: %w", a.TaskID, domain.ErrDuplicateTaskID)
		}
		seenTask[a.TaskID] = struct{}{}
		if _, dup := seenOrder[a.NewOrder]; dup {
			return 0, fmt.Errorf("tree.Reorder: order %d: %w", a.NewOrder, domain.ErrDuplicateOrder)
		}
		seenOrder[a.NewOrder] = struct{}{}
	}

	err := e.inTx(ctx, func(ctx context.Context, tasks domain.TaskRepository) error {
		if _, err := tasks.GetForUpdate(ctx, ownerID, parentID); err != nil {
			return fmt.Errorf("parent: %w", err)
		}

		children, err := tasks.ListChildren(ctx, ownerID, parentID)
		if err != nil {
			return err
		}
		siblings := make(map[uuid.UUID]struct{}, len(children))
		for _, c := range children {
			siblings[c.ID] = struct{}{}
		}

		for _, a := range assignments {
			if _, ok := siblings[a.TaskID]; !ok {
				return fmt.Errorf("task %s: %w", a.TaskID, domain.ErrNotASibling)
			}
		}

		for _, a := range assignments {
			if err := tasks.UpdateOrder(ctx, ownerID, a.TaskID, a.NewOrder); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("tree.Reorder: %w", err)
	}

	e.publish(ctx, "task.reordered", ownerID, parentID)
	return len(assignments), nil
}
