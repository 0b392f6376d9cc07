package tree

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
)

type TreeFormat string

const (
	FormatFlat   TreeFormat = "flat"
	FormatNested TreeFormat = "nested"
)

// SubtreeOptions controls a subtree read.
type SubtreeOptions struct {
	// MaxDepth is the number of levels below the root to return; <= 0 means
	// the whole subtree (which the global depth bound already caps).
	MaxDepth         int
	IncludeCompleted bool
	Format           TreeFormat
}

// TreeNode is a task with its children attached, for the nested format.
type TreeNode struct {
	*domain.Task
	Children []*TreeNode `json:"children"`
}

// Subtree holds the descendants of the query root (the root itself is the
// depth-0 reference and is not part of the result). Exactly one of Flat or
// Nested is populated, per the requested format.
type Subtree struct {
	Root   uuid.UUID      `json:"root_id"`
	Flat   []*domain.Task `json:"flat,omitempty"`
	Nested []*TreeNode    `json:"nested,omitempty"`
}

// GetSubtree loads the descendants of rootID. Reads take no locks; a reader
// racing a mutation sees the last committed state, which may be one recompute
// step stale.
//
// Excluding completed tasks omits their entire subtrees wholesale: children
// of a completed task are never re-attached to the grandparent.
func (e *Engine) GetSubtree(ctx context.Context, ownerID, rootID uuid.UUID, opts SubtreeOptions) (*Subtree, error) {
	root, err := e.store.Tasks().GetByID(ctx, ownerID, rootID)
	if err != nil {
		return nil, fmt.Errorf("tree.GetSubtree: %w", err)
	}

	maxLevel := domain.MaxHierarchyLevel
	if opts.MaxDepth > 0 && root.HierarchyLevel+opts.MaxDepth < maxLevel {
		maxLevel = root.HierarchyLevel + opts.MaxDepth
	}

	// Level order, then sibling order: parents always precede children.
	descendants, err := e.store.Tasks().ListDescendants(ctx, ownerID, domain.ChildPath(root), maxLevel)
	if err != nil {
		return nil, fmt.Errorf("tree.GetSubtree: %w", err)
	}

	if !opts.IncludeCompleted {
		descendants = pruneCompleted(descendants)
	}

	result := &Subtree{Root: root.ID}
	if opts.Format == FormatNested {
		result.Nested = nest(root.ID, descendants)
	} else {
		result.Flat = descendants
	}

	return result, nil
}

// pruneCompleted drops completed tasks and, transitively, everything beneath
// them. Relies on the level-ordered input: a node's parent is always decided
// before the node itself.
func pruneCompleted(tasks []*domain.Task) []*domain.Task {
	dropped := make(map[uuid.UUID]struct{})
	kept := make([]*domain.Task, 0, len(tasks))

	for _, t := range tasks {
		if t.ParentTaskID != nil {
			if _, parentDropped := dropped[*t.ParentTaskID]; parentDropped {
				dropped[t.ID] = struct{}{}
				continue
			}
		}
		if t.Status == domain.TaskStatusCompleted {
			dropped[t.ID] = struct{}{}
			continue
		}
		kept = append(kept, t)
	}

	return kept
}

// nest builds the children tree below rootID. Input is sorted by
// (level, subtask_order), so appends keep each children slice ordered by
// subtask_order without a separate sort.
func nest(rootID uuid.UUID, tasks []*domain.Task) []*TreeNode {
	nodes := make(map[uuid.UUID]*TreeNode, len(tasks))
	var top []*TreeNode

	for _, t := range tasks {
		node := &TreeNode{Task: t, Children: []*TreeNode{}}
		nodes[t.ID] = node

		if t.ParentTaskID != nil && *t.ParentTaskID != rootID {
			if parent, ok := nodes[*t.ParentTaskID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		top = append(top, node)
	}

	return top
}
