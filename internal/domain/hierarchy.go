package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxHierarchyLevel is the deepest level a task may live at (root = 0), so a
// tree is at most MaxHierarchyLevel+1 levels tall.
const MaxHierarchyLevel = 9

// The hierarchy path is the materialized chain of ancestor ids from root down
// to (excluding) the task itself, encoded "/id1/id2". Roots have an empty
// path. Keeping it eager lets ancestry checks run in O(depth) string work
// instead of a graph walk.

// ChildPath returns the hierarchy path a direct child of parent must carry.
func ChildPath(parent *Task) string {
	return parent.HierarchyPath + "/" + parent.ID.String()
}

// PathIDs decodes a hierarchy path into its ancestor ids, root first.
// Malformed segments are skipped; the engine never writes them.
func PathIDs(path string) []uuid.UUID {
	if path == "" {
		return nil
	}
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	ids := make([]uuid.UUID, 0, len(segs))
	for _, s := range segs {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// PathContains reports whether id appears as a segment of path.
func PathContains(path string, id uuid.UUID) bool {
	return strings.Contains(path+"/", "/"+id.String()+"/")
}

// ValidateAttachment decides whether task may become a child of parent.
// Pure: it reads only the two rows. The cycle check relies on parent's
// materialized path — if task is an ancestor of parent, task's id is on it.
// Used by both create-subtask (task carries the about-to-be id) and
// change-parent.
func ValidateAttachment(task *Task, parent *Task) error {
	if parent.ID == task.ID {
		return fmt.Errorf("task cannot be its own parent: %w", ErrCycleDetected)
	}
	if parent.OwnerID != task.OwnerID {
		return fmt.Errorf("parent owned by another user: %w", ErrNotFound)
	}
	if PathContains(parent.HierarchyPath, task.ID) {
		return fmt.Errorf("parent %s is a descendant of %s: %w", parent.ID, task.ID, ErrCycleDetected)
	}
	return ValidateChildDepth(parent)
}

// ValidateChildDepth rejects attachment under a parent already at the maximum
// level.
func ValidateChildDepth(parent *Task) error {
	if parent.HierarchyLevel+1 > MaxHierarchyLevel {
		return fmt.Errorf("parent at level %d: %w", parent.HierarchyLevel, ErrDepthExceeded)
	}
	return nil
}
