package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taskgrove/taskgrove/internal/domain"
)

// treeError folds engine errors into HTTP problem responses. fallback is the
// 500 message when no domain sentinel matches.
func treeError(err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("task not found")
	case errors.Is(err, domain.ErrCycleDetected):
		return huma.Error422UnprocessableEntity("move would create a cycle")
	case errors.Is(err, domain.ErrDepthExceeded):
		return huma.Error422UnprocessableEntity("hierarchy depth limit exceeded")
	case errors.Is(err, domain.ErrHasChildren):
		return huma.Error409Conflict("task has subtasks; pass cascade=true to delete them")
	case errors.Is(err, domain.ErrDuplicateTaskID):
		return huma.Error400BadRequest("duplicate task id in reorder batch")
	case errors.Is(err, domain.ErrDuplicateOrder):
		return huma.Error400BadRequest("duplicate order value in reorder batch")
	case errors.Is(err, domain.ErrNotASibling):
		return huma.Error400BadRequest("reorder batch references a task outside the sibling group")
	case errors.Is(err, domain.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("concurrent modification, retry the request")
	default:
		return huma.Error500InternalServerError(fallback, err)
	}
}
