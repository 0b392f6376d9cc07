package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
	"github.com/taskgrove/taskgrove/internal/server/middleware"
	"github.com/taskgrove/taskgrove/internal/tree"
)

type CreateSubtaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Parent task ID"`
	Body taskBody
}

type CreateSubtaskOutput struct {
	Body *domain.Task
}

type ChangeParentInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		ParentTaskID *uuid.UUID `json:"parent_task_id" nullable:"true" doc:"New parent task ID; null detaches to root"`
	}
}

type ChangeParentOutput struct {
	Body *domain.Task
}

type ReorderInput struct {
	ID   uuid.UUID `path:"id" doc:"Parent task ID"`
	Body struct {
		Assignments []struct {
			TaskID   uuid.UUID `json:"task_id" doc:"Subtask ID"`
			NewOrder int       `json:"new_order" minimum:"0" doc:"New sibling position"`
		} `json:"assignments" minItems:"1" maxItems:"100" doc:"Order assignments"`
	}
}

type ReorderOutput struct {
	Body struct {
		Updated int `json:"updated" doc:"Number of subtasks repositioned"`
	}
}

type GetSubtreeInput struct {
	ID               uuid.UUID `path:"id" doc:"Root task ID"`
	MaxDepth         int       `query:"max_depth" minimum:"0" doc:"Levels below the root to include; 0 means all"`
	IncludeCompleted bool      `query:"include_completed" doc:"Include completed subtasks and their subtrees"`
	Format           string    `query:"format" enum:"flat,nested" doc:"Result shape"`
}

type GetSubtreeOutput struct {
	Body *tree.Subtree
}

func RegisterSubtaskRoutes(api huma.API, engine TreeEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-subtask",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/subtasks",
		Summary:     "Create a subtask under a parent",
		Tags:        []string{"Subtasks"},
	}, func(ctx context.Context, input *CreateSubtaskInput) (*CreateSubtaskOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := engine.CreateSubtask(ctx, ownerID, input.ID, input.Body.payload())
		if err != nil {
			return nil, treeError(err, "failed to create subtask")
		}

		return &CreateSubtaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-task-parent",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/parent",
		Summary:     "Move a task to a new parent",
		Description: "Moves the task and its whole subtree. A null parent detaches the task to the root level.",
		Tags:        []string{"Subtasks"},
	}, func(ctx context.Context, input *ChangeParentInput) (*ChangeParentOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := engine.ChangeParent(ctx, ownerID, input.ID, input.Body.ParentTaskID)
		if err != nil {
			return nil, treeError(err, "failed to move task")
		}

		return &ChangeParentOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-subtasks",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/subtasks/reorder",
		Summary:     "Reorder sibling subtasks",
		Tags:        []string{"Subtasks"},
	}, func(ctx context.Context, input *ReorderInput) (*ReorderOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		assignments := make([]domain.OrderAssignment, len(input.Body.Assignments))
		for i, a := range input.Body.Assignments {
			assignments[i] = domain.OrderAssignment{TaskID: a.TaskID, NewOrder: a.NewOrder}
		}

		updated, err := engine.Reorder(ctx, ownerID, input.ID, assignments)
		if err != nil {
			return nil, treeError(err, "failed to reorder subtasks")
		}

		out := &ReorderOutput{}
		out.Body.Updated = updated
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-subtree",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/subtree",
		Summary:     "Get the descendants of a task",
		Tags:        []string{"Subtasks"},
	}, func(ctx context.Context, input *GetSubtreeInput) (*GetSubtreeOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		format := tree.FormatFlat
		if input.Format == string(tree.FormatNested) {
			format = tree.FormatNested
		}

		sub, err := engine.GetSubtree(ctx, ownerID, input.ID, tree.SubtreeOptions{
			MaxDepth:         input.MaxDepth,
			IncludeCompleted: input.IncludeCompleted,
			Format:           format,
		})
		if err != nil {
			return nil, treeError(err, "failed to load subtree")
		}

		return &GetSubtreeOutput{Body: sub}, nil
	})
}
