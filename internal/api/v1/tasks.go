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

// taskBody is the shared request shape for creating tasks, both roots and
// subtasks.
type taskBody struct {
	Title               string  `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
	Description         string  `json:"description,omitempty" doc:"Task description"`
	EstimatedMinutes    *int    `json:"estimated_minutes,omitempty" minimum:"0" doc:"Estimated effort in minutes"`
	CompletionBehavior  string  `json:"completion_behavior,omitempty" enum:"manual,auto_when_subtasks_complete" doc:"How the task reaches completed"`
	ProgressCalculation string  `json:"progress_calculation,omitempty" enum:"manual,average_subtasks,weighted_subtasks" doc:"How progress is derived"`
	SubtaskOrder        *int    `json:"subtask_order,omitempty" minimum:"0" doc:"Explicit sibling position"`
}

func (b taskBody) payload() tree.CreatePayload {
	return tree.CreatePayload{
		Title:               b.Title,
		Description:         b.Description,
		EstimatedMinutes:    b.EstimatedMinutes,
		CompletionBehavior:  domain.CompletionBehavior(b.CompletionBehavior),
		ProgressCalculation: domain.ProgressCalculation(b.ProgressCalculation),
		SubtaskOrder:        b.SubtaskOrder,
	}
}

type CreateTaskInput struct {
	Body taskBody
}

type CreateTaskOutput struct {
	Body *domain.Task
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type GetTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type GetTaskOutput struct {
	Body *domain.Task
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title               *string `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description         *string `json:"description,omitempty" doc:"Task description"`
		EstimatedMinutes    *int    `json:"estimated_minutes,omitempty" minimum:"0" doc:"Estimated effort in minutes"`
		CompletionBehavior  *string `json:"completion_behavior,omitempty" enum:"manual,auto_when_subtasks_complete" doc:"How the task reaches completed"`
		ProgressCalculation *string `json:"progress_calculation,omitempty" enum:"manual,average_subtasks,weighted_subtasks" doc:"How progress is derived"`
	}
}

type UpdateTaskOutput struct {
	Body *domain.Task
}

type DeleteTaskInput struct {
	ID      uuid.UUID `path:"id" doc:"Task ID"`
	Cascade bool      `query:"cascade" doc:"Delete the whole subtree"`
}

type SetStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Status string `json:"status" enum:"pending,in_progress,completed,cancelled,on_hold" doc:"Target status"`
	}
}

type SetStatusOutput struct {
	Body *domain.Task
}

type SetProgressInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Progress int `json:"progress" minimum:"0" maximum:"100" doc:"Completion percentage"`
	}
}

type SetProgressOutput struct {
	Body *domain.Task
}

func RegisterTaskRoutes(api huma.API, store DataStore, engine TreeEngine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a root task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*CreateTaskOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := engine.CreateRoot(ctx, ownerID, input.Body.payload())
		if err != nil {
			return nil, treeError(err, "failed to create task")
		}

		return &CreateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List root tasks",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, _ *struct{}) (*ListTasksOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		tasks, err := store.Tasks().ListRoots(ctx, ownerID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tasks", err)
		}

		return &ListTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *GetTaskInput) (*GetTaskOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := store.Tasks().GetByID(ctx, ownerID, input.ID)
		if err != nil {
			return nil, treeError(err, "failed to get task")
		}

		return &GetTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*UpdateTaskOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		payload := tree.UpdatePayload{
			Title:            input.Body.Title,
			Description:      input.Body.Description,
			EstimatedMinutes: input.Body.EstimatedMinutes,
		}
		if input.Body.CompletionBehavior != nil {
			cb := domain.CompletionBehavior(*input.Body.CompletionBehavior)
			payload.CompletionBehavior = &cb
		}
		if input.Body.ProgressCalculation != nil {
			pc := domain.ProgressCalculation(*input.Body.ProgressCalculation)
			payload.ProgressCalculation = &pc
		}

		t, err := engine.Update(ctx, ownerID, input.ID, payload)
		if err != nil {
			return nil, treeError(err, "failed to update task")
		}

		return &UpdateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Description: "Leaf tasks delete directly. Tasks with subtasks are rejected unless cascade=true, which removes the entire subtree.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *DeleteTaskInput) (*struct{}, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		if err := engine.Delete(ctx, ownerID, input.ID, input.Cascade); err != nil {
			return nil, treeError(err, "failed to delete task")
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Set task status",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *SetStatusInput) (*SetStatusOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := engine.SetStatus(ctx, ownerID, input.ID, domain.TaskStatus(input.Body.Status))
		if err != nil {
			return nil, treeError(err, "failed to set task status")
		}

		return &SetStatusOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-progress",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/progress",
		Summary:     "Set task progress",
		Description: "Only valid for tasks with manual progress calculation; derived progress is recomputed from subtasks.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *SetProgressInput) (*SetProgressOutput, error) {
		ownerID, ok := middleware.OwnerIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		t, err := engine.SetProgress(ctx, ownerID, input.ID, input.Body.Progress)
		if err != nil {
			return nil, treeError(err, "failed to set task progress")
		}

		return &SetProgressOutput{Body: t}, nil
	})
}
