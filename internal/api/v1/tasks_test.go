package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/taskgrove/taskgrove/internal/api/v1"
	"github.com/taskgrove/taskgrove/internal/domain"
	"github.com/taskgrove/taskgrove/internal/tree"
)

// ---------------------------------------------------------------------------
// TestCreateTask
// ---------------------------------------------------------------------------

func TestCreateTask(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		var createCalled bool
		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			createRootFunc: func(_ context.Context, oid uuid.UUID, payload tree.CreatePayload) (*domain.Task, error) {
				createCalled = true
				assert.Equal(t, ownerID, oid)
				assert.Equal(t, "Plan the garden", payload.Title)
				assert.Equal(t, domain.CompletionManual, payload.CompletionBehavior)
				return &domain.Task{
					ID:      uuid.New(),
					OwnerID: oid,
					Title:   payload.Title,
					Status:  domain.TaskStatusPending,
				}, nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PostCtx(ownerCtx(ownerID), "/tasks", map[string]any{
			"title":               "Plan the garden",
			"completion_behavior": "manual",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.True(t, createCalled, "engine.CreateRoot must be invoked")

		var body domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Plan the garden", body.Title)
		assert.Equal(t, domain.TaskStatusPending, body.Status)
		assert.Equal(t, ownerID, body.OwnerID)
	})

	t.Run("missing_owner", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, &mockDataStore{}, &mockTreeEngine{})

		// No owner in context.
		resp := api.PostCtx(context.Background(), "/tasks", map[string]any{
			"title": "No owner",
		})

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("validation_error_maps_to_400", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			createRootFunc: func(context.Context, uuid.UUID, tree.CreatePayload) (*domain.Task, error) {
				return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PostCtx(ownerCtx(ownerID), "/tasks", map[string]any{
			"title": "   ",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestListTasks
// ---------------------------------------------------------------------------

func TestListTasks(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		roots := []*domain.Task{
			{ID: uuid.New(), OwnerID: ownerID, Title: "First"},
			{ID: uuid.New(), OwnerID: ownerID, Title: "Second"},
		}
		_, api := humatest.New(t)
		store := &mockDataStore{
			tasks: &mockTaskRepo{
				listRootsFunc: func(_ context.Context, oid uuid.UUID) ([]*domain.Task, error) {
					assert.Equal(t, ownerID, oid)
					return roots, nil
				},
			},
		}
		v1.RegisterTaskRoutes(api, store, &mockTreeEngine{})

		resp := api.GetCtx(ownerCtx(ownerID), "/tasks")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, "First", body[0].Title)
		assert.Equal(t, "Second", body[1].Title)
	})

	t.Run("missing_owner", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, &mockDataStore{}, &mockTreeEngine{})

		resp := api.GetCtx(context.Background(), "/tasks")

		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestGetTask
// ---------------------------------------------------------------------------

func TestGetTask(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	taskID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tasks: &mockTaskRepo{
				getByIDFunc: func(_ context.Context, oid, id uuid.UUID) (*domain.Task, error) {
					assert.Equal(t, ownerID, oid)
					assert.Equal(t, taskID, id)
					return &domain.Task{ID: taskID, OwnerID: ownerID, Title: "Found"}, nil
				},
			},
		}
		v1.RegisterTaskRoutes(api, store, &mockTreeEngine{})

		resp := api.GetCtx(ownerCtx(ownerID), "/tasks/"+taskID.String())

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, taskID, body.ID)
		assert.Equal(t, "Found", body.Title)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tasks: &mockTaskRepo{
				getByIDFunc: func(context.Context, uuid.UUID, uuid.UUID) (*domain.Task, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterTaskRoutes(api, store, &mockTreeEngine{})

		resp := api.GetCtx(ownerCtx(ownerID), "/tasks/"+uuid.NewString())

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestUpdateTask
// ---------------------------------------------------------------------------

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	taskID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			updateFunc: func(_ context.Context, oid, id uuid.UUID, payload tree.UpdatePayload) (*domain.Task, error) {
				assert.Equal(t, ownerID, oid)
				assert.Equal(t, taskID, id)
				require.NotNil(t, payload.Title)
				assert.Equal(t, "Renamed", *payload.Title)
				require.NotNil(t, payload.ProgressCalculation)
				assert.Equal(t, domain.ProgressAverageSubtasks, *payload.ProgressCalculation)
				assert.Nil(t, payload.Description, "untouched fields must stay nil")
				return &domain.Task{ID: taskID, OwnerID: oid, Title: "Renamed"}, nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String(), map[string]any{
			"title":                "Renamed",
			"progress_calculation": "average_subtasks",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Renamed", body.Title)
	})

	t.Run("conflict_maps_to_409", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			updateFunc: func(context.Context, uuid.UUID, uuid.UUID, tree.UpdatePayload) (*domain.Task, error) {
				return nil, domain.ErrConflict
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String(), map[string]any{
			"title": "Racing",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestDeleteTask
// ---------------------------------------------------------------------------

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	taskID := uuid.New()

	t.Run("leaf_deletes", func(t *testing.T) {
		t.Parallel()

		var gotCascade bool
		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			deleteFunc: func(_ context.Context, oid, id uuid.UUID, cascade bool) error {
				assert.Equal(t, ownerID, oid)
				assert.Equal(t, taskID, id)
				gotCascade = cascade
				return nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.DeleteCtx(ownerCtx(ownerID), "/tasks/"+taskID.String())

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.False(t, gotCascade)
	})

	t.Run("cascade_query_forwarded", func(t *testing.T) {
		t.Parallel()

		var gotCascade bool
		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			deleteFunc: func(_ context.Context, _, _ uuid.UUID, cascade bool) error {
				gotCascade = cascade
				return nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.DeleteCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"?cascade=true")

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.True(t, gotCascade)
	})

	t.Run("has_children_maps_to_409", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			deleteFunc: func(context.Context, uuid.UUID, uuid.UUID, bool) error {
				return domain.ErrHasChildren
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.DeleteCtx(ownerCtx(ownerID), "/tasks/"+taskID.String())

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Contains(t, resp.Body.String(), "cascade")
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			deleteFunc: func(context.Context, uuid.UUID, uuid.UUID, bool) error {
				return domain.ErrNotFound
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.DeleteCtx(ownerCtx(ownerID), "/tasks/"+uuid.NewString())

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestSetTaskStatus
// ---------------------------------------------------------------------------

func TestSetTaskStatus(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	taskID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			setStatusFunc: func(_ context.Context, oid, id uuid.UUID, status domain.TaskStatus) (*domain.Task, error) {
				assert.Equal(t, ownerID, oid)
				assert.Equal(t, taskID, id)
				assert.Equal(t, domain.TaskStatusCompleted, status)
				return &domain.Task{ID: taskID, OwnerID: oid, Status: status, Progress: 100}, nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"/status", map[string]any{
			"status": "completed",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, domain.TaskStatusCompleted, body.Status)
		assert.Equal(t, 100, body.Progress)
	})

	t.Run("unknown_status_rejected_by_schema", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, &mockDataStore{}, &mockTreeEngine{})

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"/status", map[string]any{
			"status": "finished",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestSetTaskProgress
// ---------------------------------------------------------------------------

func TestSetTaskProgress(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	taskID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			setProgressFunc: func(_ context.Context, oid, id uuid.UUID, progress int) (*domain.Task, error) {
				assert.Equal(t, ownerID, oid)
				assert.Equal(t, taskID, id)
				assert.Equal(t, 60, progress)
				return &domain.Task{ID: taskID, OwnerID: oid, Progress: progress}, nil
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"/progress", map[string]any{
			"progress": 60,
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 60, body.Progress)
	})

	t.Run("derived_progress_maps_to_400", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		engine := &mockTreeEngine{
			setProgressFunc: func(context.Context, uuid.UUID, uuid.UUID, int) (*domain.Task, error) {
				return nil, fmt.Errorf("progress is derived from subtasks: %w", domain.ErrValidation)
			},
		}
		v1.RegisterTaskRoutes(api, &mockDataStore{}, engine)

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"/progress", map[string]any{
			"progress": 50,
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("out_of_range_rejected_by_schema", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterTaskRoutes(api, &mockDataStore{}, &mockTreeEngine{})

		resp := api.PatchCtx(ownerCtx(ownerID), "/tasks/"+taskID.String()+"/progress", map[string]any{
			"progress": 101,
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
