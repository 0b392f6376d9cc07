package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
	"github.com/taskgrove/taskgrove/internal/server/middleware"
	"github.com/taskgrove/taskgrove/internal/tree"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the owner id into context for DoCtx
// ---------------------------------------------------------------------------

func ownerCtx(ownerID uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.ContextKeyOwnerID, ownerID)
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tasks domain.TaskRepository
}

func (m *mockDataStore) Tasks() domain.TaskRepository { return m.tasks }

// ---------------------------------------------------------------------------
// Mock TaskRepository — only the read methods handlers call directly. All
// other methods panic if reached.
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	getByIDFunc   func(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error)
	listRootsFunc func(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	return m.getByIDFunc(ctx, ownerID, id)
}

func (m *mockTaskRepo) ListRoots(ctx context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	return m.listRootsFunc(ctx, ownerID)
}

func (m *mockTaskRepo) Create(context.Context, *domain.Task) error { panic("not implemented") }

func (m *mockTaskRepo) GetForUpdate(context.Context, uuid.UUID, uuid.UUID) (*domain.Task, error) {
	panic("not implemented")
}

func (m *mockTaskRepo) ListChildren(context.Context, uuid.UUID, uuid.UUID) ([]*domain.Task, error) {
	panic("not implemented")
}

func (m *mockTaskRepo) ListDescendants(context.Context, uuid.UUID, string, int) ([]*domain.Task, error) {
	panic("not implemented")
}

func (m *mockTaskRepo) MaxSiblingOrder(context.Context, uuid.UUID, *uuid.UUID) (int, error) {
	panic("not implemented")
}

func (m *mockTaskRepo) Update(context.Context, *domain.Task) error { panic("not implemented") }

func (m *mockTaskRepo) UpdateHierarchy(context.Context, *domain.Task) error {
	panic("not implemented")
}

func (m *mockTaskRepo) UpdateAggregates(context.Context, *domain.Task) error {
	panic("not implemented")
}

func (m *mockTaskRepo) UpdateOrder(context.Context, uuid.UUID, uuid.UUID, int) error {
	panic("not implemented")
}

func (m *mockTaskRepo) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	panic("not implemented")
}

func (m *mockTaskRepo) DeleteSubtree(context.Context, uuid.UUID, uuid.UUID, string) (int64, error) {
	panic("not implemented")
}

// ---------------------------------------------------------------------------
// Mock TreeEngine
// ---------------------------------------------------------------------------

type mockTreeEngine struct {
	createRootFunc    func(ctx context.Context, ownerID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error)
	createSubtaskFunc func(ctx context.Context, ownerID, parentID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error)
	changeParentFunc  func(ctx context.Context, ownerID, taskID uuid.UUID, newParentID *uuid.UUID) (*domain.Task, error)
	reorderFunc       func(ctx context.Context, ownerID, parentID uuid.UUID, assignments []domain.OrderAssignment) (int, error)
	getSubtreeFunc    func(ctx context.Context, ownerID, rootID uuid.UUID, opts tree.SubtreeOptions) (*tree.Subtree, error)
	setStatusFunc     func(ctx context.Context, ownerID, taskID uuid.UUID, status domain.TaskStatus) (*domain.Task, error)
	setProgressFunc   func(ctx context.Context, ownerID, taskID uuid.UUID, progress int) (*domain.Task, error)
	updateFunc        func(ctx context.Context, ownerID, taskID uuid.UUID, payload tree.UpdatePayload) (*domain.Task, error)
	deleteFunc        func(ctx context.Context, ownerID, taskID uuid.UUID, cascade bool) error
}

func (m *mockTreeEngine) CreateRoot(ctx context.Context, ownerID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error) {
	return m.createRootFunc(ctx, ownerID, payload)
}

func (m *mockTreeEngine) CreateSubtask(ctx context.Context, ownerID, parentID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error) {
	return m.createSubtaskFunc(ctx, ownerID, parentID, payload)
}

func (m *mockTreeEngine) ChangeParent(ctx context.Context, ownerID, taskID uuid.UUID, newParentID *uuid.UUID) (*domain.Task, error) {
	return m.changeParentFunc(ctx, ownerID, taskID, newParentID)
}

func (m *mockTreeEngine) Reorder(ctx context.Context, ownerID, parentID uuid.UUID, assignments []domain.OrderAssignment) (int, error) {
	return m.reorderFunc(ctx, ownerID, parentID, assignments)
}

func (m *mockTreeEngine) GetSubtree(ctx context.Context, ownerID, rootID uuid.UUID, opts tree.SubtreeOptions) (*tree.Subtree, error) {
	return m.getSubtreeFunc(ctx, ownerID, rootID, opts)
}

func (m *mockTreeEngine) SetStatus(ctx context.Context, ownerID, taskID uuid.UUID, status domain.TaskStatus) (*domain.Task, error) {
	return m.setStatusFunc(ctx, ownerID, taskID, status)
}

func (m *mockTreeEngine) SetProgress(ctx context.Context, ownerID, taskID uuid.UUID, progress int) (*domain.Task, error) {
	return m.setProgressFunc(ctx, ownerID, taskID, progress)
}

func (m *mockTreeEngine) Update(ctx context.Context, ownerID, taskID uuid.UUID, payload tree.UpdatePayload) (*domain.Task, error) {
	return m.updateFunc(ctx, ownerID, taskID, payload)
}

func (m *mockTreeEngine) Delete(ctx context.Context, ownerID, taskID uuid.UUID, cascade bool) error {
	return m.deleteFunc(ctx, ownerID, taskID, cascade)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc     func(ctx context.Context, email, password, name string) (*domain.User, error)
	loginFunc        func(ctx context.Context, email, password string) (string, string, error)
	refreshTokenFunc func(ctx context.Context, refreshToken string) (string, error)
	getUserFunc      func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return m.refreshTokenFunc(ctx, refreshToken)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, userID)
}
