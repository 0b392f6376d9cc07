package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
	"github.com/taskgrove/taskgrove/internal/tree"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tasks() domain.TaskRepository
}

// TreeEngine abstracts the task tree operations for handler testing.
// *tree.Engine satisfies this interface.
type TreeEngine interface {
	CreateRoot(ctx context.Context, ownerID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error)
	CreateSubtask(ctx context.Context, ownerID, parentID uuid.UUID, payload tree.CreatePayload) (*domain.Task, error)
	ChangeParent(ctx context.Context, ownerID, taskID uuid.UUID, newParentID *uuid.UUID) (*domain.Task, error)
	Reorder(ctx context.Context, ownerID, parentID uuid.UUID, assignments []domain.OrderAssignment) (int, error)
	GetSubtree(ctx context.Context, ownerID, rootID uuid.UUID, opts tree.SubtreeOptions) (*tree.Subtree, error)
	SetStatus(ctx context.Context, ownerID, taskID uuid.UUID, status domain.TaskStatus) (*domain.Task, error)
	SetProgress(ctx context.Context, ownerID, taskID uuid.UUID, progress int) (*domain.Task, error)
	Update(ctx context.Context, ownerID, taskID uuid.UUID, payload tree.UpdatePayload) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, taskID uuid.UUID, cascade bool) error
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}
