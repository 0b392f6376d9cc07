package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// ContextKeyOwnerID carries the authenticated user's id; the tree engine
// scopes every operation to it.
const ContextKeyOwnerID contextKey = "owner_id"

func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyOwnerID).(uuid.UUID)
	return v, ok
}
