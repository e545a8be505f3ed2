package turn

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no turn has the requested id.
var ErrNotFound = errors.New("turn not found")

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// UpdateReview stores a review decision on a pending turn. It returns
	// ErrNotPending when the turn was not held or has already been reviewed.
	UpdateReview(ctx context.Context, r *Record) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Record, int, error)
	// ListPendingReview returns turns held for review, oldest first.
	ListPendingReview(ctx context.Context, limit, offset int) ([]*Record, int, error)
}
