package subscription

import (
	"context"

	"github.com/incosense/incosense/internal/domain"
)

// Repository defines the data access contract for subscriptions.
type Repository interface {
	// Insert stores a new subscription. It returns an error wrapping
	// ErrDuplicate on a uniqueness conflict and ErrReferential on a
	// foreign-key failure. Any other error is a storage failure.
	Insert(ctx context.Context, s *domain.Subscription) error
}

// Notifier is told about every stored subscription.
type Notifier interface {
	SendConfirmation(ctx context.Context, s *domain.Subscription) error
}
