package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/service/subscription"
)

// Postgres SQLSTATE codes the repository distinguishes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// SubscriptionRepo implements subscription.Repository against PostgreSQL.
type SubscriptionRepo struct{ db *sql.DB }

// NewSubscriptionRepo creates a Postgres-backed subscription repository.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func (r *SubscriptionRepo) Insert(ctx context.Context, s *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, email, name, subscribed_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.Subscriber.Email.String(), s.Subscriber.Name.String(), s.SubscribedAt)
	if err != nil {
		return classifyPQ(err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SubscriptionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func classifyPQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", subscription.ErrDuplicate, pqErr.Constraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", subscription.ErrReferential, pqErr.Constraint)
		}
	}
	return fmt.Errorf("insert: %w", err)
}
