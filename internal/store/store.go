package store

import (
	"context"
	"errors"
	"fmt"

	"tradechat-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrUserNotFound           = errors.New("user not found")
)

// MaxUpdateAttempts bounds optimistic-lock retries in UpdateUser.
const MaxUpdateAttempts = 3

// UserMutation edits a user inside the store's transaction. Returning an
// error aborts the update and leaves the stored record untouched.
type UserMutation func(user *models.User) error

// Store is the persistence contract for users, conversation turns and trades.
// Both the SQLite and Postgres backends satisfy it.
type Store interface {
	// GetOrCreateUser returns the user, inserting a free-tier record on first contact.
	GetOrCreateUser(ctx context.Context, userId string) (*models.User, error)
	GetUser(ctx context.Context, userId string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// UpdateUser applies mutate and persists the result as one unit, guarded by
	// the row version. The updated user is returned.
	UpdateUser(ctx context.Context, userId string, mutate UserMutation) (*models.User, error)

	AppendTurn(ctx context.Context, turn models.ConversationTurn) error
	// RecentTurns returns at most limit turns, most recent first.
	RecentTurns(ctx context.Context, userId string, limit int) ([]models.ConversationTurn, error)
	CountTurns(ctx context.Context, userId string) (int64, error)

	// UpsertTrade inserts or refreshes a trade keyed by its broker trade id.
	UpsertTrade(ctx context.Context, trade models.Trade) error
	ListTrades(ctx context.Context, userId string) ([]models.Trade, error)

	Ping(ctx context.Context) error
	Close()
}

// RetryOnConflict runs fn until it succeeds, fails with an error other than
// ErrConcurrentModification, or MaxUpdateAttempts is reached.
func RetryOnConflict(ctx context.Context, fn func() (*models.User, error)) (*models.User, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		user, err := fn()
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", MaxUpdateAttempts, lastErr)
}
