package repositories

import (
	"context"
	"time"

	"nostrdvm.backend/internal/domain/entities"
)

// UserRepository is the external, durable user/balance store contract
// (spec.md §3 User, §6 persisted columns). The orchestrator never keeps
// balance state of its own — every mutation round-trips through here.
type UserRepository interface {
	// GetOrCreate returns the row for pubkey, creating a zero-balance row
	// on first sight (spec.md §4.6 Entry A step 1).
	GetOrCreate(ctx context.Context, pubkey string) (*entities.User, error)
	GetByPubKey(ctx context.Context, pubkey string) (*entities.User, error)

	// DebitBalance subtracts amountSats from the user's balance, floored
	// at zero, and returns the resulting balance.
	DebitBalance(ctx context.Context, pubkey string, amountSats int64) (int64, error)
	// CreditBalance adds amountSats to the user's balance.
	CreditBalance(ctx context.Context, pubkey string, amountSats int64) (int64, error)

	SetLastActive(ctx context.Context, pubkey string, at time.Time) error
}
