package repositories

import (
	"context"
	"database/sql"
	"time"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
)

// UserRepository implements repositories.UserRepository against the
// Postgres user/balance store (spec.md §6 columns: npub, name, nip05,
// lud16, balance_sats, iswhitelisted, isblacklisted, lastactive).
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate returns the row for pubkey, creating a zero-balance,
// non-whitelisted, non-blacklisted row on first sight.
func (r *UserRepository) GetOrCreate(ctx context.Context, pubkey string) (*entities.User, error) {
	user, err := r.GetByPubKey(ctx, pubkey)
	if err == nil {
		return user, nil
	}
	if err != domainerrors.ErrNotFound {
		return nil, err
	}

	query := `
		INSERT INTO users (npub, name, balance_sats, iswhitelisted, isblacklisted, lastactive)
		VALUES ($1, $1, 0, false, false, $2)
		ON CONFLICT (npub) DO UPDATE SET lastactive = users.lastactive
		RETURNING npub, name, nip05, lud16, balance_sats, iswhitelisted, isblacklisted, lastactive
	`

	now := time.Now()
	created := &entities.User{}
	var nip05, lud16 sql.NullString
	err = r.db.QueryRowContext(ctx, query, pubkey, now).Scan(
		&created.PubKey, &created.Name, &nip05, &lud16,
		&created.BalanceSats, &created.IsWhitelisted, &created.IsBlacklisted, &created.LastActive,
	)
	if err != nil {
		return nil, err
	}
	created.NIP05 = nip05.String
	created.LightningAddress = lud16.String
	return created, nil
}

// GetByPubKey gets a user by their network pubkey.
func (r *UserRepository) GetByPubKey(ctx context.Context, pubkey string) (*entities.User, error) {
	query := `
		SELECT npub, name, nip05, lud16, balance_sats, iswhitelisted, isblacklisted, lastactive
		FROM users
		WHERE npub = $1
	`

	user := &entities.User{}
	var nip05, lud16 sql.NullString
	err := r.db.QueryRowContext(ctx, query, pubkey).Scan(
		&user.PubKey, &user.Name, &nip05, &lud16,
		&user.BalanceSats, &user.IsWhitelisted, &user.IsBlacklisted, &user.LastActive,
	)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.NIP05 = nip05.String
	user.LightningAddress = lud16.String
	return user, nil
}

// DebitBalance subtracts amountSats, floored at zero, and returns the
// resulting balance.
func (r *UserRepository) DebitBalance(ctx context.Context, pubkey string, amountSats int64) (int64, error) {
	query := `
		UPDATE users
		SET balance_sats = CASE WHEN balance_sats - $2 < 0 THEN 0 ELSE balance_sats - $2 END
		WHERE npub = $1
		RETURNING balance_sats
	`
	var balance int64
	err := r.db.QueryRowContext(ctx, query, pubkey, amountSats).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domainerrors.ErrNotFound
	}
	return balance, err
}

// CreditBalance adds amountSats and returns the resulting balance.
func (r *UserRepository) CreditBalance(ctx context.Context, pubkey string, amountSats int64) (int64, error) {
	query := `
		UPDATE users
		SET balance_sats = balance_sats + $2
		WHERE npub = $1
		RETURNING balance_sats
	`
	var balance int64
	err := r.db.QueryRowContext(ctx, query, pubkey, amountSats).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domainerrors.ErrNotFound
	}
	return balance, err
}

// SetLastActive records the last time pubkey was seen.
func (r *UserRepository) SetLastActive(ctx context.Context, pubkey string, at time.Time) error {
	query := `UPDATE users SET lastactive = $2 WHERE npub = $1`
	result, err := r.db.ExecContext(ctx, query, pubkey, at)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}
