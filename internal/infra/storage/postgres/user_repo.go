package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/infra/storage"
)

const userColumns = `id, phone_number, wallet_address, encrypted_private_key, pin_hash, created_at, updated_at`

// UserRepo implements storage.UserRepository using PostgreSQL.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new PostgreSQL user repository.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Exists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, phone)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, phone, walletAddress, encodedKey string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u,
		`INSERT INTO users (phone_number, wallet_address, encrypted_private_key)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		phone, walletAddress, encodedKey)
	if isUniqueViolation(err) {
		return nil, storage.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) UpdatePinHash(ctx context.Context, phone, pinHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET pin_hash = $2, updated_at = NOW() WHERE phone_number = $1`,
		phone, pinHash)
	if err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
