package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/textchain/internal/core/domain"
)

const depositColumns = `id, phone_number, amount, source, reference, created_at`

// DepositRepo implements storage.DepositRepository using PostgreSQL.
type DepositRepo struct {
	db *DB
}

// NewDepositRepo creates a new PostgreSQL deposit repository.
func NewDepositRepo(db *DB) *DepositRepo {
	return &DepositRepo{db: db}
}

func (r *DepositRepo) CreateFromVoucher(ctx context.Context, phone string, amount decimal.Decimal, code string) (*domain.Deposit, error) {
	var d domain.Deposit
	err := r.db.GetContext(ctx, &d,
		`INSERT INTO deposits (id, phone_number, amount, source, reference)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+depositColumns,
		uuid.NewString(), phone, amount, string(domain.DepositSourceVoucher), code)
	if err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}
	return &d, nil
}

func (r *DepositRepo) GetRecent(ctx context.Context, phone string, limit int) ([]*domain.Deposit, error) {
	var deposits []*domain.Deposit
	err := r.db.SelectContext(ctx, &deposits,
		`SELECT `+depositColumns+`
		 FROM deposits
		 WHERE phone_number = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}
	return deposits, nil
}
