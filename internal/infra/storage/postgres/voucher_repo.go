package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/infra/storage"
)

const voucherColumns = `id, code, usdc_amount, status, redeemed_by, redeemed_at, expires_at, created_at`

// VoucherRepo implements storage.VoucherRepository using PostgreSQL.
type VoucherRepo struct {
	db  *DB
	now func() time.Time
}

// NewVoucherRepo creates a new PostgreSQL voucher repository.
func NewVoucherRepo(db *DB) *VoucherRepo {
	return &VoucherRepo{db: db, now: time.Now}
}

// Redeem locks the voucher row, checks it and marks it redeemed in one transaction.
func (r *VoucherRepo) Redeem(ctx context.Context, code, phone string) (*domain.Voucher, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var v domain.Voucher
	err = tx.GetContext(ctx, &v,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1 FOR UPDATE`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}

	if v.Status != domain.VoucherStatusActive {
		return nil, storage.ErrVoucherAlreadyRedeemed
	}
	if v.Expired(r.now()) {
		return nil, storage.ErrVoucherExpired
	}

	err = tx.GetContext(ctx, &v,
		`UPDATE vouchers
		 SET status = $2, redeemed_by = $3, redeemed_at = NOW()
		 WHERE id = $1
		 RETURNING `+voucherColumns,
		v.ID, string(domain.VoucherStatusRedeemed), phone)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}
	return &v, nil
}

func (r *VoucherRepo) Create(ctx context.Context, code string, amount decimal.Decimal, expiresAt *time.Time) (*domain.Voucher, error) {
	var v domain.Voucher
	err := r.db.GetContext(ctx, &v,
		`INSERT INTO vouchers (code, usdc_amount, status, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+voucherColumns,
		code, amount, string(domain.VoucherStatusActive), expiresAt)
	if isUniqueViolation(err) {
		return nil, storage.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create voucher: %w", err)
	}
	return &v, nil
}
