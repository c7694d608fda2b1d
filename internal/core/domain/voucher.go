package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusRedeemed VoucherStatus = "redeemed"
)

// Voucher is a prepaid code that credits USDC to the redeemer.
type Voucher struct {
	ID         int64           `db:"id"`
	Code       string          `db:"code"`
	USDCAmount decimal.Decimal `db:"usdc_amount"`
	Status     VoucherStatus   `db:"status"`
	RedeemedBy *string         `db:"redeemed_by"`
	RedeemedAt *time.Time      `db:"redeemed_at"`
	ExpiresAt  *time.Time      `db:"expires_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Expired reports whether the voucher is past its expiry at now.
func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}
