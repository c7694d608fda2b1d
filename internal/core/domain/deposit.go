package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositSource string

const (
	DepositSourceVoucher DepositSource = "voucher"
)

// Deposit is a credit to a user's account.
type Deposit struct {
	ID          string          `db:"id"`
	PhoneNumber string          `db:"phone_number"`
	Amount      decimal.Decimal `db:"amount"`
	Source      DepositSource   `db:"source"`
	Reference   string          `db:"reference"`
	CreatedAt   time.Time       `db:"created_at"`
}
