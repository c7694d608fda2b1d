package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/textchain/internal/core/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("record already exists")

	ErrVoucherNotFound        = errors.New("voucher not found")
	ErrVoucherAlreadyRedeemed = errors.New("voucher already redeemed")
	ErrVoucherExpired         = errors.New("voucher expired")
)

// UserRepository handles registered senders, keyed by phone number
type UserRepository interface {
	// Exists reports whether a user is registered for phone
	Exists(ctx context.Context, phone string) (bool, error)

	// FindByPhone returns ErrNotFound when no user is registered
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)

	// Create registers a user; ErrAlreadyExists on a duplicate phone
	Create(ctx context.Context, phone, walletAddress, encodedKey string) (*domain.User, error)

	// UpdatePinHash stores the hashed PIN
	UpdatePinHash(ctx context.Context, phone, pinHash string) error
}

// VoucherRepository handles prepaid voucher codes
type VoucherRepository interface {
	// Redeem atomically marks an active voucher as redeemed by phone.
	// Errors: ErrVoucherNotFound, ErrVoucherAlreadyRedeemed, ErrVoucherExpired,
	// or a wrapped database error.
	Redeem(ctx context.Context, code, phone string) (*domain.Voucher, error)

	// Create issues a new voucher; ErrAlreadyExists on a duplicate code
	Create(ctx context.Context, code string, amount decimal.Decimal, expiresAt *time.Time) (*domain.Voucher, error)
}

// DepositRepository handles account credits
type DepositRepository interface {
	// CreateFromVoucher records the credit from a redeemed voucher
	CreateFromVoucher(ctx context.Context, phone string, amount decimal.Decimal, code string) (*domain.Deposit, error)

	// GetRecent returns up to limit deposits, newest first
	GetRecent(ctx context.Context, phone string, limit int) ([]*domain.Deposit, error)
}

// AddressBookRepository handles per-sender contacts
type AddressBookRepository interface {
	// AddContact stores a contact; an existing name for the same owner is overwritten
	AddContact(ctx context.Context, owner, name string, phone, walletAddress *string) (*domain.Contact, error)

	// ListAll returns the owner's contacts ordered by name
	ListAll(ctx context.Context, owner string) ([]*domain.Contact, error)
}
