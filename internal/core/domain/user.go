package domain

import (
	"time"
)

// User is a registered SMS sender and its custodial wallet.
type User struct {
	ID                  int64     `db:"id"`
	PhoneNumber         string    `db:"phone_number"`
	WalletAddress       string    `db:"wallet_address"`
	EncryptedPrivateKey string    `db:"encrypted_private_key"`
	PinHash             *string   `db:"pin_hash"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}
