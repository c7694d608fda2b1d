package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/textchain/internal/core/domain"
)

const contactColumns = `id, owner_phone, name, phone, wallet_address, created_at`

// AddressBookRepo implements storage.AddressBookRepository using PostgreSQL.
type AddressBookRepo struct {
	db *DB
}

// NewAddressBookRepo creates a new address book repository.
func NewAddressBookRepo(db *DB) *AddressBookRepo {
	return &AddressBookRepo{db: db}
}

// AddContact inserts or updates a contact by (owner, name).
func (r *AddressBookRepo) AddContact(ctx context.Context, owner, name string, phone, walletAddress *string) (*domain.Contact, error) {
	var c domain.Contact
	err := r.db.GetContext(ctx, &c,
		`INSERT INTO address_book (owner_phone, name, phone, wallet_address)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_phone, name)
		 DO UPDATE SET phone = EXCLUDED.phone, wallet_address = EXCLUDED.wallet_address
		 RETURNING `+contactColumns,
		owner, name, phone, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to save contact: %w", err)
	}
	return &c, nil
}

// ListAll returns all contacts for the owner ordered by name.
func (r *AddressBookRepo) ListAll(ctx context.Context, owner string) ([]*domain.Contact, error) {
	var contacts []*domain.Contact
	err := r.db.SelectContext(ctx, &contacts,
		`SELECT `+contactColumns+` FROM address_book WHERE owner_phone = $1 ORDER BY name`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}
