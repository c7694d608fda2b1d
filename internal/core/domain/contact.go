package domain

import (
	"fmt"
	"time"
)

// Contact is an address book entry owned by a sender.
type Contact struct {
	ID            int64     `db:"id"`
	OwnerPhone    string    `db:"owner_phone"`
	Name          string    `db:"name"`
	Phone         *string   `db:"phone"`
	WalletAddress *string   `db:"wallet_address"`
	CreatedAt     time.Time `db:"created_at"`
}

// SMSString renders the contact as a single reply line.
func (c Contact) SMSString() string {
	switch {
	case c.Phone != nil && *c.Phone != "":
		return fmt.Sprintf("%s: %s", c.Name, *c.Phone)
	case c.WalletAddress != nil && *c.WalletAddress != "":
		return fmt.Sprintf("%s: %s", c.Name, shortAddress(*c.WalletAddress))
	default:
		return c.Name
	}
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
