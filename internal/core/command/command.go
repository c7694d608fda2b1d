// Package command defines the SMS command set and the parser that produces it.
package command

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Command is one parsed SMS instruction. The set of implementations is closed.
type Command interface {
	// Name is the canonical command keyword, used for logs and metrics.
	Name() string
	isCommand()
}

type (
	Help     struct{}
	Join     struct{}
	Balance  struct{}
	Deposit  struct{}
	History  struct{}
	Contacts struct{}
)

// Pin sets a PIN. NewPin is empty when no argument was given.
// Validation happens at execution time.
type Pin struct {
	NewPin string
}

// HasPin reports whether a candidate PIN was supplied.
func (p Pin) HasPin() bool { return p.NewPin != "" }

// Send is a transfer request. Only a confirmation prompt is produced for it.
type Send struct {
	Amount    decimal.Decimal
	Token     string
	Recipient string
}

type Redeem struct {
	Code string
}

type Save struct {
	Contact string
	Phone   string
}

type SwitchChain struct {
	Chain string
}

// Unknown is anything the parser could not map to a command.
// Hint carries a usage message for recognised keywords with bad arguments.
type Unknown struct {
	Text string
	Hint string
}

func (Help) Name() string        { return "HELP" }
func (Join) Name() string        { return "JOIN" }
func (Balance) Name() string     { return "BALANCE" }
func (Pin) Name() string         { return "PIN" }
func (Send) Name() string        { return "SEND" }
func (Deposit) Name() string     { return "DEPOSIT" }
func (History) Name() string     { return "HISTORY" }
func (Redeem) Name() string      { return "REDEEM" }
func (Save) Name() string        { return "SAVE" }
func (Contacts) Name() string    { return "CONTACTS" }
func (SwitchChain) Name() string { return "CHAIN" }
func (Unknown) Name() string     { return "UNKNOWN" }

func (Help) isCommand()        {}
func (Join) isCommand()        {}
func (Balance) isCommand()     {}
func (Pin) isCommand()         {}
func (Send) isCommand()        {}
func (Deposit) isCommand()     {}
func (History) isCommand()     {}
func (Redeem) isCommand()      {}
func (Save) isCommand()        {}
func (Contacts) isCommand()    {}
func (SwitchChain) isCommand() {}
func (Unknown) isCommand()     {}

// Describe renders a command for the CLI and debug logs.
func Describe(c Command) string {
	switch v := c.(type) {
	case Pin:
		if !v.HasPin() {
			return "PIN (no argument)"
		}
		return "PIN ****"
	case Send:
		return fmt.Sprintf("SEND amount=%s token=%s recipient=%s", v.Amount.String(), v.Token, v.Recipient)
	case Redeem:
		return fmt.Sprintf("REDEEM code=%s", v.Code)
	case Save:
		return fmt.Sprintf("SAVE name=%s phone=%s", v.Contact, v.Phone)
	case SwitchChain:
		return fmt.Sprintf("CHAIN %s", v.Chain)
	case Unknown:
		if v.Hint != "" {
			return fmt.Sprintf("UNKNOWN hint=%q", v.Hint)
		}
		return fmt.Sprintf("UNKNOWN text=%q", v.Text)
	default:
		return c.Name()
	}
}
