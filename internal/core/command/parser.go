package command

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Usage hints returned inside Unknown.
const (
	HintRedeemUsage      = "Usage: REDEEM <code>"
	HintChainUsage       = "Usage: CHAIN <polygon|base|eth|arb>"
	HintSaveUsage        = "Usage: SAVE <name> <phone>"
	HintSendUsage        = "Invalid SEND format. Use: SEND <amount> <token> TO <phone>"
	HintInvalidAmount    = "Invalid amount"
	HintMissingRecipient = "Missing recipient. Use: SEND <amount> <token> TO <phone>"
)

// Parse maps free-form SMS text to a Command. It never fails: malformed
// input comes back as Unknown, with a Hint when the keyword was recognised.
func Parse(text string) Command {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return Unknown{}
	}
	// rejoin so runs of whitespace collapse in the echoed text
	normalized = strings.Join(parts, " ")

	switch parts[0] {
	case "HELP", "?", "COMMANDS":
		return Help{}
	case "JOIN", "START", "REGISTER":
		return Join{}
	case "BALANCE", "BAL":
		return Balance{}
	case "PIN":
		if len(parts) < 2 {
			return Pin{}
		}
		return Pin{NewPin: parts[1]}
	case "SEND":
		return parseSend(normalized, parts)
	case "DEPOSIT", "RECEIVE":
		return Deposit{}
	case "HISTORY", "TRANSACTIONS", "TXS":
		return History{}
	case "REDEEM", "VOUCHER", "CODE":
		if len(parts) < 2 {
			return Unknown{Text: normalized, Hint: HintRedeemUsage}
		}
		return Redeem{Code: parts[1]}
	case "SAVE", "ADD":
		if len(parts) < 3 {
			return Unknown{Text: normalized, Hint: HintSaveUsage}
		}
		return Save{Contact: parts[1], Phone: strings.Join(parts[2:], " ")}
	case "CONTACTS", "BOOK":
		return Contacts{}
	case "CHAIN", "NETWORK":
		if len(parts) < 2 {
			return Unknown{Text: normalized, Hint: HintChainUsage}
		}
		return SwitchChain{Chain: parts[1]}
	default:
		return Unknown{Text: normalized}
	}
}

// parseSend handles SEND <amount> <token> TO <recipient...>.
// A recipient requires TO at index 3 or later plus one more token, so every
// accepted SEND has at least five tokens.
func parseSend(normalized string, parts []string) Command {
	if len(parts) < 3 {
		return Unknown{Text: normalized, Hint: HintSendUsage}
	}

	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return Unknown{Text: normalized, Hint: HintInvalidAmount}
	}

	to := -1
	for i := 3; i < len(parts); i++ {
		if parts[i] == "TO" {
			to = i
			break
		}
	}
	if to < 0 || to+1 >= len(parts) {
		return Unknown{Text: normalized, Hint: HintMissingRecipient}
	}

	return Send{
		Amount:    amount,
		Token:     parts[2],
		Recipient: strings.Join(parts[to+1:], " "),
	}
}
