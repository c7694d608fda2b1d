package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vietddude/textchain/internal/core/balance"
	"github.com/vietddude/textchain/internal/core/command"
	"github.com/vietddude/textchain/internal/core/wallet"
	"github.com/vietddude/textchain/internal/infra/storage"
)

func (p *Processor) join(ctx context.Context, from string) Outcome {
	if p.users == nil {
		return reply(replyDBOffline)
	}

	exists, err := p.users.Exists(ctx, from)
	if err != nil {
		p.log.Error("DB error", "from", from, "error", err)
		return reply(replyTryLater)
	}
	if exists {
		return reply(replyWelcomeBack)
	}

	w, err := p.wallets.New()
	if err != nil {
		p.log.Error("Wallet error", "error", err)
		return reply(replyWalletCreateFailed)
	}

	if _, err := p.users.Create(ctx, from, w.Address(), wallet.EncodeKey(w.PrivateKeyBytes())); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// a concurrent JOIN from the same sender won
			return reply(replyWelcomeBack)
		}
		p.log.Error("DB save error", "from", from, "error", err)
		return reply(replyWalletSaveFailed)
	}

	p.log.Info("Wallet created", "from", from, "address", w.Address())
	return reply(fmt.Sprintf("Wallet created!\n\n%s\n\nReply DEPOSIT to fund it.", w.Address()))
}

func (p *Processor) balance(ctx context.Context, from string) Outcome {
	if p.users == nil {
		return reply(replyBalanceOffline)
	}

	user, err := p.users.FindByPhone(ctx, from)
	if errors.Is(err, storage.ErrNotFound) {
		return reply(replyNoWallet)
	}
	if err != nil {
		p.log.Error("DB error", "from", from, "error", err)
		return reply(replyTryLater)
	}

	key, err := wallet.DecodeKey(user.EncryptedPrivateKey)
	if err != nil {
		p.log.Error("Stored key is corrupt", "from", from, "error", err)
		return reply(replyWalletRead)
	}
	w, err := p.wallets.FromPrivateKey(key)
	if err != nil {
		p.log.Error("Failed to restore wallet", "from", from, "error", err)
		return reply(replyWalletLoad)
	}

	if p.balances == nil {
		return reply(replyNoFunds)
	}
	agg := p.balances.Aggregate(ctx, w.Address())
	if agg.Empty() {
		return reply(replyNoFunds)
	}

	lines := make([]string, 0, len(agg.Entries))
	for _, e := range agg.Entries {
		lines = append(lines, balance.FormatLine(e))
	}
	return reply(fmt.Sprintf("Balances:\n%s\n\nReply DEPOSIT for address.", strings.Join(lines, "\n")))
}

func (p *Processor) pin(ctx context.Context, from string, c command.Pin) Outcome {
	if !c.HasPin() {
		return reply(replyPinUsage)
	}
	if !validPIN(c.NewPin) {
		return reply(replyPinInvalid)
	}

	out := reply(replyPinSet)
	if p.users == nil {
		out.Secondary = fmt.Errorf("store pin: %w", ErrUnavailable)
		return out
	}

	hash, err := p.hashPIN(c.NewPin)
	if err != nil {
		out.Secondary = fmt.Errorf("hash pin: %w", err)
		return out
	}
	if err := p.users.UpdatePinHash(ctx, from, hash); err != nil {
		out.Secondary = fmt.Errorf("store pin: %w", err)
	}
	return out
}

// validPIN accepts 4 to 6 ASCII digits.
func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// send only echoes a confirmation prompt; no transfer state is kept.
// TODO: store a pending intent per sender so CONFIRM and CANCEL can act on it.
func (p *Processor) send(c command.Send) Outcome {
	return reply(fmt.Sprintf("Send %s %s to %s?\n\nReply CONFIRM or CANCEL", c.Amount.String(), c.Token, c.Recipient))
}

func (p *Processor) deposit(ctx context.Context, from string) Outcome {
	if p.users == nil {
		return reply(replyDepositOffline)
	}

	user, err := p.users.FindByPhone(ctx, from)
	if errors.Is(err, storage.ErrNotFound) {
		return reply(replyNoWallet)
	}
	if err != nil {
		p.log.Error("DB error", "from", from, "error", err)
		return reply(replyTryLater)
	}

	chains := p.chains.List()
	if len(chains) == 0 {
		return reply(fmt.Sprintf("Deposit to:\n%s", user.WalletAddress))
	}
	home := chains[0]
	return reply(fmt.Sprintf("Deposit %s to:\n%s\n\n%s testnet", home.NativeSymbol, user.WalletAddress, home.Name))
}

func (p *Processor) history(ctx context.Context, from string) Outcome {
	if p.deposits == nil {
		p.log.Debug("Deposit store offline, reporting empty history", "from", from)
		return reply(replyNoHistory)
	}

	deposits, err := p.deposits.GetRecent(ctx, from, historyLimit)
	if err != nil {
		p.log.Warn("Failed to load deposits, reporting empty history", "from", from, "error", err)
		return reply(replyNoHistory)
	}
	if len(deposits) == 0 {
		return reply(replyNoHistory)
	}

	lines := make([]string, 0, len(deposits))
	for _, d := range deposits {
		lines = append(lines, fmt.Sprintf("$%s via %s", d.Amount.StringFixed(2), d.Source))
	}
	return reply("Recent deposits:\n" + strings.Join(lines, "\n"))
}

func (p *Processor) redeem(ctx context.Context, from string, c command.Redeem) Outcome {
	if p.users == nil {
		return reply(replyDBOffline)
	}

	exists, err := p.users.Exists(ctx, from)
	if err != nil {
		p.log.Error("DB error", "from", from, "error", err)
		return reply(replyTryLater)
	}
	if !exists {
		return reply(replyNoWallet)
	}

	if p.vouchers == nil {
		return reply(replyVoucherOffline)
	}
	if p.deposits == nil {
		return reply(replyDepositSystemOffline)
	}

	v, err := p.vouchers.Redeem(ctx, c.Code, from)
	switch {
	case errors.Is(err, storage.ErrVoucherNotFound):
		return reply(replyVoucherInvalid)
	case errors.Is(err, storage.ErrVoucherAlreadyRedeemed):
		return reply(replyVoucherUsed)
	case errors.Is(err, storage.ErrVoucherExpired):
		return reply(replyVoucherExpired)
	case err != nil:
		p.log.Error("Voucher redeem failed", "from", from, "code", c.Code, "error", err)
		return reply(replyTryLater)
	}

	out := reply(fmt.Sprintf("Voucher redeemed!\n\n$%s USDC credited.\n\nReply BALANCE to check.", v.USDCAmount.StringFixed(2)))

	// The voucher stays spent even if the credit record fails to write.
	if _, err := p.deposits.CreateFromVoucher(ctx, from, v.USDCAmount, c.Code); err != nil {
		p.log.Error("Failed to record deposit", "from", from, "code", c.Code, "error", err)
		out.Secondary = fmt.Errorf("record deposit: %w", err)
	}
	return out
}

func (p *Processor) save(ctx context.Context, from string, c command.Save) Outcome {
	if p.contacts == nil {
		return reply(replyAddressBookOffline)
	}

	phone := c.Phone
	if _, err := p.contacts.AddContact(ctx, from, c.Contact, &phone, nil); err != nil {
		p.log.Error("Failed to save contact", "from", from, "error", err)
		return reply(replyContactSaveFailed)
	}
	return reply(fmt.Sprintf("Saved %s as %s.", c.Phone, c.Contact))
}

func (p *Processor) listContacts(ctx context.Context, from string) Outcome {
	if p.contacts == nil {
		return reply(replyAddressBookOffline)
	}

	contacts, err := p.contacts.ListAll(ctx, from)
	if err != nil {
		p.log.Error("Failed to load contacts", "from", from, "error", err)
		return reply(replyContactsLoadFailed)
	}
	if len(contacts) == 0 {
		return reply(replyNoContacts)
	}

	if len(contacts) > contactsLimit {
		contacts = contacts[:contactsLimit]
	}
	lines := make([]string, 0, len(contacts))
	for _, c := range contacts {
		lines = append(lines, c.SMSString())
	}
	return reply("Contacts:\n" + strings.Join(lines, "\n"))
}

// switchChain acknowledges the chain only; no per-user preference is stored.
func (p *Processor) switchChain(c command.SwitchChain) Outcome {
	chain, ok := p.chains.Resolve(c.Chain)
	if !ok {
		return reply(fmt.Sprintf("Unknown chain: %s\n\nAvailable: %s", c.Chain, strings.Join(p.chains.Aliases(), ", ")))
	}
	return reply(fmt.Sprintf("Switched to %s!\n\nChain ID: %d\nNative: %s", chain.Name, chain.ChainID, chain.NativeSymbol))
}

func (p *Processor) unknown(c command.Unknown) Outcome {
	if c.Hint != "" {
		return reply(c.Hint)
	}
	if c.Text == "" {
		return reply(replyWelcome)
	}
	return reply(fmt.Sprintf("Unknown: %s\n\nReply HELP for commands.", truncateRunes(c.Text, echoLimit)))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
