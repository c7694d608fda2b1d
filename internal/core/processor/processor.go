// Package processor executes parsed SMS commands against the wallet, balance
// and storage collaborators and produces the reply text.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vietddude/textchain/internal/core/command"
	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/core/registry"
	"github.com/vietddude/textchain/internal/core/wallet"
	"github.com/vietddude/textchain/internal/infra/storage"
	"github.com/vietddude/textchain/internal/metrics"
)

// ErrUnavailable marks a secondary effect skipped because its store is not configured.
var ErrUnavailable = errors.New("collaborator unavailable")

const (
	historyLimit  = 5
	contactsLimit = 5
	echoLimit     = 15
)

// BalanceAggregator is satisfied by *balance.Aggregator.
type BalanceAggregator interface {
	Aggregate(ctx context.Context, address string) domain.AggregatedBalance
}

// Outcome is the result of executing one command.
type Outcome struct {
	Reply   string
	Command command.Command

	// Secondary is the error of a fire-and-forget effect that ran after the
	// reply was decided (PIN persistence, deposit recording). It never
	// changes Reply.
	Secondary error
}

// Processor is stateless between messages and safe for concurrent use.
// A nil repository means that store is offline.
type Processor struct {
	users    storage.UserRepository
	vouchers storage.VoucherRepository
	deposits storage.DepositRepository
	contacts storage.AddressBookRepository

	chains   *registry.Registry
	balances BalanceAggregator
	wallets  wallet.Generator
	hashPIN  func(pin string) (string, error)
	log      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

func WithUsers(r storage.UserRepository) Option {
	return func(p *Processor) { p.users = r }
}

func WithVouchers(r storage.VoucherRepository) Option {
	return func(p *Processor) { p.vouchers = r }
}

func WithDeposits(r storage.DepositRepository) Option {
	return func(p *Processor) { p.deposits = r }
}

func WithAddressBook(r storage.AddressBookRepository) Option {
	return func(p *Processor) { p.contacts = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.log = l }
}

// WithPINHasher replaces the bcrypt PIN hash.
func WithPINHasher(fn func(pin string) (string, error)) Option {
	return func(p *Processor) { p.hashPIN = fn }
}

// New creates a Processor. chains and balances are required.
func New(chains *registry.Registry, balances BalanceAggregator, wallets wallet.Generator, opts ...Option) *Processor {
	p := &Processor{
		chains:   chains,
		balances: balances,
		wallets:  wallets,
		hashPIN:  bcryptPIN,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func bcryptPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Process parses body and executes it for sender from, returning the reply.
func (p *Processor) Process(ctx context.Context, from, body string) string {
	cmd := command.Parse(body)
	p.log.Debug("Processing command", "from", from, "command", command.Describe(cmd))
	return p.Execute(ctx, from, cmd).Reply
}

// Execute runs cmd. It never panics outward; a failing handler yields the
// generic error reply.
func (p *Processor) Execute(ctx context.Context, from string, cmd command.Command) (out Outcome) {
	start := time.Now()
	name := cmd.Name()

	defer func() {
		if r := recover(); r != nil {
			metrics.CommandPanics.Inc()
			p.log.Error("Command handler panicked",
				"command", name, "from", from, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out = Outcome{Reply: replyTryLater, Command: cmd}
		}
		metrics.CommandsProcessed.WithLabelValues(name).Inc()
		metrics.CommandLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	out = p.dispatch(ctx, from, cmd)
	out.Command = cmd
	if out.Secondary != nil {
		p.log.Warn("Secondary effect failed", "command", name, "from", from, "error", out.Secondary)
	}
	return out
}

func (p *Processor) dispatch(ctx context.Context, from string, cmd command.Command) Outcome {
	switch c := cmd.(type) {
	case command.Help:
		return reply(replyHelp)
	case command.Join:
		return p.join(ctx, from)
	case command.Balance:
		return p.balance(ctx, from)
	case command.Pin:
		return p.pin(ctx, from, c)
	case command.Send:
		return p.send(c)
	case command.Deposit:
		return p.deposit(ctx, from)
	case command.History:
		return p.history(ctx, from)
	case command.Redeem:
		return p.redeem(ctx, from, c)
	case command.Save:
		return p.save(ctx, from, c)
	case command.Contacts:
		return p.listContacts(ctx, from)
	case command.SwitchChain:
		return p.switchChain(c)
	case command.Unknown:
		return p.unknown(c)
	default:
		return reply(replyTryLater)
	}
}

func reply(text string) Outcome {
	return Outcome{Reply: text}
}
