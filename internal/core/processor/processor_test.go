package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/textchain/internal/core/command"
	"github.com/vietddude/textchain/internal/core/config"
	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/core/registry"
	"github.com/vietddude/textchain/internal/core/wallet"
	"github.com/vietddude/textchain/internal/infra/storage"
	"github.com/vietddude/textchain/internal/infra/storage/memory"
)

const sender = "+917123456789"

// recordingUsers is an in-memory UserRepository that counts every call.
type recordingUsers struct {
	users        map[string]*domain.User
	calls        int
	creates      int
	pinUpdates   int
	existsErr    error
	createErr    error
	updatePinErr error
}

func newRecordingUsers() *recordingUsers {
	return &recordingUsers{users: make(map[string]*domain.User)}
}

func (r *recordingUsers) Exists(_ context.Context, phone string) (bool, error) {
	r.calls++
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.users[phone]
	return ok, nil
}

func (r *recordingUsers) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.calls++
	u, ok := r.users[phone]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (r *recordingUsers) Create(_ context.Context, phone, addr, key string) (*domain.User, error) {
	r.calls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.users[phone]; ok {
		return nil, storage.ErrAlreadyExists
	}
	r.creates++
	u := &domain.User{PhoneNumber: phone, WalletAddress: addr, EncryptedPrivateKey: key}
	r.users[phone] = u
	return u, nil
}

func (r *recordingUsers) UpdatePinHash(_ context.Context, phone, hash string) error {
	r.calls++
	r.pinUpdates++
	if r.updatePinErr != nil {
		return r.updatePinErr
	}
	if u, ok := r.users[phone]; ok {
		u.PinHash = &hash
	}
	return nil
}

type stubVouchers struct {
	voucher *domain.Voucher
	err     error
}

func (s *stubVouchers) Redeem(context.Context, string, string) (*domain.Voucher, error) {
	return s.voucher, s.err
}

func (s *stubVouchers) Create(context.Context, string, decimal.Decimal, *time.Time) (*domain.Voucher, error) {
	return nil, errors.New("not used")
}

type recordingDeposits struct {
	created   []decimal.Decimal
	recent    []*domain.Deposit
	createErr error
	recentErr error
}

func (r *recordingDeposits) CreateFromVoucher(_ context.Context, phone string, amount decimal.Decimal, code string) (*domain.Deposit, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created = append(r.created, amount)
	return &domain.Deposit{PhoneNumber: phone, Amount: amount, Source: domain.DepositSourceVoucher, Reference: code}, nil
}

func (r *recordingDeposits) GetRecent(_ context.Context, _ string, limit int) ([]*domain.Deposit, error) {
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}

type stubContacts struct {
	list  []*domain.Contact
	err   error
	added []string
}

func (s *stubContacts) AddContact(_ context.Context, _ string, name string, phone, _ *string) (*domain.Contact, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.added = append(s.added, name+"="+*phone)
	return &domain.Contact{Name: name, Phone: phone}, nil
}

func (s *stubContacts) ListAll(context.Context, string) ([]*domain.Contact, error) {
	return s.list, s.err
}

type stubAggregator struct {
	result  domain.AggregatedBalance
	address string
}

func (s *stubAggregator) Aggregate(_ context.Context, address string) domain.AggregatedBalance {
	s.address = address
	return s.result
}

type failingGenerator struct{ wallet.Secp256k1 }

func (failingGenerator) New() (*wallet.Wallet, error) { return nil, errors.New("entropy") }

func newTestProcessor(opts ...Option) *Processor {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPINHasher(func(pin string) (string, error) { return "hashed:" + pin, nil }),
	}, opts...)
	return New(registry.FromConfig(config.DefaultChains()), &stubAggregator{}, wallet.NewGenerator(), opts...)
}

func TestProcess_Help(t *testing.T) {
	p := newTestProcessor()
	got := p.Process(context.Background(), sender, "help")
	assert.True(t, strings.HasPrefix(got, "TextChain Commands:\n"))
	assert.Contains(t, got, "HELP - This message")
}

func TestJoin_Idempotent(t *testing.T) {
	users := newRecordingUsers()
	p := newTestProcessor(WithUsers(users))

	first := p.Process(context.Background(), sender, "JOIN")
	require.True(t, strings.HasPrefix(first, "Wallet created!\n\n0x"), first)
	addr := users.users[sender].WalletAddress
	assert.Contains(t, first, addr)

	second := p.Process(context.Background(), sender, "start")
	assert.Equal(t, "Welcome back!\n\nReply BALANCE or DEPOSIT", second)
	assert.Equal(t, 1, users.creates)
	assert.Equal(t, addr, users.users[sender].WalletAddress)
}

func TestJoin_Failures(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "DB offline. Try later.", newTestProcessor().Process(ctx, sender, "JOIN"))

	users := newRecordingUsers()
	users.existsErr = errors.New("conn refused")
	assert.Equal(t, "Error. Try later.", newTestProcessor(WithUsers(users)).Process(ctx, sender, "JOIN"))

	users = newRecordingUsers()
	users.createErr = errors.New("disk full")
	assert.Equal(t, "Error saving wallet.", newTestProcessor(WithUsers(users)).Process(ctx, sender, "JOIN"))

	p := New(registry.FromConfig(config.DefaultChains()), &stubAggregator{}, failingGenerator{},
		WithUsers(newRecordingUsers()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, "Error creating wallet.", p.Process(ctx, sender, "JOIN"))
}

func TestPin_ValidationNeverTouchesStorage(t *testing.T) {
	users := newRecordingUsers()
	p := newTestProcessor(WithUsers(users))

	for _, pin := range []string{"12", "abcd", "1234567", "12a4", "١٢٣٤"} {
		out := p.Execute(context.Background(), sender, command.Pin{NewPin: pin})
		assert.Equal(t, "PIN must be 4-6 digits.\nExample: PIN 1234", out.Reply, pin)
		assert.NoError(t, out.Secondary)
	}
	assert.Zero(t, users.calls)

	assert.Equal(t, "Reply: PIN <4-6 digits>\nExample: PIN 1234", p.Process(context.Background(), sender, "PIN"))
	assert.Zero(t, users.calls)
}

func TestPin_PersistsHash(t *testing.T) {
	users := newRecordingUsers()
	users.users[sender] = &domain.User{PhoneNumber: sender}
	p := newTestProcessor(WithUsers(users))

	out := p.Execute(context.Background(), sender, command.Parse("PIN 123456"))
	assert.Equal(t, "PIN set!", out.Reply)
	assert.NoError(t, out.Secondary)
	require.NotNil(t, users.users[sender].PinHash)
	assert.Equal(t, "hashed:123456", *users.users[sender].PinHash)
}

func TestPin_PersistenceFailureSwallowed(t *testing.T) {
	users := newRecordingUsers()
	users.updatePinErr = errors.New("timeout")
	p := newTestProcessor(WithUsers(users))

	out := p.Execute(context.Background(), sender, command.Pin{NewPin: "1234"})
	assert.Equal(t, "PIN set!", out.Reply)
	assert.Error(t, out.Secondary)

	out = newTestProcessor().Execute(context.Background(), sender, command.Pin{NewPin: "1234"})
	assert.Equal(t, "PIN set!", out.Reply)
	assert.ErrorIs(t, out.Secondary, ErrUnavailable)
}

func TestPin_DefaultHasherIsBcrypt(t *testing.T) {
	hash, err := bcryptPIN("1234")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.NotContains(t, hash, "1234")
}

func TestSend_ConfirmationPrompt(t *testing.T) {
	got := newTestProcessor().Process(context.Background(), sender, "send 10 usdc to +917123456789")
	assert.Equal(t, "Send 10 USDC to +917123456789?\n\nReply CONFIRM or CANCEL", got)
}

func TestSend_PromptEchoesAmountVerbatim(t *testing.T) {
	got := newTestProcessor().Process(context.Background(), sender, "SEND -5 USDC TO +91123")
	assert.Equal(t, "Send -5 USDC to +91123?\n\nReply CONFIRM or CANCEL", got)
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	gen := wallet.NewGenerator()
	w, err := gen.New()
	require.NoError(t, err)

	users := newRecordingUsers()
	users.users[sender] = &domain.User{
		PhoneNumber:         sender,
		WalletAddress:       w.Address(),
		EncryptedPrivateKey: wallet.EncodeKey(w.PrivateKeyBytes()),
	}

	reg := registry.FromConfig(config.DefaultChains())
	polygon, _ := reg.Resolve("polygon")
	base, _ := reg.Resolve("base")
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)

	agg := &stubAggregator{result: domain.AggregatedBalance{Entries: []domain.ChainBalance{
		{Chain: polygon, Native: big.NewInt(0), Stable: big.NewInt(2_500_000)},
		{Chain: base, Native: oneEth, Stable: big.NewInt(0)},
	}}}
	p := New(reg, agg, gen, WithUsers(users), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	got := p.Process(ctx, sender, "BAL")
	assert.Equal(t, "Balances:\nPolygon Amoy: 2.50 USDC\nBase Sepolia: 1.0000 ETH\n\nReply DEPOSIT for address.", got)
	assert.Equal(t, w.Address(), agg.address)

	agg.result = domain.AggregatedBalance{}
	assert.Equal(t, "Balance: $0.00\n\nReply DEPOSIT to fund wallet.", p.Process(ctx, sender, "BALANCE"))

	assert.Equal(t, "No wallet. Reply JOIN first.", p.Process(ctx, "+1000", "BALANCE"))
	assert.Equal(t, "Balance: $0.00\nDB offline.", newTestProcessor().Process(ctx, sender, "BALANCE"))
}

func TestBalance_CorruptKey(t *testing.T) {
	users := newRecordingUsers()
	users.users[sender] = &domain.User{PhoneNumber: sender, EncryptedPrivateKey: "abcd"}
	agg := &stubAggregator{}
	p := New(registry.FromConfig(config.DefaultChains()), agg, wallet.NewGenerator(),
		WithUsers(users), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.Equal(t, "Error reading wallet.", p.Process(context.Background(), sender, "BALANCE"))
	assert.Empty(t, agg.address, "aggregator must not run for a corrupt key")
}

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	users := newRecordingUsers()
	users.users[sender] = &domain.User{PhoneNumber: sender, WalletAddress: "0xABC"}
	p := newTestProcessor(WithUsers(users))

	assert.Equal(t, "Deposit MATIC to:\n0xABC\n\nPolygon Amoy testnet", p.Process(ctx, sender, "receive"))
	assert.Equal(t, "No wallet. Reply JOIN first.", p.Process(ctx, "+1", "DEPOSIT"))
	assert.Equal(t, "DB offline. Reply JOIN first.", newTestProcessor().Process(ctx, sender, "DEPOSIT"))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	noHistory := "No transactions yet.\nReply REDEEM <code> to add funds."

	assert.Equal(t, noHistory, newTestProcessor().Process(ctx, sender, "HISTORY"))
	assert.Equal(t, noHistory, newTestProcessor(WithDeposits(&recordingDeposits{recentErr: errors.New("down")})).Process(ctx, sender, "TXS"))
	assert.Equal(t, noHistory, newTestProcessor(WithDeposits(&recordingDeposits{})).Process(ctx, sender, "HISTORY"))

	var recent []*domain.Deposit
	for i := 0; i < 7; i++ {
		recent = append(recent, &domain.Deposit{Amount: decimal.NewFromFloat(1.5), Source: domain.DepositSourceVoucher})
	}
	got := newTestProcessor(WithDeposits(&recordingDeposits{recent: recent})).Process(ctx, sender, "HISTORY")
	assert.True(t, strings.HasPrefix(got, "Recent deposits:\n$1.50 via voucher"))
	assert.Equal(t, 5, strings.Count(got, "via voucher"))
}

func registeredUsers() *recordingUsers {
	users := newRecordingUsers()
	users.users[sender] = &domain.User{PhoneNumber: sender}
	return users
}

func TestRedeem_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{storage.ErrVoucherNotFound, "Invalid voucher code."},
		{storage.ErrVoucherAlreadyRedeemed, "Voucher already used."},
		{storage.ErrVoucherExpired, "Voucher has expired."},
		{errors.New("connection reset"), "Error. Try later."},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		p := newTestProcessor(
			WithUsers(registeredUsers()),
			WithVouchers(&stubVouchers{err: tt.err}),
			WithDeposits(&recordingDeposits{}),
		)
		got := p.Process(context.Background(), sender, "REDEEM GIFT")
		assert.Equal(t, tt.want, got)
		seen[got] = true
	}
	assert.Len(t, seen, 4)
}

func TestRedeem_Success(t *testing.T) {
	deposits := &recordingDeposits{}
	p := newTestProcessor(
		WithUsers(registeredUsers()),
		WithVouchers(&stubVouchers{voucher: &domain.Voucher{Code: "GIFT", USDCAmount: decimal.NewFromInt(25)}}),
		WithDeposits(deposits),
	)

	out := p.Execute(context.Background(), sender, command.Redeem{Code: "GIFT"})
	assert.Equal(t, "Voucher redeemed!\n\n$25.00 USDC credited.\n\nReply BALANCE to check.", out.Reply)
	assert.NoError(t, out.Secondary)
	require.Len(t, deposits.created, 1)
	assert.True(t, deposits.created[0].Equal(decimal.NewFromInt(25)))
}

func TestRedeem_DepositFailureKeepsSuccessReply(t *testing.T) {
	p := newTestProcessor(
		WithUsers(registeredUsers()),
		WithVouchers(&stubVouchers{voucher: &domain.Voucher{USDCAmount: decimal.RequireFromString("9.5")}}),
		WithDeposits(&recordingDeposits{createErr: errors.New("insert failed")}),
	)

	out := p.Execute(context.Background(), sender, command.Redeem{Code: "GIFT"})
	assert.Equal(t, "Voucher redeemed!\n\n$9.50 USDC credited.\n\nReply BALANCE to check.", out.Reply)
	assert.ErrorContains(t, out.Secondary, "insert failed")
}

func TestRedeem_Preconditions(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "DB offline. Try later.", newTestProcessor().Process(ctx, sender, "REDEEM X"))
	assert.Equal(t, "No wallet. Reply JOIN first.",
		newTestProcessor(WithUsers(newRecordingUsers())).Process(ctx, sender, "REDEEM X"))
	assert.Equal(t, "Voucher system offline.",
		newTestProcessor(WithUsers(registeredUsers()), WithDeposits(&recordingDeposits{})).Process(ctx, sender, "REDEEM X"))
	assert.Equal(t, "Deposit system offline.",
		newTestProcessor(WithUsers(registeredUsers()), WithVouchers(&stubVouchers{})).Process(ctx, sender, "REDEEM X"))
	assert.Equal(t, "Usage: REDEEM <code>", newTestProcessor().Process(ctx, sender, "REDEEM"))
}

func TestSaveAndContacts(t *testing.T) {
	ctx := context.Background()
	book := &stubContacts{}
	p := newTestProcessor(WithAddressBook(book))

	assert.Equal(t, "Saved +91 12345 as MOM.", p.Process(ctx, sender, "save mom +91 12345"))
	assert.Equal(t, []string{"MOM=+91 12345"}, book.added)

	assert.Equal(t, "No contacts yet.\n\nSAVE <name> <phone>", p.Process(ctx, sender, "CONTACTS"))

	for i := 0; i < 7; i++ {
		phone := "+1"
		book.list = append(book.list, &domain.Contact{Name: string(rune('A' + i)), Phone: &phone})
	}
	got := p.Process(ctx, sender, "book")
	assert.Equal(t, "Contacts:\nA: +1\nB: +1\nC: +1\nD: +1\nE: +1", got)

	assert.Equal(t, "Address book offline.", newTestProcessor().Process(ctx, sender, "SAVE a b"))
	assert.Equal(t, "Address book offline.", newTestProcessor().Process(ctx, sender, "CONTACTS"))
	assert.Equal(t, "Error saving contact.",
		newTestProcessor(WithAddressBook(&stubContacts{err: errors.New("x")})).Process(ctx, sender, "SAVE a b"))
	assert.Equal(t, "Error loading contacts.",
		newTestProcessor(WithAddressBook(&stubContacts{err: errors.New("x")})).Process(ctx, sender, "CONTACTS"))
}

func TestSwitchChain(t *testing.T) {
	p := newTestProcessor()

	assert.Equal(t, "Switched to Base Sepolia!\n\nChain ID: 84532\nNative: ETH", p.Process(context.Background(), sender, "chain base"))
	assert.Equal(t, "Switched to Polygon Amoy!\n\nChain ID: 80002\nNative: MATIC", p.Process(context.Background(), sender, "NETWORK matic"))
	assert.Equal(t, "Unknown chain: SOLANA\n\nAvailable: polygon, base, eth, arb", p.Process(context.Background(), sender, "chain solana"))
}

func TestUnknown(t *testing.T) {
	p := newTestProcessor()

	assert.Equal(t, "Welcome to TextChain!\n\nReply HELP for commands.", p.Process(context.Background(), sender, "   "))

	gibberish := strings.Repeat("xyzzy", 20)
	got := p.Process(context.Background(), sender, gibberish)
	assert.Equal(t, "Unknown: XYZZYXYZZYXYZZY\n\nReply HELP for commands.", got)
	assert.NotContains(t, got, strings.ToUpper(gibberish[:16]))

	assert.Equal(t, "Missing recipient. Use: SEND <amount> <token> TO <phone>", p.Process(context.Background(), sender, "SEND 10 USDC"))
	assert.Equal(t, "Invalid amount", p.Process(context.Background(), sender, "SEND abc USDC TO +91"))
}

type panickingUsers struct{ recordingUsers }

func (panickingUsers) Exists(context.Context, string) (bool, error) { panic("boom") }

func TestExecute_RecoversPanics(t *testing.T) {
	p := newTestProcessor(WithUsers(&panickingUsers{}))

	out := p.Execute(context.Background(), sender, command.Join{})
	assert.Equal(t, "Error. Try later.", out.Reply)
	assert.Equal(t, command.Join{}, out.Command)
}

func TestProcess_MemoryStoreConversation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	vouchers := memory.NewVoucherRepo(store)
	_, err := vouchers.Create(ctx, "GIFT50", decimal.NewFromInt(50), nil)
	require.NoError(t, err)

	p := newTestProcessor(
		WithUsers(memory.NewUserRepo(store)),
		WithVouchers(vouchers),
		WithDeposits(memory.NewDepositRepo(store)),
		WithAddressBook(memory.NewAddressBookRepo(store)),
	)

	assert.Contains(t, p.Process(ctx, sender, "join"), "Wallet created!")
	assert.Equal(t, "PIN set!", p.Process(ctx, sender, "pin 4321"))
	assert.Equal(t, "Voucher redeemed!\n\n$50.00 USDC credited.\n\nReply BALANCE to check.", p.Process(ctx, sender, "redeem gift50"))
	assert.Equal(t, "Voucher already used.", p.Process(ctx, sender, "redeem gift50"))
	assert.Equal(t, "Recent deposits:\n$50.00 via voucher", p.Process(ctx, sender, "history"))
	assert.Equal(t, "Saved +15550001 as DAD.", p.Process(ctx, sender, "save dad +15550001"))
	assert.Equal(t, "Contacts:\nDAD: +15550001", p.Process(ctx, sender, "contacts"))
	assert.Equal(t, "Balance: $0.00\n\nReply DEPOSIT to fund wallet.", p.Process(ctx, sender, "balance"))
}
