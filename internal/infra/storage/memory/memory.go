// Package memory provides in-process repositories for development and tests.
// Records are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vietddude/textchain/internal/core/domain"
	"github.com/vietddude/textchain/internal/infra/storage"
)

type MemoryStorage struct {
	users    map[string]*domain.User
	vouchers map[string]*domain.Voucher
	deposits map[string][]*domain.Deposit
	contacts map[string]map[string]*domain.Contact
	nextID   int64
	now      func() time.Time
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]*domain.User),
		vouchers: make(map[string]*domain.Voucher),
		deposits: make(map[string][]*domain.Deposit),
		contacts: make(map[string]map[string]*domain.Contact),
		now:      time.Now,
	}
}

func (s *MemoryStorage) id() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// User Repository
// -----------------------------------------------------------------------------

type UserRepo struct {
	store *MemoryStorage
}

func NewUserRepo(store *MemoryStorage) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) Exists(ctx context.Context, phone string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.users[phone]
	return ok, nil
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[phone]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) Create(ctx context.Context, phone, walletAddress, encodedKey string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[phone]; ok {
		return nil, storage.ErrAlreadyExists
	}
	now := r.store.now()
	u := &domain.User{
		ID:                  r.store.id(),
		PhoneNumber:         phone,
		WalletAddress:       walletAddress,
		EncryptedPrivateKey: encodedKey,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	r.store.users[phone] = u
	cp := *u
	return &cp, nil
}

func (r *UserRepo) UpdatePinHash(ctx context.Context, phone, pinHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[phone]
	if !ok {
		return storage.ErrNotFound
	}
	u.PinHash = &pinHash
	u.UpdatedAt = r.store.now()
	return nil
}

// -----------------------------------------------------------------------------
// Voucher Repository
// -----------------------------------------------------------------------------

type VoucherRepo struct {
	store *MemoryStorage
}

func NewVoucherRepo(store *MemoryStorage) *VoucherRepo {
	return &VoucherRepo{store: store}
}

func (r *VoucherRepo) Redeem(ctx context.Context, code, phone string) (*domain.Voucher, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	v, ok := r.store.vouchers[code]
	if !ok {
		return nil, storage.ErrVoucherNotFound
	}
	if v.Status != domain.VoucherStatusActive {
		return nil, storage.ErrVoucherAlreadyRedeemed
	}
	now := r.store.now()
	if v.Expired(now) {
		return nil, storage.ErrVoucherExpired
	}

	v.Status = domain.VoucherStatusRedeemed
	v.RedeemedBy = &phone
	v.RedeemedAt = &now
	cp := *v
	return &cp, nil
}

func (r *VoucherRepo) Create(ctx context.Context, code string, amount decimal.Decimal, expiresAt *time.Time) (*domain.Voucher, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.vouchers[code]; ok {
		return nil, storage.ErrAlreadyExists
	}
	v := &domain.Voucher{
		ID:         r.store.id(),
		Code:       code,
		USDCAmount: amount,
		Status:     domain.VoucherStatusActive,
		ExpiresAt:  expiresAt,
		CreatedAt:  r.store.now(),
	}
	r.store.vouchers[code] = v
	cp := *v
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Deposit Repository
// -----------------------------------------------------------------------------

type DepositRepo struct {
	store *MemoryStorage
}

func NewDepositRepo(store *MemoryStorage) *DepositRepo {
	return &DepositRepo{store: store}
}

func (r *DepositRepo) CreateFromVoucher(ctx context.Context, phone string, amount decimal.Decimal, code string) (*domain.Deposit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	d := &domain.Deposit{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Amount:      amount,
		Source:      domain.DepositSourceVoucher,
		Reference:   code,
		CreatedAt:   r.store.now(),
	}
	r.store.deposits[phone] = append(r.store.deposits[phone], d)
	cp := *d
	return &cp, nil
}

// GetRecent returns newest first; insertion order breaks timestamp ties.
func (r *DepositRepo) GetRecent(ctx context.Context, phone string, limit int) ([]*domain.Deposit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	all := r.store.deposits[phone]
	out := make([]*domain.Deposit, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Address Book Repository
// -----------------------------------------------------------------------------

type AddressBookRepo struct {
	store *MemoryStorage
}

func NewAddressBookRepo(store *MemoryStorage) *AddressBookRepo {
	return &AddressBookRepo{store: store}
}

func (r *AddressBookRepo) AddContact(ctx context.Context, owner, name string, phone, walletAddress *string) (*domain.Contact, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	book, ok := r.store.contacts[owner]
	if !ok {
		book = make(map[string]*domain.Contact)
		r.store.contacts[owner] = book
	}
	c, ok := book[name]
	if !ok {
		c = &domain.Contact{
			ID:         r.store.id(),
			OwnerPhone: owner,
			Name:       name,
			CreatedAt:  r.store.now(),
		}
		book[name] = c
	}
	c.Phone = phone
	c.WalletAddress = walletAddress
	cp := *c
	return &cp, nil
}

func (r *AddressBookRepo) ListAll(ctx context.Context, owner string) ([]*domain.Contact, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	book := r.store.contacts[owner]
	out := make([]*domain.Contact, 0, len(book))
	for _, c := range book {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var (
	_ storage.UserRepository        = (*UserRepo)(nil)
	_ storage.VoucherRepository     = (*VoucherRepo)(nil)
	_ storage.DepositRepository     = (*DepositRepo)(nil)
	_ storage.AddressBookRepository = (*AddressBookRepo)(nil)
)
