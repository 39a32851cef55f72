// Package ledger defines the external asset ledger consumed by the order book
// core and provides an in-memory implementation. Every balance lives in two
// buckets: free and locked. The engine escrows funds with Lock at order
// placement and only ever transfers out of the locked bucket.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orbitdex/dexbook/pkg/models"
)

var (
	// ErrInsufficientBalance is returned when Lock exceeds the free balance.
	ErrInsufficientBalance = errors.New("insufficient free balance")
	// ErrInsufficientLocked is returned when Unlock or Transfer exceeds the
	// locked balance.
	ErrInsufficientLocked = errors.New("insufficient locked balance")
)

// Ledger is the asset ledger collaborator. Each call is atomic; the engine
// batches many calls into one logical operation through its payment
// accumulator.
type Ledger interface {
	// Lock moves amount from the account's free to locked balance.
	Lock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) error

	// Unlock moves amount from the account's locked back to free balance.
	Unlock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) error

	// Transfer moves amount out of from's locked balance into to's free
	// balance. The caller must have locked the funds beforehand.
	Transfer(asset models.AssetID, from, to uuid.UUID, amount decimal.Decimal) error

	// FreeBalance returns the spendable balance of an account.
	FreeBalance(asset models.AssetID, account uuid.UUID) decimal.Decimal

	// LockedBalance returns the escrowed balance of an account.
	LockedBalance(asset models.AssetID, account uuid.UUID) decimal.Decimal
}

type balanceKey struct {
	asset   models.AssetID
	account uuid.UUID
}

type balance struct {
	free   decimal.Decimal
	locked decimal.Decimal
}

// InMemoryLedger is a deterministic, map-backed Ledger. State-mutating calls
// come from a single engine goroutine; the mutex only guards concurrent
// read access from API consumers.
type InMemoryLedger struct {
	mu       sync.RWMutex
	balances map[balanceKey]*balance
	logger   *zap.Logger
}

// NewInMemoryLedger creates an empty in-memory ledger.
func NewInMemoryLedger(logger *zap.Logger) *InMemoryLedger {
	return &InMemoryLedger{
		balances: make(map[balanceKey]*balance),
		logger:   logger.Named("ledger"),
	}
}

func (l *InMemoryLedger) get(asset models.AssetID, account uuid.UUID) *balance {
	key := balanceKey{asset: asset, account: account}
	b, ok := l.balances[key]
	if !ok {
		b = &balance{free: decimal.Zero, locked: decimal.Zero}
		l.balances[key] = b
	}
	return b
}

// Mint credits amount to the account's free balance. Test and bootstrap
// funding only; the core never mints.
func (l *InMemoryLedger) Mint(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(asset, account)
	b.free = b.free.Add(amount)
}

// Lock implements Ledger.
func (l *InMemoryLedger) Lock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("lock amount must not be negative: %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(asset, account)
	if b.free.LessThan(amount) {
		return fmt.Errorf("%w: asset=%s account=%s free=%s required=%s",
			ErrInsufficientBalance, asset, account, b.free, amount)
	}
	b.free = b.free.Sub(amount)
	b.locked = b.locked.Add(amount)
	return nil
}

// Unlock implements Ledger.
func (l *InMemoryLedger) Unlock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("unlock amount must not be negative: %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(asset, account)
	if b.locked.LessThan(amount) {
		return fmt.Errorf("%w: asset=%s account=%s locked=%s required=%s",
			ErrInsufficientLocked, asset, account, b.locked, amount)
	}
	b.locked = b.locked.Sub(amount)
	b.free = b.free.Add(amount)
	return nil
}

// Transfer implements Ledger.
func (l *InMemoryLedger) Transfer(asset models.AssetID, from, to uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer amount must not be negative: %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.get(asset, from)
	if src.locked.LessThan(amount) {
		return fmt.Errorf("%w: asset=%s account=%s locked=%s required=%s",
			ErrInsufficientLocked, asset, from, src.locked, amount)
	}
	src.locked = src.locked.Sub(amount)
	dst := l.get(asset, to)
	dst.free = dst.free.Add(amount)
	return nil
}

// FreeBalance implements Ledger.
func (l *InMemoryLedger) FreeBalance(asset models.AssetID, account uuid.UUID) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[balanceKey{asset: asset, account: account}]; ok {
		return b.free
	}
	return decimal.Zero
}

// LockedBalance implements Ledger.
func (l *InMemoryLedger) LockedBalance(asset models.AssetID, account uuid.UUID) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[balanceKey{asset: asset, account: account}]; ok {
		return b.locked
	}
	return decimal.Zero
}
