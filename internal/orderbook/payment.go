package orderbook

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orbitdex/dexbook/internal/ledger"
	"github.com/orbitdex/dexbook/pkg/models"
)

type paymentKey struct {
	asset   models.AssetID
	account uuid.UUID
}

type transferKey struct {
	asset models.AssetID
	from  uuid.UUID
	to    uuid.UUID
}

// Payment accumulates the balance movements of one engine operation and
// applies them to the ledger in a single flush. Intents for the same
// (asset, account) merge by addition. A Payment is built fresh per operation
// and never persisted; on failure it is simply discarded.
//
// Flush order is locks, then transfers, then unlocks: transfers spend locked
// balances, so the taker's escrow must exist before settlement, and maker
// surplus is released last.
type Payment struct {
	toLock    map[paymentKey]decimal.Decimal
	toUnlock  map[paymentKey]decimal.Decimal
	transfers map[transferKey]decimal.Decimal

	// Insertion order of the maps above, for deterministic flushes.
	lockOrder     []paymentKey
	unlockOrder   []paymentKey
	transferOrder []transferKey
}

// NewPayment creates an empty payment batch.
func NewPayment() *Payment {
	return &Payment{
		toLock:    make(map[paymentKey]decimal.Decimal),
		toUnlock:  make(map[paymentKey]decimal.Decimal),
		transfers: make(map[transferKey]decimal.Decimal),
	}
}

// Lock queues an escrow of amount from the account's free balance.
func (p *Payment) Lock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	key := paymentKey{asset: asset, account: account}
	if _, ok := p.toLock[key]; !ok {
		p.lockOrder = append(p.lockOrder, key)
	}
	p.toLock[key] = p.toLock[key].Add(amount)
}

// Unlock queues a release of amount from the account's locked balance.
func (p *Payment) Unlock(asset models.AssetID, account uuid.UUID, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	key := paymentKey{asset: asset, account: account}
	if _, ok := p.toUnlock[key]; !ok {
		p.unlockOrder = append(p.unlockOrder, key)
	}
	p.toUnlock[key] = p.toUnlock[key].Add(amount)
}

// Transfer queues a settlement of amount from from's locked balance to to's
// free balance.
func (p *Payment) Transfer(asset models.AssetID, from, to uuid.UUID, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	key := transferKey{asset: asset, from: from, to: to}
	if _, ok := p.transfers[key]; !ok {
		p.transferOrder = append(p.transferOrder, key)
	}
	p.transfers[key] = p.transfers[key].Add(amount)
}

// Empty reports whether the batch carries no intents.
func (p *Payment) Empty() bool {
	return len(p.toLock) == 0 && len(p.toUnlock) == 0 && len(p.transfers) == 0
}

// Flush applies the batch to the ledger. The first failing call aborts the
// flush; the engine sequences Flush before any storage mutation, so an error
// here leaves the operation without effect beyond the ledger calls already
// made, which only ever fail on the very first lock (insufficient funds)
// before anything else was applied, or on a broken escrow invariant.
func (p *Payment) Flush(l ledger.Ledger) error {
	for _, key := range p.lockOrder {
		if err := l.Lock(key.asset, key.account, p.toLock[key]); err != nil {
			return fmt.Errorf("payment lock failed: %w", err)
		}
	}
	for _, key := range p.transferOrder {
		if err := l.Transfer(key.asset, key.from, key.to, p.transfers[key]); err != nil {
			return fmt.Errorf("payment transfer failed: %w", err)
		}
	}
	for _, key := range p.unlockOrder {
		if err := l.Unlock(key.asset, key.account, p.toUnlock[key]); err != nil {
			return fmt.Errorf("payment unlock failed: %w", err)
		}
	}
	return nil
}
