package orderbook

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/orbitdex/dexbook/internal/config"
	"github.com/orbitdex/dexbook/pkg/models"
)

// priceLevel holds the FIFO queue of order ids resting at one price together
// with the incrementally maintained aggregated volume. The level is removed
// from its tree the moment it goes empty.
type priceLevel struct {
	price    decimal.Decimal
	orderIDs []uint64
	volume   decimal.Decimal
}

func levelLess(a, b *priceLevel) bool {
	return a.price.LessThan(b.price)
}

// Storage is the durable state of one order book side-pair: the order arena
// plus every derived index. The arena's order map is the single owner of
// LimitOrder values; price levels, the per-user index and the expiration
// schedule store ids only and are kept in lock-step by the mutating methods
// here. Only the engine mutates a Storage.
type Storage struct {
	limits config.Limits

	orders      map[uint64]*LimitOrder
	bids        *btree.BTreeG[*priceLevel]
	asks        *btree.BTreeG[*priceLevel]
	userOrders  map[uuid.UUID]map[uint64]struct{}
	expirations map[uint64][]uint64 // block number -> order ids due
}

// NewStorage creates empty storage bounded by the given limits.
func NewStorage(limits config.Limits) *Storage {
	return &Storage{
		limits:      limits,
		orders:      make(map[uint64]*LimitOrder),
		bids:        btree.NewBTreeG(levelLess),
		asks:        btree.NewBTreeG(levelLess),
		userOrders:  make(map[uuid.UUID]map[uint64]struct{}),
		expirations: make(map[uint64][]uint64),
	}
}

func (s *Storage) tree(side models.Side) *btree.BTreeG[*priceLevel] {
	if side == models.SideBuy {
		return s.bids
	}
	return s.asks
}

func (s *Storage) level(side models.Side, price decimal.Decimal) (*priceLevel, bool) {
	return s.tree(side).Get(&priceLevel{price: price})
}

// CheckCapacity verifies that an order by owner at (side, price) expiring at
// block would fit every bounded collection. Called by the engine before any
// ledger or storage effect.
func (s *Storage) CheckCapacity(owner uuid.UUID, side models.Side, price decimal.Decimal, expiresAtBlock uint64) error {
	if len(s.userOrders[owner]) >= s.limits.MaxOrdersPerUser {
		return ErrUserReachedMaxOrdersNumber
	}
	if lvl, ok := s.level(side, price); ok {
		if len(lvl.orderIDs) >= s.limits.MaxOrdersPerPriceLevel {
			return ErrPriceReachedMaxOrdersNumber
		}
	} else if s.tree(side).Len() >= s.limits.MaxPriceLevels {
		return ErrSideReachedMaxPriceLevels
	}
	if len(s.expirations[expiresAtBlock]) >= s.limits.MaxExpiringOrdersPerBlock {
		return ErrBlockReachedMaxExpiringOrders
	}
	return nil
}

// InsertLimitOrder adds the order to the arena, appends it to its price
// level's FIFO queue, raises the aggregated volume and registers the
// expiration entry.
func (s *Storage) InsertLimitOrder(order *LimitOrder) error {
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: duplicate order id %d", ErrStorageCorrupted, order.ID)
	}
	if err := s.CheckCapacity(order.Owner, order.Side, order.Price, order.ExpiresAtBlock); err != nil {
		return err
	}

	s.orders[order.ID] = order

	lvl, ok := s.level(order.Side, order.Price)
	if !ok {
		lvl = &priceLevel{price: order.Price, volume: decimal.Zero}
		s.tree(order.Side).Set(lvl)
	}
	lvl.orderIDs = append(lvl.orderIDs, order.ID)
	lvl.volume = lvl.volume.Add(order.Amount)

	user, ok := s.userOrders[order.Owner]
	if !ok {
		user = make(map[uint64]struct{})
		s.userOrders[order.Owner] = user
	}
	user[order.ID] = struct{}{}

	s.expirations[order.ExpiresAtBlock] = append(s.expirations[order.ExpiresAtBlock], order.ID)
	return nil
}

// GetLimitOrder returns the resting order with the given id.
func (s *Storage) GetLimitOrder(orderID uint64) (*LimitOrder, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrUnknownLimitOrder
	}
	return order, nil
}

// AllLimitOrders returns every resting order, ordered by id.
func (s *Storage) AllLimitOrders() []*LimitOrder {
	orders := make([]*LimitOrder, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// UserLimitOrders returns the ids of owner's resting orders, ascending.
func (s *Storage) UserLimitOrders(owner uuid.UUID) []uint64 {
	ids := make([]uint64, 0, len(s.userOrders[owner]))
	for id := range s.userOrders[owner] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OrderCount returns the number of resting orders across both sides.
func (s *Storage) OrderCount() int {
	return len(s.orders)
}

// UpdateLimitOrderAmount reduces the order's remaining amount to newAmount,
// adjusting the aggregated volume by the delta. A newAmount of zero removes
// the order entirely.
func (s *Storage) UpdateLimitOrderAmount(orderID uint64, newAmount decimal.Decimal) error {
	order, ok := s.orders[orderID]
	if !ok {
		return ErrUnknownLimitOrder
	}
	if newAmount.IsNegative() || newAmount.GreaterThan(order.Amount) {
		return fmt.Errorf("%w: order %d amount %s -> %s", ErrStorageCorrupted, orderID, order.Amount, newAmount)
	}
	if newAmount.IsZero() {
		return s.DeleteLimitOrder(orderID)
	}

	lvl, ok := s.level(order.Side, order.Price)
	if !ok {
		return fmt.Errorf("%w: missing price level %s for order %d", ErrStorageCorrupted, order.Price, orderID)
	}
	lvl.volume = lvl.volume.Sub(order.Amount.Sub(newAmount))
	order.Amount = newAmount
	return nil
}

// DeleteLimitOrder removes the order from the arena and every derived index.
func (s *Storage) DeleteLimitOrder(orderID uint64) error {
	order, ok := s.orders[orderID]
	if !ok {
		return ErrUnknownLimitOrder
	}

	lvl, ok := s.level(order.Side, order.Price)
	if !ok {
		return fmt.Errorf("%w: missing price level %s for order %d", ErrStorageCorrupted, order.Price, orderID)
	}
	for i, id := range lvl.orderIDs {
		if id == orderID {
			lvl.orderIDs = append(lvl.orderIDs[:i], lvl.orderIDs[i+1:]...)
			break
		}
	}
	lvl.volume = lvl.volume.Sub(order.Amount)
	if len(lvl.orderIDs) == 0 {
		s.tree(order.Side).Delete(lvl)
	}

	if user, ok := s.userOrders[order.Owner]; ok {
		delete(user, orderID)
		if len(user) == 0 {
			delete(s.userOrders, order.Owner)
		}
	}

	s.unscheduleExpiration(order)
	delete(s.orders, orderID)
	return nil
}

func (s *Storage) unscheduleExpiration(order *LimitOrder) {
	ids := s.expirations[order.ExpiresAtBlock]
	for i, id := range ids {
		if id == order.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.expirations, order.ExpiresAtBlock)
	} else {
		s.expirations[order.ExpiresAtBlock] = ids
	}
}

// TakeExpiringOrders drains and returns the ids scheduled to expire at block.
func (s *Storage) TakeExpiringOrders(block uint64) []uint64 {
	ids := s.expirations[block]
	delete(s.expirations, block)
	return ids
}

// HasPendingExpirations reports whether any expiration entries remain.
func (s *Storage) HasPendingExpirations() bool {
	return len(s.expirations) > 0
}

// AggregatedBids returns the bid side's price->volume view, ascending by
// price. Best bid is the last entry.
func (s *Storage) AggregatedBids() []PriceVolume {
	return s.aggregated(s.bids)
}

// AggregatedAsks returns the ask side's price->volume view, ascending by
// price. Best ask is the first entry.
func (s *Storage) AggregatedAsks() []PriceVolume {
	return s.aggregated(s.asks)
}

func (s *Storage) aggregated(tree *btree.BTreeG[*priceLevel]) []PriceVolume {
	out := make([]PriceVolume, 0, tree.Len())
	tree.Scan(func(lvl *priceLevel) bool {
		out = append(out, PriceVolume{Price: lvl.price, Volume: lvl.volume})
		return true
	})
	return out
}

// BestBid returns the highest bid price and its aggregated volume.
func (s *Storage) BestBid() (PriceVolume, bool) {
	lvl, ok := s.bids.Max()
	if !ok {
		return PriceVolume{}, false
	}
	return PriceVolume{Price: lvl.price, Volume: lvl.volume}, true
}

// BestAsk returns the lowest ask price and its aggregated volume.
func (s *Storage) BestAsk() (PriceVolume, bool) {
	lvl, ok := s.asks.Min()
	if !ok {
		return PriceVolume{}, false
	}
	return PriceVolume{Price: lvl.price, Volume: lvl.volume}, true
}

// scanMatchSide walks the side a taker on takerSide matches against, best
// price first: asks ascending for a buyer, bids descending for a seller.
// The callback returns false to stop.
func (s *Storage) scanMatchSide(takerSide models.Side, fn func(lvl *priceLevel) bool) {
	if takerSide == models.SideBuy {
		s.asks.Scan(fn)
	} else {
		s.bids.Reverse(fn)
	}
}
