package orderbook

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orbitdex/dexbook/internal/config"
	"github.com/orbitdex/dexbook/pkg/models"
)

// bookState couples one order book's configuration with its storage. The
// storage is exclusively owned by the engine; the registry only manages the
// aggregate's lifecycle.
type bookState struct {
	book    *OrderBook
	storage *Storage
}

// Registry holds every order book on the venue. Creation, attribute updates,
// status changes and deletion are authorization-gated by the caller; the
// registry itself only enforces the structural invariants. The mutex guards
// concurrent reads from API consumers; all mutation arrives serialized from
// the host.
type Registry struct {
	mu     sync.RWMutex
	books  map[models.OrderBookID]*bookState
	limits config.Limits
	logger *zap.Logger
}

// NewRegistry creates an empty registry bounded by the given limits.
func NewRegistry(limits config.Limits, logger *zap.Logger) *Registry {
	return &Registry{
		books:  make(map[models.OrderBookID]*bookState),
		limits: limits,
		logger: logger.Named("registry"),
	}
}

// CreateOrderBook registers a new order book. The id must not exist yet; the
// attributes must satisfy the OrderBook invariants. The book starts in
// Trading status with the order id counter at zero.
func (r *Registry) CreateOrderBook(id models.OrderBookID, base, quote models.Asset, tickSize, stepLotSize, minLotSize, maxLotSize decimal.Decimal) error {
	book := &OrderBook{
		ID:          id,
		Base:        base,
		Quote:       quote,
		TickSize:    tickSize,
		StepLotSize: stepLotSize,
		MinLotSize:  minLotSize,
		MaxLotSize:  maxLotSize,
		Status:      models.StatusTrading,
		LastOrderID: 0,
	}
	if err := book.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.books[id]; exists {
		return ErrOrderBookAlreadyExists
	}
	r.books[id] = &bookState{
		book:    book,
		storage: NewStorage(r.limits),
	}

	r.logger.Info("order book created",
		zap.String("book", id.String()),
		zap.String("tick_size", tickSize.String()),
		zap.String("step_lot_size", stepLotSize.String()),
		zap.String("min_lot_size", minLotSize.String()),
		zap.String("max_lot_size", maxLotSize.String()))
	return nil
}

// UpdateOrderBook replaces the book's trading constraints. Resting orders
// placed under the previous attributes are grandfathered until they fill,
// cancel or expire; the new attributes gate future placements only.
func (r *Registry) UpdateOrderBook(id models.OrderBookID, tickSize, stepLotSize, minLotSize, maxLotSize decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.books[id]
	if !ok {
		return ErrUnknownOrderBook
	}

	updated := *st.book
	updated.TickSize = tickSize
	updated.StepLotSize = stepLotSize
	updated.MinLotSize = minLotSize
	updated.MaxLotSize = maxLotSize
	if err := updated.Validate(); err != nil {
		return err
	}
	*st.book = updated

	r.logger.Info("order book updated",
		zap.String("book", id.String()),
		zap.String("tick_size", tickSize.String()),
		zap.String("step_lot_size", stepLotSize.String()),
		zap.String("min_lot_size", minLotSize.String()),
		zap.String("max_lot_size", maxLotSize.String()))
	return nil
}

// ChangeStatus transitions the book's status. Any transition between valid
// statuses is permitted; permissioning is the caller's concern.
func (r *Registry) ChangeStatus(id models.OrderBookID, status models.BookStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.books[id]
	if !ok {
		return ErrUnknownOrderBook
	}
	old := st.book.Status
	st.book.Status = status

	r.logger.Info("order book status changed",
		zap.String("book", id.String()),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(status)))
	return nil
}

// DeleteOrderBook removes an empty order book. A book with resting orders or
// pending expiration entries cannot be deleted.
func (r *Registry) DeleteOrderBook(id models.OrderBookID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.books[id]
	if !ok {
		return ErrUnknownOrderBook
	}
	if st.storage.OrderCount() > 0 || st.storage.HasPendingExpirations() {
		return ErrOrderBookIsNotEmpty
	}
	delete(r.books, id)

	r.logger.Info("order book deleted", zap.String("book", id.String()))
	return nil
}

// GetOrderBook returns a copy of the book's aggregate.
func (r *Registry) GetOrderBook(id models.OrderBookID) (OrderBook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.books[id]
	if !ok {
		return OrderBook{}, ErrUnknownOrderBook
	}
	return *st.book, nil
}

// ListOrderBooks returns every registered book id, sorted.
func (r *Registry) ListOrderBooks() []models.OrderBookID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.OrderBookID, 0, len(r.books))
	for id := range r.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// state returns the mutable book state for the engine.
func (r *Registry) state(id models.OrderBookID) (*bookState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.books[id]
	if !ok {
		return nil, ErrUnknownOrderBook
	}
	return st, nil
}

// allStates returns every book state in deterministic id order, for the
// per-block expiration sweep.
func (r *Registry) allStates() []*bookState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]*bookState, 0, len(r.books))
	for _, st := range r.books {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].book.ID.String() < states[j].book.ID.String()
	})
	return states
}
