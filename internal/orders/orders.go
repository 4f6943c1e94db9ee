// internal/orders/orders.go
package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the tagged order state. Transitions are monotonic:
// pending -> success | error -> removed, and removed is terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusRemoved Status = "removed"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// DefaultPurgeDelay is how long a terminal order stays visible before it
// is removed from the active set.
const DefaultPurgeDelay = 15 * time.Second

// Order is the outcome record of one purchase or sale attempt.
type Order struct {
	ID          string
	TokenSymbol string
	TokenName   string
	Side        Side
	Amount      float64
	Status      Status
	Timestamp   time.Time
	Signature   string
	Error       string
	MintAddress string
}

// Listener observes the order stream. Called outside the book's lock.
type Listener func(Order)

// Book holds the active order set and enforces the status transitions.
type Book struct {
	purgeDelay time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	orders    map[string]*Order
	sequence  []string // insertion order, newest first
	listeners []Listener
}

// Option tweaks book construction.
type Option func(*Book)

// WithPurgeDelay overrides how long finished orders stay visible.
func WithPurgeDelay(d time.Duration) Option {
	return func(b *Book) { b.purgeDelay = d }
}

// NewBook creates an empty order book.
func NewBook(logger *zap.Logger, opts ...Option) *Book {
	b := &Book{
		purgeDelay: DefaultPurgeDelay,
		logger:     logger.Named("orders"),
		orders:     make(map[string]*Order),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChange registers a listener for order creation and updates.
func (b *Book) OnChange(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Create opens a new pending order and returns it.
func (b *Book) Create(symbol, name string, side Side, amount float64, mint string) Order {
	o := Order{
		ID:          uuid.New().String(),
		TokenSymbol: symbol,
		TokenName:   name,
		Side:        side,
		Amount:      amount,
		Status:      StatusPending,
		Timestamp:   time.Now(),
		MintAddress: mint,
	}

	b.mu.Lock()
	b.orders[o.ID] = &o
	b.sequence = append([]string{o.ID}, b.sequence...)
	listeners := append([]Listener(nil), b.listeners...)
	snapshot := o
	b.mu.Unlock()

	b.notify(listeners, snapshot)
	return o
}

// Complete moves a pending order to success and schedules its purge.
func (b *Book) Complete(id, signature string) error {
	return b.finish(id, StatusSuccess, signature, "")
}

// Fail moves a pending order to error and schedules its purge. The
// message is the single channel through which failure detail reaches
// the user, so callers should pass the most specific text available.
func (b *Book) Fail(id, signature, message string) error {
	return b.finish(id, StatusError, signature, message)
}

func (b *Book) finish(id string, status Status, signature, message string) error {
	b.mu.Lock()
	o, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("order %s not found", id)
	}
	if o.Status != StatusPending {
		b.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s for order %s", o.Status, status, id)
	}
	o.Status = status
	o.Signature = signature
	o.Error = message
	listeners := append([]Listener(nil), b.listeners...)
	snapshot := *o
	b.mu.Unlock()

	b.logger.Info("order finished",
		zap.String("id", id),
		zap.String("status", string(status)),
		zap.String("signature", signature))
	b.notify(listeners, snapshot)

	time.AfterFunc(b.purgeDelay, func() {
		if err := b.Remove(id); err != nil {
			b.logger.Debug("order purge skipped", zap.String("id", id), zap.Error(err))
		}
	})
	return nil
}

// Remove marks a terminal order removed and drops it from the active
// set. Removing a pending order is rejected; removed is terminal.
func (b *Book) Remove(id string) error {
	b.mu.Lock()
	o, ok := b.orders[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("order %s not found", id)
	}
	if o.Status != StatusSuccess && o.Status != StatusError {
		b.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s for order %s", o.Status, StatusRemoved, id)
	}
	o.Status = StatusRemoved
	delete(b.orders, id)
	for i, seq := range b.sequence {
		if seq == id {
			b.sequence = append(b.sequence[:i], b.sequence[i+1:]...)
			break
		}
	}
	listeners := append([]Listener(nil), b.listeners...)
	snapshot := *o
	b.mu.Unlock()

	b.notify(listeners, snapshot)
	return nil
}

// Active returns the live orders, newest first.
func (b *Book) Active() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, 0, len(b.sequence))
	for _, id := range b.sequence {
		if o, ok := b.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// Get returns a snapshot of one order.
func (b *Book) Get(id string) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (b *Book) notify(listeners []Listener, o Order) {
	for _, l := range listeners {
		l(o)
	}
}
