package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	deliveryWindow   = 5 * 24 * time.Hour
	trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	trackingLength   = 9
)

var (
	ErrEmptyOrder    = errors.New("order has no items")
	ErrInvalidStatus = errors.New("invalid order status")
)

type Rand interface {
	Intn(n int) int
}

// Snapshot is everything checkout knows about an order before it is placed.
type Snapshot struct {
	Items           []models.OrderItem
	Subtotal        decimal.Decimal
	Shipping        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress models.ShippingAddress
}

type Ledger struct {
	store  *kv.Store
	rng    Rand
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store *kv.Store, rng Rand, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		rng:    rng,
		now:    time.Now,
		logger: logger.Named("orders"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func generateOrderID(now time.Time, taken func(string) bool) string {
	n := now.UnixMilli()
	for {
		id := fmt.Sprintf("ORD-%d", n)
		if !taken(id) {
			return id
		}
		n++
	}
}

func (l *Ledger) generateTrackingNumber() string {
	var b strings.Builder
	b.WriteString("TRK")
	for i := 0; i < trackingLength; i++ {
		b.WriteByte(trackingAlphabet[l.rng.Intn(len(trackingAlphabet))])
	}
	return b.String()
}

// Create records a new processing order at the head of the history.
func (l *Ledger) Create(ctx context.Context, snap Snapshot) (*models.Order, error) {
	if len(snap.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	var (
		history []models.Order
		order   models.Order
	)
	err := l.store.Update(ctx, kv.KeyOrders, &history, func() error {
		now := l.now().UTC()
		ids := make(map[string]bool, len(history))
		for _, o := range history {
			ids[o.ID] = true
		}

		order = models.Order{
			ID:                generateOrderID(now, func(id string) bool { return ids[id] }),
			Items:             cloneItems(snap.Items),
			Subtotal:          snap.Subtotal,
			Shipping:          snap.Shipping,
			Tax:               snap.Tax,
			Total:             snap.Total,
			Status:            models.OrderStatusProcessing,
			OrderDate:         now,
			EstimatedDelivery: now.Add(deliveryWindow),
			TrackingNumber:    l.generateTrackingNumber(),
			ShippingAddress:   snap.ShippingAddress,
		}
		history = append([]models.Order{order}, history...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	l.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)))

	created := order
	created.Items = cloneItems(order.Items)
	return &created, nil
}

// List returns every order, most recent first.
func (l *Ledger) List(ctx context.Context) ([]models.Order, error) {
	var history []models.Order
	if err := l.store.Load(ctx, kv.KeyOrders, &history); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sortByRecency(history)
	return history, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.Order, error) {
	history, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].ID == id {
			return &history[i], nil
		}
	}
	return nil, database.ErrOrderNotFound
}

// SetStatus updates the status of order id. An unknown id is not an error.
func (l *Ledger) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var history []models.Order
	return l.store.Update(ctx, kv.KeyOrders, &history, func() error {
		for i := range history {
			if history[i].ID == id {
				if history[i].Status == status {
					return kv.ErrSkipWrite
				}
				l.logger.Info("order status changed",
					zap.String("order_id", id),
					zap.String("from", string(history[i].Status)),
					zap.String("to", string(status)))
				history[i].Status = status
				return nil
			}
		}
		return kv.ErrSkipWrite
	})
}

// sortByRecency orders by OrderDate descending; equal dates fall back to id
// descending so the order is total.
func sortByRecency(history []models.Order) {
	slices.SortStableFunc(history, func(a, b models.Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func cloneItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Product.Features = slices.Clone(it.Product.Features)
		if it.Product.OriginalPrice != nil {
			p := *it.Product.OriginalPrice
			out[i].Product.OriginalPrice = &p
		}
	}
	return out
}
