// Package cart holds the shopper's cart lines and turns them into orders.
//
// The cart never touches stock directly: every quantity in a line is backed
// by a reservation in the inventory ledger, taken before the line grows and
// given back when it shrinks. Commands are serialized by one mutex, so a
// process is a single writer. Two processes sharing a store are not
// coordinated beyond the store's stale-write check.
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/events"
	"github.com/safar/go-storefront/internal/inventory"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/pricing"
	"go.uber.org/zap"
)

const producerName = "storefront"

var (
	ErrOutOfStock   = errors.New("product out of stock")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrLineNotFound = errors.New("product not in cart")
)

type Inventory interface {
	Available(ctx context.Context, productID string) int
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	ConfirmPurchases(ctx context.Context, lines []inventory.Line) error
}

type OrderCreator interface {
	Create(ctx context.Context, snap orders.Snapshot) (*models.Order, error)
}

// Quoter prices a cart snapshot at checkout.
type Quoter func(lines []models.CartLine) models.Pricing

type Service struct {
	store     *kv.Store
	inventory Inventory
	orders    OrderCreator
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewService(store *kv.Store, inv Inventory, ord OrderCreator, pub events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = events.NewLogPublisher(logger)
	}
	return &Service{
		store:     store,
		inventory: inv,
		orders:    ord,
		publisher: pub,
		logger:    logger.Named("cart"),
		now:       time.Now,
	}
}

func (s *Service) Lines(ctx context.Context) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked(ctx)
}

// Count is the total number of units in the cart.
func (s *Service) Count(ctx context.Context) (int, error) {
	lines, err := s.Lines(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n, nil
}

// Add reserves quantity units of product and merges them into the cart.
// The cart as a whole may not ask for more than is currently available.
func (s *Service) Add(ctx context.Context, product models.Product, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, database.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.linesLocked(ctx)
	if err != nil {
		return nil, err
	}
	current := 0
	if i := lineIndex(lines, product.ID); i >= 0 {
		current = lines[i].Quantity
	}

	available := s.inventory.Available(ctx, product.ID)
	if available == 0 {
		return nil, fmt.Errorf("add %s: %w", product.ID, ErrOutOfStock)
	}
	if current+quantity > available {
		return nil, fmt.Errorf("add %d of %s with %d in cart (available %d): %w",
			quantity, product.ID, current, available, database.ErrInsufficientStock)
	}

	if err := s.inventory.Reserve(ctx, product.ID, quantity); err != nil {
		return nil, fmt.Errorf("add %s: %w", product.ID, err)
	}

	var added models.CartLine
	err = s.store.Update(ctx, kv.KeyCart, &lines, func() error {
		if i := lineIndex(lines, product.ID); i >= 0 {
			lines[i].Quantity += quantity
			added = lines[i]
			return nil
		}
		added = models.CartLine{Product: product, Quantity: quantity}
		lines = append(lines, added)
		return nil
	})
	if err != nil {
		s.compensate(ctx, product.ID, -quantity)
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Debug("added to cart",
		zap.String("product_id", product.ID),
		zap.Int("quantity", quantity),
		zap.Int("line_quantity", added.Quantity))
	return &added, nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.linesLocked(ctx)
	if err != nil {
		return err
	}
	i := lineIndex(lines, productID)
	if i < 0 {
		return fmt.Errorf("update %s: %w", productID, ErrLineNotFound)
	}
	if quantity <= 0 {
		return s.removeLocked(ctx, lines[i])
	}

	delta := quantity - lines[i].Quantity
	switch {
	case delta > 0:
		if err := s.inventory.Reserve(ctx, productID, delta); err != nil {
			return fmt.Errorf("update %s: %w", productID, err)
		}
	case delta < 0:
		if err := s.inventory.Release(ctx, productID, -delta); err != nil {
			return fmt.Errorf("update %s: %w", productID, err)
		}
	default:
		return nil
	}

	err = s.store.Update(ctx, kv.KeyCart, &lines, func() error {
		j := lineIndex(lines, productID)
		if j < 0 {
			return ErrLineNotFound
		}
		lines[j].Quantity = quantity
		return nil
	})
	if err != nil {
		s.compensate(ctx, productID, -delta)
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Remove releases the reservation behind productID's line and drops it.
// Removing a product that is not in the cart does nothing.
func (s *Service) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.linesLocked(ctx)
	if err != nil {
		return err
	}
	i := lineIndex(lines, productID)
	if i < 0 {
		return nil
	}
	return s.removeLocked(ctx, lines[i])
}

func (s *Service) removeLocked(ctx context.Context, line models.CartLine) error {
	if err := s.inventory.Release(ctx, line.Product.ID, line.Quantity); err != nil {
		return fmt.Errorf("remove %s: %w", line.Product.ID, err)
	}

	var lines []models.CartLine
	err := s.store.Update(ctx, kv.KeyCart, &lines, func() error {
		lines = slices.DeleteFunc(lines, func(l models.CartLine) bool {
			return l.Product.ID == line.Product.ID
		})
		return nil
	})
	if err != nil {
		s.compensate(ctx, line.Product.ID, line.Quantity)
		return fmt.Errorf("save cart: %w", err)
	}

	s.logger.Debug("removed from cart",
		zap.String("product_id", line.Product.ID),
		zap.Int("quantity", line.Quantity))
	return nil
}

// Checkout empties the cart, confirms every line it held, and records the
// order. quote prices the cart as it stands when checkout begins; nil means
// pricing.Quote. The cart is cleared before any stock is confirmed, so a
// failed checkout can be retried without confirming the same lines twice.
func (s *Service) Checkout(ctx context.Context, address models.ShippingAddress, quote Quoter) (*models.Order, error) {
	if quote == nil {
		quote = pricing.Quote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.linesLocked(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	confirm := make([]inventory.Line, 0, len(lines))
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		confirm = append(confirm, inventory.Line{ProductID: l.Product.ID, Quantity: l.Quantity})
		items = append(items, models.OrderItem{Product: l.Product, Quantity: l.Quantity})
	}
	price := quote(lines)

	if err := s.saveLocked(ctx, []models.CartLine{}); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := s.inventory.ConfirmPurchases(ctx, confirm); err != nil {
		if rerr := s.saveLocked(ctx, lines); rerr != nil {
			s.logger.Error("cart not restored after failed checkout",
				zap.Int("lines", len(lines)),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("confirm purchases: %w", err)
	}

	order, err := s.orders.Create(ctx, orders.Snapshot{
		Items:           items,
		Subtotal:        price.Subtotal,
		Shipping:        price.Shipping,
		Tax:             price.Tax,
		Total:           price.Total,
		ShippingAddress: address,
	})
	if err != nil {
		// Stock is already deducted; there is no rollback for this.
		s.logger.Error("order not recorded after stock was confirmed",
			zap.Int("lines", len(lines)),
			zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, order)

	s.logger.Info("checkout complete",
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

// saveLocked replaces the stored cart with lines.
func (s *Service) saveLocked(ctx context.Context, lines []models.CartLine) error {
	var stored []models.CartLine
	return s.store.Update(ctx, kv.KeyCart, &stored, func() error {
		stored = lines
		return nil
	})
}

func (s *Service) publish(ctx context.Context, order *models.Order) {
	env, err := events.NewOrderPlaced(order, producerName, s.now())
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.logger.Warn("order placed event not published",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

// compensate undoes a reservation change whose cart write failed. A positive
// delta reserves again, a negative one releases.
func (s *Service) compensate(ctx context.Context, productID string, delta int) {
	var err error
	switch {
	case delta > 0:
		err = s.inventory.Reserve(ctx, productID, delta)
	case delta < 0:
		err = s.inventory.Release(ctx, productID, -delta)
	}
	if err != nil {
		s.logger.Error("reservation left out of step with cart",
			zap.String("product_id", productID),
			zap.Int("delta", delta),
			zap.Error(err))
	}
}

func (s *Service) linesLocked(ctx context.Context) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := s.store.Load(ctx, kv.KeyCart, &lines); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return lines, nil
}

func lineIndex(lines []models.CartLine, productID string) int {
	for i := range lines {
		if lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}
