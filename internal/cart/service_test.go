package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/events"
	"github.com/safar/go-storefront/internal/inventory"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constRand always draws 10, so every product starts with 20 units.
type constRand struct{}

func (constRand) Intn(n int) int { return 10 % n }

type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envs = append(p.envs, env)
	return nil
}

// failingBackend rejects every write to one key.
type failingBackend struct {
	*kv.MemoryBackend
	failKey string
}

func (f failingBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if key == f.failKey {
		return 0, errors.New("disk full")
	}
	return f.MemoryBackend.Put(ctx, key, value, expectedVersion)
}

// switchedBackend rejects writes to failKey while failing is set.
type switchedBackend struct {
	*kv.MemoryBackend
	failKey string
	failing atomic.Bool
}

func newSwitchedBackend(failKey string) *switchedBackend {
	return &switchedBackend{MemoryBackend: kv.NewMemoryBackend(), failKey: failKey}
}

func (b *switchedBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if key == b.failKey && b.failing.Load() {
		return 0, errors.New("disk full")
	}
	return b.MemoryBackend.Put(ctx, key, value, expectedVersion)
}

type harness struct {
	cart      *Service
	inventory *inventory.Ledger
	orders    *orders.Ledger
	publisher *recordingPublisher
}

func newHarness(t *testing.T, backend kv.Backend) *harness {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemoryBackend()
	}
	store := kv.NewStore(backend, nil)
	inv := inventory.NewLedger(store, constRand{}, nil)
	require.NoError(t, inv.Initialize(context.Background(), []string{"1", "2"}))
	ord := orders.NewLedger(store, constRand{}, nil)
	pub := &recordingPublisher{}
	return &harness{
		cart:      NewService(store, inv, ord, pub, nil),
		inventory: inv,
		orders:    ord,
		publisher: pub,
	}
}

func product(id string) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString("10.00")}
}

func TestAddReservesAndMerges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	line, err := h.cart.Add(ctx, product("1"), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 17, h.inventory.Available(ctx, "1"))

	line, err = h.cart.Add(ctx, product("1"), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, 15, h.inventory.Available(ctx, "1"))

	lines, err := h.cart.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Product 1", lines[0].Product.Name)

	count, err := h.cart.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestAddRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("out of stock", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.inventory.Reserve(ctx, "1", 20))

		_, err := h.cart.Add(ctx, product("1"), 1)
		require.ErrorIs(t, err, ErrOutOfStock)
	})

	t.Run("unknown product", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.cart.Add(ctx, product("99"), 1)
		require.ErrorIs(t, err, ErrOutOfStock)
	})

	t.Run("more than available", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.cart.Add(ctx, product("1"), 12)
		require.NoError(t, err)

		_, err = h.cart.Add(ctx, product("1"), 9)
		require.ErrorIs(t, err, database.ErrInsufficientStock)
		assert.Equal(t, 8, h.inventory.Available(ctx, "1"))

		lines, err := h.cart.Lines(ctx)
		require.NoError(t, err)
		assert.Equal(t, 12, lines[0].Quantity)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.cart.Add(ctx, product("1"), 0)
		require.ErrorIs(t, err, database.ErrInvalidQuantity)
	})
}

func TestAddReleasesWhenCartWriteFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, failingBackend{MemoryBackend: kv.NewMemoryBackend(), failKey: kv.KeyCart})

	_, err := h.cart.Add(ctx, product("1"), 4)
	require.Error(t, err)
	assert.Equal(t, 20, h.inventory.Available(ctx, "1"))
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.cart.Add(ctx, product("1"), 3)
	require.NoError(t, err)

	require.NoError(t, h.cart.UpdateQuantity(ctx, "1", 5))
	assert.Equal(t, 15, h.inventory.Available(ctx, "1"))

	require.NoError(t, h.cart.UpdateQuantity(ctx, "1", 1))
	assert.Equal(t, 19, h.inventory.Available(ctx, "1"))

	err = h.cart.UpdateQuantity(ctx, "1", 100)
	require.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Equal(t, 19, h.inventory.Available(ctx, "1"))

	lines, err := h.cart.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)

	err = h.cart.UpdateQuantity(ctx, "2", 1)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestUpdateQuantityZeroIsRemove(t *testing.T) {
	ctx := context.Background()

	viaUpdate := newHarness(t, nil)
	viaRemove := newHarness(t, nil)
	for _, h := range []*harness{viaUpdate, viaRemove} {
		_, err := h.cart.Add(ctx, product("1"), 3)
		require.NoError(t, err)
		_, err = h.cart.Add(ctx, product("2"), 1)
		require.NoError(t, err)
	}

	require.NoError(t, viaUpdate.cart.UpdateQuantity(ctx, "1", 0))
	require.NoError(t, viaRemove.cart.Remove(ctx, "1"))

	for _, h := range []*harness{viaUpdate, viaRemove} {
		assert.Equal(t, 20, h.inventory.Available(ctx, "1"))
		lines, err := h.cart.Lines(ctx)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "2", lines[0].Product.ID)
	}

	a, err := viaUpdate.inventory.Records(ctx)
	require.NoError(t, err)
	b, err := viaRemove.inventory.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	require.NoError(t, h.cart.Remove(ctx, "1"))
	assert.Equal(t, 20, h.inventory.Available(ctx, "1"))
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.cart.Add(ctx, product("1"), 3)
	require.NoError(t, err)

	before, ok := h.inventory.Record(ctx, "1")
	require.True(t, ok)

	order, err := h.cart.Checkout(ctx, models.ShippingAddress{FirstName: "Ada"}, pricing.Quote)
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, "30.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "42.39", order.Total.StringFixed(2))
	assert.Equal(t, "Ada", order.ShippingAddress.FirstName)

	lines, err := h.cart.Lines(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)

	after, ok := h.inventory.Record(ctx, "1")
	require.True(t, ok)
	assert.Equal(t, before.Stock-3, after.Stock)
	assert.Equal(t, 0, after.Reserved)

	listed, err := h.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, order.ID, listed[0].ID)

	require.Len(t, h.publisher.envs, 1)
	assert.Equal(t, order.ID, h.publisher.envs[0].CorrelationID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.ErrorIs(t, err, ErrEmptyCart)

	listed, err := h.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCheckoutSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.publisher.err = errors.New("broker unavailable")

	_, err := h.cart.Add(ctx, product("2"), 1)
	require.NoError(t, err)

	order, err := h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

func TestCheckoutDefaultsToStandardPricing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	_, err := h.cart.Add(ctx, product("1"), 3)
	require.NoError(t, err)

	order, err := h.cart.Checkout(ctx, models.ShippingAddress{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "42.39", order.Total.StringFixed(2))
}

func TestCheckoutWhenCartCannotBeCleared(t *testing.T) {
	ctx := context.Background()
	backend := newSwitchedBackend(kv.KeyCart)
	h := newHarness(t, backend)
	_, err := h.cart.Add(ctx, product("1"), 3)
	require.NoError(t, err)

	backend.failing.Store(true)
	_, err = h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.Error(t, err)

	rec, ok := h.inventory.Record(ctx, "1")
	require.True(t, ok)
	assert.Equal(t, models.InventoryRecord{ProductID: "1", Stock: 20, Reserved: 3}, rec)
	listed, err := h.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Empty(t, h.publisher.envs)

	// A retry once the store recovers buys the lines exactly once.
	backend.failing.Store(false)
	_, err = h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.NoError(t, err)
	_, err = h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.ErrorIs(t, err, ErrEmptyCart)

	rec, ok = h.inventory.Record(ctx, "1")
	require.True(t, ok)
	assert.Equal(t, models.InventoryRecord{ProductID: "1", Stock: 17}, rec)
	listed, err = h.orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCheckoutRestoresCartWhenConfirmFails(t *testing.T) {
	ctx := context.Background()
	backend := newSwitchedBackend(kv.KeyInventory)
	h := newHarness(t, backend)
	_, err := h.cart.Add(ctx, product("2"), 2)
	require.NoError(t, err)

	backend.failing.Store(true)
	_, err = h.cart.Checkout(ctx, models.ShippingAddress{}, pricing.Quote)
	require.Error(t, err)

	lines, err := h.cart.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 18, h.inventory.Available(ctx, "2"))

	listed, err := h.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestConcurrentAddsNeverOversell(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	concurrency := 10
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.cart.Add(ctx, product("1"), 3); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.ErrorIs(t, err, database.ErrInsufficientStock)
	}

	count, err := h.cart.Count(ctx)
	require.NoError(t, err)
	rec, ok := h.inventory.Record(ctx, "1")
	require.True(t, ok)

	assert.Equal(t, count, rec.Reserved)
	assert.LessOrEqual(t, rec.Reserved, rec.Stock)
	assert.Equal(t, 20, rec.Available()+count)
}
