package inventory

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand returns its values in turn, wrapping around.
type fixedRand struct {
	values []int
	next   int
}

func (f *fixedRand) Intn(n int) int {
	v := f.values[f.next%len(f.values)] % n
	f.next++
	return v
}

func newLedger(t *testing.T, values ...int) (*Ledger, *kv.MemoryBackend) {
	t.Helper()
	if len(values) == 0 {
		values = []int{10}
	}
	backend := kv.NewMemoryBackend()
	return NewLedger(kv.NewStore(backend, nil), &fixedRand{values: values}, nil), backend
}

func assertInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	records, err := l.Records(context.Background())
	require.NoError(t, err)
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Stock, 0, r.ProductID)
		assert.GreaterOrEqual(t, r.Reserved, 0, r.ProductID)
		want := r.Stock - r.Reserved
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, l.Available(context.Background(), r.ProductID), r.ProductID)
	}
}

func TestInitializeRandomStockRange(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kv.NewStore(kv.NewMemoryBackend(), nil), rand.New(rand.NewSource(7)), nil)

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	require.NoError(t, l.Initialize(ctx, ids))

	records, err := l.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(ids))
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Stock, 10)
		assert.Less(t, r.Stock, 60)
		assert.Zero(t, r.Reserved)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, backend := newLedger(t, 5, 20, 30)

	require.NoError(t, l.Initialize(ctx, []string{"1"}))
	require.NoError(t, l.Reserve(ctx, "1", 2))

	e, err := backend.Get(ctx, kv.KeyInventory)
	require.NoError(t, err)

	require.NoError(t, l.Initialize(ctx, []string{"1"}))
	after, err := backend.Get(ctx, kv.KeyInventory)
	require.NoError(t, err)
	assert.Equal(t, e.Version, after.Version, "no write when nothing is new")

	require.NoError(t, l.Initialize(ctx, []string{"1", "2", "2"}))
	records, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.InventoryRecord{
		{ProductID: "1", Stock: 15, Reserved: 2},
		{ProductID: "2", Stock: 30},
	}, records)
}

func TestAvailableUnknownProduct(t *testing.T) {
	l, _ := newLedger(t)
	assert.Zero(t, l.Available(context.Background(), "missing"))
}

func TestReserveReleaseScenario(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 23)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))

	before := l.Available(ctx, "1")
	require.Equal(t, 33, before)

	require.NoError(t, l.Reserve(ctx, "1", 5))
	assert.Equal(t, before-5, l.Available(ctx, "1"))

	recBefore, _ := l.Record(ctx, "1")
	err := l.Reserve(ctx, "1", 1000)
	require.ErrorIs(t, err, database.ErrInsufficientStock)
	recAfter, _ := l.Record(ctx, "1")
	assert.Equal(t, recBefore, recAfter)

	require.NoError(t, l.Release(ctx, "1", 5))
	assert.Equal(t, before, l.Available(ctx, "1"))
	assertInvariants(t, l)
}

func TestReserveExactlyAvailable(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 0)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))

	require.NoError(t, l.Reserve(ctx, "1", 10))
	assert.Zero(t, l.Available(ctx, "1"))
	require.ErrorIs(t, l.Reserve(ctx, "1", 1), database.ErrInsufficientStock)
}

func TestReserveUnknownProduct(t *testing.T) {
	l, _ := newLedger(t)
	require.ErrorIs(t, l.Reserve(context.Background(), "ghost", 1), database.ErrInsufficientStock)
}

func TestNonPositiveQuantitiesRejected(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))

	assert.ErrorIs(t, l.Reserve(ctx, "1", 0), database.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(ctx, "1", -1), database.ErrInvalidQuantity)
	assert.ErrorIs(t, l.ConfirmPurchase(ctx, "1", 0), database.ErrInvalidQuantity)
}

func TestConfirmAfterReserveIsNetZeroOnReserved(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 30)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))
	require.NoError(t, l.Reserve(ctx, "1", 2))

	before, _ := l.Record(ctx, "1")
	require.NoError(t, l.Reserve(ctx, "1", 4))
	require.NoError(t, l.ConfirmPurchase(ctx, "1", 4))

	after, _ := l.Record(ctx, "1")
	assert.Equal(t, before.Reserved, after.Reserved)
	assert.Equal(t, before.Stock-4, after.Stock)
	assertInvariants(t, l)
}

func TestReleaseAndConfirmClampAtZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 0)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))
	require.NoError(t, l.Reserve(ctx, "1", 3))

	require.NoError(t, l.Release(ctx, "1", 3))
	require.NoError(t, l.Release(ctx, "1", 3))
	rec, _ := l.Record(ctx, "1")
	assert.Equal(t, models.InventoryRecord{ProductID: "1", Stock: 10}, rec)

	require.NoError(t, l.ConfirmPurchase(ctx, "1", 25))
	rec, _ = l.Record(ctx, "1")
	assert.Equal(t, models.InventoryRecord{ProductID: "1"}, rec)
	assertInvariants(t, l)
}

func TestUnknownProductDoesNotCorruptOthers(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, 4)
	require.NoError(t, l.Initialize(ctx, []string{"1"}))
	require.NoError(t, l.Reserve(ctx, "1", 2))
	before, err := l.Records(ctx)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, "ghost", 5))
	require.NoError(t, l.ConfirmPurchase(ctx, "ghost", 5))

	after, err := l.Records(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("records changed (-before +after):\n%s", diff)
	}
}

func TestConfirmPurchasesBatch(t *testing.T) {
	ctx := context.Background()
	l, backend := newLedger(t, 10, 20)
	require.NoError(t, l.Initialize(ctx, []string{"1", "2"}))
	require.NoError(t, l.Reserve(ctx, "1", 3))
	require.NoError(t, l.Reserve(ctx, "2", 1))

	e, err := backend.Get(ctx, kv.KeyInventory)
	require.NoError(t, err)

	require.NoError(t, l.ConfirmPurchases(ctx, []Line{
		{ProductID: "1", Quantity: 3},
		{ProductID: "ghost", Quantity: 9},
		{ProductID: "2", Quantity: 1},
	}))

	after, err := backend.Get(ctx, kv.KeyInventory)
	require.NoError(t, err)
	assert.Equal(t, e.Version+1, after.Version, "one write for the whole batch")

	records, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.InventoryRecord{
		{ProductID: "1", Stock: 17},
		{ProductID: "2", Stock: 29},
	}, records)
}

func TestRandomizedOperationsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	l := NewLedger(kv.NewStore(kv.NewMemoryBackend(), nil), rng, nil)
	ids := []string{"1", "2", "3"}
	require.NoError(t, l.Initialize(ctx, ids))

	for i := 0; i < 300; i++ {
		id := ids[rng.Intn(len(ids))]
		qty := 1 + rng.Intn(15)
		switch rng.Intn(3) {
		case 0:
			before := l.Available(ctx, id)
			err := l.Reserve(ctx, id, qty)
			if qty > before {
				require.ErrorIs(t, err, database.ErrInsufficientStock)
				assert.Equal(t, before, l.Available(ctx, id))
			} else {
				require.NoError(t, err)
				assert.Equal(t, before-qty, l.Available(ctx, id))
			}
		case 1:
			require.NoError(t, l.Release(ctx, id, qty))
		case 2:
			require.NoError(t, l.ConfirmPurchase(ctx, id, qty))
		}
		assertInvariants(t, l)
	}
}
