package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safar/go-storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: backend},
		Kafka: config.KafkaConfig{Topic: "storefront.order.placed"},
		Auth:  config.AuthConfig{Delay: 0},
	}
}

func TestNewMemoryApp(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(config.BackendMemory), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Watcher)
	records, err := a.Inventory.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(a.Catalog.IDs()))
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Stock, 10)
		assert.Less(t, r.Stock, 60)
	}
}

func TestNewFileAppKeepsStockAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendFile)
	cfg.Store.Dir = t.TempDir()
	cfg.Store.Watch = true

	first, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, first.Watcher)
	before, err := first.Inventory.Records(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	after, err := second.Inventory.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewWithCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`[{id: x1, name: Thing, price: "3.50", category: Misc}]`), 0o644))

	cfg := testConfig(config.BackendMemory)
	cfg.Catalog.File = path

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"x1"}, a.Catalog.IDs())
	assert.Positive(t, a.Inventory.Available(context.Background(), "x1"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud")
	require.Error(t, err)
}

func TestHTTPDeps(t *testing.T) {
	cfg := testConfig(config.BackendMemory)
	cfg.Server.RequestTimeout = 5 * time.Second

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	deps := a.HTTPDeps()
	assert.Same(t, a.Cart, deps.Cart)
	assert.Equal(t, 5*time.Second, deps.RequestTimeout)
}
