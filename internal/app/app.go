// Package app assembles the storefront services from configuration.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/events"
	"github.com/safar/go-storefront/internal/httpapi"
	"github.com/safar/go-storefront/internal/inventory"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/wishlist"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const publishBuffer = 256

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *kv.Store
	Catalog   *catalog.Catalog
	Inventory *inventory.Ledger
	Orders    *orders.Ledger
	Cart      *cart.Service
	Wishlist  *wishlist.Wishlist
	Auth      *auth.Service

	// Watcher is set for the file backend when watching is enabled.
	Watcher *kv.Watcher

	closers []func() error
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// New opens the configured backend, loads the catalog and makes sure every
// catalog product has an inventory record.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = kv.NewStore(backend, logger)

	if fb, ok := backend.(*kv.FileBackend); ok && cfg.Store.Watch {
		w, err := kv.NewWatcher(a.Store, fb, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("watch store: %w", err)
		}
		a.Watcher = w
		a.closers = append(a.closers, w.Close)
	}

	if cfg.Catalog.File != "" {
		a.Catalog, err = catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.Catalog = catalog.Default()
	}

	seed := time.Now().UnixNano()
	a.Inventory = inventory.NewLedger(a.Store, rand.New(rand.NewSource(seed)), logger)
	if err := a.Inventory.Initialize(ctx, a.Catalog.IDs()); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize inventory: %w", err)
	}

	a.Orders = orders.NewLedger(a.Store, rand.New(rand.NewSource(seed+1)), logger)
	a.Cart = cart.NewService(a.Store, a.Inventory, a.Orders, a.publisher(), logger)
	a.Wishlist = wishlist.New(a.Store, logger)
	a.Auth = auth.NewService(a.Store, cfg.Auth.Delay, logger)

	return a, nil
}

func (a *App) openBackend(ctx context.Context) (kv.Backend, error) {
	switch a.Config.Store.Backend {
	case config.BackendMemory:
		return kv.NewMemoryBackend(), nil
	case config.BackendPostgres:
		db, err := database.NewConnection(ctx, &a.Config.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.Logger.Info("connected to database")
		return kv.NewPostgresBackend(db), nil
	case config.BackendRedis:
		rdb := kv.NewRedisClient(a.Config.Store.RedisAddr, a.Config.Store.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		return kv.NewRedisBackend(rdb, a.Config.Store.KeyPrefix), nil
	default:
		return kv.NewFileBackend(a.Config.Store.Dir)
	}
}

func (a *App) publisher() events.Publisher {
	if len(a.Config.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(a.Logger)
	}
	p := events.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, publishBuffer, a.Logger)
	a.closers = append(a.closers, p.Close)
	return p
}

func (a *App) HTTPDeps() httpapi.Deps {
	return httpapi.Deps{
		Catalog:        a.Catalog,
		Inventory:      a.Inventory,
		Cart:           a.Cart,
		Orders:         a.Orders,
		Wishlist:       a.Wishlist,
		Auth:           a.Auth,
		Logger:         a.Logger,
		RequestTimeout: a.Config.Server.RequestTimeout,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
