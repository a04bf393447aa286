// Package inventory tracks per-product stock and the part of it held by
// active carts.
//
// Every operation is a read-modify-write of the single "inventory" key, so a
// batch of confirmations lands in one write. Quantities released or
// confirmed beyond what is held are clamped at zero rather than rejected.
package inventory

import (
	"context"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/kv"
	"github.com/safar/go-storefront/internal/models"
	"go.uber.org/zap"
)

const (
	minInitialStock  = 10
	initialStockSpan = 50
)

// Rand is the randomness the ledger needs; *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Line is a product quantity to confirm.
type Line struct {
	ProductID string
	Quantity  int
}

type Ledger struct {
	store  *kv.Store
	rng    Rand
	logger *zap.Logger
}

func NewLedger(store *kv.Store, rng Rand, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, rng: rng, logger: logger.Named("inventory")}
}

// Initialize creates a record for every id not yet tracked, with stock drawn
// from [10, 60). Existing records are left untouched.
func (l *Ledger) Initialize(ctx context.Context, ids []string) error {
	var records []models.InventoryRecord
	return l.store.Update(ctx, kv.KeyInventory, &records, func() error {
		known := make(map[string]bool, len(records))
		for _, r := range records {
			known[r.ProductID] = true
		}

		added := 0
		for _, id := range ids {
			if known[id] {
				continue
			}
			known[id] = true
			records = append(records, models.InventoryRecord{
				ProductID: id,
				Stock:     minInitialStock + l.rng.Intn(initialStockSpan),
			})
			added++
		}
		if added == 0 {
			return kv.ErrSkipWrite
		}
		l.logger.Info("inventory initialized", zap.Int("added", added))
		return nil
	})
}

// Available returns max(0, stock-reserved), or 0 for an unknown product.
// A failed read is logged and reported as 0.
func (l *Ledger) Available(ctx context.Context, productID string) int {
	rec, ok := l.Record(ctx, productID)
	if !ok {
		return 0
	}
	return rec.Available()
}

func (l *Ledger) Record(ctx context.Context, productID string) (models.InventoryRecord, bool) {
	records, err := l.Records(ctx)
	if err != nil {
		l.logger.Warn("read inventory", zap.Error(err))
		return models.InventoryRecord{}, false
	}
	for _, r := range records {
		if r.ProductID == productID {
			return r, true
		}
	}
	return models.InventoryRecord{}, false
}

func (l *Ledger) Records(ctx context.Context) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	if err := l.store.Load(ctx, kv.KeyInventory, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Reserve holds quantity units of productID. It fails with
// database.ErrInsufficientStock, changing nothing, when fewer are available.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return database.ErrInvalidQuantity
	}

	var records []models.InventoryRecord
	return l.store.Update(ctx, kv.KeyInventory, &records, func() error {
		i := indexOf(records, productID)
		if i < 0 || records[i].Available() < quantity {
			available := 0
			if i >= 0 {
				available = records[i].Available()
			}
			l.logger.Warn("reservation rejected",
				zap.String("product_id", productID),
				zap.Int("requested", quantity),
				zap.Int("available", available))
			return fmt.Errorf("reserve %d of %s (available %d): %w",
				quantity, productID, available, database.ErrInsufficientStock)
		}

		records[i].Reserved += quantity
		l.logger.Debug("reserved",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Int("reserved", records[i].Reserved))
		return nil
	})
}

// Release returns quantity units of a reservation. Reserved never drops
// below zero and an unknown product is ignored.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return database.ErrInvalidQuantity
	}

	var records []models.InventoryRecord
	return l.store.Update(ctx, kv.KeyInventory, &records, func() error {
		i := indexOf(records, productID)
		if i < 0 {
			return kv.ErrSkipWrite
		}
		records[i].Reserved = floorSub(records[i].Reserved, quantity)
		l.logger.Debug("released",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Int("reserved", records[i].Reserved))
		return nil
	})
}

// ConfirmPurchase turns quantity reserved units into a permanent deduction.
func (l *Ledger) ConfirmPurchase(ctx context.Context, productID string, quantity int) error {
	return l.ConfirmPurchases(ctx, []Line{{ProductID: productID, Quantity: quantity}})
}

// ConfirmPurchases applies ConfirmPurchase to each line in order within a
// single write, so either every line is confirmed or none is.
func (l *Ledger) ConfirmPurchases(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("confirm %s: %w", line.ProductID, database.ErrInvalidQuantity)
		}
	}

	var records []models.InventoryRecord
	return l.store.Update(ctx, kv.KeyInventory, &records, func() error {
		changed := false
		for _, line := range lines {
			i := indexOf(records, line.ProductID)
			if i < 0 {
				l.logger.Warn("confirm for unknown product ignored", zap.String("product_id", line.ProductID))
				continue
			}
			records[i].Stock = floorSub(records[i].Stock, line.Quantity)
			records[i].Reserved = floorSub(records[i].Reserved, line.Quantity)
			changed = true
		}
		if !changed {
			return kv.ErrSkipWrite
		}
		return nil
	})
}

func indexOf(records []models.InventoryRecord, productID string) int {
	for i := range records {
		if records[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func floorSub(a, b int) int {
	if a-b < 0 {
		return 0
	}
	return a - b
}
