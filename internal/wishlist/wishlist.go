// Package wishlist keeps the set of product ids the shopper has starred.
package wishlist

import (
	"context"
	"slices"

	"github.com/safar/go-storefront/internal/kv"
	"go.uber.org/zap"
)

type Wishlist struct {
	store  *kv.Store
	logger *zap.Logger
}

func New(store *kv.Store, logger *zap.Logger) *Wishlist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wishlist{store: store, logger: logger.Named("wishlist")}
}

// Toggle adds productID when absent and removes it otherwise. It reports
// whether the product is on the list afterwards.
func (w *Wishlist) Toggle(ctx context.Context, productID string) (bool, error) {
	var (
		items []string
		added bool
	)
	err := w.store.Update(ctx, kv.KeyWishlist, &items, func() error {
		if i := slices.Index(items, productID); i >= 0 {
			items = slices.Delete(items, i, i+1)
			return nil
		}
		items = append(items, productID)
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}

	w.logger.Debug("wishlist toggled", zap.String("product_id", productID), zap.Bool("added", added))
	return added, nil
}

func (w *Wishlist) Contains(ctx context.Context, productID string) (bool, error) {
	items, err := w.Items(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(items, productID), nil
}

// Items returns the starred ids in the order they were added.
func (w *Wishlist) Items(ctx context.Context) ([]string, error) {
	var items []string
	if err := w.store.Load(ctx, kv.KeyWishlist, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
