// Package kv is the persistent key-value layer every ledger writes through.
//
// Values are JSON documents wrapped in a schema envelope. Each key carries a
// version counter maintained by the backend; a write names the version it was
// derived from and is rejected with database.ErrOptimisticLockFailed when the
// stored version moved on. Two processes sharing one store therefore never
// silently overwrite each other, but the loser has to retry.
package kv

import (
	"context"
	"errors"
)

// Keys used by the storefront.
const (
	KeyInventory = "inventory"
	KeyCart      = "cartItems"
	KeyOrders    = "orders"
	KeyWishlist  = "wishlistItems"
	KeyUser      = "user"
)

// SchemaVersion is written into every envelope.
const SchemaVersion = 1

var (
	ErrNotFound = errors.New("key not found")

	// ErrSkipWrite may be returned from an Update callback to leave the
	// stored value untouched without reporting an error.
	ErrSkipWrite = errors.New("skip write")
)

type Entry struct {
	Value   []byte
	Version int64
}

// Backend stores raw values with a per-key version. Put with
// expectedVersion 0 creates the key and fails if it already exists.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error)
}

// Versioner is implemented by backends that can report the current version
// of a key without reading its value. A missing key reports version 0.
// Store uses it to revalidate mirrored entries before serving them.
type Versioner interface {
	Version(ctx context.Context, key string) (int64, error)
}
