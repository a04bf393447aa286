package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/safar/go-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCheckoutFlow(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_DIR", t.TempDir())
	t.Setenv("AUTH_DELAY", "1ms")
	t.Setenv("LOG_LEVEL", "error")

	out := execute(t, "products", "--category", "Books")
	assert.Contains(t, out, "Bestselling Novel Collection")
	assert.NotContains(t, out, "Yoga Mat Premium")

	out = execute(t, "cart", "add", "5", "2")
	assert.Contains(t, out, "Bestselling Novel Collection x2 in cart")

	out = execute(t, "cart")
	assert.Contains(t, out, "69.98")

	out = execute(t, "checkout", "--first-name", "Ada", "--city", "London")
	var order models.Order
	require.NoError(t, json.Unmarshal([]byte(out), &order))
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	out = execute(t, "orders")
	assert.Contains(t, out, order.ID)

	execute(t, "order", "status", order.ID, "shipped")
	out = execute(t, "order", order.ID)
	assert.Contains(t, out, `"status": "shipped"`)

	out = execute(t, "wishlist", "toggle", "3")
	assert.Contains(t, out, "added to wishlist")

	out = execute(t, "login", "--email", "ada@example.com", "--password", "secret1")
	assert.Contains(t, out, "signed in as ada")
	out = execute(t, "whoami")
	assert.Contains(t, out, "ada@example.com")
}
