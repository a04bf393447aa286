package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The core only reads ID and Price; the remaining
// fields belong to whatever renders the storefront.
type Product struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Price         decimal.Decimal  `json:"price" yaml:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty" yaml:"original_price,omitempty"`
	Image         string           `json:"image,omitempty" yaml:"image,omitempty"`
	Category      string           `json:"category" yaml:"category"`
	Rating        float64          `json:"rating" yaml:"rating"`
	Reviews       int              `json:"reviews" yaml:"reviews"`
	Description   string           `json:"description" yaml:"description"`
	Features      []string         `json:"features,omitempty" yaml:"features,omitempty"`
}

// OnSale reports whether the product carries an original (pre-discount) price.
func (p Product) OnSale() bool {
	return p.OriginalPrice != nil
}

type InventoryRecord struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
}

// Available is max(0, Stock-Reserved).
func (r InventoryRecord) Available() int {
	if r.Reserved >= r.Stock {
		return 0
	}
	return r.Stock - r.Reserved
}

// CartLine holds the product as it looked when it was first added.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type ShippingAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Pricing is the money breakdown of an order.
type Pricing struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// OrderItem is a snapshot of the product at purchase time.
type OrderItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID                string          `json:"id"`
	Items             []OrderItem     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	Status            OrderStatus     `json:"status"`
	OrderDate         time.Time       `json:"order_date"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
