package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type SortBy string

const (
	SortName      SortBy = "name"
	SortPriceLow  SortBy = "price-low"
	SortPriceHigh SortBy = "price-high"
	SortRating    SortBy = "rating"
	SortNewest    SortBy = "newest"
)

// AllCategories matches every category.
const AllCategories = "All"

func ParseSortBy(s string) (SortBy, error) {
	switch v := SortBy(s); v {
	case SortName, SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return v, nil
	case "":
		return SortName, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

type Filter struct {
	Category  string
	Query     string
	MinPrice  decimal.Decimal
	MaxPrice  decimal.Decimal
	MinRating float64
	InStock   bool
	OnSale    bool
	SortBy    SortBy
}

func DefaultFilter() Filter {
	return Filter{
		Category: AllCategories,
		MinPrice: decimal.Zero,
		MaxPrice: decimal.NewFromInt(500),
		SortBy:   SortName,
	}
}

// StockFunc reports the units of a product available for sale.
type StockFunc func(productID string) int

// Filter returns the products matching f, sorted by f.SortBy. stock is only
// consulted when f.InStock is set.
func (c *Catalog) Filter(f Filter, stock StockFunc) []models.Product {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		if p.Price.LessThan(f.MinPrice) || p.Price.GreaterThan(f.MaxPrice) {
			continue
		}
		if p.Rating < f.MinRating {
			continue
		}
		if f.InStock && (stock == nil || stock(p.ID) <= 0) {
			continue
		}
		if f.OnSale && !p.OnSale() {
			continue
		}
		out = append(out, p)
	}

	slices.SortStableFunc(out, compareBy(f.SortBy))
	return out
}

func compareBy(sortBy SortBy) func(a, b models.Product) int {
	switch sortBy {
	case SortPriceLow:
		return func(a, b models.Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceHigh:
		return func(a, b models.Product) int { return b.Price.Cmp(a.Price) }
	case SortRating:
		return func(a, b models.Product) int { return cmp.Compare(b.Rating, a.Rating) }
	case SortNewest:
		return func(a, b models.Product) int { return strings.Compare(b.ID, a.ID) }
	default:
		return func(a, b models.Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
}
