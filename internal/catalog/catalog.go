// Package catalog is the read-only product list the storefront sells from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var defaultProducts []byte

type Catalog struct {
	products []models.Product
	byID     map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultProducts)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in products: %v", err))
	}
	return c
}

// LoadFile reads a YAML product list from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var products []models.Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(products) == 0 {
		return nil, errors.New("catalog has no products")
	}

	c := &Catalog{products: products, byID: make(map[string]int, len(products))}
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("product %q has a negative price", p.ID)
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

func (c *Catalog) All() []models.Product {
	return slices.Clone(c.products)
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.products))
	for i, p := range c.products {
		ids[i] = p.ID
	}
	return ids
}

func (c *Catalog) Get(id string) (models.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, database.ErrProductNotFound
	}
	return c.products[i], nil
}

// Categories lists the distinct categories in catalog order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, p := range c.products {
		if !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	return out
}
