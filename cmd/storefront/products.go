package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/safar/go-storefront/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var productFilter struct {
	category string
	query    string
	minPrice string
	maxPrice string
	rating   float64
	inStock  bool
	onSale   bool
	sortBy   string
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products with available stock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := catalog.DefaultFilter()
		if productFilter.category != "" {
			f.Category = productFilter.category
		}
		f.Query = productFilter.query
		f.MinRating = productFilter.rating
		f.InStock = productFilter.inStock
		f.OnSale = productFilter.onSale

		var err error
		if f.MinPrice, err = decimal.NewFromString(productFilter.minPrice); err != nil {
			return fmt.Errorf("--min-price: %w", err)
		}
		if f.MaxPrice, err = decimal.NewFromString(productFilter.maxPrice); err != nil {
			return fmt.Errorf("--max-price: %w", err)
		}
		if f.SortBy, err = catalog.ParseSortBy(productFilter.sortBy); err != nil {
			return err
		}

		ctx := cmd.Context()
		stock := func(id string) int { return storefront.Inventory.Available(ctx, id) }

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tRATING\tAVAILABLE")
		for _, p := range storefront.Catalog.Filter(f, stock) {
			price := p.Price.StringFixed(2)
			if p.OnSale() {
				price += " (was " + p.OriginalPrice.StringFixed(2) + ")"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%d\n", p.ID, p.Name, p.Category, price, p.Rating, stock(p.ID))
		}
		return tw.Flush()
	},
}

var productCmd = &cobra.Command{
	Use:   "product [id]",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := storefront.Catalog.Get(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"product":   p,
			"available": storefront.Inventory.Available(cmd.Context(), p.ID),
		})
	},
}

func init() {
	fl := productsCmd.Flags()
	fl.StringVar(&productFilter.category, "category", "", "only this category")
	fl.StringVarP(&productFilter.query, "query", "q", "", "search name and description")
	fl.StringVar(&productFilter.minPrice, "min-price", "0", "lowest price")
	fl.StringVar(&productFilter.maxPrice, "max-price", "500", "highest price")
	fl.Float64Var(&productFilter.rating, "rating", 0, "minimum rating")
	fl.BoolVar(&productFilter.inStock, "in-stock", false, "only products with available stock")
	fl.BoolVar(&productFilter.onSale, "on-sale", false, "only discounted products")
	fl.StringVar(&productFilter.sortBy, "sort", "name", "name, price-low, price-high, rating or newest")
}
