package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/spf13/cobra"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := storefront.Cart.Lines(cmd.Context())
		if err != nil {
			return err
		}
		q := pricing.Quote(lines)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tTOTAL")
		for _, l := range lines {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				l.Product.ID, l.Product.Name, l.Quantity, l.Product.Price.StringFixed(2), l.LineTotal().StringFixed(2))
		}
		fmt.Fprintf(tw, "\t\t\tSubtotal\t%s\n", q.Subtotal.StringFixed(2))
		fmt.Fprintf(tw, "\t\t\tShipping\t%s\n", q.Shipping.StringFixed(2))
		fmt.Fprintf(tw, "\t\t\tTax\t%s\n", q.Tax.StringFixed(2))
		fmt.Fprintf(tw, "\t\t\tTotal\t%s\n", q.Total.StringFixed(2))
		return tw.Flush()
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add [product-id] [quantity]",
	Short: "Reserve stock and add it to the cart",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty := 1
		if len(args) == 2 {
			var err error
			if qty, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
		}
		p, err := storefront.Catalog.Get(args[0])
		if err != nil {
			return err
		}
		line, err := storefront.Cart.Add(cmd.Context(), p, qty)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s x%d in cart\n", line.Product.Name, line.Quantity)
		return nil
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set [product-id] [quantity]",
	Short: "Change the quantity of a cart line (0 removes it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		return storefront.Cart.UpdateQuantity(cmd.Context(), args[0], qty)
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove [product-id]",
	Short: "Remove a line and release its stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storefront.Cart.Remove(cmd.Context(), args[0])
	},
}

var address models.ShippingAddress

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Buy everything in the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := storefront.Cart.Checkout(cmd.Context(), address, pricing.Quote)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), order)
	},
}

func init() {
	cartCmd.AddCommand(cartAddCmd, cartSetCmd, cartRemoveCmd)

	fl := checkoutCmd.Flags()
	fl.StringVar(&address.FirstName, "first-name", "", "")
	fl.StringVar(&address.LastName, "last-name", "", "")
	fl.StringVar(&address.Address, "address", "", "street address")
	fl.StringVar(&address.City, "city", "", "")
	fl.StringVar(&address.State, "state", "", "")
	fl.StringVar(&address.ZipCode, "zip", "", "")
	fl.StringVar(&address.Email, "email", "", "")
	fl.StringVar(&address.Phone, "phone", "", "")
}
