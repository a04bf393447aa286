package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/safar/go-storefront/internal/models"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List orders, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := storefront.Orders.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tITEMS\tTOTAL\tTRACKING")
		for _, o := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
				o.ID, o.OrderDate.Format("2006-01-02 15:04"), o.Status, len(o.Items), o.Total.StringFixed(2), o.TrackingNumber)
		}
		return tw.Flush()
	},
}

var orderCmd = &cobra.Command{
	Use:   "order [id]",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := storefront.Orders.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

var orderStatusCmd = &cobra.Command{
	Use:   "status [id] [processing|shipped|delivered|cancelled]",
	Short: "Set the status of an order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storefront.Orders.SetStatus(cmd.Context(), args[0], models.OrderStatus(args[1]))
	},
}

func init() {
	orderCmd.AddCommand(orderStatusCmd)
}
