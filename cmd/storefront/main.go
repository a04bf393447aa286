package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/safar/go-storefront/internal/app"
	"github.com/safar/go-storefront/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	backend string

	logger     *zap.Logger
	storefront *app.App
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Browse the catalog, manage the cart and place orders from the terminal",
	Long: `storefront drives the same services as the HTTP API against the
configured store (STORE_BACKEND, STORE_DIR, ...). State written here is
visible to a running API server that shares the store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if backend != "" {
			cfg.Store.Backend = backend
		}
		cfg.Store.Watch = false

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = app.NewLogger(level)
		if err != nil {
			return err
		}

		storefront, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if storefront != nil {
			_ = storefront.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "override STORE_BACKEND")

	rootCmd.AddCommand(productsCmd, productCmd)
	rootCmd.AddCommand(cartCmd, checkoutCmd)
	rootCmd.AddCommand(ordersCmd, orderCmd)
	rootCmd.AddCommand(wishlistCmd)
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
