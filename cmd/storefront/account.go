package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var wishlistCmd = &cobra.Command{
	Use:   "wishlist",
	Short: "Show starred products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := storefront.Wishlist.Items(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, err := storefront.Catalog.Get(id)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(no longer in catalog)\n", id)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, p.Name)
		}
		return nil
	},
}

var wishlistToggleCmd = &cobra.Command{
	Use:   "toggle [product-id]",
	Short: "Star or unstar a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := storefront.Catalog.Get(args[0])
		if err != nil {
			return err
		}
		added, err := storefront.Wishlist.Toggle(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(cmd.OutOrStdout(), "%s added to wishlist\n", p.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed from wishlist\n", p.Name)
		}
		return nil
	},
}

var credentials struct {
	name     string
	email    string
	password string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := storefront.Auth.Login(cmd.Context(), credentials.email, credentials.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.Name)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := storefront.Auth.Signup(cmd.Context(), credentials.name, credentials.email, credentials.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "welcome, %s\n", user.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return storefront.Auth.Logout(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := storefront.Auth.Current(cmd.Context())
		if err != nil {
			return err
		}
		if user == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
			return nil
		}
		return printJSON(cmd.OutOrStdout(), user)
	},
}

func init() {
	wishlistCmd.AddCommand(wishlistToggleCmd)

	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&credentials.email, "email", "", "")
		c.Flags().StringVar(&credentials.password, "password", "", "")
	}
	signupCmd.Flags().StringVar(&credentials.name, "name", "", "display name")
}
