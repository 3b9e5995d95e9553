package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "digital-store",
	Short: "Chat-based digital products storefront",
	Long:  "A Telegram storefront for digital products with card, PayPal and crypto payment flows.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
