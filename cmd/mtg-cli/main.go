package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "mtg-cli",
		Short:   "MTG card suggestion and combo discovery engine",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.mtg-card-app/config.yaml)")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(combosCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
