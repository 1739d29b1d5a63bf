package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

func combosCmd() *cobra.Command {
	var (
		limit    int
		mode     string
		maxPrice float64
		budget   float64
		asJSON   bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "combos [card]",
		Short: "Find combos for a card, or browse by budget",
		Long: `Find multi-card combos involving a focal card, by ID or exact name.
With --budget and no card argument, list recorded combos under a total price.

Examples:
  mtg-cli combos "Ashnod's Altar"
  mtg-cli combos card-123 --mode broad
  mtg-cli combos --budget 25`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && budget <= 0 {
				return fmt.Errorf("either a card argument or --budget is required")
			}

			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := BuildApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to build engine: %w", err)
			}
			defer app.Close()

			var results []core.RankedResult
			if len(args) == 0 {
				results, err = app.Engine.CombosUnderPrice(ctx, budget, limit)
			} else {
				cons := core.Constraints{MaxPrice: maxPrice}
				results, err = app.Engine.CombosForCard(ctx, args[0], mode, cons, limit)
			}
			if err != nil {
				return fmt.Errorf("combo search failed: %w", err)
			}

			if asJSON {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No combos found.")
				return nil
			}
			printResults(results, verbose)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum combos")
	cmd.Flags().StringVarP(&mode, "mode", "m", core.ModeFocused, "search mode (focused, broad)")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "total price ceiling in USD")
	cmd.Flags().Float64Var(&budget, "budget", 0, "browse recorded combos under this total price")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show factor breakdowns")

	return cmd
}
