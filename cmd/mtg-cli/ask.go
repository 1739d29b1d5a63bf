package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

func askCmd() *cobra.Command {
	var (
		limit       int
		maxPrice    float64
		tags        []string
		typeFilter  string
		sortBy      string
		noCache     bool
		noNarrative bool
		asJSON      bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask a free-text question about cards",
		Long: `Answer a free-text card question with ranked catalog matches.

Examples:
  mtg-cli ask "cheap green ramp creatures"
  mtg-cli ask "sacrifice outlets" --max-price 5 --limit 5
  mtg-cli ask "graveyard recursion" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			answer, err := app.Engine.AnswerQuery(ctx, core.QueryRequest{
				Query:       args[0],
				Constraints: parseConstraintFlags(maxPrice, tags, typeFilter, sortBy),
				Limit:       limit,
				NoCache:     noCache,
				NoNarrative: noNarrative,
			})
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if asJSON {
				return printJSON(answer)
			}

			if answer.Explanation != "" {
				fmt.Printf("%s\n\n", answer.Explanation)
			}
			if len(answer.Items) == 0 {
				fmt.Printf("No results for \"%s\"\n", args[0])
				return nil
			}
			printResults(answer.Items, verbose)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum results")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "total price ceiling in USD")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "required synergy tags")
	cmd.Flags().StringVar(&typeFilter, "type", "", "require a card type (creature, artifact, ...)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort order (score, price)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the answer cache")
	cmd.Flags().BoolVar(&noNarrative, "no-narrative", false, "skip narrative generation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show factor breakdowns")

	return cmd
}
