package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

func suggestCmd() *cobra.Command {
	var (
		limit       int
		mode        string
		maxPrice    float64
		tags        []string
		noCache     bool
		noNarrative bool
		asJSON      bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "suggest [deck.json]",
		Short: "Suggest cards and combos for a deck",
		Long: `Suggest additions and multi-card combos for a deck context.

The deck file is JSON with card_ids and an optional theme:

  {"name": "Tokens", "card_ids": ["c1", "c2"], "theme": "go-wide token swarm"}

Examples:
  mtg-cli suggest deck.json
  mtg-cli suggest deck.json --mode focused --max-price 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deck, err := readDeckFile(args[0])
			if err != nil {
				return err
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

			cons := core.Constraints{MaxPrice: maxPrice, RequiredTags: tags}
			suggestions, err := app.Engine.SuggestForContext(ctx, core.SuggestRequest{
				Deck:        *deck,
				Constraints: cons,
				Mode:        mode,
				Limit:       limit,
				NoCache:     noCache,
				NoNarrative: noNarrative,
			})
			if err != nil {
				return fmt.Errorf("suggest failed: %w", err)
			}

			if asJSON {
				return printJSON(suggestions)
			}

			if len(suggestions.Suggestions) == 0 && len(suggestions.Combos) == 0 {
				fmt.Println("No suggestions matched the deck and constraints.")
				return nil
			}
			if len(suggestions.Suggestions) > 0 {
				fmt.Printf("Suggested cards (%d)\n\n", len(suggestions.Suggestions))
				printResults(suggestions.Suggestions, verbose)
			}
			if len(suggestions.Combos) > 0 {
				fmt.Printf("Combos (%d)\n\n", len(suggestions.Combos))
				printResults(suggestions.Combos, verbose)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum suggestions")
	cmd.Flags().StringVarP(&mode, "mode", "m", core.ModeBroad, "combo search mode (focused, broad)")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "total price ceiling in USD")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "required synergy tags")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the suggestion cache")
	cmd.Flags().BoolVar(&noNarrative, "no-narrative", false, "skip narrative generation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show factor breakdowns")

	return cmd
}

func readDeckFile(path string) (*core.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck file: %w", err)
	}
	var deck core.Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("parse deck file %s: %w", path, err)
	}
	if len(deck.CardIDs) == 0 {
		return nil, fmt.Errorf("deck file %s has no card_ids", path)
	}
	return &deck, nil
}
