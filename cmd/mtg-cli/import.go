package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// importCard mirrors common card-export JSON. Tags and popularity are
// optional; prices default to zero when the export has none.
type importCard struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OracleText string   `json:"oracle_text"`
	TypeLine   string   `json:"type_line"`
	ManaValue  float64  `json:"mana_value"`
	Colors     []string `json:"colors"`
	Tags       []string `json:"tags"`
	Price      float64  `json:"price"`
	Popularity int      `json:"popularity"`
}

type importCombo struct {
	ID          string   `json:"id"`
	CardIDs     []string `json:"card_ids"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
}

func importCmd() *cobra.Command {
	var (
		combosPath string
		skipEmbed  bool
	)

	cmd := &cobra.Command{
		Use:   "import [cards.json]",
		Short: "Import cards (and optionally combos) into the catalog",
		Long: `Import a JSON array of cards into the local catalog, embedding each
card's text for semantic retrieval unless --skip-embed is set.

Examples:
  mtg-cli import cards.json
  mtg-cli import cards.json --combos combos.json
  mtg-cli import cards.json --skip-embed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := readImportCards(args[0])
			if err != nil {
				return err
			}

			var combos []importCombo
			if combosPath != "" {
				combos, err = readImportCombos(combosPath)
				if err != nil {
					return err
				}
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

			bar := progressbar.NewOptions(len(cards),
				progressbar.OptionSetDescription("importing cards"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var embedFailures int
			for _, c := range cards {
				if c.ID == "" {
					c.ID = storage.GenerateID()
				}
				rec := &storage.CardRecord{
					ID:         c.ID,
					Name:       c.Name,
					OracleText: c.OracleText,
					TypeLine:   c.TypeLine,
					ManaValue:  c.ManaValue,
					Colors:     c.Colors,
					Tags:       c.Tags,
					Price:      c.Price,
					Popularity: c.Popularity,
				}
				if err := app.Catalog.SaveCard(rec); err != nil {
					return fmt.Errorf("save card %s: %w", c.Name, err)
				}

				if !skipEmbed {
					vec, err := app.Embed.EmbedDocument(ctx, embedText(rec))
					if err != nil {
						embedFailures++
						app.Logger.Warn("embedding failed, card stays keyword-only",
							zap.String("card", c.Name), zap.Error(err))
						_ = bar.Add(1)
						continue
					}
					if err := app.Vectors.Upsert(ctx, rec.ID, vec); err != nil {
						return fmt.Errorf("store vector for %s: %w", c.Name, err)
					}
				}
				_ = bar.Add(1)
			}

			for _, cb := range combos {
				rec := &storage.ComboRecord{
					ID:          cb.ID,
					CardIDs:     cb.CardIDs,
					Tags:        cb.Tags,
					Description: cb.Description,
					Price:       cb.Price,
				}
				if err := app.Catalog.SaveCombo(rec); err != nil {
					return fmt.Errorf("save combo %s: %w", cb.ID, err)
				}
			}

			fmt.Printf("Imported %d cards", len(cards))
			if len(combos) > 0 {
				fmt.Printf(" and %d combos", len(combos))
			}
			if embedFailures > 0 {
				fmt.Printf(" (%d embedding failures)", embedFailures)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&combosPath, "combos", "", "JSON file of recorded combos to import")
	cmd.Flags().BoolVar(&skipEmbed, "skip-embed", false, "skip embedding; cards are keyword-searchable only")

	return cmd
}

// embedText is the card's indexable surface: name, type line, and rules
// text, same shape the retriever's queries are matched against.
func embedText(rec *storage.CardRecord) string {
	parts := []string{rec.Name, rec.TypeLine, rec.OracleText}
	if len(rec.Tags) > 0 {
		parts = append(parts, strings.Join(rec.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

func readImportCards(path string) ([]importCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cards file: %w", err)
	}
	var cards []importCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("parse cards file %s: %w", path, err)
	}
	return cards, nil
}

func readImportCombos(path string) ([]importCombo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read combos file: %w", err)
	}
	var combos []importCombo
	if err := json.Unmarshal(data, &combos); err != nil {
		return nil, fmt.Errorf("parse combos file %s: %w", path, err)
	}
	return combos, nil
}
