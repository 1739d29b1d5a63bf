package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printResults(results []core.RankedResult, verbose bool) {
	for i, r := range results {
		names := make([]string, 0, len(r.Cards))
		for _, c := range r.Cards {
			names = append(names, c.Name)
		}
		fmt.Printf("%d. %s  (score: %.3f, $%.2f)\n", i+1, strings.Join(names, " + "), r.Score, r.TotalPrice)

		var meta []string
		if r.Source != "" {
			meta = append(meta, r.Source)
		}
		if len(r.SynergyTags) > 0 {
			meta = append(meta, "synergy: "+strings.Join(r.SynergyTags, ", "))
		}
		if len(meta) > 0 {
			fmt.Printf("   %s\n", strings.Join(meta, " | "))
		}

		if verbose {
			for _, f := range r.Breakdown {
				if f.Contribution == 0 {
					continue
				}
				fmt.Printf("   %-14s %+.3f\n", f.Name+":", f.Contribution)
			}
		}

		if r.Explanation != "" {
			fmt.Printf("   %s\n", wrapIndent(r.Explanation, "   "))
		}
		fmt.Println()
	}
}

func wrapIndent(text, indent string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n"+indent)
}

func parseConstraintFlags(maxPrice float64, tags []string, typeFilter, sortBy string) *core.Constraints {
	cons := core.Constraints{
		MaxPrice:     maxPrice,
		RequiredTags: tags,
		TypeFilter:   typeFilter,
		SortBy:       sortBy,
	}
	if cons.Empty() {
		return nil
	}
	return &cons
}
