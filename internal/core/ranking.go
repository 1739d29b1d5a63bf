package core

import (
	"sort"
	"strings"
)

// The ten ranking factors, in breakdown order.
const (
	FactorThemeFit     = "theme_fit"
	FactorDeckSynergy  = "deck_synergy"
	FactorBudgetFit    = "budget_fit"
	FactorPowerLevel   = "power_level"
	FactorPieceCount   = "piece_count"
	FactorAssemblyCost = "assembly_cost"
	FactorResilience   = "resilience"
	FactorInfinite     = "infinite_bonus"
	FactorPopularity   = "popularity"
	FactorQuality      = "quality"
)

// RankWeights are the per-factor multipliers. Each raw factor is normalized
// to [0, 1] before weighting so no single signal can dominate.
type RankWeights struct {
	ThemeFit     float64 `json:"theme_fit"`
	DeckSynergy  float64 `json:"deck_synergy"`
	BudgetFit    float64 `json:"budget_fit"`
	PowerLevel   float64 `json:"power_level"`
	PieceCount   float64 `json:"piece_count"`
	AssemblyCost float64 `json:"assembly_cost"`
	Resilience   float64 `json:"resilience"`
	Infinite     float64 `json:"infinite_bonus"`
	Popularity   float64 `json:"popularity"`
	Quality      float64 `json:"quality"`
}

// DefaultRankWeights returns the tuned default weighting.
func DefaultRankWeights() RankWeights {
	return RankWeights{
		ThemeFit:     3.0,
		DeckSynergy:  2.0,
		BudgetFit:    1.5,
		PowerLevel:   2.0,
		PieceCount:   1.0,
		AssemblyCost: 1.0,
		Resilience:   1.0,
		Infinite:     2.5,
		Popularity:   1.0,
		Quality:      0.5,
	}
}

// DeckProfile summarizes a deck for synergy scoring.
type DeckProfile struct {
	Colors map[string]bool
	Tags   map[string]bool
}

// BuildDeckProfile collects the color identity and tag set of a deck.
func BuildDeckProfile(cards []Card) *DeckProfile {
	p := &DeckProfile{
		Colors: make(map[string]bool),
		Tags:   make(map[string]bool),
	}
	for _, card := range cards {
		for _, c := range card.Colors {
			p.Colors[strings.ToUpper(c)] = true
		}
		for _, t := range card.Tags {
			p.Tags[strings.ToLower(t)] = true
		}
	}
	return p
}

// Ranker scores candidates with the fixed ten-factor weighted sum and
// produces a fully deterministic total order.
type Ranker struct {
	weights RankWeights
}

// NewRanker creates a ranker. Zero-valued weights fall back to defaults.
func NewRanker(weights RankWeights) *Ranker {
	if weights == (RankWeights{}) {
		weights = DefaultRankWeights()
	}
	return &Ranker{weights: weights}
}

// Rank fills Score and Breakdown for every result, sorts descending, and
// truncates to limit (after sorting, never before). profile may be nil for
// query-only requests. Ties break by lower total price, then fewer pieces,
// then lexical card-ID order.
func (r *Ranker) Rank(results []RankedResult, profile *DeckProfile, cons Constraints, limit int) []RankedResult {
	for i := range results {
		r.score(&results[i], profile, cons)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TotalPrice != b.TotalPrice {
			return a.TotalPrice < b.TotalPrice
		}
		if len(a.CardIDs) != len(b.CardIDs) {
			return len(a.CardIDs) < len(b.CardIDs)
		}
		return strings.Join(a.CardIDs, "|") < strings.Join(b.CardIDs, "|")
	})

	if cons.SortBy == "price" {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].TotalPrice < results[j].TotalPrice
		})
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (r *Ranker) score(res *RankedResult, profile *DeckProfile, cons Constraints) {
	factors := [10]FactorScore{
		{Name: FactorThemeFit, Contribution: r.weights.ThemeFit * themeFit(res)},
		{Name: FactorDeckSynergy, Contribution: r.weights.DeckSynergy * deckSynergy(res, profile)},
		{Name: FactorBudgetFit, Contribution: r.weights.BudgetFit * budgetFit(res, cons)},
		{Name: FactorPowerLevel, Contribution: r.weights.PowerLevel * powerLevel(res)},
		{Name: FactorPieceCount, Contribution: r.weights.PieceCount * pieceCount(res)},
		{Name: FactorAssemblyCost, Contribution: r.weights.AssemblyCost * assemblyCost(res)},
		{Name: FactorResilience, Contribution: r.weights.Resilience * resilience(res)},
		{Name: FactorInfinite, Contribution: r.weights.Infinite * infiniteBonus(res)},
		{Name: FactorPopularity, Contribution: r.weights.Popularity * popularity(res)},
		{Name: FactorQuality, Contribution: r.weights.Quality * quality(res)},
	}

	res.Breakdown = factors[:]
	res.Score = 0
	for _, f := range factors {
		res.Score += f.Contribution
	}
}

// themeFit is the semantic similarity signal, clamped to [0, 1].
func themeFit(res *RankedResult) float64 {
	return clamp01(res.Similarity)
}

// deckSynergy measures color and tag overlap with the deck profile.
func deckSynergy(res *RankedResult, profile *DeckProfile) float64 {
	if profile == nil {
		return 0
	}

	var colorTotal, colorMatched int
	for _, card := range res.Cards {
		for _, c := range card.Colors {
			colorTotal++
			if profile.Colors[strings.ToUpper(c)] {
				colorMatched++
			}
		}
	}

	colorScore := 0.5 // colorless pieces fit any deck
	if colorTotal > 0 {
		colorScore = float64(colorMatched) / float64(colorTotal)
	}

	tagScore := 0.0
	for _, card := range res.Cards {
		for _, t := range card.Tags {
			if profile.Tags[strings.ToLower(t)] {
				tagScore = 1.0
			}
		}
	}

	return 0.7*colorScore + 0.3*tagScore
}

// budgetFit rewards closeness under the declared ceiling and is zero when
// the ceiling is exceeded. Without a declared budget it is neutral.
func budgetFit(res *RankedResult, cons Constraints) float64 {
	if cons.MaxPrice <= 0 {
		return 0.5
	}
	if res.TotalPrice > cons.MaxPrice {
		return 0
	}
	return 1 - res.TotalPrice/cons.MaxPrice
}

// tagPower maps curated mechanic tags to a power estimate.
var tagPower = map[string]float64{
	"infinite": 1.0,
	"win":      0.9,
	"wincon":   0.9,
	"tutor":    0.7,
	"engine":   0.6,
	"lock":     0.6,
	"value":    0.4,
	"ramp":     0.4,
}

func powerLevel(res *RankedResult) float64 {
	best := 0.3 // baseline for anything that reached candidacy
	consider := func(tag string) {
		if p, ok := tagPower[strings.ToLower(tag)]; ok && p > best {
			best = p
		}
	}
	for _, card := range res.Cards {
		for _, t := range card.Tags {
			consider(t)
		}
	}
	for _, t := range res.SynergyTags {
		consider(t)
	}
	return best
}

// pieceCount rewards structural simplicity: fewer required pieces.
func pieceCount(res *RankedResult) float64 {
	n := len(res.CardIDs)
	if n <= 1 {
		return 1
	}
	return 1 / float64(n-1)
}

// assemblyCost rewards cheap total piece cost on a soft curve.
func assemblyCost(res *RankedResult) float64 {
	return 1 / (1 + res.TotalPrice/25)
}

// resilience penalizes single points of failure: creature pieces die to
// removal, so the fraction of non-creature pieces is the signal.
func resilience(res *RankedResult) float64 {
	if len(res.Cards) == 0 {
		return 0
	}
	fragile := 0
	for _, card := range res.Cards {
		if strings.Contains(strings.ToLower(card.TypeLine), "creature") {
			fragile++
		}
	}
	return 1 - float64(fragile)/float64(len(res.Cards))
}

// infiniteBonus rewards degenerate, game-ending categorization.
func infiniteBonus(res *RankedResult) float64 {
	for _, t := range res.SynergyTags {
		if strings.EqualFold(t, "infinite") {
			return 1
		}
	}
	for _, card := range res.Cards {
		for _, t := range card.Tags {
			if strings.EqualFold(t, "infinite") {
				return 1
			}
		}
	}
	return 0
}

// popularity converts best play-rate rank among pieces into [0, 1];
// rank 0 means unknown and scores nothing.
func popularity(res *RankedResult) float64 {
	best := 0
	for _, card := range res.Cards {
		if card.Popularity > 0 && (best == 0 || card.Popularity < best) {
			best = card.Popularity
		}
	}
	if best == 0 {
		return 0
	}
	return 1 / (1 + float64(best)/1000)
}

// quality is the catch-all adjustment: curated database combos are trusted
// over heuristically derived ones.
func quality(res *RankedResult) float64 {
	if res.Source == SourceDatabase {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
