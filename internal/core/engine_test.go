package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

func newTestEngine(retriever Retriever, catalog CatalogStore, gen Generator) *Engine {
	return NewEngine(Deps{
		Retriever: retriever,
		Catalog:   catalog,
		Generator: gen,
	})
}

// =============================================================================
// Test: AnswerQuery
// =============================================================================

func TestEngine_AnswerQuery(t *testing.T) {
	ctx := context.Background()

	ramp := Candidate{Card: Card{ID: "llanowar", Name: "Llanowar Elves", TypeLine: "Creature — Elf Druid", Price: 0.5, Colors: []string{"G"}}, Similarity: 0.9}
	pricy := Candidate{Card: Card{ID: "gaea", Name: "Gaea's Cradle", TypeLine: "Legendary Land", Price: 900, Colors: nil}, Similarity: 0.8}

	t.Run("Given matching cards When queried Then ranked items are returned", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(ramp, pricy)
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)

		// When
		answer, err := engine.AnswerQuery(ctx, QueryRequest{Query: "green ramp"})

		// Then
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if len(answer.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(answer.Items))
		}
		if answer.Items[0].CardIDs[0] != "llanowar" {
			t.Errorf("expected highest-similarity card first, got %v", answer.Items[0].CardIDs)
		}
		if answer.Explanation == "" {
			t.Error("expected a fallback explanation even without a generator")
		}
	})

	t.Run("Given a repeated query When answered Then the cached result is byte-identical and retrieval runs once", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(ramp, pricy)
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)

		// When
		first, err := engine.AnswerQuery(ctx, QueryRequest{Query: "Green  Ramp"})
		if err != nil {
			t.Fatalf("first query failed: %v", err)
		}
		second, err := engine.AnswerQuery(ctx, QueryRequest{Query: "green ramp"})
		if err != nil {
			t.Fatalf("second query failed: %v", err)
		}

		// Then: whitespace and case normalize to the same key
		if retriever.CallCount != 1 {
			t.Errorf("expected 1 retrieval, got %d", retriever.CallCount)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("expected the cached answer to be identical")
		}
		if stats := engine.QueryCacheStats(); stats.Hits != 1 {
			t.Errorf("expected 1 cache hit, got %d", stats.Hits)
		}
	})

	t.Run("Given no_cache When queried twice Then retrieval runs twice", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(ramp)
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)

		// When
		req := QueryRequest{Query: "green ramp", NoCache: true}
		if _, err := engine.AnswerQuery(ctx, req); err != nil {
			t.Fatalf("first query failed: %v", err)
		}
		if _, err := engine.AnswerQuery(ctx, req); err != nil {
			t.Fatalf("second query failed: %v", err)
		}

		// Then
		if retriever.CallCount != 2 {
			t.Errorf("expected 2 retrievals with no_cache, got %d", retriever.CallCount)
		}
	})

	t.Run("Given no matches When queried Then an empty answer is returned without error", func(t *testing.T) {
		// Given
		engine := newTestEngine(NewMockRetriever(), NewMockCatalogStore(), nil)

		// When
		answer, err := engine.AnswerQuery(ctx, QueryRequest{Query: "nonsense"})

		// Then
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if len(answer.Items) != 0 {
			t.Errorf("expected 0 items, got %d", len(answer.Items))
		}
		if answer.Explanation != "No cards in the catalog matched this query." {
			t.Errorf("unexpected empty-result explanation: %q", answer.Explanation)
		}
	})

	t.Run("Given a budget constraint When queried Then over-budget cards never occupy result slots", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(ramp, pricy)
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)

		// When: limit 1 with a budget that rejects the expensive card
		answer, err := engine.AnswerQuery(ctx, QueryRequest{
			Query:       "green ramp",
			Constraints: &Constraints{MaxPrice: 10},
			Limit:       1,
		})

		// Then
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if len(answer.Items) != 1 || answer.Items[0].CardIDs[0] != "llanowar" {
			t.Errorf("expected the affordable card to fill the only slot, got %+v", answer.Items)
		}
	})

	t.Run("Given explicit constraints When queried Then the extraction model is not consulted", func(t *testing.T) {
		// Given
		gen := NewMockGenerator("narrative")
		engine := newTestEngine(NewMockRetriever(ramp), NewMockCatalogStore(), gen)

		// When
		_, err := engine.AnswerQuery(ctx, QueryRequest{
			Query:       "green ramp",
			Constraints: &Constraints{MaxPrice: 10},
			NoNarrative: true,
		})

		// Then
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if gen.CallCount != 0 {
			t.Errorf("expected 0 generator calls, got %d", gen.CallCount)
		}
	})

	t.Run("Given a retrieval failure When queried Then an upstream error surfaces", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(ramp)
		retriever.FailOnCall = 1
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)

		// When
		_, err := engine.AnswerQuery(ctx, QueryRequest{Query: "green ramp"})

		// Then
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("expected UpstreamError, got %v", err)
		}
		if upstream.Service != "retrieval" {
			t.Errorf("expected retrieval service in error, got %s", upstream.Service)
		}
		if !errors.Is(err, ErrMockRetrieval) {
			t.Error("expected the wrapped cause to be preserved")
		}
	})

	t.Run("Given a generator When queried Then the narrative comes from the model", func(t *testing.T) {
		// Given
		gen := NewMockGenerator("These elves generate early mana.")
		engine := newTestEngine(NewMockRetriever(ramp), NewMockCatalogStore(), gen)

		// When
		answer, err := engine.AnswerQuery(ctx, QueryRequest{
			Query:       "green ramp",
			Constraints: &Constraints{MaxPrice: 10},
		})

		// Then
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if answer.Explanation != "These elves generate early mana." {
			t.Errorf("expected generated narrative, got %q", answer.Explanation)
		}
	})

	t.Run("Given a narrative failure When queried Then the answer degrades to canned text", func(t *testing.T) {
		// Given
		gen := NewMockGenerator("unused")
		gen.FailOnCall = 1
		engine := newTestEngine(NewMockRetriever(ramp), NewMockCatalogStore(), gen)

		// When
		answer, err := engine.AnswerQuery(ctx, QueryRequest{
			Query:       "green ramp",
			Constraints: &Constraints{MaxPrice: 10},
		})

		// Then: narrative failure is not a request failure
		if err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if answer.Explanation != "Here are the closest matches from the catalog." {
			t.Errorf("expected fallback text, got %q", answer.Explanation)
		}
	})
}

// =============================================================================
// Test: SuggestForContext
// =============================================================================

func TestEngine_SuggestForContext(t *testing.T) {
	ctx := context.Background()

	altarRec := &storage.CardRecord{ID: "altar", Name: "Ashnod's Altar", OracleText: "Sacrifice a creature: Add two mana.", TypeLine: "Artifact", Price: 8}
	breederRec := &storage.CardRecord{ID: "breeder", Name: "Token Breeder", OracleText: "Create a token whenever a creature dies.", TypeLine: "Creature — Human", Price: 3, Colors: []string{"W"}}

	t.Run("Given a deck When suggested Then in-deck cards are excluded from suggestions", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(altarRec)
		catalog.AddCard(breederRec)
		retriever := NewMockRetriever(
			Candidate{Card: cardFromRecord(altarRec), Similarity: 0.9},
			Candidate{Card: cardFromRecord(breederRec), Similarity: 0.8},
		)
		engine := newTestEngine(retriever, catalog, nil)

		// When
		got, err := engine.SuggestForContext(ctx, SuggestRequest{
			Deck: Deck{CardIDs: []string{"altar"}},
		})

		// Then
		if err != nil {
			t.Fatalf("SuggestForContext failed: %v", err)
		}
		for _, s := range got.Suggestions {
			if s.CardIDs[0] == "altar" {
				t.Error("expected in-deck card to be excluded from suggestions")
			}
		}
		if len(got.Suggestions) != 1 || got.Suggestions[0].CardIDs[0] != "breeder" {
			t.Errorf("expected breeder as the only suggestion, got %+v", got.Suggestions)
		}
	})

	t.Run("Given a deck with combo potential When suggested Then ranked combos are included", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(altarRec)
		catalog.AddCard(breederRec)
		retriever := NewMockRetriever(
			Candidate{Card: cardFromRecord(breederRec), Similarity: 0.8},
		)
		engine := newTestEngine(retriever, catalog, nil)

		// When
		got, err := engine.SuggestForContext(ctx, SuggestRequest{
			Deck: Deck{CardIDs: []string{"altar"}},
		})

		// Then
		if err != nil {
			t.Fatalf("SuggestForContext failed: %v", err)
		}
		if len(got.Combos) != 1 {
			t.Fatalf("expected 1 combo, got %d", len(got.Combos))
		}
		combo := got.Combos[0]
		if len(combo.Breakdown) != 10 {
			t.Errorf("expected a full factor breakdown, got %d factors", len(combo.Breakdown))
		}
		if combo.TotalPrice != 11 {
			t.Errorf("expected total price 11, got %.2f", combo.TotalPrice)
		}
	})

	t.Run("Given an empty deck When suggested Then empty results are returned without error", func(t *testing.T) {
		// Given
		engine := newTestEngine(NewMockRetriever(), NewMockCatalogStore(), nil)

		// When
		got, err := engine.SuggestForContext(ctx, SuggestRequest{})

		// Then
		if err != nil {
			t.Fatalf("SuggestForContext failed: %v", err)
		}
		if len(got.Suggestions) != 0 || len(got.Combos) != 0 {
			t.Errorf("expected empty result, got %+v", got)
		}
	})

	t.Run("Given an unknown deck card When suggested Then NotFoundError surfaces", func(t *testing.T) {
		// Given
		engine := newTestEngine(NewMockRetriever(), NewMockCatalogStore(), nil)

		// When
		_, err := engine.SuggestForContext(ctx, SuggestRequest{
			Deck: Deck{CardIDs: []string{"phantom"}},
		})

		// Then
		if !IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("Given a repeated request When suggested Then the cache serves the second call", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(altarRec)
		retriever := NewMockRetriever(Candidate{Card: cardFromRecord(breederRec), Similarity: 0.8})
		engine := newTestEngine(retriever, catalog, nil)
		req := SuggestRequest{Deck: Deck{CardIDs: []string{"altar"}}}

		// When
		first, err := engine.SuggestForContext(ctx, req)
		if err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		retrievals := retriever.CallCount
		second, err := engine.SuggestForContext(ctx, req)
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}

		// Then
		if retriever.CallCount != retrievals {
			t.Errorf("expected no further retrievals on cached call, got %d extra", retriever.CallCount-retrievals)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("expected the cached suggestions to be identical")
		}
	})

	t.Run("Given a theme When suggested Then theme retrieval merges into the pool", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(altarRec)
		themed := Candidate{Card: Card{ID: "anthem", Name: "Glorious Anthem", TypeLine: "Enchantment", Price: 2}, Similarity: 0.7}
		retriever := &MockRetriever{RetrieveFunc: func(ctx context.Context, query string, limit int, filters map[string]string) ([]Candidate, error) {
			if query == "token swarm" {
				return []Candidate{themed}, nil
			}
			return nil, nil
		}}
		engine := newTestEngine(retriever, catalog, nil)

		// When
		got, err := engine.SuggestForContext(ctx, SuggestRequest{
			Deck: Deck{CardIDs: []string{"altar"}, Theme: "token swarm"},
		})

		// Then
		if err != nil {
			t.Fatalf("SuggestForContext failed: %v", err)
		}
		if len(got.Suggestions) != 1 || got.Suggestions[0].CardIDs[0] != "anthem" {
			t.Errorf("expected the theme-retrieved card to appear, got %+v", got.Suggestions)
		}
	})
}

// =============================================================================
// Test: Card lookup and combo operations
// =============================================================================

func TestEngine_Card(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an ID miss When the name matches Then the name lookup succeeds", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(&storage.CardRecord{ID: "altar", Name: "Ashnod's Altar"})
		engine := newTestEngine(NewMockRetriever(), catalog, nil)

		// When
		card, err := engine.Card(ctx, "Ashnod's Altar")

		// Then
		if err != nil {
			t.Fatalf("Card failed: %v", err)
		}
		if card.ID != "altar" {
			t.Errorf("expected altar, got %s", card.ID)
		}
	})

	t.Run("Given no match When looked up Then NotFoundError is returned", func(t *testing.T) {
		engine := newTestEngine(NewMockRetriever(), NewMockCatalogStore(), nil)

		_, err := engine.Card(ctx, "phantom")
		if !IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestEngine_CombosForCard(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unknown focal card When searched Then NotFoundError surfaces", func(t *testing.T) {
		engine := newTestEngine(NewMockRetriever(), NewMockCatalogStore(), nil)

		_, err := engine.CombosForCard(ctx, "phantom", "", Constraints{}, 10)
		if !IsNotFound(err) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("Given a focal card with a curated combo When searched Then the ranked combo is returned", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(&storage.CardRecord{ID: "altar", Name: "Ashnod's Altar", Price: 8})
		catalog.AddCard(&storage.CardRecord{ID: "breeder", Name: "Token Breeder", Price: 3})
		catalog.AddCombo(&storage.ComboRecord{
			ID:          "combo-1",
			CardIDs:     []string{"altar", "breeder"},
			Tags:        []string{"infinite"},
			Description: "Curated loop.",
			Price:       11,
		})
		engine := newTestEngine(NewMockRetriever(), catalog, nil)

		// When
		ranked, err := engine.CombosForCard(ctx, "altar", "", Constraints{}, 10)

		// Then
		if err != nil {
			t.Fatalf("CombosForCard failed: %v", err)
		}
		if len(ranked) != 1 {
			t.Fatalf("expected 1 combo, got %d", len(ranked))
		}
		if ranked[0].Explanation != "Curated loop." {
			t.Errorf("expected the curated description as explanation, got %q", ranked[0].Explanation)
		}
	})

	t.Run("Given a combo referencing a missing card When ranked Then that combo is dropped", func(t *testing.T) {
		// Given: the combo's second member is absent from the catalog
		catalog := NewMockCatalogStore()
		catalog.AddCard(&storage.CardRecord{ID: "altar", Name: "Ashnod's Altar", Price: 8})
		catalog.AddCombo(&storage.ComboRecord{
			ID:      "combo-1",
			CardIDs: []string{"altar", "ghost"},
		})
		engine := newTestEngine(NewMockRetriever(), catalog, nil)

		// When
		ranked, err := engine.CombosForCard(ctx, "altar", "", Constraints{}, 10)

		// Then
		if err != nil {
			t.Fatalf("CombosForCard failed: %v", err)
		}
		if len(ranked) != 0 {
			t.Errorf("expected the unresolvable combo to be dropped, got %d", len(ranked))
		}
	})
}

func TestEngine_CombosUnderPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("Given curated combos When browsed by budget Then only those under the ceiling return", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(&storage.CardRecord{ID: "a", Name: "A", Price: 2})
		catalog.AddCard(&storage.CardRecord{ID: "b", Name: "B", Price: 3})
		catalog.AddCard(&storage.CardRecord{ID: "c", Name: "C", Price: 90})
		catalog.AddCombo(&storage.ComboRecord{ID: "cheap", CardIDs: []string{"a", "b"}, Price: 5})
		catalog.AddCombo(&storage.ComboRecord{ID: "costly", CardIDs: []string{"a", "c"}, Price: 92})
		engine := newTestEngine(NewMockRetriever(), catalog, nil)

		// When
		ranked, err := engine.CombosUnderPrice(ctx, 10, 10)

		// Then
		if err != nil {
			t.Fatalf("CombosUnderPrice failed: %v", err)
		}
		if len(ranked) != 1 {
			t.Fatalf("expected 1 combo under budget, got %d", len(ranked))
		}
		if ranked[0].TotalPrice != 5 {
			t.Errorf("expected the $5 combo, got $%.2f", ranked[0].TotalPrice)
		}
	})
}

// =============================================================================
// Test: Stats and cache management
// =============================================================================

func TestEngine_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("Given engine activity When Stats is called Then cache accounting and catalog size report", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCard(&storage.CardRecord{ID: "a", Name: "A"})
		engine := newTestEngine(NewMockRetriever(), catalog, nil)

		if _, err := engine.AnswerQuery(ctx, QueryRequest{Query: "q"}); err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}
		if _, err := engine.AnswerQuery(ctx, QueryRequest{Query: "q"}); err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}

		// When
		stats, err := engine.Stats(ctx)

		// Then
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.CatalogCards != 1 {
			t.Errorf("expected 1 catalog card, got %d", stats.CatalogCards)
		}
		if stats.QueryCache.Hits != 1 || stats.QueryCache.Misses != 1 {
			t.Errorf("expected 1 hit / 1 miss, got %d/%d", stats.QueryCache.Hits, stats.QueryCache.Misses)
		}
	})

	t.Run("Given cached answers When ClearCaches is called Then the next query retrieves again", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever()
		engine := newTestEngine(retriever, NewMockCatalogStore(), nil)
		if _, err := engine.AnswerQuery(ctx, QueryRequest{Query: "q"}); err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}

		// When
		engine.ClearCaches()
		if _, err := engine.AnswerQuery(ctx, QueryRequest{Query: "q"}); err != nil {
			t.Fatalf("AnswerQuery failed: %v", err)
		}

		// Then
		if retriever.CallCount != 2 {
			t.Errorf("expected retrieval after cache clear, got %d calls", retriever.CallCount)
		}
	})
}
