package core

import (
	"context"
	"testing"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

func TestExtractSynergyKeywords(t *testing.T) {
	t.Run("Given oracle text When keywords extracted Then only vocabulary terms are found", func(t *testing.T) {
		text := "Untap target artifact. Create a 1/1 token. Then sacrifice it."
		got := extractSynergyKeywords(text)

		want := map[string]bool{"untap": true, "tap": true, "token": true, "sacrifice": true}
		for _, kw := range got {
			if !want[kw] {
				t.Errorf("unexpected keyword %q", kw)
			}
		}
		for kw := range want {
			found := false
			for _, g := range got {
				if g == kw {
					found = true
				}
			}
			if !found {
				t.Errorf("expected keyword %q, got %v", kw, got)
			}
		}
	})

	t.Run("Given text with no vocabulary terms When extracted Then nil is returned", func(t *testing.T) {
		if got := extractSynergyKeywords("Flying, vigilance."); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestKeywordsCompatible(t *testing.T) {
	t.Run("Given a listed pair When checked in either order Then both match with the same tags", func(t *testing.T) {
		ab := keywordsCompatible([]string{"untap"}, []string{"tap"})
		ba := keywordsCompatible([]string{"tap"}, []string{"untap"})

		if len(ab) == 0 || len(ba) == 0 {
			t.Fatal("expected untap/tap to be compatible in both orders")
		}
		if len(ab) != len(ba) {
			t.Errorf("expected symmetric results, got %v vs %v", ab, ba)
		}
	})

	t.Run("Given unrelated keywords When checked Then nil is returned", func(t *testing.T) {
		if got := keywordsCompatible([]string{"landfall"}, []string{"lifelink"}); got != nil {
			t.Errorf("expected nil for unrelated keywords, got %v", got)
		}
	})

	t.Run("Given matched tags When returned Then they are sorted", func(t *testing.T) {
		tags := keywordsCompatible([]string{"token", "sacrifice"}, []string{"dies"})
		for i := 1; i < len(tags); i++ {
			if tags[i-1] > tags[i] {
				t.Errorf("expected sorted tags, got %v", tags)
			}
		}
	})
}

func TestComboSearcher_FindForCard(t *testing.T) {
	ctx := context.Background()

	altar := Card{ID: "altar", Name: "Ashnod's Altar", OracleText: "Sacrifice a creature: Add two mana.", Price: 8}
	breeder := Card{ID: "breeder", Name: "Token Breeder", OracleText: "Create a token whenever a creature dies.", Price: 3}
	vanilla := Card{ID: "vanilla", Name: "Plain Bear", OracleText: "", Price: 0.2}

	newSearcher := func(catalog *MockCatalogStore, retriever *MockRetriever) *ComboSearcher {
		return NewComboSearcher(retriever, catalog, DefaultConfig(), nil)
	}

	t.Run("Given a curated combo and a semantic duplicate When searched Then the database entry wins", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		catalog.AddCombo(&storage.ComboRecord{
			ID:          "combo-1",
			CardIDs:     []string{"altar", "breeder"},
			Tags:        []string{"infinite"},
			Description: "Curated loop.",
			Price:       11,
		})
		retriever := NewMockRetriever(Candidate{Card: breeder, Similarity: 0.9})

		// When
		found, err := newSearcher(catalog, retriever).FindForCard(ctx, altar, ModeBroad, nil)

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected 1 deduplicated combo, got %d", len(found))
		}
		if found[0].Source != SourceDatabase {
			t.Errorf("expected database source to win, got %s", found[0].Source)
		}
		if found[0].Description != "Curated loop." {
			t.Errorf("expected curated description to survive dedup")
		}
	})

	t.Run("Given compatible oracle text When searched Then a semantic pair is found", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		retriever := NewMockRetriever(Candidate{Card: breeder, Similarity: 0.9})

		// When
		found, err := newSearcher(catalog, retriever).FindForCard(ctx, altar, ModeBroad, nil)

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected 1 semantic combo, got %d", len(found))
		}
		if found[0].Source != SourceSemantic {
			t.Errorf("expected semantic source, got %s", found[0].Source)
		}
		// Identity sets are sorted regardless of discovery order.
		if found[0].CardIDs[0] != "altar" || found[0].CardIDs[1] != "breeder" {
			t.Errorf("expected sorted card IDs, got %v", found[0].CardIDs)
		}
	})

	t.Run("Given a focal card with no oracle text When searched Then retrieval is skipped", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		retriever := NewMockRetriever()

		// When
		found, err := newSearcher(catalog, retriever).FindForCard(ctx, vanilla, ModeBroad, nil)

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("expected no combos, got %d", len(found))
		}
		if retriever.CallCount != 0 {
			t.Errorf("expected retrieval to be skipped, got %d calls", retriever.CallCount)
		}
	})

	t.Run("Given no matches When searched Then an empty result is returned without error", func(t *testing.T) {
		// Given
		catalog := NewMockCatalogStore()
		unrelated := Card{ID: "fatty", Name: "Big Beast", OracleText: "Trample, haste."}
		retriever := NewMockRetriever(Candidate{Card: unrelated, Similarity: 0.4})

		// When
		found, err := newSearcher(catalog, retriever).FindForCard(ctx, altar, ModeBroad, nil)

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("expected empty result, got %d", len(found))
		}
	})

	t.Run("Given focused mode When the pool exceeds the cap Then only the top candidates are paired", func(t *testing.T) {
		// Given: a config with a pool cap of 1 and two compatible candidates
		cfg := DefaultConfig()
		cfg.FocusedPoolSize = 1
		other := Card{ID: "zz-other", Name: "Other Breeder", OracleText: "Create a token whenever a creature dies."}
		retriever := NewMockRetriever(
			Candidate{Card: breeder, Similarity: 0.9},
			Candidate{Card: other, Similarity: 0.8},
		)
		searcher := NewComboSearcher(retriever, NewMockCatalogStore(), cfg, nil)

		// When
		found, err := searcher.FindForCard(ctx, altar, ModeFocused, nil)

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected the focused cap to limit pairing to 1 combo, got %d", len(found))
		}
		if found[0].CardIDs[1] != "breeder" {
			t.Errorf("expected the higher-ranked candidate to survive the cap, got %v", found[0].CardIDs)
		}
	})

	t.Run("Given repeated searches for the same card When searched Then the pool is retrieved once", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(Candidate{Card: breeder, Similarity: 0.9})
		searcher := newSearcher(NewMockCatalogStore(), retriever)

		// When
		if _, err := searcher.FindForCard(ctx, altar, ModeBroad, nil); err != nil {
			t.Fatalf("first search failed: %v", err)
		}
		if _, err := searcher.FindForCard(ctx, altar, ModeBroad, nil); err != nil {
			t.Fatalf("second search failed: %v", err)
		}

		// Then
		if retriever.CallCount != 1 {
			t.Errorf("expected 1 retrieval (pool cached), got %d", retriever.CallCount)
		}
		if stats := searcher.PoolStats(); stats.Hits != 1 {
			t.Errorf("expected 1 pool cache hit, got %d", stats.Hits)
		}
	})

	t.Run("Given an excluded candidate When searched Then it is not paired", func(t *testing.T) {
		// Given
		retriever := NewMockRetriever(Candidate{Card: breeder, Similarity: 0.9})
		searcher := newSearcher(NewMockCatalogStore(), retriever)

		// When
		found, err := searcher.FindForCard(ctx, altar, ModeBroad, map[string]bool{"breeder": true})

		// Then
		if err != nil {
			t.Fatalf("FindForCard failed: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("expected excluded candidate to be skipped, got %d combos", len(found))
		}
	})
}

func TestComboSearcher_FindForDeck(t *testing.T) {
	ctx := context.Background()

	t.Run("Given two deck cards finding the same pair When searched Then one entry survives", func(t *testing.T) {
		// Given: both cards retrieve each other and match
		altar := Card{ID: "altar", Name: "Ashnod's Altar", OracleText: "Sacrifice a creature: Add two mana."}
		breeder := Card{ID: "breeder", Name: "Token Breeder", OracleText: "Create a token whenever a creature dies."}
		retriever := &MockRetriever{RetrieveFunc: func(ctx context.Context, query string, limit int, filters map[string]string) ([]Candidate, error) {
			return []Candidate{
				{Card: altar, Similarity: 0.9},
				{Card: breeder, Similarity: 0.9},
			}, nil
		}}
		searcher := NewComboSearcher(retriever, NewMockCatalogStore(), DefaultConfig(), nil)

		// When
		found, err := searcher.FindForDeck(ctx, []Card{altar, breeder}, ModeBroad)

		// Then
		if err != nil {
			t.Fatalf("FindForDeck failed: %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected the duplicate pair to collapse to 1, got %d", len(found))
		}
	})
}

func TestPreferDatabase(t *testing.T) {
	t.Run("Given semantic then database duplicates When collapsed Then the database entry replaces in place", func(t *testing.T) {
		combos := []ComboCandidate{
			{CardIDs: []string{"a", "b"}, Source: SourceSemantic},
			{CardIDs: []string{"c", "d"}, Source: SourceSemantic},
			{CardIDs: []string{"a", "b"}, Source: SourceDatabase, Description: "curated"},
		}

		out := preferDatabase(combos)

		if len(out) != 2 {
			t.Fatalf("expected 2 combos, got %d", len(out))
		}
		if out[0].Source != SourceDatabase || out[0].Description != "curated" {
			t.Errorf("expected the database entry to replace the semantic one in place, got %+v", out[0])
		}
	})
}
