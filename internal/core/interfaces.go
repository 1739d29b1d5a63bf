package core

import (
	"context"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// Retriever converts a query into an ordered list of candidate cards with
// similarity scores, optionally constrained by metadata filters.
// Implementations: retrieval.HybridRetriever (vector KNN + FTS5 + RRF)
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int, filters map[string]string) ([]Candidate, error)
}

// CatalogStore looks up cards and curated combos.
// Implementations: storage.CatalogStore (SQLite)
type CatalogStore interface {
	GetCard(id string) (*storage.CardRecord, error)
	FindCardByName(name string) (*storage.CardRecord, error)
	FindRecordedCombos(cardID string) ([]*storage.ComboRecord, error)
	FindCombosByPriceCeiling(maxPrice float64) ([]*storage.ComboRecord, error)
	CountCards() (int, error)
}

// Generator produces text from the language-model collaborator. Both
// constraint extraction and narrative explanation go through it; the
// GenerateChecked form retries bounded times when check rejects the
// response content, while hard service errors fail immediately.
// Implementations: llm.Caller wrapping llm.GeminiClient
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	GenerateChecked(ctx context.Context, prompt string, maxTokens int, check func(string) error) (string, error)
}

// cardFromRecord projects a storage record onto the engine's value type.
func cardFromRecord(r *storage.CardRecord) Card {
	return Card{
		ID:         r.ID,
		Name:       r.Name,
		OracleText: r.OracleText,
		TypeLine:   r.TypeLine,
		ManaValue:  r.ManaValue,
		Colors:     r.Colors,
		Tags:       r.Tags,
		Price:      r.Price,
		Popularity: r.Popularity,
	}
}
