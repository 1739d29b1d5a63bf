// Package retrieval implements the semantic candidate retriever: hybrid
// vector similarity + keyword search with reciprocal rank fusion over the
// card catalog.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// Embedder turns text into vectors.
// Implementations: embedding.LocalClient, embedding.OpenAIClient
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorIndex searches stored card embeddings.
// Implementations: storage.VectorStore
type VectorIndex interface {
	Search(ctx context.Context, queryVec []float32, limit int) []storage.ScoredCard
}

// KeywordSearcher performs full-text search over card text.
// Implementations: storage.CatalogStore (FTS5)
type KeywordSearcher interface {
	KeywordSearch(query string, limit int) ([]storage.KeywordResult, error)
}

// CardLookup hydrates card metadata for fused results.
// Implementations: storage.CatalogStore
type CardLookup interface {
	GetCard(id string) (*storage.CardRecord, error)
}

// HybridRetriever implements core.Retriever: it embeds the query, runs
// vector and keyword search, fuses both rankings with RRF, hydrates card
// metadata, and applies metadata filters.
type HybridRetriever struct {
	embedder Embedder
	vectors  VectorIndex
	keywords KeywordSearcher
	catalog  CardLookup
	logger   *zap.Logger
}

// NewHybridRetriever creates a retriever. keywords may be nil to disable
// the keyword leg.
func NewHybridRetriever(embedder Embedder, vectors VectorIndex, keywords KeywordSearcher, catalog CardLookup, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		catalog:  catalog,
		logger:   logger,
	}
}

// Retrieve returns up to limit candidates ordered by fused relevance.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, limit int, filters map[string]string) ([]core.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorResults := r.vectors.Search(ctx, queryVec, limit)

	var keywordResults []storage.KeywordResult
	if r.keywords != nil {
		keywordResults, err = r.keywords.KeywordSearch(query, limit)
		if err != nil {
			// Vector results alone are still valid.
			r.logger.Warn("keyword search failed", zap.String("query", query), zap.Error(err))
			keywordResults = nil
		}
	}

	fused := reciprocalRankFusion(vectorResults, keywordResults, rrfK)

	candidates := make([]core.Candidate, 0, len(fused))
	for _, f := range fused {
		rec, err := r.catalog.GetCard(f.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// Stale vector for a deleted card; skip.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrate card %s: %w", f.ID, err)
		}

		card := core.Card{
			ID:         rec.ID,
			Name:       rec.Name,
			OracleText: rec.OracleText,
			TypeLine:   rec.TypeLine,
			ManaValue:  rec.ManaValue,
			Colors:     rec.Colors,
			Tags:       rec.Tags,
			Price:      rec.Price,
			Popularity: rec.Popularity,
		}
		if !matchesFilters(card, filters) {
			continue
		}

		candidates = append(candidates, core.Candidate{Card: card, Similarity: f.Score})
		if len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}

func matchesFilters(card core.Card, filters map[string]string) bool {
	for key, value := range filters {
		switch key {
		case "type":
			if !strings.Contains(strings.ToLower(card.TypeLine), strings.ToLower(value)) {
				return false
			}
		case "color":
			found := false
			for _, c := range card.Colors {
				if strings.EqualFold(c, value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
