package retrieval

import (
	"sort"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// rrfK is the standard reciprocal rank fusion constant.
const rrfK = 60

// reciprocalRankFusion merges vector and keyword rankings. Each list
// contributes 1/(k+rank) to a card's fused score, so cards ranked well in
// both lists bubble up without either score scale dominating. Ties break
// by ID so fusion output is deterministic.
func reciprocalRankFusion(vectorResults []storage.ScoredCard, keywordResults []storage.KeywordResult, k float64) []storage.ScoredCard {
	scores := make(map[string]float64)

	for rank, r := range vectorResults {
		scores[r.ID] += 1.0 / (k + float64(rank+1))
	}
	for rank, r := range keywordResults {
		scores[r.ID] += 1.0 / (k + float64(rank+1))
	}

	merged := make([]storage.ScoredCard, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, storage.ScoredCard{ID: id, Score: score})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	return merged
}
