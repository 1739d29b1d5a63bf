package core

// Combo candidate sources
const (
	SourceDatabase = "database" // curated combo database
	SourceSemantic = "semantic" // derived from keyword co-occurrence
)

// Combo search breadth modes
const (
	ModeFocused = "focused" // cap the candidate pool before pairing
	ModeBroad   = "broad"   // exhaustive pairing, used for deck-wide search
)

// Config holds tunable knobs for the suggestion engine.
type Config struct {
	// RetrieveLimit is how many candidates semantic retrieval returns per
	// query before filtering.
	RetrieveLimit int

	// FocusedPoolSize caps the candidate pool in focused combo search.
	FocusedPoolSize int

	// QueryCacheSize, SuggestCacheSize, PoolCacheSize, and PairCacheSize
	// bound the per-concern LRU caches. Zero means the default capacity.
	QueryCacheSize   int
	SuggestCacheSize int
	PoolCacheSize    int
	PairCacheSize    int

	// MaxAttempts bounds narrative generation retries on content-check
	// failures.
	MaxAttempts int

	// ExplainTopN is how many top-ranked combos get a generated narrative.
	// ExplainWorkers bounds concurrent narrative calls.
	ExplainTopN    int
	ExplainWorkers int

	Weights RankWeights
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RetrieveLimit:    50,
		FocusedPoolSize:  20,
		QueryCacheSize:   128,
		SuggestCacheSize: 128,
		PoolCacheSize:    256,
		PairCacheSize:    4096,
		MaxAttempts:      3,
		ExplainTopN:      5,
		ExplainWorkers:   3,
		Weights:          DefaultRankWeights(),
	}
}

// Card is a read-only projection of catalog metadata used for filtering and
// ranking.
type Card struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OracleText string   `json:"oracle_text,omitempty"`
	TypeLine   string   `json:"type_line,omitempty"`
	ManaValue  float64  `json:"mana_value"`
	Colors     []string `json:"colors,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Price      float64  `json:"price"`
	Popularity int      `json:"popularity,omitempty"` // play-rate rank, lower is more played
}

// Deck is a user-supplied collection of cards to suggest against.
type Deck struct {
	Name    string   `json:"name,omitempty"`
	CardIDs []string `json:"card_ids"`
	Theme   string   `json:"theme,omitempty"` // optional free-text theme summary
}

// Candidate is a retrieved card with its semantic similarity to the query.
type Candidate struct {
	Card       Card    `json:"card"`
	Similarity float64 `json:"similarity"`
}

// ComboCandidate is an unranked multi-card synergy candidate. CardIDs is a
// duplicate-free identity set kept sorted so candidates dedup by value.
type ComboCandidate struct {
	CardIDs     []string `json:"card_ids"`
	Tags        []string `json:"tags,omitempty"` // matched synergy keywords
	Source      string   `json:"source"`         // database or semantic
	Description string   `json:"description,omitempty"`
}

// FactorScore is one weighted contribution to a ranked result's score.
type FactorScore struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// RankedResult is a scored candidate (single card or combo) with its full
// factor breakdown. Breakdown always carries all ten factors, including
// zero-valued ones.
type RankedResult struct {
	CardIDs     []string      `json:"card_ids"`
	Cards       []Card        `json:"cards"`
	Source      string        `json:"source,omitempty"`
	SynergyTags []string      `json:"synergy_tags,omitempty"`
	Similarity  float64       `json:"similarity,omitempty"`
	TotalPrice  float64       `json:"total_price"`
	Score       float64       `json:"score"`
	Breakdown   []FactorScore `json:"breakdown"`
	Explanation string        `json:"explanation,omitempty"`
}

// QueryRequest asks the engine a free-text question.
type QueryRequest struct {
	Query string `json:"query"`

	// Constraints overrides free-text constraint extraction when non-nil.
	Constraints *Constraints `json:"constraints,omitempty"`

	Limit       int  `json:"limit,omitempty"`
	NoCache     bool `json:"no_cache,omitempty"`
	NoNarrative bool `json:"no_narrative,omitempty"`
}

// Answer is the result of a free-text query.
type Answer struct {
	Items       []RankedResult `json:"items"`
	Explanation string         `json:"explanation,omitempty"`
}

// SuggestRequest asks for suggestions and combos for a deck context.
type SuggestRequest struct {
	Deck        Deck        `json:"deck"`
	Constraints Constraints `json:"constraints"`
	Mode        string      `json:"mode,omitempty"` // defaults to broad
	Limit       int         `json:"limit,omitempty"`
	NoCache     bool        `json:"no_cache,omitempty"`
	NoNarrative bool        `json:"no_narrative,omitempty"`
}

// Suggestions is the result of a deck-context request.
type Suggestions struct {
	Suggestions []RankedResult `json:"suggestions"`
	Combos      []RankedResult `json:"combos"`
}
