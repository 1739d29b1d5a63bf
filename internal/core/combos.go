package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/cache"
)

// synergyVocabulary is the fixed set of mechanical keywords extracted from
// oracle text for pair matching.
var synergyVocabulary = []string{
	"untap",
	"tap",
	"copy",
	"token",
	"sacrifice",
	"dies",
	"graveyard",
	"mill",
	"return",
	"enters the battlefield",
	"exile",
	"blink",
	"draw",
	"discard",
	"counter target",
	"proliferate",
	"+1/+1 counter",
	"landfall",
	"land",
	"cost less",
	"cast",
	"storm",
	"lifelink",
	"gain life",
	"infinite",
}

// synergyTable records which keyword pairs indicate combo compatibility.
// Checked symmetrically: (a, b) matches if b is listed under a or a under b.
var synergyTable = map[string][]string{
	"untap":                  {"tap", "cast", "cost less"},
	"copy":                   {"cast", "storm", "token"},
	"token":                  {"sacrifice", "enters the battlefield", "dies"},
	"sacrifice":              {"dies", "graveyard", "return"},
	"graveyard":              {"mill", "return", "dies"},
	"enters the battlefield": {"blink", "exile", "return", "token"},
	"draw":                   {"discard"},
	"discard":                {"graveyard", "return"},
	"proliferate":            {"+1/+1 counter", "counter target"},
	"landfall":               {"land"},
	"cost less":              {"cast", "storm"},
	"gain life":              {"lifelink"},
	"infinite":               {"untap", "copy", "token", "enters the battlefield"},
}

// extractSynergyKeywords returns the vocabulary terms present in text.
func extractSynergyKeywords(text string) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, kw := range synergyVocabulary {
		if strings.Contains(lowered, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// keywordsCompatible reports whether any keyword pair across the two sets
// appears in the synergy table, and returns the matched terms.
func keywordsCompatible(a, b []string) []string {
	matched := make(map[string]bool)
	for _, ka := range a {
		for _, kb := range b {
			if tableHas(ka, kb) || tableHas(kb, ka) {
				matched[ka] = true
				matched[kb] = true
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matched))
	for t := range matched {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func tableHas(key, candidate string) bool {
	for _, c := range synergyTable[key] {
		if c == candidate {
			return true
		}
	}
	return false
}

// pairMatch is the cached outcome of evaluating one unordered card pair.
type pairMatch struct {
	Tags []string
}

// ComboSearcher enumerates unranked, deduplicated combo candidates for a
// focal card or a whole deck.
type ComboSearcher struct {
	retriever Retriever
	catalog   CatalogStore

	// poolCache holds the retrieved candidate pool per card ID, since many
	// decks re-query the same staple cards. pairCache memoizes pairwise
	// keyword evaluation by unordered pair key.
	poolCache *cache.Store[[]Candidate]
	pairCache *cache.Store[pairMatch]

	retrieveLimit   int
	focusedPoolSize int
	logger          *zap.Logger
}

// NewComboSearcher creates a combo searcher with its own pool and pair
// caches sized from config.
func NewComboSearcher(retriever Retriever, catalog CatalogStore, config Config, logger *zap.Logger) *ComboSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComboSearcher{
		retriever:       retriever,
		catalog:         catalog,
		poolCache:       cache.New[[]Candidate](config.PoolCacheSize),
		pairCache:       cache.New[pairMatch](config.PairCacheSize),
		retrieveLimit:   config.RetrieveLimit,
		focusedPoolSize: config.FocusedPoolSize,
		logger:          logger,
	}
}

// PoolStats and PairStats expose cache accounting for diagnostics.
func (cs *ComboSearcher) PoolStats() cache.Stats { return cs.poolCache.Stats() }
func (cs *ComboSearcher) PairStats() cache.Stats { return cs.pairCache.Stats() }

// FindForCard returns the deduplicated combo candidates centered on focal.
// Zero candidates is a valid outcome, not an error. Curated database combos
// suppress semantically derived duplicates of the same identity set.
func (cs *ComboSearcher) FindForCard(ctx context.Context, focal Card, mode string, excluded map[string]bool) ([]ComboCandidate, error) {
	seen := make(map[string]bool)
	var candidates []ComboCandidate

	records, err := cs.catalog.FindRecordedCombos(focal.ID)
	if err != nil {
		return nil, &UpstreamError{Service: "catalog", Input: focal.ID, Err: err}
	}
	for _, rec := range records {
		combo := ComboCandidate{
			CardIDs:     sortedIDs(rec.CardIDs),
			Tags:        rec.Tags,
			Source:      SourceDatabase,
			Description: rec.Description,
		}
		key := identityKey(combo.CardIDs)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, combo)
	}

	// Without oracle text there is nothing for keyword matching to work
	// with; the curated database is the only source.
	if strings.TrimSpace(focal.OracleText) == "" {
		return candidates, nil
	}

	focalKeywords := extractSynergyKeywords(focal.OracleText)
	if len(focalKeywords) == 0 {
		return candidates, nil
	}

	pool, err := cs.candidatePool(ctx, focal)
	if err != nil {
		return nil, err
	}
	if mode != ModeBroad && len(pool) > cs.focusedPoolSize {
		pool = pool[:cs.focusedPoolSize]
	}

	for _, cand := range pool {
		if cand.Card.ID == focal.ID || excluded[cand.Card.ID] {
			continue
		}
		tags := cs.evaluatePair(focal, cand.Card, focalKeywords)
		if len(tags) == 0 {
			continue
		}
		ids := sortedIDs([]string{focal.ID, cand.Card.ID})
		key := identityKey(ids)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, ComboCandidate{
			CardIDs: ids,
			Tags:    tags,
			Source:  SourceSemantic,
		})
	}

	return candidates, nil
}

// FindForDeck unions FindForCard over every deck card. This is the
// intentionally exhaustive step: each deck card is paired against its whole
// retrieved pool.
func (cs *ComboSearcher) FindForDeck(ctx context.Context, deck []Card, mode string) ([]ComboCandidate, error) {
	if mode == "" {
		mode = ModeBroad
	}

	var all []ComboCandidate
	for _, card := range deck {
		found, err := cs.FindForCard(ctx, card, mode, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}

	// A database combo discovered via one deck card must suppress a
	// semantic duplicate of the same identity set found via another.
	return preferDatabase(all), nil
}

// candidatePool retrieves (and caches, keyed by card ID) the semantic
// candidate pool for a card.
func (cs *ComboSearcher) candidatePool(ctx context.Context, focal Card) ([]Candidate, error) {
	if pool, ok := cs.poolCache.Get(focal.ID); ok {
		return pool, nil
	}

	query := synthesizeQuery(focal)
	pool, err := cs.retriever.Retrieve(ctx, query, cs.retrieveLimit, nil)
	if err != nil {
		return nil, &UpstreamError{Service: "retrieval", Input: query, Err: err}
	}

	cs.poolCache.Set(focal.ID, pool)
	return pool, nil
}

// evaluatePair computes (memoized) the matched synergy keywords between two
// cards. An empty result is cached too: recomputing known non-matches is
// the common case in broad mode.
func (cs *ComboSearcher) evaluatePair(focal, other Card, focalKeywords []string) []string {
	key := cache.PairKey(focal.ID, other.ID)
	if match, ok := cs.pairCache.Get(key); ok {
		return match.Tags
	}

	otherKeywords := extractSynergyKeywords(other.OracleText)
	tags := keywordsCompatible(focalKeywords, otherKeywords)
	cs.pairCache.Set(key, pairMatch{Tags: tags})
	return tags
}

// synthesizeQuery builds the retrieval query from the focal card's name and
// the leading words of its oracle text.
func synthesizeQuery(focal Card) string {
	words := strings.Fields(focal.OracleText)
	if len(words) > 24 {
		words = words[:24]
	}
	return strings.TrimSpace(focal.Name + " " + strings.Join(words, " "))
}

func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func identityKey(sorted []string) string {
	return strings.Join(sorted, "|")
}

// preferDatabase collapses duplicate identity sets, keeping the
// database-sourced entry when both sources produced the same pair.
func preferDatabase(combos []ComboCandidate) []ComboCandidate {
	byKey := make(map[string]int, len(combos))
	out := make([]ComboCandidate, 0, len(combos))
	for _, combo := range combos {
		key := identityKey(combo.CardIDs)
		if i, ok := byKey[key]; ok {
			if out[i].Source != SourceDatabase && combo.Source == SourceDatabase {
				out[i] = combo
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, combo)
	}
	return out
}

// ComboPrompt renders the narrative-explanation prompt for a ranked combo.
func ComboPrompt(res RankedResult) string {
	names := make([]string, len(res.Cards))
	for i, card := range res.Cards {
		names[i] = card.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Explain in two sentences how these Magic: The Gathering cards work together: %s.", strings.Join(names, ", "))
	if len(res.SynergyTags) > 0 {
		fmt.Fprintf(&b, " The interaction involves: %s.", strings.Join(res.SynergyTags, ", "))
	}
	return b.String()
}
