// Package core implements the suggestion and combo-ranking engine: it turns
// free-text queries or deck contexts into scored, deduplicated,
// constraint-filtered results backed by semantic retrieval, a curated
// catalog, and a language-model collaborator.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/cache"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// Engine orchestrates retrieval, combo search, constraint filtering,
// ranking, and narrative generation.
type Engine struct {
	config    Config
	retriever Retriever
	catalog   CatalogStore
	gen       Generator // may be nil: narrative and extraction degrade
	combos    *ComboSearcher
	ranker    *Ranker
	parser    *ConstraintParser
	logger    *zap.Logger

	queryCache   *cache.Store[Answer]
	suggestCache *cache.Store[Suggestions]
}

// Deps holds dependencies for constructing an Engine. Caches are created
// from Config sizes; the same Engine (and so the same caches) is meant to
// be constructed once per process at the entry point.
type Deps struct {
	Config    Config
	Retriever Retriever
	Catalog   CatalogStore
	Generator Generator
	Logger    *zap.Logger
}

// NewEngine creates the engine. A zero Config takes defaults; a nil
// Generator disables constraint extraction and narrative text.
func NewEngine(deps Deps) *Engine {
	config := deps.Config
	if config == (Config{}) {
		config = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config:       config,
		retriever:    deps.Retriever,
		catalog:      deps.Catalog,
		gen:          deps.Generator,
		combos:       NewComboSearcher(deps.Retriever, deps.Catalog, config, logger),
		ranker:       NewRanker(config.Weights),
		parser:       NewConstraintParser(deps.Generator, logger),
		logger:       logger,
		queryCache:   cache.New[Answer](config.QueryCacheSize),
		suggestCache: cache.New[Suggestions](config.SuggestCacheSize),
	}
}

// AnswerQuery answers a free-text query with ranked cards and an optional
// narrative explanation. Zero matches is a valid outcome with empty items.
func (e *Engine) AnswerQuery(ctx context.Context, req QueryRequest) (*Answer, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	var cons Constraints
	if req.Constraints != nil {
		cons = *req.Constraints
	} else {
		cons = e.parser.Parse(ctx, req.Query)
	}
	if req.Limit <= 0 && cons.Limit > 0 {
		cons.Limit = min(cons.Limit, e.config.RetrieveLimit)
		limit = cons.Limit
	}

	key := cache.Key("query", cache.NormalizeQuery(req.Query), cons.Canonical(), fmt.Sprintf("limit=%d", limit))
	if !req.NoCache {
		if cached, ok := e.queryCache.Get(key); ok {
			return &cached, nil
		}
	}

	var filters map[string]string
	if cons.TypeFilter != "" {
		filters = map[string]string{"type": cons.TypeFilter}
	}

	candidates, err := e.retriever.Retrieve(ctx, req.Query, e.config.RetrieveLimit, filters)
	if err != nil {
		return nil, &UpstreamError{Service: "retrieval", Input: req.Query, Err: err}
	}

	// Filter before ranking so a rejected candidate never occupies a
	// truncation slot.
	results := make([]RankedResult, 0, len(candidates))
	for _, cand := range candidates {
		if !cons.Allows([]Card{cand.Card}, nil, cand.Card.Price) {
			continue
		}
		results = append(results, RankedResult{
			CardIDs:    []string{cand.Card.ID},
			Cards:      []Card{cand.Card},
			Similarity: cand.Similarity,
			TotalPrice: cand.Card.Price,
		})
	}

	results = e.ranker.Rank(results, nil, cons, limit)

	answer := Answer{
		Items:       results,
		Explanation: e.explainAnswer(ctx, req, results),
	}
	if !req.NoCache {
		e.queryCache.Set(key, answer)
	}
	return &answer, nil
}

// SuggestForContext produces ranked single-card suggestions and ranked
// combos for a deck.
func (e *Engine) SuggestForContext(ctx context.Context, req SuggestRequest) (*Suggestions, error) {
	if len(req.Deck.CardIDs) == 0 {
		return &Suggestions{Suggestions: []RankedResult{}, Combos: []RankedResult{}}, nil
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeBroad
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	cons := req.Constraints

	deckCards, err := e.deckCards(req.Deck)
	if err != nil {
		return nil, err
	}

	key := cache.Key("suggest",
		identityKey(sortedIDs(req.Deck.CardIDs)),
		cache.NormalizeQuery(req.Deck.Theme),
		cons.Canonical(), mode, fmt.Sprintf("limit=%d", limit))
	if !req.NoCache {
		if cached, ok := e.suggestCache.Get(key); ok {
			return &cached, nil
		}
	}

	profile := BuildDeckProfile(deckCards)
	inDeck := make(map[string]bool, len(deckCards))
	known := make(map[string]Card, len(deckCards))
	for _, card := range deckCards {
		inDeck[card.ID] = true
		known[card.ID] = card
	}

	pool, err := e.suggestionPool(ctx, req.Deck, deckCards)
	if err != nil {
		return nil, err
	}

	suggestions := make([]RankedResult, 0, len(pool))
	for _, cand := range pool {
		if inDeck[cand.Card.ID] {
			continue
		}
		known[cand.Card.ID] = cand.Card
		if !cons.Allows([]Card{cand.Card}, nil, cand.Card.Price) {
			continue
		}
		suggestions = append(suggestions, RankedResult{
			CardIDs:    []string{cand.Card.ID},
			Cards:      []Card{cand.Card},
			Similarity: cand.Similarity,
			TotalPrice: cand.Card.Price,
		})
	}
	suggestions = e.ranker.Rank(suggestions, profile, cons, limit)

	comboCandidates, err := e.combos.FindForDeck(ctx, deckCards, mode)
	if err != nil {
		return nil, err
	}
	combos := e.rankCombos(ctx, comboCandidates, known, profile, cons, limit)

	if !req.NoNarrative {
		e.explainCombos(ctx, combos)
	}

	result := Suggestions{Suggestions: suggestions, Combos: combos}
	if !req.NoCache {
		e.suggestCache.Set(key, result)
	}
	return &result, nil
}

// Card looks up a card by ID, falling back to exact name match.
func (e *Engine) Card(ctx context.Context, idOrName string) (*Card, error) {
	rec, err := e.catalog.GetCard(idOrName)
	if errors.Is(err, storage.ErrNotFound) {
		rec, err = e.catalog.FindCardByName(idOrName)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Kind: "card", ID: idOrName}
	}
	if err != nil {
		return nil, &UpstreamError{Service: "catalog", Input: idOrName, Err: err}
	}
	card := cardFromRecord(rec)
	return &card, nil
}

// CombosForCard finds and ranks combos centered on a single focal card.
// A missing focal card is a NotFoundError; zero combos is a valid result.
func (e *Engine) CombosForCard(ctx context.Context, idOrName, mode string, cons Constraints, limit int) ([]RankedResult, error) {
	if mode == "" {
		mode = ModeFocused
	}
	if limit <= 0 {
		limit = 10
	}

	focal, err := e.Card(ctx, idOrName)
	if err != nil {
		return nil, err
	}

	candidates, err := e.combos.FindForCard(ctx, *focal, mode, nil)
	if err != nil {
		return nil, err
	}

	known := map[string]Card{focal.ID: *focal}
	ranked := e.rankCombos(ctx, candidates, known, nil, cons, limit)
	e.explainCombos(ctx, ranked)
	return ranked, nil
}

// CombosUnderPrice lists curated combos within a budget ceiling, ranked.
func (e *Engine) CombosUnderPrice(ctx context.Context, maxPrice float64, limit int) ([]RankedResult, error) {
	if limit <= 0 {
		limit = 10
	}

	records, err := e.catalog.FindCombosByPriceCeiling(maxPrice)
	if err != nil {
		return nil, &UpstreamError{Service: "catalog", Input: fmt.Sprintf("price<=%.2f", maxPrice), Err: err}
	}

	candidates := make([]ComboCandidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, ComboCandidate{
			CardIDs:     sortedIDs(rec.CardIDs),
			Tags:        rec.Tags,
			Source:      SourceDatabase,
			Description: rec.Description,
		})
	}

	cons := Constraints{MaxPrice: maxPrice}
	return e.rankCombos(ctx, candidates, map[string]Card{}, nil, cons, limit), nil
}

// EngineStats reports cache accounting and catalog size.
type EngineStats struct {
	QueryCache   cache.Stats `json:"query_cache"`
	SuggestCache cache.Stats `json:"suggest_cache"`
	PoolCache    cache.Stats `json:"pool_cache"`
	PairCache    cache.Stats `json:"pair_cache"`
	CatalogCards int         `json:"catalog_cards"`
}

// Stats returns engine statistics.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	count, err := e.catalog.CountCards()
	if err != nil {
		return nil, &UpstreamError{Service: "catalog", Err: err}
	}
	return &EngineStats{
		QueryCache:   e.queryCache.Stats(),
		SuggestCache: e.suggestCache.Stats(),
		PoolCache:    e.combos.PoolStats(),
		PairCache:    e.combos.PairStats(),
		CatalogCards: count,
	}, nil
}

// ClearCaches invalidates every cache; staleness is otherwise accepted
// since the catalog changes rarely relative to request volume.
func (e *Engine) ClearCaches() {
	e.queryCache.Clear()
	e.suggestCache.Clear()
	e.combos.poolCache.Clear()
	e.combos.pairCache.Clear()
}

// QueryCacheStats exposes query cache accounting.
func (e *Engine) QueryCacheStats() cache.Stats {
	return e.queryCache.Stats()
}

// deckCards hydrates every deck card. A missing card is surfaced as
// NotFoundError: suggesting against a deck the catalog does not know is a
// caller error, not something to silently skip.
func (e *Engine) deckCards(deck Deck) ([]Card, error) {
	cards := make([]Card, 0, len(deck.CardIDs))
	for _, id := range deck.CardIDs {
		rec, err := e.catalog.GetCard(id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Kind: "card", ID: id}
		}
		if err != nil {
			return nil, &UpstreamError{Service: "catalog", Input: id, Err: err}
		}
		cards = append(cards, cardFromRecord(rec))
	}
	return cards, nil
}

// suggestionPool unions the per-card retrieval pools (cached per card), plus
// a theme retrieval when the deck declares one. The highest similarity wins
// when a card shows up in several pools.
func (e *Engine) suggestionPool(ctx context.Context, deck Deck, deckCards []Card) ([]Candidate, error) {
	best := make(map[string]Candidate)

	merge := func(pool []Candidate) {
		for _, cand := range pool {
			if prev, ok := best[cand.Card.ID]; !ok || cand.Similarity > prev.Similarity {
				best[cand.Card.ID] = cand
			}
		}
	}

	for _, card := range deckCards {
		pool, err := e.combos.candidatePool(ctx, card)
		if err != nil {
			return nil, err
		}
		merge(pool)
	}

	if theme := strings.TrimSpace(deck.Theme); theme != "" {
		pool, err := e.retriever.Retrieve(ctx, theme, e.config.RetrieveLimit, nil)
		if err != nil {
			return nil, &UpstreamError{Service: "retrieval", Input: theme, Err: err}
		}
		merge(pool)
	}

	out := make([]Candidate, 0, len(best))
	for _, cand := range best {
		out = append(out, cand)
	}
	return out, nil
}

// rankCombos hydrates, filters, and ranks combo candidates. A candidate
// referencing a card the catalog no longer has is dropped, not fatal.
func (e *Engine) rankCombos(ctx context.Context, candidates []ComboCandidate, known map[string]Card, profile *DeckProfile, cons Constraints, limit int) []RankedResult {
	results := make([]RankedResult, 0, len(candidates))
	for _, combo := range candidates {
		cards, total, ok := e.hydrateCombo(combo, known)
		if !ok {
			continue
		}
		if !cons.Allows(cards, combo.Tags, total) {
			continue
		}
		results = append(results, RankedResult{
			CardIDs:     combo.CardIDs,
			Cards:       cards,
			Source:      combo.Source,
			SynergyTags: combo.Tags,
			TotalPrice:  total,
			Explanation: combo.Description,
		})
	}
	return e.ranker.Rank(results, profile, cons, limit)
}

func (e *Engine) hydrateCombo(combo ComboCandidate, known map[string]Card) ([]Card, float64, bool) {
	cards := make([]Card, 0, len(combo.CardIDs))
	var total float64
	for _, id := range combo.CardIDs {
		card, ok := known[id]
		if !ok {
			rec, err := e.catalog.GetCard(id)
			if err != nil {
				e.logger.Warn("dropping combo with unresolvable card",
					zap.String("card_id", id), zap.Error(err))
				return nil, 0, false
			}
			card = cardFromRecord(rec)
			known[id] = card
		}
		cards = append(cards, card)
		total += card.Price
	}
	return cards, total, true
}

// explainAnswer generates the answer narrative, degrading to canned text
// when generation is unavailable or fails.
func (e *Engine) explainAnswer(ctx context.Context, req QueryRequest, results []RankedResult) string {
	fallback := "Here are the closest matches from the catalog."
	if len(results) == 0 {
		fallback = "No cards in the catalog matched this query."
	}
	if req.NoNarrative || e.gen == nil {
		return fallback
	}

	names := make([]string, 0, len(results))
	for i, res := range results {
		if i >= 5 {
			break
		}
		names = append(names, res.Cards[0].Name)
	}
	prompt := fmt.Sprintf(
		"A player asked: %q. The top matching Magic: The Gathering cards are: %s. "+
			"Summarize in two sentences why these fit the question.",
		req.Query, strings.Join(names, ", "))
	if len(results) == 0 {
		prompt = fmt.Sprintf(
			"A player asked: %q but no cards matched. In one sentence, suggest how they might broaden the search.",
			req.Query)
	}

	text, err := e.gen.GenerateChecked(ctx, prompt, 256, checkNonEmpty)
	if err != nil {
		e.logger.Warn("answer narrative degraded", zap.String("query", req.Query), zap.Error(err))
		return fallback
	}
	return text
}

// explainCombos fills narratives for the top-ranked combos in parallel with
// a bounded worker count. Per-combo failures leave that combo without
// narrative text; they never abort the ranked result.
func (e *Engine) explainCombos(ctx context.Context, results []RankedResult) {
	if e.gen == nil {
		return
	}

	n := e.config.ExplainTopN
	if n > len(results) {
		n = len(results)
	}
	workers := e.config.ExplainWorkers
	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if results[i].Explanation != "" {
			continue // curated description already present
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			text, err := e.gen.GenerateChecked(ctx, ComboPrompt(results[i]), 256, checkNonEmpty)
			if err != nil {
				e.logger.Warn("combo narrative degraded",
					zap.Strings("card_ids", results[i].CardIDs), zap.Error(err))
				return
			}
			results[i].Explanation = text
		}(i)
	}
	wg.Wait()
}

func checkNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("response is empty")
	}
	return nil
}
