package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Constraints are structured limits applied to candidates before ranking.
// All fields are optional; the zero value means unconstrained.
type Constraints struct {
	MaxPrice     float64  `json:"max_price,omitempty"`
	RequiredTags []string `json:"required_tags,omitempty"`
	ExcludedIDs  []string `json:"excluded_ids,omitempty"`
	TypeFilter   string   `json:"type_filter,omitempty"`
	SortBy       string   `json:"sort_by,omitempty"` // score (default) or price
	Limit        int      `json:"limit,omitempty"`
}

// Empty reports whether no constraint field is set.
func (c Constraints) Empty() bool {
	return c.MaxPrice == 0 &&
		len(c.RequiredTags) == 0 &&
		len(c.ExcludedIDs) == 0 &&
		c.TypeFilter == "" &&
		c.SortBy == "" &&
		c.Limit == 0
}

// Canonical renders the constraints as a deterministic string for cache-key
// derivation: every field is emitted in a fixed order with list fields
// sorted, so logically equal constraint sets always serialize identically.
func (c Constraints) Canonical() string {
	tags := append([]string(nil), c.RequiredTags...)
	sort.Strings(tags)
	excluded := append([]string(nil), c.ExcludedIDs...)
	sort.Strings(excluded)

	var b strings.Builder
	fmt.Fprintf(&b, "max_price=%.2f;", c.MaxPrice)
	fmt.Fprintf(&b, "required_tags=%s;", strings.Join(tags, ","))
	fmt.Fprintf(&b, "excluded_ids=%s;", strings.Join(excluded, ","))
	fmt.Fprintf(&b, "type=%s;", strings.ToLower(c.TypeFilter))
	fmt.Fprintf(&b, "sort=%s;", c.SortBy)
	fmt.Fprintf(&b, "limit=%d", c.Limit)
	return b.String()
}

// Allows reports whether a candidate built from the given cards passes the
// constraints. synergyTags are the candidate's matched combo keywords, which
// count toward RequiredTags alongside card tags. The budget check is
// monotonic: raising MaxPrice never rejects a previously allowed candidate.
func (c Constraints) Allows(cards []Card, synergyTags []string, totalPrice float64) bool {
	if c.MaxPrice > 0 && totalPrice > c.MaxPrice {
		return false
	}

	for _, card := range cards {
		for _, excluded := range c.ExcludedIDs {
			if card.ID == excluded {
				return false
			}
		}
	}

	if c.TypeFilter != "" {
		filter := strings.ToLower(c.TypeFilter)
		matched := false
		for _, card := range cards {
			if strings.Contains(strings.ToLower(card.TypeLine), filter) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(c.RequiredTags) > 0 {
		have := make(map[string]bool)
		for _, card := range cards {
			for _, t := range card.Tags {
				have[strings.ToLower(t)] = true
			}
		}
		for _, t := range synergyTags {
			have[strings.ToLower(t)] = true
		}
		for _, required := range c.RequiredTags {
			if !have[strings.ToLower(required)] {
				return false
			}
		}
	}

	return true
}

// ConstraintParser extracts structured constraints from free text via the
// language-model collaborator. Extraction is best-effort: any failure
// degrades to unconstrained rather than failing the request.
type ConstraintParser struct {
	gen    Generator
	logger *zap.Logger
}

// NewConstraintParser creates a parser. gen may be nil, in which case Parse
// always returns the zero Constraints.
func NewConstraintParser(gen Generator, logger *zap.Logger) *ConstraintParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConstraintParser{gen: gen, logger: logger}
}

const constraintPrompt = `Extract search constraints from this Magic: The Gathering query.
Respond with ONLY a JSON object, no prose, with any of these fields that the
query implies (omit fields the query does not mention):
  "max_price": number, total budget in US dollars
  "required_tags": array of strings, required mechanics or themes
  "excluded_ids": array of strings, card names or ids to exclude
  "type_filter": string, a card type such as "creature" or "artifact"
  "sort_by": "price" if the query asks for cheapest-first
  "limit": number of results requested

Query: %s`

// Parse extracts constraints from text. It never returns an error; a failed
// or unparseable extraction yields the zero value.
func (p *ConstraintParser) Parse(ctx context.Context, text string) Constraints {
	if p.gen == nil {
		return Constraints{}
	}

	prompt := fmt.Sprintf(constraintPrompt, text)
	raw, err := p.gen.GenerateChecked(ctx, prompt, 512, checkConstraintJSON)
	if err != nil {
		p.logger.Warn("constraint extraction degraded to unconstrained",
			zap.String("query", text), zap.Error(err))
		return Constraints{}
	}

	var c Constraints
	if err := json.Unmarshal([]byte(stripFences(raw)), &c); err != nil {
		p.logger.Warn("constraint extraction returned unparseable JSON",
			zap.String("query", text), zap.Error(err))
		return Constraints{}
	}
	return c
}

// checkConstraintJSON is the content check for constraint extraction: the
// response must parse as a JSON object once markdown fences are stripped.
func checkConstraintJSON(s string) error {
	var probe map[string]any
	if err := json.Unmarshal([]byte(stripFences(s)), &probe); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
