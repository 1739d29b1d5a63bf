package core

import (
	"context"
	"errors"
	"sync"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// Common test errors
var (
	ErrMockRetrieval = errors.New("mock retrieval error")
	ErrMockCatalog   = errors.New("mock catalog error")
	ErrMockGenerate  = errors.New("mock generation error")
)

// MockRetriever implements Retriever for testing
type MockRetriever struct {
	mu           sync.Mutex
	Candidates   []Candidate
	RetrieveFunc func(ctx context.Context, query string, limit int, filters map[string]string) ([]Candidate, error)
	CallCount    int
	LastQuery    string
	FailOnCall   int // Fail on Nth call (0 = never fail)
}

func NewMockRetriever(candidates ...Candidate) *MockRetriever {
	return &MockRetriever{Candidates: candidates}
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, limit int, filters map[string]string) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastQuery = query

	if m.FailOnCall > 0 && m.CallCount >= m.FailOnCall {
		return nil, ErrMockRetrieval
	}
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, query, limit, filters)
	}
	if limit > 0 && len(m.Candidates) > limit {
		return m.Candidates[:limit], nil
	}
	return m.Candidates, nil
}

// MockCatalogStore implements CatalogStore for testing
type MockCatalogStore struct {
	mu        sync.Mutex
	Cards     map[string]*storage.CardRecord
	Combos    map[string][]*storage.ComboRecord // keyed by member card ID
	GetCount  int
	FailOnGet bool
}

func NewMockCatalogStore() *MockCatalogStore {
	return &MockCatalogStore{
		Cards:  make(map[string]*storage.CardRecord),
		Combos: make(map[string][]*storage.ComboRecord),
	}
}

func (m *MockCatalogStore) AddCard(rec *storage.CardRecord) {
	m.Cards[rec.ID] = rec
}

func (m *MockCatalogStore) AddCombo(rec *storage.ComboRecord) {
	for _, id := range rec.CardIDs {
		m.Combos[id] = append(m.Combos[id], rec)
	}
}

func (m *MockCatalogStore) GetCard(id string) (*storage.CardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCount++
	if m.FailOnGet {
		return nil, ErrMockCatalog
	}
	rec, ok := m.Cards[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (m *MockCatalogStore) FindCardByName(name string) (*storage.CardRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.Cards {
		if rec.Name == name {
			return rec, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MockCatalogStore) FindRecordedCombos(cardID string) ([]*storage.ComboRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Combos[cardID], nil
}

func (m *MockCatalogStore) FindCombosByPriceCeiling(maxPrice float64) ([]*storage.ComboRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []*storage.ComboRecord
	for _, combos := range m.Combos {
		for _, c := range combos {
			if c.Price <= maxPrice && !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (m *MockCatalogStore) CountCards() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Cards), nil
}

// MockGenerator implements Generator for testing
type MockGenerator struct {
	mu         sync.Mutex
	Response   string
	Responses  []string // consumed in order when non-empty
	CallCount  int
	LastPrompt string
	FailOnCall int
}

func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{Response: response}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return m.GenerateChecked(ctx, prompt, maxTokens, nil)
}

func (m *MockGenerator) GenerateChecked(ctx context.Context, prompt string, maxTokens int, check func(string) error) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastPrompt = prompt

	if m.FailOnCall > 0 && m.CallCount >= m.FailOnCall {
		return "", ErrMockGenerate
	}

	resp := m.Response
	if len(m.Responses) > 0 {
		resp = m.Responses[0]
		if len(m.Responses) > 1 {
			m.Responses = m.Responses[1:]
		}
	}
	if check != nil {
		if err := check(resp); err != nil {
			return "", err
		}
	}
	return resp, nil
}
