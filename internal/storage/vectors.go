package storage

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// VectorStore provides brute-force nearest-neighbor search over card text
// embeddings, backed by SQLite BLOBs and kept fully in memory. At catalog
// sizes in the tens of thousands this is exact and sub-millisecond.
type VectorStore struct {
	db *sql.DB

	mu      sync.RWMutex
	vectors map[string][]float32 // card_id -> normalized embedding
}

// ScoredCard pairs a card ID with a cosine similarity score.
type ScoredCard struct {
	ID    string
	Score float64
}

// NewVectorStore creates a vector store sharing the catalog's SQLite
// database. Existing vectors are loaded into memory on open.
func NewVectorStore(db *sql.DB) (*VectorStore, error) {
	vs := &VectorStore{
		db:      db,
		vectors: make(map[string][]float32),
	}

	if err := vs.migrate(); err != nil {
		return nil, fmt.Errorf("vector store migrate: %w", err)
	}
	if err := vs.loadAll(); err != nil {
		return nil, fmt.Errorf("vector store load: %w", err)
	}

	return vs, nil
}

func (vs *VectorStore) migrate() error {
	_, err := vs.db.Exec(`
		CREATE TABLE IF NOT EXISTS card_vectors (
			card_id    TEXT PRIMARY KEY,
			embedding  BLOB NOT NULL,
			dimensions INTEGER NOT NULL
		)
	`)
	return err
}

func (vs *VectorStore) loadAll() error {
	rows, err := vs.db.Query(`SELECT card_id, embedding, dimensions FROM card_vectors`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		var dims int
		if err := rows.Scan(&id, &blob, &dims); err != nil {
			return err
		}
		vs.vectors[id] = blobToFloat32(blob, dims)
	}
	return rows.Err()
}

// Upsert stores the embedding for a card. Vectors are normalized on insert
// so dot product equals cosine similarity at query time.
func (vs *VectorStore) Upsert(ctx context.Context, cardID string, vector []float32) error {
	normalized := normalize(vector)
	blob := float32ToBlob(normalized)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	_, err := vs.db.ExecContext(ctx, `
		INSERT INTO card_vectors (card_id, embedding, dimensions)
		VALUES (?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			embedding=excluded.embedding, dimensions=excluded.dimensions
	`, cardID, blob, len(normalized))
	if err != nil {
		return err
	}

	vs.vectors[cardID] = normalized
	return nil
}

// Search returns the top-K cards by cosine similarity to the query vector,
// tracked with a min-heap so only K results are held.
func (vs *VectorStore) Search(ctx context.Context, queryVec []float32, limit int) []ScoredCard {
	if limit <= 0 {
		limit = 10
	}
	normalizedQuery := normalize(queryVec)

	vs.mu.RLock()
	h := &scoreHeap{}
	heap.Init(h)
	for id, vec := range vs.vectors {
		if len(vec) != len(normalizedQuery) {
			continue
		}
		score := dotProduct(normalizedQuery, vec)
		if h.Len() < limit {
			heap.Push(h, ScoredCard{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = ScoredCard{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	vs.mu.RUnlock()

	results := make([]ScoredCard, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredCard)
	}
	return results
}

// Delete removes a card's vector.
func (vs *VectorStore) Delete(ctx context.Context, cardID string) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, err := vs.db.ExecContext(ctx, `DELETE FROM card_vectors WHERE card_id = ?`, cardID); err != nil {
		return err
	}
	delete(vs.vectors, cardID)
	return nil
}

// Count returns the number of stored vectors.
func (vs *VectorStore) Count() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.vectors)
}

// scoreHeap implements heap.Interface with the minimum score at the root.
type scoreHeap []ScoredCard

func (h scoreHeap) Len() int           { return len(h) }
func (h scoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)        { *h = append(*h, x.(ScoredCard)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToFloat32(b []byte, dims int) []float32 {
	v := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(b); i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
