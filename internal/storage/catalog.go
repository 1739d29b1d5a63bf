package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a card or combo does not exist in the catalog.
var ErrNotFound = errors.New("not found")

// CatalogStore handles SQLite storage of cards and curated combos, plus
// FTS5 keyword search over card text.
type CatalogStore struct {
	db *sql.DB
}

// CardRecord represents a card row in the catalog.
type CardRecord struct {
	ID         string
	Name       string
	OracleText string
	TypeLine   string
	ManaValue  float64
	Colors     []string
	Tags       []string
	Price      float64
	Popularity int // play-rate rank; lower is more played, 0 = unknown
}

// ComboRecord represents a curated combo row.
type ComboRecord struct {
	ID          string
	CardIDs     []string // sorted ascending
	Tags        []string
	Description string
	Price       float64
}

// KeywordResult pairs a card ID with a BM25-derived keyword relevance score.
type KeywordResult struct {
	ID    string
	Name  string
	Score float64
}

// NewCatalogStore opens (creating if needed) the catalog database at dbPath.
func NewCatalogStore(dbPath string) (*CatalogStore, error) {
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &CatalogStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *CatalogStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			oracle_text TEXT NOT NULL DEFAULT '',
			type_line TEXT NOT NULL DEFAULT '',
			mana_value REAL NOT NULL DEFAULT 0,
			colors TEXT,
			tags TEXT,
			price REAL NOT NULL DEFAULT 0,
			popularity INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name);

		CREATE TABLE IF NOT EXISTS combos (
			id TEXT PRIMARY KEY,
			tags TEXT,
			description TEXT,
			price REAL NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS combo_members (
			combo_id TEXT NOT NULL,
			card_id TEXT NOT NULL,
			PRIMARY KEY (combo_id, card_id),
			FOREIGN KEY (combo_id) REFERENCES combos(id)
		);

		CREATE INDEX IF NOT EXISTS idx_combo_members_card ON combo_members(card_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS cards_fts USING fts5(
			id UNINDEXED,
			name,
			oracle_text,
			type_line
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying database so the vector store can share it.
func (s *CatalogStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *CatalogStore) Close() error {
	return s.db.Close()
}

// SaveCard inserts or replaces a card and its keyword index row.
func (s *CatalogStore) SaveCard(card *CardRecord) error {
	colors, err := json.Marshal(card.Colors)
	if err != nil {
		return fmt.Errorf("marshal colors: %w", err)
	}
	tags, err := json.Marshal(card.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO cards
			(id, name, oracle_text, type_line, mana_value, colors, tags, price, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, card.ID, card.Name, card.OracleText, card.TypeLine, card.ManaValue,
		string(colors), string(tags), card.Price, card.Popularity)
	if err != nil {
		return fmt.Errorf("save card: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM cards_fts WHERE id = ?`, card.ID); err != nil {
		return fmt.Errorf("clear fts row: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO cards_fts (id, name, oracle_text, type_line)
		VALUES (?, ?, ?, ?)
	`, card.ID, card.Name, card.OracleText, card.TypeLine)
	if err != nil {
		return fmt.Errorf("index card: %w", err)
	}

	return tx.Commit()
}

// GetCard retrieves a card by ID.
func (s *CatalogStore) GetCard(id string) (*CardRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, oracle_text, type_line, mana_value, colors, tags, price, popularity
		FROM cards WHERE id = ?
	`, id)
	return scanCard(row)
}

// FindCardByName retrieves a card by exact name, case-insensitively.
func (s *CatalogStore) FindCardByName(name string) (*CardRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, oracle_text, type_line, mana_value, colors, tags, price, popularity
		FROM cards WHERE name = ? COLLATE NOCASE
	`, name)
	return scanCard(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*CardRecord, error) {
	var card CardRecord
	var colors, tags sql.NullString

	err := row.Scan(&card.ID, &card.Name, &card.OracleText, &card.TypeLine,
		&card.ManaValue, &colors, &tags, &card.Price, &card.Popularity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if colors.Valid && colors.String != "" {
		if err := json.Unmarshal([]byte(colors.String), &card.Colors); err != nil {
			return nil, fmt.Errorf("unmarshal colors: %w", err)
		}
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &card.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	return &card, nil
}

// ListCards returns cards ordered by name with pagination.
func (s *CatalogStore) ListCards(limit, offset int) ([]*CardRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, name, oracle_text, type_line, mana_value, colors, tags, price, popularity
		FROM cards ORDER BY name LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*CardRecord
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// CountCards returns the number of cards in the catalog.
func (s *CatalogStore) CountCards() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&n)
	return n, err
}

// KeywordSearch performs FTS5 BM25 search over card name, oracle text, and
// type line. Scores are negated BM25 so higher is better.
func (s *CatalogStore) KeywordSearch(query string, limit int) ([]KeywordResult, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, name, bm25(cards_fts) AS rank
		FROM cards_fts
		WHERE cards_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []KeywordResult
	for rows.Next() {
		var r KeywordResult
		var rank float64
		if err := rows.Scan(&r.ID, &r.Name, &rank); err != nil {
			return nil, err
		}
		r.Score = -rank // bm25() returns lower-is-better
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes each term so punctuation in card text cannot break the
// MATCH expression.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// SaveCombo inserts or replaces a curated combo. Card IDs are stored sorted
// so the identity set is canonical. An empty ID is assigned a fresh UUID.
func (s *CatalogStore) SaveCombo(combo *ComboRecord) error {
	if combo.ID == "" {
		combo.ID = uuid.NewString()
	}
	ids := append([]string(nil), combo.CardIDs...)
	sort.Strings(ids)

	tags, err := json.Marshal(combo.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO combos (id, tags, description, price)
		VALUES (?, ?, ?, ?)
	`, combo.ID, string(tags), combo.Description, combo.Price)
	if err != nil {
		return fmt.Errorf("save combo: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM combo_members WHERE combo_id = ?`, combo.ID); err != nil {
		return err
	}
	for _, cardID := range ids {
		if _, err := tx.Exec(`
			INSERT INTO combo_members (combo_id, card_id) VALUES (?, ?)
		`, combo.ID, cardID); err != nil {
			return fmt.Errorf("save combo member: %w", err)
		}
	}

	return tx.Commit()
}

// FindRecordedCombos returns all curated combos containing the given card.
func (s *CatalogStore) FindRecordedCombos(cardID string) ([]*ComboRecord, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.tags, c.description, c.price
		FROM combos c
		JOIN combo_members m ON m.combo_id = c.id
		WHERE m.card_id = ?
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	combos, err := s.scanCombos(rows)
	if err != nil {
		return nil, err
	}
	return combos, nil
}

// FindCombosByPriceCeiling returns curated combos whose total price does not
// exceed maxPrice, cheapest first.
func (s *CatalogStore) FindCombosByPriceCeiling(maxPrice float64) ([]*ComboRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, tags, description, price
		FROM combos
		WHERE price <= ?
		ORDER BY price
	`, maxPrice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanCombos(rows)
}

func (s *CatalogStore) scanCombos(rows *sql.Rows) ([]*ComboRecord, error) {
	var combos []*ComboRecord
	for rows.Next() {
		var combo ComboRecord
		var tags sql.NullString
		if err := rows.Scan(&combo.ID, &tags, &combo.Description, &combo.Price); err != nil {
			return nil, err
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &combo.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal combo tags: %w", err)
			}
		}
		combos = append(combos, &combo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Hydrate member card IDs in a second pass to keep the row scan simple.
	for _, combo := range combos {
		memberRows, err := s.db.Query(`
			SELECT card_id FROM combo_members WHERE combo_id = ? ORDER BY card_id
		`, combo.ID)
		if err != nil {
			return nil, err
		}
		for memberRows.Next() {
			var id string
			if err := memberRows.Scan(&id); err != nil {
				memberRows.Close()
				return nil, err
			}
			combo.CardIDs = append(combo.CardIDs, id)
		}
		if err := memberRows.Err(); err != nil {
			memberRows.Close()
			return nil, err
		}
		memberRows.Close()
	}

	return combos, nil
}

// GenerateID returns a new unique identifier.
func GenerateID() string {
	return uuid.NewString()
}
