// Package tickers provides the static ticker-symbol lookup table,
// backed by SQLite and seedable from the legacy tickers.json dump.
package tickers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Ticker is one listed symbol.
type Ticker struct {
	Symbol  string `json:"symbol"`
	Company string `json:"company"`
}

// Store provides ticker lookups against SQLite.
type Store struct {
	db *sql.DB
}

// New opens the ticker database, creating the schema if needed.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tickers (
			symbol  TEXT PRIMARY KEY,
			company TEXT NOT NULL
		);
	`); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[tickers] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SeedFromJSON imports symbols from a tickers.json dump, replacing
// existing rows with the same symbol.
func (s *Store) SeedFromJSON(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read ticker seed: %w", err)
	}
	var list []Ticker
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("parse ticker seed: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin seed tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO tickers (symbol, company) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range list {
		if _, err := stmt.Exec(t.Symbol, t.Company); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert ticker %s: %w", t.Symbol, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed tx: %w", err)
	}
	return len(list), nil
}

// Get returns the ticker for a symbol, with any trailing parenthesized
// suffix stripped from the company name. The second return is false
// when the symbol is unknown.
func (s *Store) Get(symbol string) (Ticker, bool, error) {
	var t Ticker
	err := s.db.QueryRow(`SELECT symbol, company FROM tickers WHERE symbol = ?`, symbol).
		Scan(&t.Symbol, &t.Company)
	if err == sql.ErrNoRows {
		return Ticker{}, false, nil
	}
	if err != nil {
		return Ticker{}, false, fmt.Errorf("sqlite query ticker: %w", err)
	}
	if i := strings.Index(t.Company, "("); i >= 0 {
		t.Company = strings.TrimSpace(t.Company[:i])
	}
	return t, true, nil
}

// Search returns tickers matching the query, case-insensitively, on
// symbol or company name. Symbols starting with the uppercased query
// rank first; the rest sort alphabetically. top truncates the result
// when positive.
func (s *Store) Search(search string, top int) ([]Ticker, error) {
	rows, err := s.db.Query(`SELECT symbol, company FROM tickers`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var list []Ticker
	for rows.Next() {
		var t Ticker
		if err := rows.Scan(&t.Symbol, &t.Company); err != nil {
			return nil, fmt.Errorf("sqlite scan ticker: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	upper := strings.ToUpper(search)
	lower := strings.ToLower(search)
	sort.SliceStable(list, func(i, j int) bool {
		iPrefix := strings.HasPrefix(list[i].Symbol, upper)
		jPrefix := strings.HasPrefix(list[j].Symbol, upper)
		if iPrefix != jPrefix {
			return iPrefix
		}
		return list[i].Symbol < list[j].Symbol
	})

	if search != "" {
		filtered := list[:0]
		for _, t := range list {
			if strings.Contains(t.Symbol, upper) || strings.Contains(strings.ToLower(t.Company), lower) {
				filtered = append(filtered, t)
			}
		}
		list = filtered
	}
	if top > 0 && len(list) > top {
		list = list[:top]
	}
	if list == nil {
		list = []Ticker{}
	}
	return list, nil
}
