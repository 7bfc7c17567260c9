// Package searchdb stores the flattened search rows in a SQLite database with
// a roaring-bitmap posting list per name token, for exact-name lookups that do
// not need the tier files loaded in memory.
package searchdb

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/sodacat-web/api"
	_ "modernc.org/sqlite"
)

// Tier numbers stored with each entry.
const (
	TierTop      = 1
	TierRegister = 2
	TierField    = 3
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY,
	tier INTEGER NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	path TEXT,
	block TEXT,
	block_path TEXT,
	register TEXT,
	cluster TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS name_tokens (
	token TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
) WITHOUT ROWID;
`

// Writer bulk-loads search rows. Rows are inserted in batched transactions;
// the token bitmaps are only written by Close.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	nextID    uint32
	tokens    map[string]*roaring.Bitmap
	mu        sync.Mutex
}

// NewWriter creates the database at dbPath and its schema.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Bulk insert tuning
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &Writer{
		db:        db,
		batchSize: 10000,
		tokens:    make(map[string]*roaring.Bitmap),
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.Prepare(`
		INSERT INTO entries (id, tier, type, name, path, block, block_path, register, cluster, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *Writer) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	return w.tx.Commit()
}

// Add inserts one entry and indexes its name tokens.
func (w *Writer) Add(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	_, err := w.stmt.Exec(id, e.Tier, e.Type, e.Name,
		nullable(e.Path), nullable(e.Block), nullable(e.BlockPath),
		nullable(e.Register), nullable(e.Cluster), e.Description)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", e.Type, e.Name, err)
	}

	for _, tok := range Tokens(e.Name) {
		bm, ok := w.tokens[tok]
		if !ok {
			bm = roaring.New()
			w.tokens[tok] = bm
		}
		bm.Add(id)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.count = 0
	}
	return nil
}

func (w *Writer) AddTier1(t api.Tier1Entry) error {
	return w.Add(Entry{Tier: TierTop, Type: t.Type, Name: t.Name, Path: t.Path, Description: t.Description})
}

func (w *Writer) AddRegister(r api.RegisterEntry) error {
	return w.Add(Entry{Tier: TierRegister, Type: r.Type, Name: r.Name, Block: r.Block, BlockPath: r.BlockPath, Cluster: r.Cluster})
}

func (w *Writer) AddField(f api.FieldEntry) error {
	return w.Add(Entry{
		Tier: TierField, Type: f.Type, Name: f.Name,
		Block: f.Block, BlockPath: f.BlockPath, Register: f.Register, Cluster: f.Cluster,
	})
}

// Close writes the token bitmaps, commits and indexes the tables.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if err := w.flushTokens(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_name ON entries(name COLLATE NOCASE)`); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("create index: %w", err)
	}
	return w.db.Close()
}

func (w *Writer) flushTokens() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin token flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO name_tokens (token, bitmap) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare name_tokens insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var buf bytes.Buffer
	for tok, bm := range w.tokens {
		bm.RunOptimize()
		buf.Reset()
		if _, err := bm.WriteTo(&buf); err != nil {
			return fmt.Errorf("serialize bitmap for %s: %w", tok, err)
		}
		if _, err := stmt.Exec(tok, buf.Bytes()); err != nil {
			return fmt.Errorf("insert token %s: %w", tok, err)
		}
	}
	return tx.Commit()
}

// Tokens returns the lookup keys of a name: the lower-cased name itself and,
// for names joined by underscores, each non-empty part.
func Tokens(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return nil
	}
	out := []string{lower}
	if strings.Contains(lower, "_") {
		seen := map[string]bool{lower: true}
		for _, part := range strings.Split(lower, "_") {
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
