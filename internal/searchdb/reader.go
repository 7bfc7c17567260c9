package searchdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/sodacat-web/api"
)

var ErrNotFound = errors.New("no entries for token")

// Entry is one stored search row.
type Entry struct {
	ID          uint32
	Tier        int
	Type        string
	Name        string
	Path        string
	Block       string
	BlockPath   string
	Register    string
	Cluster     string
	Description *string
}

// Route returns the client location of the entry.
func (e Entry) Route() string {
	return api.Route(e.Type, e.Path, e.BlockPath, e.Name, e.Register)
}

// DB is a query handle on a search database written by Writer.
type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("search database: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Postings returns the bitmap of entry IDs whose name carries token.
func (d *DB) Postings(token string) (*roaring.Bitmap, error) {
	var blob []byte
	err := d.db.QueryRow("SELECT bitmap FROM name_tokens WHERE token = ?", strings.ToLower(token)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
	}
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	return bm, nil
}

// Lookup returns the entries matching every whitespace-separated term of
// query, case-insensitively, in insertion order.
func (d *DB) Lookup(query string, limit int) ([]Entry, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	var hits *roaring.Bitmap
	for _, term := range terms {
		bm, err := d.Postings(term)
		if err != nil {
			return nil, err
		}
		if hits == nil {
			hits = bm
		} else {
			hits.And(bm)
		}
	}
	if hits.IsEmpty() {
		return nil, nil
	}

	ids := hits.ToArray()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return d.entries(ids)
}

func (d *DB) entries(ids []uint32) ([]Entry, error) {
	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(`
		SELECT id, tier, type, name, path, block, block_path, register, cluster, description
		FROM entries WHERE id IN (%s) ORDER BY id`, strings.Join(placeholders, ","))
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var path, block, blockPath, register, cluster, desc sql.NullString
		if err := rows.Scan(&e.ID, &e.Tier, &e.Type, &e.Name, &path, &block, &blockPath, &register, &cluster, &desc); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Path = path.String
		e.Block = block.String
		e.BlockPath = blockPath.String
		e.Register = register.String
		e.Cluster = cluster.String
		if desc.Valid {
			s := desc.String
			e.Description = &s
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
