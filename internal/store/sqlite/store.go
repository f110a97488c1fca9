// Package sqlite persists products in a SQLite database. Each product is one
// row holding its JSON document, scoped by owner.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	doc TEXT NOT NULL,
	is_enriched INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id);
`

// Store implements enrich.Store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ enrich.Store = (*Store)(nil)

// Open creates or opens the database at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	memory := path == ":memory:"
	dsn := path
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if memory {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores p for owner and returns its id, generating one when p.ID is empty.
func (s *Store) Insert(ctx context.Context, owner string, p product.Product) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	doc, err := encodeDoc(p)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO products (id, owner_id, doc, is_enriched, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, owner, doc, p.IsEnriched, now, now,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return p.ID, nil
}

// Upsert inserts p or replaces the stored document when owner already owns it.
// A product id held by another owner is reported as enrich.ErrProductNotFound.
func (s *Store) Upsert(ctx context.Context, owner string, p product.Product) error {
	if p.ID == "" {
		return errors.New("upsert: product id is required")
	}
	doc, err := encodeDoc(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	var n int64
	err = s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
INSERT INTO products (id, owner_id, doc, is_enriched, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, is_enriched = excluded.is_enriched, updated_at = excluded.updated_at
WHERE products.owner_id = excluded.owner_id`,
			p.ID, owner, doc, p.IsEnriched, now, now,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("upsert product %s: %w", p.ID, enrich.ErrProductNotFound)
	}
	return nil
}

// Find returns every product owned by owner in insertion order.
func (s *Store) Find(ctx context.Context, owner string) ([]product.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc, is_enriched FROM products WHERE owner_id = ? ORDER BY created_at, rowid`, owner)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	out := []product.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return out, nil
}

// FindOne returns the product with id if owner owns it.
func (s *Store) FindOne(ctx context.Context, id, owner string) (product.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc, is_enriched FROM products WHERE id = ? AND owner_id = ?`, id, owner)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, fmt.Errorf("%w: %s", enrich.ErrProductNotFound, id)
	}
	return p, err
}

// DeleteMany deletes the listed products owned by owner and reports how many
// rows went away. Ids owned by someone else are ignored.
func (s *Store) DeleteMany(ctx context.Context, ids []string, owner string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, owner)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `DELETE FROM products WHERE owner_id = ? AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

	var n int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return n, nil
}

// UpdateOne applies u to the product in a single conditional UPDATE scoped by
// id and owner, and returns the number of rows modified.
func (s *Store) UpdateOne(ctx context.Context, id, owner string, u enrich.Update) (int64, error) {
	expr, args, err := updateExpr(u)
	if err != nil {
		return 0, err
	}
	query := `UPDATE products SET doc = ` + expr +
		`, is_enriched = CASE WHEN ? THEN 1 ELSE is_enriched END, updated_at = ? WHERE id = ? AND owner_id = ?`
	args = append(args, u.Enriched, time.Now().UTC(), id, owner)

	var n int64
	err = s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("update product %s: %w", id, err)
	}
	s.logger.Debug("product updated",
		zap.String("product_id", id),
		zap.Int("fields", len(u.Values)),
		zap.Int64("modified", n),
	)
	return n, nil
}

// updateExpr builds a json_set call writing every accepted value and the
// enriched flag into the stored document.
func updateExpr(u enrich.Update) (string, []any, error) {
	var b strings.Builder
	b.WriteString("json_set(doc")
	args := make([]any, 0, 2*len(u.Values)+2)
	for _, name := range slices.Sorted(maps.Keys(u.Values)) {
		if strings.ContainsAny(name, `"\`) {
			return "", nil, fmt.Errorf("attribute %q: unsupported character in name", name)
		}
		val, err := json.Marshal(u.Values[name].Any())
		if err != nil {
			return "", nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		b.WriteString(", ?, json(?)")
		args = append(args, `$.attributes."`+name+`".value`, string(val))
	}
	if u.Enriched {
		b.WriteString(", '$.isEnriched', json('true')")
	}
	b.WriteString(")")
	return b.String(), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (product.Product, error) {
	var (
		id       string
		doc      string
		enriched bool
	)
	if err := row.Scan(&id, &doc, &enriched); err != nil {
		return product.Product{}, err
	}
	var p product.Product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return product.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	p.ID = id
	p.IsEnriched = enriched
	return p, nil
}

func encodeDoc(p product.Product) (string, error) {
	p.ID = ""
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode product: %w", err)
	}
	return string(b), nil
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(50*time.Millisecond),
		retry.RetryIf(isBusy),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("store busy, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func isBusy(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
