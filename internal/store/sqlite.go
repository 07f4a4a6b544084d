package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"mnemo/internal/logging"
)

// collectionNamePattern guards against interpolating anything but plain
// identifiers into DDL and queries.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLiteStore implements VectorStore on a single SQLite database. Each
// collection is a payload table plus a vec0 virtual table sharing rowids.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger

	mu         sync.Mutex
	dimensions map[string]int
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// The vec0 module keeps per-connection state; a single connection keeps
	// virtual tables and payload tables in one view.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite at %s: %w", path, err)
	}

	return &SQLiteStore{
		db:         db,
		log:        logging.Named("store"),
		dimensions: make(map[string]int),
	}, nil
}

// EnsureCollection creates the payload and vector tables if missing.
// Calling it again with the same name is a no-op; the recorded
// dimensionality must match.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	if dimensions < 1 {
		return fmt.Errorf("collection %s: dimensions must be positive, got %d", name, dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dimensions[name]; ok {
		if existing != dimensions {
			return fmt.Errorf("collection %s already ensured with %d dimensions, got %d", name, existing, dimensions)
		}
		return nil
	}

	payloadDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS points_%s (
			rowid INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL
		)`, name)
	if _, err := s.db.ExecContext(ctx, payloadDDL); err != nil {
		return fmt.Errorf("create payload table for %s: %w", name, translateSQLiteErr(err))
	}

	vecDDL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_%s USING vec0(
			embedding float[%d]
		)`, name, dimensions)
	if _, err := s.db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("create vector table for %s: %w", name, translateSQLiteErr(err))
	}

	s.dimensions[name] = dimensions
	s.log.Debug("collection ensured",
		zap.String("collection", name),
		zap.Int("dimensions", dimensions),
	)
	return nil
}

// Insert adds new points, rejecting IDs that already exist.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, points ...Point) error {
	return s.write(ctx, collection, points, false)
}

// Upsert adds or replaces points by ID.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, points ...Point) error {
	return s.write(ctx, collection, points, true)
}

func (s *SQLiteStore) write(ctx context.Context, collection string, points []Point, replace bool) error {
	dims, err := s.collectionDims(collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write to %s: %w", collection, translateSQLiteErr(err))
	}
	defer tx.Rollback()

	for _, p := range points {
		if p.ID == "" {
			return fmt.Errorf("collection %s: point ID must not be empty", collection)
		}
		if len(p.Vector) != dims {
			return fmt.Errorf("collection %s: point %s has %d dimensions, want %d",
				collection, p.ID, len(p.Vector), dims)
		}

		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", p.ID, err)
		}

		if replace {
			if err := s.deleteInTx(ctx, tx, collection, p.ID, false); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO points_%s (id, payload) VALUES (?, ?)", collection),
			p.ID, string(payload))
		if err != nil {
			return fmt.Errorf("insert point %s into %s: %w", p.ID, collection, translateSQLiteErr(err))
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert point %s into %s: %w", p.ID, collection, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO vec_%s (rowid, embedding) VALUES (?, ?)", collection),
			rowid, encodeVector(p.Vector)); err != nil {
			return fmt.Errorf("insert vector for %s into %s: %w", p.ID, collection, translateSQLiteErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write to %s: %w", collection, translateSQLiteErr(err))
	}
	return nil
}

// Search runs a cosine KNN query. With a filter it over-fetches and applies
// the equality predicates in Go, since vec0 KNN cannot push payload
// predicates into the scan.
func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]SearchHit, error) {
	dims, err := s.collectionDims(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("collection %s: query vector has %d dimensions, want %d",
			collection, len(vector), dims)
	}
	if limit < 1 {
		return nil, fmt.Errorf("collection %s: search limit must be positive, got %d", collection, limit)
	}

	fetch := limit
	if len(filter) > 0 {
		fetch = limit*4 + 16
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.payload, vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_%s v
		JOIN points_%s p ON v.rowid = p.rowid
		ORDER BY distance ASC
		LIMIT ?`, collection, collection)

	rows, err := s.db.QueryContext(ctx, query, encodeVector(vector), fetch)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, translateSQLiteErr(err))
	}
	defer rows.Close()

	hits := make([]SearchHit, 0, limit)
	for rows.Next() {
		var id, rawPayload string
		var distance float64
		if err := rows.Scan(&id, &rawPayload, &distance); err != nil {
			return nil, fmt.Errorf("scan hit from %s: %w", collection, err)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s in %s: %w", id, collection, err)
		}
		if !matchesFilter(payload, filter) {
			continue
		}

		hits = append(hits, SearchHit{ID: id, Score: 1 - distance, Payload: payload})
		if len(hits) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, translateSQLiteErr(err))
	}
	return hits, nil
}

// Get fetches one point's payload by ID.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	if _, err := s.collectionDims(collection); err != nil {
		return nil, err
	}

	var rawPayload string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT payload FROM points_%s WHERE id = ?", collection),
		id).Scan(&rawPayload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("point %s in %s: %w", id, collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get point %s from %s: %w", id, collection, translateSQLiteErr(err))
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s in %s: %w", id, collection, err)
	}
	return payload, nil
}

// Delete removes a point by ID.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.collectionDims(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete from %s: %w", collection, translateSQLiteErr(err))
	}
	defer tx.Rollback()

	if err := s.deleteInTx(ctx, tx, collection, id, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete from %s: %w", collection, translateSQLiteErr(err))
	}
	return nil
}

func (s *SQLiteStore) deleteInTx(ctx context.Context, tx *sql.Tx, collection, id string, strict bool) error {
	var rowid int64
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT rowid FROM points_%s WHERE id = ?", collection),
		id).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		if strict {
			return fmt.Errorf("point %s in %s: %w", id, collection, ErrNotFound)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("locate point %s in %s: %w", id, collection, translateSQLiteErr(err))
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM vec_%s WHERE rowid = ?", collection), rowid); err != nil {
		return fmt.Errorf("delete vector of %s from %s: %w", id, collection, translateSQLiteErr(err))
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM points_%s WHERE rowid = ?", collection), rowid); err != nil {
		return fmt.Errorf("delete point %s from %s: %w", id, collection, translateSQLiteErr(err))
	}
	return nil
}

// Count returns the number of points in a collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.collectionDims(collection); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM points_%s", collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, translateSQLiteErr(err))
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) collectionDims(collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dims, ok := s.dimensions[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
	}
	return dims, nil
}

// matchesFilter applies equality predicates against a decoded payload.
// Values are compared through their string rendering: payloads round-trip
// through JSON, so a filter int must match a payload float64.
func matchesFilter(payload map[string]any, filter Filter) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// encodeVector serializes a float32 slice to the little-endian blob layout
// sqlite-vec expects.
func encodeVector(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

// translateSQLiteErr maps driver error codes onto the store taxonomy.
func translateSQLiteErr(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}
