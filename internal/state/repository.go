package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository persists objects and states.
//
// Deleting an object also deletes its state. Implementations must be safe
// for concurrent use.
type Repository interface {
	// GetObject returns ErrObjectNotFound if id has no object.
	GetObject(ctx context.Context, id string) (*Object, error)

	// CreateObject inserts obj unless an object with the same id exists.
	// It reports whether the insert happened.
	CreateObject(ctx context.Context, obj *Object) (bool, error)

	// PutObject inserts or replaces obj.
	PutObject(ctx context.Context, obj *Object) error

	// DeleteObject removes the object and state for id and reports whether
	// anything was removed.
	DeleteObject(ctx context.Context, id string) (bool, error)

	// ListObjects returns objects whose id starts with prefix, sorted by id.
	ListObjects(ctx context.Context, prefix string) ([]*Object, error)

	// GetState returns ErrStateNotFound if id was never written.
	GetState(ctx context.Context, id string) (*State, error)

	// PutState stores st for id. val is the JSON encoding of st.Val.
	PutState(ctx context.Context, id string, st *State, val []byte) error
}

// SQLiteRepository implements Repository on the objects and states tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetObject retrieves the object for id.
func (r *SQLiteRepository) GetObject(ctx context.Context, id string) (*Object, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM objects WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("querying object %s: %w", id, err)
	}
	return decodeObject(doc)
}

// CreateObject inserts obj if absent.
func (r *SQLiteRepository) CreateObject(ctx context.Context, obj *Object) (bool, error) {
	doc, err := json.Marshal(obj)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO objects (id, doc, updated_at) VALUES (?, ?, ?)`,
		obj.ID, string(doc), nowText(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting object %s: %w", obj.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting object %s: %w", obj.ID, err)
	}
	return n == 1, nil
}

// PutObject upserts obj.
func (r *SQLiteRepository) PutObject(ctx context.Context, obj *Object) error {
	doc, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO objects (id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		obj.ID, string(doc), nowText(),
	)
	if err != nil {
		return fmt.Errorf("writing object %s: %w", obj.ID, err)
	}
	return nil
}

// DeleteObject removes the object and its state in one transaction.
func (r *SQLiteRepository) DeleteObject(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting object %s: %w", id, err)
	}
	objects, _ := res.RowsAffected() //nolint:errcheck // sqlite3 always reports rows affected

	res, err = tx.ExecContext(ctx, `DELETE FROM states WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting state %s: %w", id, err)
	}
	states, _ := res.RowsAffected() //nolint:errcheck // sqlite3 always reports rows affected

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete of %s: %w", id, err)
	}
	return objects+states > 0, nil
}

// ListObjects returns objects under prefix. An empty prefix lists all.
func (r *SQLiteRepository) ListObjects(ctx context.Context, prefix string) ([]*Object, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM objects WHERE instr(id, ?) = 1 ORDER BY id`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
	}
	defer rows.Close()

	var objects []*Object
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning object row: %w", err)
		}
		obj, err := decodeObject(doc)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}
	return objects, nil
}

// GetState retrieves the state for id.
func (r *SQLiteRepository) GetState(ctx context.Context, id string) (*State, error) {
	var (
		val, ts, source string
		ack             int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT val, ack, ts, source FROM states WHERE id = ?`, id,
	).Scan(&val, &ack, &ts, &source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("querying state %s: %w", id, err)
	}

	st := &State{Ack: ack != 0, From: source}
	if err := json.Unmarshal([]byte(val), &st.Val); err != nil {
		return nil, fmt.Errorf("decoding state %s: %w", id, err)
	}
	st.TS, _ = time.Parse(time.RFC3339Nano, ts) //nolint:errcheck // written by PutState
	return st, nil
}

// PutState upserts the state for id.
func (r *SQLiteRepository) PutState(ctx context.Context, id string, st *State, val []byte) error {
	ack := 0
	if st.Ack {
		ack = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO states (id, val, ack, ts, source) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			val = excluded.val, ack = excluded.ack, ts = excluded.ts, source = excluded.source`,
		id, string(val), ack, st.TS.UTC().Format(time.RFC3339Nano), st.From,
	)
	if err != nil {
		return fmt.Errorf("writing state %s: %w", id, err)
	}
	return nil
}

func decodeObject(doc string) (*Object, error) {
	var obj Object
	if err := json.NewDecoder(strings.NewReader(doc)).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}
	return &obj, nil
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
