// Package local keeps the record collections in a sqlite file on this machine.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/db"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the timestamp source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens (or creates) the sqlite database at dsn.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	h, err := db.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, apperr.Transport("open", err)
	}
	return New(h, opts...), nil
}

// New wraps an already migrated database handle.
func New(h *sql.DB, opts ...Option) *Store {
	s := &Store{db: h, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) List(ctx context.Context, collection string, filter store.Filter) ([]json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT data FROM %s%s ORDER BY created_at, id`, collection, where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Transport("list", errors.Wrapf(err, "list %s", collection))
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperr.Transport("list", errors.Wrapf(err, "scan %s", collection))
		}
		out = append(out, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transport("list", errors.Wrapf(err, "list %s", collection))
	}
	return out, nil
}

func whereClause(filter store.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, 2*len(filter))
	for _, p := range filter {
		path := "$." + p.Field
		switch p.Op {
		case store.OpEq:
			if p.Value == nil {
				conds = append(conds, "json_extract(data, ?) IS NULL")
				args = append(args, path)
				continue
			}
			v, err := store.EqValue(p)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, "json_extract(data, ?) = json_extract(?, '$')")
			args = append(args, path, string(v))
		case store.OpDueBy:
			conds = append(conds, "substr(json_extract(data, ?), 1, 10) <= ?")
			args = append(args, path, p.Value)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	return getRow(ctx, s.db, collection, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRow(ctx context.Context, q queryer, collection, id string) (json.RawMessage, error) {
	var data string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, collection), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(collection, id)
	}
	if err != nil {
		return nil, apperr.Transport("get", errors.Wrapf(err, "get %s/%s", collection, id))
	}
	return json.RawMessage(data), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, ex execer, collection string, data json.RawMessage) (json.RawMessage, error) {
	meta, doc, err := store.PrepareCreate(data, s.now())
	if err != nil {
		return nil, err
	}
	_, err = ex.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)`, collection),
		meta.ID, string(doc), meta.CreatedAt.Format(store.TimeLayout), meta.UpdatedAt.Format(store.TimeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &apperr.ValidationError{Field: "id", Reason: fmt.Sprintf("%s %q already exists", collection, meta.ID)}
		}
		return nil, apperr.Transport("create", errors.Wrapf(err, "insert %s", collection))
	}
	return doc, nil
}

func (s *Store) Create(ctx context.Context, collection string, data json.RawMessage) (json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	return s.insert(ctx, s.db, collection, data)
}

func (s *Store) BulkCreate(ctx context.Context, collection string, data []json.RawMessage) ([]json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(data))
	if len(data) == 0 {
		return out, nil
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, d := range data {
			doc, err := s.insert(ctx, tx, collection, d)
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, asAppErr("bulk create", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	var out json.RawMessage
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cur, err := getRow(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		now := s.now()
		merged, err := store.Merge(cur, patch, now)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET data = ?, updated_at = ? WHERE id = ?`, collection),
			string(merged), now.UTC().Format(store.TimeLayout), id)
		if err != nil {
			return apperr.Transport("update", errors.Wrapf(err, "update %s/%s", collection, id))
		}
		out = merged
		return nil
	})
	if err != nil {
		return nil, asAppErr("update", err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidCollection(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, collection), id)
	if err != nil {
		return apperr.Transport("delete", errors.Wrapf(err, "delete %s/%s", collection, id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(collection, id)
	}
	return nil
}

func (s *Store) BulkDelete(ctx context.Context, collection string, ids []string) error {
	if err := store.ValidCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, collection), id); err != nil {
				return apperr.Transport("bulk delete", errors.Wrapf(err, "delete %s/%s", collection, id))
			}
		}
		return nil
	})
	return asAppErr("bulk delete", err)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// asAppErr keeps structured errors from inside a transaction and wraps everything else.
func asAppErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf *apperr.NotFoundError
		ve *apperr.ValidationError
		te *apperr.TransportError
	)
	if errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &te) {
		return err
	}
	return apperr.Transport(op, err)
}
