// Package remote keeps the record collections in a hosted postgres database as jsonb documents.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/db"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func Open(ctx context.Context, dsn string, maxConns int32, opts ...Option) (*Store, error) {
	pool, err := db.OpenPostgres(ctx, dsn, maxConns)
	if err != nil {
		return nil, apperr.Transport("open", err)
	}
	return New(pool, opts...), nil
}

func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

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
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT data FROM %s%s ORDER BY created_at, id`, collection, where), args...)
	if err != nil {
		return nil, apperr.Transport("list", errors.Wrapf(err, "list %s", collection))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (json.RawMessage, error) {
		var data []byte
		err := row.Scan(&data)
		return json.RawMessage(data), err
	})
	if err != nil {
		return nil, apperr.Transport("list", errors.Wrapf(err, "scan %s", collection))
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

// whereClause folds every scalar equality into a single jsonb containment test. Arrays and
// objects are compared whole with jsonb equality, since containment would also match supersets.
func whereClause(filter store.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	var (
		conds   []string
		args    []any
		contain = map[string]json.RawMessage{}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	for _, p := range filter {
		switch p.Op {
		case store.OpEq:
			if p.Value == nil {
				conds = append(conds, fmt.Sprintf("coalesce(data->(%s::text), 'null'::jsonb) = 'null'::jsonb", arg(p.Field)))
				continue
			}
			v, err := store.EqValue(p)
			if err != nil {
				return "", nil, err
			}
			if v[0] == '[' || v[0] == '{' {
				conds = append(conds, fmt.Sprintf("data->(%s::text) = %s::jsonb", arg(p.Field), arg(string(v))))
				continue
			}
			contain[p.Field] = v
		case store.OpDueBy:
			conds = append(conds, fmt.Sprintf("left(data->>(%s::text), 10) <= %s", arg(p.Field), arg(p.Value)))
		}
	}
	if len(contain) > 0 {
		b, _ := json.Marshal(contain)
		conds = append(conds, fmt.Sprintf("data @> %s::jsonb", arg(string(b))))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func getRow(ctx context.Context, q querier, collection, id string, forUpdate bool) (json.RawMessage, error) {
	stmt := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, collection)
	if forUpdate {
		stmt += " FOR UPDATE"
	}
	var data []byte
	err := q.QueryRow(ctx, stmt, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(collection, id)
	}
	if err != nil {
		return nil, apperr.Transport("get", errors.Wrapf(err, "get %s/%s", collection, id))
	}
	return json.RawMessage(data), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	return getRow(ctx, s.pool, collection, id, false)
}

func (s *Store) insert(ctx context.Context, q querier, collection string, data json.RawMessage) (json.RawMessage, error) {
	meta, doc, err := store.PrepareCreate(data, s.now())
	if err != nil {
		return nil, err
	}
	_, err = q.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $4)`, collection),
		meta.ID, string(doc), meta.CreatedAt, meta.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
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
	return s.insert(ctx, s.pool, collection, data)
}

func (s *Store) BulkCreate(ctx context.Context, collection string, data []json.RawMessage) ([]json.RawMessage, error) {
	if err := store.ValidCollection(collection); err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(data))
	if len(data) == 0 {
		return out, nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
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
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := getRow(ctx, tx, collection, id, true)
		if err != nil {
			return err
		}
		now := s.now()
		merged, err := store.Merge(cur, patch, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET data = $1::jsonb, updated_at = $2 WHERE id = $3`, collection),
			string(merged), now.UTC(), id)
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
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, collection), id)
	if err != nil {
		return apperr.Transport("delete", errors.Wrapf(err, "delete %s/%s", collection, id))
	}
	if tag.RowsAffected() == 0 {
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
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, collection), ids)
	if err != nil {
		return apperr.Transport("bulk delete", errors.Wrapf(err, "delete %s", collection))
	}
	return nil
}

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

// Truncate empties a collection. Used by tests against a scratch database.
func (s *Store) Truncate(ctx context.Context, collection string) error {
	if err := store.ValidCollection(collection); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, collection)); err != nil {
		return apperr.Transport("truncate", errors.Wrapf(err, "truncate %s", collection))
	}
	return nil
}
