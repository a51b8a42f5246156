// Package store is the record store adapter: one CRUD + filtered-list contract over
// flat JSON collections, implemented by a local sqlite backend and a remote postgres backend.
package store

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/mind-engage/mindengage-study/internal/apperr"
)

// Collection names. They double as table names in both backends.
const (
	Subjects   = "disciplinas"
	Topics     = "topicos"
	Questions  = "questoes"
	Exams      = "simulados"
	Answers    = "respostas"
	Reviews    = "revisoes"
	DailyStats = "stats_dia"
)

var Collections = []string{Subjects, Topics, Questions, Exams, Answers, Reviews, DailyStats}

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store interface {
	List(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Create keeps a non-empty "id" from data, otherwise assigns one, and stamps createdAt/updatedAt.
	Create(ctx context.Context, collection string, data json.RawMessage) (json.RawMessage, error)
	// Update merges the top-level fields of patch into the record and bumps updatedAt.
	Update(ctx context.Context, collection, id string, patch json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, collection, id string) error
	// BulkCreate inserts all records or none.
	BulkCreate(ctx context.Context, collection string, data []json.RawMessage) ([]json.RawMessage, error)
	// BulkDelete removes the given ids; ids that do not exist are ignored.
	BulkDelete(ctx context.Context, collection string, ids []string) error
	Close() error
}

func ValidCollection(name string) error {
	for _, c := range Collections {
		if c == name {
			return nil
		}
	}
	return apperr.Invalid("collection", "unknown collection "+name)
}

type Op string

const (
	OpEq    Op = "eq"
	OpDueBy Op = "due_by"
)

// Predicate is one AND-ed condition on a top-level document field.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

type Filter []Predicate

// Eq matches documents whose field equals value as JSON. A nil value matches null or absent fields.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// DueBy matches documents whose timestamp field falls on or before the calendar day (UTC) of now.
func DueBy(field string, now time.Time) Predicate {
	return Predicate{Field: field, Op: OpDueBy, Value: now.UTC().Format("2006-01-02")}
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (f Filter) Validate() error {
	for _, p := range f {
		if !fieldRe.MatchString(p.Field) {
			return apperr.Invalid("filter", "bad field name "+p.Field)
		}
		switch p.Op {
		case OpEq:
		case OpDueBy:
			if _, ok := p.Value.(string); !ok {
				return apperr.Invalid("filter", "due_by needs a date")
			}
		default:
			return apperr.Invalid("filter", "unsupported op "+string(p.Op))
		}
	}
	return nil
}
