package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-study/internal/apperr"
)

// Meta is the part of every document the store owns.
type Meta struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrepareCreate stamps id and timestamps onto data. Both backends call it so ids and
// timestamps look the same regardless of where the record lives.
func PrepareCreate(data json.RawMessage, now time.Time) (Meta, json.RawMessage, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return Meta{}, nil, err
	}
	var id string
	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now = now.UTC()
	meta := Meta{ID: id, CreatedAt: now, UpdatedAt: now}
	fields["id"], _ = json.Marshal(id)
	fields["createdAt"], _ = json.Marshal(now.Format(TimeLayout))
	fields["updatedAt"] = fields["createdAt"]
	out, err := json.Marshal(fields)
	if err != nil {
		return Meta{}, nil, errors.Wrap(err, "encode document")
	}
	return meta, out, nil
}

// Merge applies a shallow patch on top of current. id and createdAt cannot be patched.
func Merge(current, patch json.RawMessage, now time.Time) (json.RawMessage, error) {
	base, err := decodeObject(current)
	if err != nil {
		return nil, err
	}
	changes, err := decodeObject(patch)
	if err != nil {
		return nil, err
	}
	for k, v := range changes {
		if k == "id" || k == "createdAt" {
			continue
		}
		base[k] = v
	}
	base["updatedAt"], _ = json.Marshal(now.UTC().Format(TimeLayout))
	out, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return out, nil
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &apperr.ValidationError{Field: "document", Reason: "not a JSON object: " + err.Error()}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

// EqValue encodes an equality operand as JSON.
func EqValue(p Predicate) ([]byte, error) {
	b, err := json.Marshal(p.Value)
	if err != nil {
		return nil, apperr.Invalid("filter", "value for "+p.Field+" is not JSON")
	}
	return b, nil
}
