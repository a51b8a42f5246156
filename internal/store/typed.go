package store

import (
	"context"
	"encoding/json"

	"github.com/mind-engage/mindengage-study/internal/apperr"
)

func decode[T any](op string, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, apperr.Transport(op, err)
	}
	return v, nil
}

func encode(op string, v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	return b, nil
}

func ListAs[T any](ctx context.Context, s Store, collection string, filter Filter) ([]T, error) {
	raws, err := s.List(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, r := range raws {
		v, err := decode[T]("decode "+collection, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func GetAs[T any](ctx context.Context, s Store, collection, id string) (T, error) {
	raw, err := s.Get(ctx, collection, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T]("decode "+collection, raw)
}

func CreateAs[T any](ctx context.Context, s Store, collection string, v T) (T, error) {
	data, err := encode("encode "+collection, v)
	if err != nil {
		return v, err
	}
	raw, err := s.Create(ctx, collection, data)
	if err != nil {
		return v, err
	}
	return decode[T]("decode "+collection, raw)
}

func BulkCreateAs[T any](ctx context.Context, s Store, collection string, vs []T) ([]T, error) {
	data := make([]json.RawMessage, 0, len(vs))
	for _, v := range vs {
		b, err := encode("encode "+collection, v)
		if err != nil {
			return nil, err
		}
		data = append(data, b)
	}
	raws, err := s.BulkCreate(ctx, collection, data)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, r := range raws {
		v, err := decode[T]("decode "+collection, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// UpdateAs patches a record. patch is usually a map[string]any of JSON field names.
func UpdateAs[T any](ctx context.Context, s Store, collection, id string, patch any) (T, error) {
	data, err := encode("encode "+collection, patch)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := s.Update(ctx, collection, id, data)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T]("decode "+collection, raw)
}
