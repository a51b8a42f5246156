// Package storetest is a conformance suite every store.Store backend must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/store"
)

// Factory returns an empty store whose clock reads from now.
type Factory func(t *testing.T, now func() time.Time) store.Store

type doc struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"nome"`
	SubjectID string    `json:"disciplinaId,omitempty"`
	Active    bool      `json:"isActive"`
	ExamID    *string   `json:"simuladoId"`
	Tags      []string  `json:"tags,omitempty"`
	Due       time.Time `json:"proximaRevisao,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore) })
	t.Run("KeepsCallerID", func(t *testing.T) { testKeepsCallerID(t, newStore) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdateMerges(t, newStore) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore) })
	t.Run("FilterEq", func(t *testing.T) { testFilterEq(t, newStore) })
	t.Run("FilterEqArray", func(t *testing.T) { testFilterEqArray(t, newStore) })
	t.Run("FilterNull", func(t *testing.T) { testFilterNull(t, newStore) })
	t.Run("DueByDate", func(t *testing.T) { testDueByDate(t, newStore) })
	t.Run("BulkCreateAtomic", func(t *testing.T) { testBulkCreateAtomic(t, newStore) })
	t.Run("BulkDelete", func(t *testing.T) { testBulkDelete(t, newStore) })
	t.Run("UnknownCollection", func(t *testing.T) { testUnknownCollection(t, newStore) })
}

func fixedClock() (func() time.Time, *time.Time) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }, &now
}

func testCreateGet(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	created, err := store.CreateAs(ctx, s, store.Subjects, doc{Name: "Direito Constitucional"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.CreatedAt.Equal(clock()))
	assert.True(t, created.UpdatedAt.Equal(clock()))

	got, err := store.GetAs[doc](ctx, s, store.Subjects, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Direito Constitucional", got.Name)
}

func testKeepsCallerID(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	created, err := store.CreateAs(ctx, s, store.Reviews, doc{ID: "q-1", Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "q-1", created.ID)

	_, err = store.CreateAs(ctx, s, store.Reviews, doc{ID: "q-1", Name: "dup"})
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve), "duplicate id should be a validation error, got %v", err)
}

func testUpdateMerges(t *testing.T, newStore Factory) {
	clock, now := fixedClock()
	s := newStore(t, func() time.Time { return clock() })
	ctx := context.Background()

	created, err := store.CreateAs(ctx, s, store.Questions, doc{Name: "a", SubjectID: "d1", Active: true})
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	updated, err := store.UpdateAs[doc](ctx, s, store.Questions, created.ID, map[string]any{
		"nome": "b",
		"id":   "hijack",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "b", updated.Name)
	assert.Equal(t, "d1", updated.SubjectID, "untouched fields survive")
	assert.True(t, updated.Active)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func testNotFound(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	_, err := s.Get(ctx, store.Questions, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Update(ctx, store.Questions, "missing", json.RawMessage(`{"nome":"x"}`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, store.Questions, "missing"), apperr.ErrNotFound)
}

// An array operand matches the whole array, never a superset of it.
func testFilterEqArray(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	for _, d := range []doc{
		{Name: "a", Tags: []string{"a"}},
		{Name: "ab", Tags: []string{"a", "b"}},
		{Name: "none"},
	} {
		_, err := store.CreateAs(ctx, s, store.Questions, d)
		require.NoError(t, err)
	}

	got, err := store.ListAs[doc](ctx, s, store.Questions, store.Filter{store.Eq("tags", []string{"a"})})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)

	got, err = store.ListAs[doc](ctx, s, store.Questions, store.Filter{store.Eq("tags", []string{"a", "b"}), store.Eq("nome", "ab")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ab", got[0].Name)
}

func testFilterEq(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	for _, d := range []doc{
		{Name: "a", SubjectID: "d1", Active: true},
		{Name: "b", SubjectID: "d1", Active: false},
		{Name: "c", SubjectID: "d2", Active: true},
	} {
		_, err := store.CreateAs(ctx, s, store.Questions, d)
		require.NoError(t, err)
	}

	all, err := store.ListAs[doc](ctx, s, store.Questions, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := store.ListAs[doc](ctx, s, store.Questions, store.Filter{
		store.Eq("disciplinaId", "d1"),
		store.Eq("isActive", true),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)

	none, err := store.ListAs[doc](ctx, s, store.Questions, store.Filter{store.Eq("disciplinaId", "d3")})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testFilterNull(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	exam := "e1"
	_, err := store.CreateAs(ctx, s, store.Answers, doc{Name: "in exam", ExamID: &exam})
	require.NoError(t, err)
	_, err = store.CreateAs(ctx, s, store.Answers, doc{Name: "practice"})
	require.NoError(t, err)

	practice, err := store.ListAs[doc](ctx, s, store.Answers, store.Filter{store.Eq("simuladoId", nil)})
	require.NoError(t, err)
	require.Len(t, practice, 1)
	assert.Equal(t, "practice", practice[0].Name)

	inExam, err := store.ListAs[doc](ctx, s, store.Answers, store.Filter{store.Eq("simuladoId", "e1")})
	require.NoError(t, err)
	require.Len(t, inExam, 1)
	assert.Equal(t, "in exam", inExam[0].Name)
}

func testDueByDate(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()
	now := clock()

	for _, d := range []doc{
		{Name: "yesterday", Due: now.Add(-24 * time.Hour)},
		{Name: "later today", Due: now.Add(6 * time.Hour)},
		{Name: "tomorrow", Due: now.Add(24 * time.Hour)},
	} {
		_, err := store.CreateAs(ctx, s, store.Reviews, d)
		require.NoError(t, err)
	}

	due, err := store.ListAs[doc](ctx, s, store.Reviews, store.Filter{store.DueBy("proximaRevisao", now)})
	require.NoError(t, err)
	names := []string{}
	for _, d := range due {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"yesterday", "later today"}, names)
}

func testBulkCreateAtomic(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	out, err := store.BulkCreateAs(ctx, s, store.Answers, []doc{{Name: "1"}, {Name: "2"}})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = store.BulkCreateAs(ctx, s, store.Answers, []doc{{ID: "x", Name: "3"}, {ID: "x", Name: "4"}})
	require.Error(t, err)

	all, err := store.ListAs[doc](ctx, s, store.Answers, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2, "failed batch leaves nothing behind")
}

func testBulkDelete(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	ctx := context.Background()

	out, err := store.BulkCreateAs(ctx, s, store.Topics, []doc{{Name: "1"}, {Name: "2"}, {Name: "3"}})
	require.NoError(t, err)

	require.NoError(t, s.BulkDelete(ctx, store.Topics, []string{out[0].ID, out[2].ID, "missing"}))
	left, err := store.ListAs[doc](ctx, s, store.Topics, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, out[1].ID, left[0].ID)
}

func testUnknownCollection(t *testing.T, newStore Factory) {
	clock, _ := fixedClock()
	s := newStore(t, clock)
	_, err := s.List(context.Background(), "users; DROP TABLE questoes", nil)
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}
