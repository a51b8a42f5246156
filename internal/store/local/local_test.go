package local_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/store"
	"github.com/mind-engage/mindengage-study/internal/store/local"
	"github.com/mind-engage/mindengage-study/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) store.Store {
		dsn := "file:" + filepath.Join(t.TempDir(), "study.db") + "?mode=rwc"
		s, err := local.Open(context.Background(), dsn, local.WithClock(now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "study.db") + "?mode=rwc"

	s, err := local.Open(ctx, dsn)
	require.NoError(t, err)
	created, err := s.Create(ctx, store.Subjects, []byte(`{"nome":"Português"}`))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = local.Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, store.Subjects, idOf(t, created))
	require.NoError(t, err)
	require.Contains(t, string(got), "Português")
}
