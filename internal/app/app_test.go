package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-study/internal/config"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

func TestOpenStoreLocal(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Backend: config.BackendLocal, LocalDSN: "file:" + filepath.Join(t.TempDir(), "study.db") + "?mode=rwc"}
	st, err := OpenStore(ctx, cfg)
	require.NoError(t, err)

	a := New(st, cfg, nil)
	defer a.Close()
	sub, err := a.Bank.CreateSubject(ctx, model.Subject{Name: "Redação"})
	require.NoError(t, err)
	_, err = a.Store.Get(ctx, store.Subjects, sub.ID)
	assert.NoError(t, err)
}

func TestOpenStoreRemoteNeedsDSN(t *testing.T) {
	st, err := OpenStore(context.Background(), config.Config{Backend: config.BackendRemote})
	assert.Error(t, err)
	assert.Nil(t, st)
}
