package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSArchivePutGet(t *testing.T) {
	ctx := context.Background()
	a, err := NewFSArchive(t.TempDir())
	require.NoError(t, err)

	key, err := a.Put(ctx, "imports/2026/01/02/x.csv", strings.NewReader("a;b\n1;2\n"))
	require.NoError(t, err)
	assert.Equal(t, "imports/2026/01/02/x.csv", key)

	rc, err := a.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n1;2\n", string(b))
}

func TestFSArchiveKeepsKeysInsideBase(t *testing.T) {
	ctx := context.Background()
	a, err := NewFSArchive(t.TempDir())
	require.NoError(t, err)

	key, err := a.Put(ctx, "../../escape.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.csv", key)

	_, err = a.Put(ctx, "  ", strings.NewReader("x"))
	assert.Error(t, err)
}
