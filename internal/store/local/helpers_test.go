package local_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func idOf(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &v))
	return v.ID
}
