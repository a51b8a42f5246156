package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHas(t *testing.T) {
	c := NewChecker(map[string][]string{
		"owner":  {"*"},
		"viewer": {"bank:read", "exam:*"},
	})
	assert.True(t, c.Has("owner", "bank:write"))
	assert.True(t, c.Has("viewer", "bank:read"))
	assert.True(t, c.Has("viewer", "exam:take"))
	assert.False(t, c.Has("viewer", "bank:write"))
	assert.False(t, c.Has("", "bank:read"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(PermBankWrite)(ok)

	for role, want := range map[string]int{
		RoleOwner:  http.StatusNoContent,
		RoleViewer: http.StatusForbidden,
		"":         http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/questoes", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
