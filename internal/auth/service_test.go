package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-study/internal/config"
	"github.com/mind-engage/mindengage-study/internal/rbac"
)

func TestAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3nha"), bcrypt.MinCost)
	require.NoError(t, err)

	a := NewService(config.Config{Mode: "prod", AuthHMACSecret: "k", OwnerUser: "ana", OwnerPassHash: string(hash), ViewerUser: "tutor"})

	role, err := a.Authenticate("ana", "s3nha")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleOwner, role)

	_, err = a.Authenticate("ana", "errada")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = a.Authenticate("tutor", "tutor")
	assert.ErrorIs(t, err, ErrBadCredentials, "no hash and prod mode")
	_, err = a.Authenticate("ghost", "ghost")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestDevLogin(t *testing.T) {
	a := NewService(config.Config{Mode: "dev", AuthHMACSecret: "k", OwnerUser: "owner"})
	role, err := a.Authenticate("owner", "owner")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleOwner, role)
}

func TestTokenRoundTripAndExpiry(t *testing.T) {
	a := NewService(config.Config{AuthHMACSecret: "k", TokenTTL: time.Hour})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	tok, err := a.IssueJWT("ana", rbac.RoleViewer)
	require.NoError(t, err)
	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "ana", c.Sub)
	assert.Equal(t, rbac.RoleViewer, c.Role)

	now = now.Add(2 * time.Hour)
	_, err = a.Parse(tok)
	assert.Error(t, err)

	other := NewService(config.Config{AuthHMACSecret: "other"})
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestLoginAndMiddleware(t *testing.T) {
	a := NewService(config.Config{Mode: "dev", AuthHMACSecret: "k", OwnerUser: "owner"})

	rec := httptest.NewRecorder()
	LoginHandler(a).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"owner","password":"owner"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = httptest.NewRecorder()
	LoginHandler(a).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"owner","password":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := a.IssueJWT("owner", rbac.RoleOwner)
	require.NoError(t, err)
	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub, gotRole = SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner", gotSub)
	assert.Equal(t, rbac.RoleOwner, gotRole)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
