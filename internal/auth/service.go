// Package auth issues and checks the bearer tokens of the study API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-study/internal/config"
	"github.com/mind-engage/mindengage-study/internal/rbac"
)

var ErrBadCredentials = errors.New("invalid credentials")

type account struct {
	user     string
	passHash string
	role     string
}

type Service struct {
	hmac     []byte
	ttl      time.Duration
	accounts []account
	devLogin bool
	now      func() time.Time
}

func NewService(cfg config.Config) *Service {
	s := &Service{
		hmac:     []byte(cfg.AuthHMACSecret),
		ttl:      cfg.TokenTTL,
		devLogin: cfg.Mode != "prod",
		now:      time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 8 * time.Hour
	}
	if cfg.OwnerUser != "" {
		s.accounts = append(s.accounts, account{user: cfg.OwnerUser, passHash: cfg.OwnerPassHash, role: rbac.RoleOwner})
	}
	if cfg.ViewerUser != "" {
		s.accounts = append(s.accounts, account{user: cfg.ViewerUser, passHash: cfg.ViewerPassHash, role: rbac.RoleViewer})
	}
	return s
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // owner|viewer
	jwt.RegisteredClaims
}

func (a *Service) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mindengage-study",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// Authenticate checks a login and returns the account's role. Accounts without a
// password hash accept password == user outside prod.
func (a *Service) Authenticate(user, password string) (string, error) {
	for _, acc := range a.accounts {
		if acc.user != user {
			continue
		}
		if acc.passHash == "" {
			if a.devLogin && password == user {
				return acc.role, nil
			}
			return "", ErrBadCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(acc.passHash), []byte(password)); err != nil {
			return "", ErrBadCredentials
		}
		return acc.role, nil
	}
	return "", ErrBadCredentials
}
