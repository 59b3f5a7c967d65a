package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"furniture-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("senhaforte123")
	require.NoError(t, err)
	assert.NotEqual(t, "senhaforte123", hash)
	assert.True(t, h.Compare(hash, "senhaforte123"))
	assert.False(t, h.Compare(hash, "wrong"))
}

func TestSessionRoundTrip(t *testing.T) {
	p := NewSessionProvider([]byte("secret-key-for-test"), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	require.NoError(t, p.Login(rec, req, &models.User{ID: 9, Role: models.RoleOperator}))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	next := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	actor, ok := p.Resolve(next)
	require.True(t, ok)
	assert.Equal(t, models.Actor{UserID: 9, Role: models.RoleOperator}, actor)
}

func TestResolveRejectsForeignCookie(t *testing.T) {
	issuer := NewSessionProvider([]byte("one-secret"), false)
	verifier := NewSessionProvider([]byte("another-secret"), false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, issuer.Login(rec, req, &models.User{ID: 1, Role: models.RoleAdmin}))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	_, ok := verifier.Resolve(next)
	assert.False(t, ok)
}

func TestResolveAnonymous(t *testing.T) {
	p := NewSessionProvider([]byte("secret"), false)
	_, ok := p.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
