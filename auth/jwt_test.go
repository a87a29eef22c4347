package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
)

func newTestManager(t *testing.T, expiry string) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&am.AuthConfig{JWTSecret: "test-secret", TokenExpiry: expiry})
	require.NoError(t, err)
	return m
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestManager(t, "1h")

	token, err := m.GenerateToken(&Claims{UserID: "u1", Email: "ada@example.org"})
	require.NoError(t, err)

	claims, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada@example.org", claims.Identity())
	assert.Equal(t, time.Hour, m.TokenExpiry())
	assert.False(t, m.GeneratedSecret())
}

func TestJWTManager_RejectsForeignSecret(t *testing.T) {
	m := newTestManager(t, "1h")
	other, err := NewJWTManager(&am.AuthConfig{JWTSecret: "other"})
	require.NoError(t, err)

	token, err := other.GenerateToken(&Claims{Email: "ada@example.org"})
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := newTestManager(t, "1m")
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.GenerateToken(&Claims{Email: "ada@example.org"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := newTestManager(t, "")
	_, err := m.Verify(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, 30*24*time.Hour, m.TokenExpiry())
}

func TestJWTManager_GeneratedSecret(t *testing.T) {
	m, err := NewJWTManager(&am.AuthConfig{})
	require.NoError(t, err)
	assert.True(t, m.GeneratedSecret())

	_, err = m.GenerateToken(&Claims{})
	assert.Equal(t, errors.KindBadRequest, errors.KindOf(err))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer abc", "abc"},
		{"Basic dXNlcg==", ""},
		{"abc", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/whoami", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, BearerToken(r), "header %q", tt.header)
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := WithClaims(context.Background(), &Claims{UserID: "u1"})
	assert.Equal(t, "u1", UserFromContext(ctx).Identity())
	assert.Nil(t, UserFromContext(context.Background()))
	assert.Equal(t, "", (*Claims)(nil).Identity())
}
