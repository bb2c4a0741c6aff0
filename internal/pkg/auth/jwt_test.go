package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(now time.Time) *JWTService {
	s := NewJWTService(JWTConfig{SecretKey: "test-secret", AccessTokenExp: time.Hour, TokenIssuer: "exchange"})
	s.now = func() time.Time { return now }
	return s
}

func TestJWTService_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestJWT(now)
	userID := uuid.New()

	token, expiresAt, err := s.GenerateToken(userID, "Ana")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := s.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Ana", claims.DisplayName)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestJWTService_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestJWT(now)
	token, _, err := s.GenerateToken(uuid.New(), "Ana")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestJWT(now.Add(2 * time.Hour))
		_, err := later.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(JWTConfig{SecretKey: "other", TokenIssuer: "exchange"})
		other.now = func() time.Time { return now }
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(JWTConfig{SecretKey: "test-secret", TokenIssuer: "someone-else"})
		other.now = func() time.Time { return now }
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("nil user", func(t *testing.T) {
		nilToken, _, err := s.GenerateToken(uuid.Nil, "")
		require.NoError(t, err)
		_, err = s.ValidateAndExtractClaims(nilToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := s.ValidateAndExtractClaims("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer a.b.c", want: "a.b.c"},
		{header: "a.b.c", want: "a.b.c"},
		{header: "  Bearer  a.b.c ", want: "a.b.c"},
		{header: "", wantErr: true},
		{header: "Bearer nodots", wantErr: true},
		{header: "Basic dXNlcjpwYXNz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
