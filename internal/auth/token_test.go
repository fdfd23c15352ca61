package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onthecheap/internal/models"
)

const testSecret = "0123456789abcdef0123"

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	user := models.User{ID: uuid.New(), Role: models.RoleOwner}

	tok, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Value)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	p, err := issuer.Parse(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.True(t, p.IsOwner())
}

func TestParseRejects(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	user := models.User{ID: uuid.New(), Role: models.RoleCustomer}
	good, err := issuer.Issue(user)
	require.NoError(t, err)

	expiredIssuer := NewIssuer(testSecret, time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(user)
	require.NoError(t, err)

	forged, err := NewIssuer("another-secret-value!", time.Hour).Issue(user)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(), "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(), "role": "customer",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired.Value},
		{"forged", forged.Value},
		{"unknown role", badRole},
		{"missing expiry", noExp},
		{"truncated", good.Value[:len(good.Value)-4]},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.Parse(tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p := Principal{UserID: uuid.New(), Role: models.RoleCustomer}
	got, ok := FromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.False(t, got.IsOwner())
}
