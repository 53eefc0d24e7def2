package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reclaim/internal/models"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)

	tok, err := iss.Issue(models.Principal{UserID: "u1", Email: "u1@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	p, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "u1@example.com", p.Email)
	assert.True(t, p.IsAdmin())
}

func TestIssueDefaultsToUserRole(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	tok, err := iss.Issue(models.Principal{UserID: "u1"})
	require.NoError(t, err)

	p, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, p.Role)
}

func TestIssueRejectsBadInput(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	_, err := iss.Issue(models.Principal{})
	assert.Error(t, err)
	_, err = iss.Issue(models.Principal{UserID: "u1", Role: "root"})
	assert.Error(t, err)
}

func TestVerifyRejects(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	good, err := iss.Issue(models.Principal{UserID: "u1"})
	require.NoError(t, err)

	expired := NewIssuer("s3cret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(models.Principal{UserID: "u1"})
	require.NoError(t, err)

	other, err := NewIssuer("different", time.Hour).Issue(models.Principal{UserID: "u1"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: issuer},
		Role:             models.RoleAdmin,
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"expired":      old,
		"wrong secret": other,
		"alg none":     unsigned,
		"tampered":     good + "x",
		"empty":        "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), models.Principal{UserID: "u1", Role: models.RoleUser})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
