package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthenticator_ValidToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	token, exp, err := issuer.Issue(Identity{ID: 1, DisplayName: "Ada"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	id, err := NewAuthenticator(testSecret).Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: 1, DisplayName: "Ada"}, id)
}

func TestAuthenticator_Rejections(t *testing.T) {
	now := time.Now()
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "missing",
			token: "   ",
			want:  ErrMissingToken,
		},
		{
			name:  "garbage",
			token: "not-a-jwt",
			want:  ErrInvalidToken,
		},
		{
			name: "expired",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, &Claims{
				UserID:           1,
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
			}),
			want: ErrExpiredToken,
		},
		{
			name:  "wrong secret",
			token: signClaims(t, jwt.SigningMethodHS256, []byte("other"), &Claims{UserID: 1, RegisteredClaims: valid}),
			want:  ErrInvalidToken,
		},
		{
			name:  "unsigned",
			token: signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &Claims{UserID: 1, RegisteredClaims: valid}),
			want:  ErrInvalidToken,
		},
		{
			name:  "no expiry",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, &Claims{UserID: 1}),
			want:  ErrInvalidToken,
		},
		{
			name:  "no user id",
			token: signClaims(t, jwt.SigningMethodHS256, testSecret, &Claims{Name: "Ada", RegisteredClaims: valid}),
			want:  ErrInvalidToken,
		},
	}

	a := NewAuthenticator(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticator_ExpiredIssuedToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := issuer.Issue(Identity{ID: 3, DisplayName: "Cy"})
	require.NoError(t, err)

	_, err = NewAuthenticator(testSecret).Authenticate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestClaims_IdentityFallbacks(t *testing.T) {
	assert.Equal(t, "Ada", (&Claims{UserID: 1, Name: " Ada "}).Identity().DisplayName)
	assert.Equal(t, "ada@example.com", (&Claims{UserID: 1, Email: "ada@example.com"}).Identity().DisplayName)
	assert.Equal(t, "user-9", (&Claims{UserID: 9}).Identity().DisplayName)
}

func TestIssuer_RejectsEmptyIdentity(t *testing.T) {
	_, _, err := NewIssuer(testSecret, 0).Issue(Identity{})
	assert.Error(t, err)
}
