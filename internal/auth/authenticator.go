package auth

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when the token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the authenticated principal bound to a connection.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
}

// Claims are the JWT claims understood by the Authenticator. UserID uses the
// "id" claim so tokens minted by the account service verify unchanged.
type Claims struct {
	UserID int64  `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the display name, falling back to the email address and
// then to a synthetic name derived from the id.
func (c *Claims) Identity() Identity {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.Email)
	}
	if name == "" {
		name = "user-" + strconv.FormatInt(c.UserID, 10)
	}
	return Identity{ID: c.UserID, DisplayName: name}
}

var validMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Authenticator verifies tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator returns an Authenticator for tokens signed with secret.
// Tokens without an expiry are rejected.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods(validMethods),
			jwt.WithExpirationRequired(),
		),
	}
}

// Authenticate verifies the token's signature and expiry and returns the
// Identity it carries. It performs no I/O.
func (a *Authenticator) Authenticate(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return Identity{}, errors.Wrap(ErrInvalidToken, "token carries no user id")
	}

	return claims.Identity(), nil
}
