package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DefaultTokenTTL matches the lifetime of tokens handed out at login.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Issuer mints tokens the Authenticator accepts. chatd only uses it for
// development tokens and tests; production tokens come from the account
// service.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret. A non-positive ttl falls
// back to DefaultTokenTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs an HS256 token for id and returns it with its expiry.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	if id.ID <= 0 {
		return "", time.Time{}, errors.New("identity has no id")
	}

	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: id.ID,
		Name:   id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return signed, exp, nil
}
