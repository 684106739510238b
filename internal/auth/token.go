package auth

import (
	"net/http"
	"strings"
)

// TokenQueryParam carries the token on WebSocket upgrades, where browsers
// cannot set an Authorization header.
const TokenQueryParam = "token"

// TokenFromRequest returns the bearer token from the Authorization header, or
// from the token query parameter when the header is absent.
func TokenFromRequest(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}
