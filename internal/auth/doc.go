// Package auth verifies the bearer token presented when a connection is
// established and turns it into the Identity bound to that connection.
//
// Tokens are HMAC-signed JWTs carrying the user id and display name. The
// Identity decoded here is the only source of sender information for the
// rest of the system; payload fields claiming a sender are never trusted.
package auth
