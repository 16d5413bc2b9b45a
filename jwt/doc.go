// Package jwt issues and verifies the stateless access/refresh token pair.
//
// Each token type has its own Manager and key material, so a token of one
// type never verifies as the other. Verification failures are reduced to
// three kinds (malformed, bad signature, expired) through Classify.
package jwt
