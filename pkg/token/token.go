// Package token inspects the compact bearer tokens issued by the identity
// provider. Signatures are not verified: the server only needs the claims to
// decide when to refresh and which account a token belongs to.
package token

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be split or its payload decoded.
var ErrMalformed = errors.New("malformed_token")

// Only the payload segment is read, padded or not; the header is ignored.
var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Claims is the decoded payload of a token.
type Claims map[string]interface{}

// Decode returns the payload claims of token. Callers must treat an error as
// "no claims available"; the returned Claims is never nil.
func Decode(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[1] == "" {
		return Claims{}, ErrMalformed
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil || claims == nil {
		return Claims{}, ErrMalformed
	}

	return Claims(claims), nil
}

// ExpiryOf returns the token expiry in epoch milliseconds, or 0 when the
// token cannot be decoded or carries no expiry. 0 means "already expired".
func ExpiryOf(raw string) int64 {
	claims, err := Decode(raw)
	if err != nil {
		return 0
	}
	return claims.Expiry()
}

// Expiry returns the exp claim in epoch milliseconds, 0 when absent.
func (c Claims) Expiry() int64 {
	switch v := c["exp"].(type) {
	case float64:
		return int64(v * 1000)
	case int64:
		return v * 1000
	}
	return 0
}

// Subject returns the sub claim (the account id).
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Account returns the in-game name and tag line carried in the acct claim.
func (c Claims) Account() (gameName, tagLine string, ok bool) {
	acct, isMap := c["acct"].(map[string]interface{})
	if !isMap {
		return "", "", false
	}
	gameName, _ = acct["game_name"].(string)
	tagLine, _ = acct["tag_line"].(string)
	if gameName == "" {
		return "", "", false
	}
	return gameName, tagLine, true
}

// Prefix returns the first n characters of a token followed by an ellipsis,
// for log output.
func Prefix(raw string, n int) string {
	if raw == "" {
		return "null"
	}
	if len(raw) <= n {
		return raw
	}
	return raw[:n] + "..."
}
