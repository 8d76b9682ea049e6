package oauth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenFields are the reply keys that may carry the issued token,
// in lookup order.
var tokenFields = []string{"access_token", "tokenId"}

// TokenInfo is what the console reads from a provider token.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectReply finds the token in a provider reply body and decodes its
// registered claims. The signature is NOT verified; the result is
// informational only and must never drive an access decision.
func InspectReply(body []byte) (TokenInfo, error) {
	var reply map[string]any
	if err := json.Unmarshal(body, &reply); err != nil {
		return TokenInfo{}, fmt.Errorf("decoding reply: %w", err)
	}

	for _, field := range tokenFields {
		raw, ok := reply[field].(string)
		if !ok || raw == "" {
			continue
		}
		return inspectToken(raw)
	}
	return TokenInfo{}, ErrNoToken
}

func inspectToken(raw string) (TokenInfo, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("parsing token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// BearerSubject returns the unverified subject of an "Authorization: Bearer"
// header value, or "" when there is none.
func BearerSubject(authorization string) string {
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return ""
	}
	info, err := inspectToken(strings.TrimSpace(authorization[len(prefix):]))
	if err != nil {
		return ""
	}
	return info.Subject
}
