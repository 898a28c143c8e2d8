package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes gives 192 bits of entropy per token.
const TokenBytes = 24

// NewToken returns a URL-safe random token suitable for email links.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
