// Package security authenticates inbound webhook bodies.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

// Sign returns the lowercase hex HMAC-SHA256 of body
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signatureHex is the HMAC-SHA256 of the exact body bytes.
// Malformed hex is rejected before any MAC is computed.
func Verify(body []byte, secret, signatureHex string) bool {
	if !isHex(signatureHex) {
		return false
	}

	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	if len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), provided)
}

// Authenticate distinguishes a missing credential from a mismatching one
func Authenticate(body []byte, secret, signatureHex string) error {
	if signatureHex == "" || secret == "" {
		return domain.ErrUnauthorized
	}

	if !Verify(body, secret, signatureHex) {
		return domain.ErrBadSignature
	}

	return nil
}

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
