package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// resetTokenBytes gives 256 bits of entropy; the encoded token is 43 characters.
const resetTokenBytes = 32

// NewResetToken returns a URL-safe, high-entropy, single-use reset token.
func NewResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
