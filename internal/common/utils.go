package common

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// MakeRandHexString generates size random bytes and returns them hex
// encoded, so the result is 2*size characters long. Used for activation and
// password-reset tokens.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
