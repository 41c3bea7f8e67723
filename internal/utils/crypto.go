package utils

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

const tokenLength = 32 // bytes of entropy per verification token

// GenerateToken creates a cryptographically secure random token suitable
// for activation and password reset links.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// Digest derives the server-side counterpart of a token. The plaintext token
// is never stored; verification recomputes and compares via CompareDigest.
func Digest(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareDigest reports whether token matches digest. bcrypt comparison is
// constant-time in the token material.
func CompareDigest(digest, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(token)) == nil
}
