package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	sessionIDPrefix = "sess_"
)

var sessionIDPattern = regexp.MustCompile(`^sess_[a-zA-Z0-9]{24}$`)

// NewSessionID generates a new session ID with the "sess_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewSessionID() string {
	return sessionIDPrefix + randomAlphanumeric(idLength)
}

// ValidateSessionID checks whether the given string is a valid session ID
// (matches "sess_" + 24 alphanumeric characters).
func ValidateSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure is unrecoverable.
			panic("api: crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
