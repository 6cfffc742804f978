package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword accepts bcrypt hashes and the legacy unsalted sha256 hex
// digests imported from the old user table. needsRehash is true for the latter.
func CheckPassword(hash, plain string) (ok bool, needsRehash bool) {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil, false
	}
	sum := sha256.Sum256([]byte(plain))
	legacy := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(legacy)) == 1 {
		return true, true
	}
	return false, false
}
