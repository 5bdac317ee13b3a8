package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// credentialAlphabet omits characters that read alike: 0/O, 1/l/I.
const credentialAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

const (
	credentialLength = 12
	credentialGroup  = 4
)

// GenerateTemporaryCredential returns a random human-typable password of
// the form xxxx-xxxx-xxxx (about 70 bits of entropy).
func GenerateTemporaryCredential() (string, error) {
	max := big.NewInt(int64(len(credentialAlphabet)))
	var b strings.Builder
	b.Grow(credentialLength + credentialLength/credentialGroup)
	for i := range credentialLength {
		if i > 0 && i%credentialGroup == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate credential: %w", err)
		}
		b.WriteByte(credentialAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// hashPassword returns the bcrypt hash of password at the given cost.
func hashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
