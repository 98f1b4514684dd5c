package referral

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	CodeLength = 8

	// no 0/O or 1/I/L
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

func generateCode() (string, error) {
	n := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, CodeLength)
	for i := range b {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
