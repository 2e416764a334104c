package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// GenerateNumericCode returns a uniformly random code in [100000, 999999].
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
