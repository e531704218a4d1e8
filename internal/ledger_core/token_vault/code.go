package token_vault

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	codeFloor = 100000
	codeSpan  = 900000
)

// CodeGenerator produces candidate token codes. Uniqueness is enforced by the
// store, not the generator.
type CodeGenerator func() (string, error)

// RandomCode draws a uniform 6-digit code from crypto/rand.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to draw token code: %w", err)
	}
	return strconv.FormatInt(codeFloor+n.Int64(), 10), nil
}
