package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit code with leading zeros kept (e.g. "042917").
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
