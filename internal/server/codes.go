// codes.go - access-code generation for code-gated downloads
package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// accessCodeSpan covers the six-digit range [100000, 999999].
const (
	accessCodeMin  = 100000
	accessCodeSpan = 900000
)

// GenerateAccessCode returns a 6-digit numeric code drawn uniformly from
// [100000, 999999]. Codes are not checked for uniqueness: they gate a
// specific file id, so a collision between two files is harmless.
func GenerateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(accessCodeSpan))
	if err != nil {
		return "", fmt.Errorf("generating access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+accessCodeMin), nil
}
