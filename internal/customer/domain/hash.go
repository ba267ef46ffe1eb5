package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashPhoneNumber normalizes a phone number to its digits and returns the
// lowercase hex SHA-256 of them, so "+55 11 91234-5678" and "5511912345678"
// identify the same customer.
func HashPhoneNumber(phone string) string {
	var digits strings.Builder
	digits.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	sum := sha256.Sum256([]byte(digits.String()))
	return hex.EncodeToString(sum[:])
}
