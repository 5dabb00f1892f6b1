package utils

import (
	"crypto/rand"
	"math/big"
)

const referralCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReferralCode generates a random uppercase code of length n.
// Ambiguous characters (0/O, 1/I) are excluded.
func GenerateReferralCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCharset))))
		if err != nil {
			// Fallback to empty if crypto rand fails (highly unlikely)
			return ""
		}
		b[i] = referralCharset[num.Int64()]
	}
	return string(b)
}
