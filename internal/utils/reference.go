package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString generates a random string from the reference charset
func randomString(length int) string {
	result := make([]byte, length)
	max := big.NewInt(int64(len(referenceCharset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; fall back to a time-derived index
			result[i] = referenceCharset[int(time.Now().UnixNano())%len(referenceCharset)]
			continue
		}
		result[i] = referenceCharset[n.Int64()]
	}
	return string(result)
}

// GenerateReferralCode generates a shareable referral code. Uniqueness is
// enforced by the database index; callers retry on collision.
func GenerateReferralCode() string {
	return fmt.Sprintf("R%s", randomString(8))
}

// GenerateReference generates a unique reference for adjustment records
func GenerateReference(prefix string) string {
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, randomString(8))
}
