package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatKobo(t *testing.T) {
	tests := []struct {
		kobo int64
		want string
	}{
		{0, "₦0.00"},
		{500, "₦5.00"},
		{125, "₦1.25"},
		{5, "₦0.05"},
		{123456, "₦1234.56"},
		{-750, "-₦7.50"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatKobo(tt.kobo))
	}
}

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		assert.Len(t, code, 9)
		assert.True(t, strings.HasPrefix(code, "R"))
		seen[code] = true
	}
	// 100 draws from a 36^8 space colliding would mean a broken generator
	assert.Len(t, seen, 100)
}

func TestGenerateReference(t *testing.T) {
	ref := GenerateReference("ADJ")

	parts := strings.Split(ref, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "ADJ", parts[0])
	assert.Equal(t, time.Now().Format("20060102"), parts[1])
	assert.Len(t, parts[2], 8)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-admin-pass")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret-admin-pass", hash))
	assert.False(t, CheckPasswordHash("wrong-pass", hash))
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := GenerateAdminToken("ops", "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateAdminToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.True(t, claims.IsAdmin)

	_, err = ValidateAdminToken(token, "other-secret")
	assert.Error(t, err)
}
