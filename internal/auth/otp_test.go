package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP_FixedLengthDigits(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, OTPLength)
		for _, ch := range code {
			assert.True(t, ch >= '0' && ch <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestGenerateOTP_Varies(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 50 draws from a million-value space colliding down to a handful would
	// mean the generator is broken.
	assert.Greater(t, len(seen), 40)
}
