package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in a one-time code.
const OTPLength = 6

var otpSpace = big.NewInt(1000000)

// GenerateOTP draws a fixed-length numeric code uniformly from [000000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
