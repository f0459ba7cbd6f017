package user

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/pkg/errors"
)

const otpLength = 6

// for mocking
var randReadFunc = rand.Read

// GenerateOTP returns a code of otpLength uniformly distributed decimal
// digits. Bytes above the largest multiple of 10 are rejected so no digit
// is more likely than another.
func GenerateOTP() (string, error) {
	code := make([]byte, otpLength)
	buf := make([]byte, 1)
	for i := 0; i < otpLength; {
		if _, err := randReadFunc(buf); err != nil {
			return "", errors.Wrap(err, "reading random bytes")
		}
		if buf[0] >= 250 {
			continue
		}
		code[i] = '0' + buf[0]%10
		i++
	}
	return string(code), nil
}

// OTPMatches compares codes in constant time.
func OTPMatches(expected, provided string) bool {
	if len(expected) != otpLength || len(provided) != otpLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
