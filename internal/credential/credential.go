// Package credential checks the demo login scheme: a 12-digit IC number whose
// last four digits double as the password.
//
// The password is derivable from the identifier, so this is not
// authentication in any real sense. It is kept for compatibility with
// existing record files and must not guard anything of value.
package credential

import (
	"errors"
	"fmt"
)

const (
	ICLength       = 12
	PasswordLength = 4
)

// ErrInvalidIC is returned when an IC number is not exactly 12 digits.
var ErrInvalidIC = errors.New("IC number must be exactly 12 digits")

// CheckIC reports whether ic is a well-formed IC number.
func CheckIC(ic string) error {
	if len(ic) != ICLength {
		return fmt.Errorf("%w: got %d characters", ErrInvalidIC, len(ic))
	}
	for i := 0; i < len(ic); i++ {
		if ic[i] < '0' || ic[i] > '9' {
			return fmt.Errorf("%w: non-digit at position %d", ErrInvalidIC, i+1)
		}
	}
	return nil
}

// DerivePassword returns the password issued at registration.
func DerivePassword(ic string) (string, error) {
	if err := CheckIC(ic); err != nil {
		return "", err
	}
	return ic[ICLength-PasswordLength:], nil
}

// Validate reports whether password matches ic under the demo scheme.
func Validate(ic, password string) bool {
	want, err := DerivePassword(ic)
	if err != nil {
		return false
	}
	return len(password) == PasswordLength && password == want
}
