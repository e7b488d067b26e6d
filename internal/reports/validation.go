package reports

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	accountPattern    = regexp.MustCompile(`^\d{4}\.\d{8}$`)
	objectNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)
)

// ValidateAccount checks that s is a well formed account identifier.
func ValidateAccount(s string) (Account, error) {
	if !accountPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}
	return Account(s), nil
}

// CheckObjectName rejects names that could escape the flat report namespace.
// Backends may apply stricter rules of their own.
func CheckObjectName(name string) error {
	if name == "." || strings.Contains(name, "..") || !objectNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}
	return nil
}
