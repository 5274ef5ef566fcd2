package options

import "fmt"

// MaxDigits bounds every numeric option value.
const MaxDigits = 8

// ParseNumber parses an unsigned decimal string of at most maxDigits digits.
// Signs, whitespace and any other non-digit are rejected.
func ParseNumber(s string, maxDigits int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidNumber)
	}

	if len(s) > maxDigits {
		return 0, fmt.Errorf("%w: %q has more than %d digits", ErrInvalidNumber, s, maxDigits)
	}

	n := 0

	for i := range len(s) {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: invalid digit: %c (ASCII:0x%02X)", ErrInvalidNumber, c, c)
		}

		n = n*10 + int(c-'0') //nolint:mnd // decimal.
	}

	return n, nil
}
