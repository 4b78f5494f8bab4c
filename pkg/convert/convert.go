// Package convert holds the numeric grammar of the template language and the
// coercions between strings, integers and booleans that every other package
// relies on.
package convert

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is returned by ParseNumber when the text is not a number under
// the template grammar.
var ErrSyntax = errors.New("invalid number")

// ErrRange is returned by ParseNumber when the number does not fit in an int32.
var ErrRange = errors.New("number out of range")

// ParseNumber parses text under the template numeric grammar: an optional
// sign followed by either decimal digits or a 0x/0X prefixed hex literal.
// Numbers are 32 bit, like the data values they are compared with.
func ParseNumber(text string) (int, error) {
	s := text
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, text)
	}

	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i], base) {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, text)
		}
	}

	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrRange, text)
	}
	if neg {
		n = -n
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		// Hex literals may spell the full unsigned 32 bit range.
		if base == 16 && !neg && n <= math.MaxUint32 {
			return int(int32(uint32(n))), nil
		}
		return 0, fmt.Errorf("%w: %q", ErrRange, text)
	}
	return int(n), nil
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && c >= 'a' && c <= 'f':
		return true
	case base == 16 && c >= 'A' && c <= 'F':
		return true
	}
	return false
}

// IsNumber reports whether text parses under ParseNumber.
func IsNumber(text string) bool {
	_, err := ParseNumber(text)
	return err == nil
}

// ToInt converts a data string to an integer. Empty and non-numeric strings
// convert to 0.
func ToInt(s string) int {
	n, err := ParseNumber(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// ToBool converts a data string to a boolean. The empty string is false, a
// numeric string is true when non-zero, any other string is true.
func ToBool(s string) bool {
	if s == "" {
		return false
	}
	n, err := ParseNumber(strings.TrimSpace(s))
	if err != nil {
		return true
	}
	return n != 0
}

// FromBool renders a boolean the way the template language displays it.
func FromBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
