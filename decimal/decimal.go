// Package decimal implements exact arithmetic on non-negative integers held as
// base-10 digit strings, plus a generic converter between digit alphabets.
//
// Operands are expected to be canonical: ASCII digits only, no sign, and no
// leading zeros except for "0" itself. Functions that can produce leading
// zeros strip them before returning.
package decimal

import (
	"strings"
)

// Zero is the canonical representation of 0.
const Zero = "0"

// Add returns a + b.
func Add(a, b string) string {
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make([]byte, len(a)+1)
	carry := byte(0)
	i, j := len(a)-1, len(b)-1
	for k := len(out) - 1; k >= 0; k-- {
		sum := carry
		if i >= 0 {
			sum += a[i] - '0'
			i--
		}
		if j >= 0 {
			sum += b[j] - '0'
			j--
		}
		out[k] = sum%10 + '0'
		carry = sum / 10
	}
	return TrimLeadingZeros(string(out))
}

// Multiply returns a * b using schoolbook long multiplication.
func Multiply(a, b string) string {
	if a == Zero || b == Zero || a == "" || b == "" {
		return Zero
	}
	acc := make([]int, len(a)+len(b))
	for i := len(a) - 1; i >= 0; i-- {
		da := int(a[i] - '0')
		for j := len(b) - 1; j >= 0; j-- {
			p := da*int(b[j]-'0') + acc[i+j+1]
			acc[i+j+1] = p % 10
			acc[i+j] += p / 10
		}
	}
	out := make([]byte, len(acc))
	for k, d := range acc {
		out[k] = byte(d) + '0'
	}
	return TrimLeadingZeros(string(out))
}

// IsSmaller reports whether a < b. A shorter number is smaller; numbers of
// equal length compare digit by digit.
func IsSmaller(a, b string) bool {
	a, b = TrimLeadingZeros(a), TrimLeadingZeros(b)
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Subtract returns |a - b|. Operands are swapped when a < b so the borrow
// subtraction always runs larger minus smaller.
func Subtract(a, b string) string {
	if IsSmaller(a, b) {
		a, b = b, a
	}
	out := []byte(a)
	borrow := byte(0)
	j := len(b) - 1
	for i := len(out) - 1; i >= 0; i-- {
		sub := borrow
		if j >= 0 {
			sub += b[j] - '0'
			j--
		}
		d := out[i] - '0'
		if d < sub {
			d += 10
			borrow = 1
		} else {
			borrow = 0
		}
		out[i] = d - sub + '0'
	}
	return TrimLeadingZeros(string(out))
}

// Mod returns a mod b by repeated subtraction of b shifted left by whole
// decimal digits. It returns ErrDivisionByZero when b is zero.
func Mod(a, b string) (string, error) {
	a, b = TrimLeadingZeros(a), TrimLeadingZeros(b)
	if b == Zero {
		return "", ErrDivisionByZero
	}

	for !IsSmaller(a, b) {
		shift := len(a) - len(b)
		d := b + strings.Repeat("0", shift)
		if IsSmaller(a, d) {
			// a >= b, so a < d implies shift > 0.
			d = b + strings.Repeat("0", shift-1)
		}
		a = Subtract(a, d)
	}
	return a, nil
}

// TrimLeadingZeros strips leading '0' digits, returning "0" for an all-zero
// or empty string.
func TrimLeadingZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return Zero
	}
	return s
}

// IsValid reports whether s is a non-empty string of ASCII decimal digits.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
