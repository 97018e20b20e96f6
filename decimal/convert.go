package decimal

import (
	"fmt"
	"strings"
)

// Digit alphabets accepted by NewBaseConverter.
const (
	BinaryDigits  = "01"
	DecimalDigits = "0123456789"
	HexDigits     = "0123456789abcdef"
)

// BaseConverter rewrites a number from one digit alphabet to another by
// repeated long division of the source digit string.
type BaseConverter struct {
	source string
	target string
	value  [256]int
}

// Predefined converters.
var (
	decToHex = mustConverter(DecimalDigits, HexDigits)
	hexToDec = mustConverter(HexDigits, DecimalDigits)
	decToBin = mustConverter(DecimalDigits, BinaryDigits)
	binToDec = mustConverter(BinaryDigits, DecimalDigits)
)

// NewBaseConverter returns a converter from the source alphabet to the target
// alphabet. The first character of each alphabet is its zero digit.
func NewBaseConverter(source, target string) (*BaseConverter, error) {
	c := &BaseConverter{source: source, target: target}
	for i := range c.value {
		c.value[i] = -1
	}
	if len(source) < 2 || len(target) < 2 {
		return nil, fmt.Errorf("%w: need at least two digits", ErrInvalidAlphabet)
	}
	for i := 0; i < len(source); i++ {
		if c.value[source[i]] != -1 {
			return nil, fmt.Errorf("%w: digit %q repeated", ErrInvalidAlphabet, source[i])
		}
		c.value[source[i]] = i
	}
	return c, nil
}

func mustConverter(source, target string) *BaseConverter {
	c, err := NewBaseConverter(source, target)
	if err != nil {
		panic(err)
	}
	return c
}

// Convert rewrites value into the target alphabet, left-padding the result
// with the target zero digit to at least minDigits characters.
func (c *BaseConverter) Convert(value string, minDigits int) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidDigit)
	}
	for i := 0; i < len(value); i++ {
		if c.value[value[i]] < 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDigit, value[i])
		}
	}

	zero := c.source[:1]
	targetBase := len(c.target)

	var out []byte
	num := value
	for {
		q, r := c.divide(num, targetBase)
		out = append(out, c.target[r])
		if q == zero {
			break
		}
		num = q
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	result := string(out)
	if pad := minDigits - len(result); pad > 0 {
		result = strings.Repeat(c.target[:1], pad) + result
	}
	return result, nil
}

// divide performs long division of x, written in the source alphabet, by y.
// The quotient is returned in the source alphabet without leading zeros.
func (c *BaseConverter) divide(x string, y int) (string, int) {
	base := len(c.source)
	var q []byte
	rem := 0
	for i := 0; i < len(x); i++ {
		cur := rem*base + c.value[x[i]]
		d := cur / y
		rem = cur % y
		if len(q) > 0 || d > 0 {
			q = append(q, c.source[d])
		}
	}
	if len(q) == 0 {
		return c.source[:1], rem
	}
	return string(q), rem
}

// HexToDec converts a hexadecimal string (either case) to decimal.
func HexToDec(h string) (string, error) {
	return hexToDec.Convert(strings.ToLower(h), 0)
}

// DecToHex converts a decimal string to lowercase hexadecimal, left-padded
// with zeros to at least minDigits characters.
func DecToHex(d string, minDigits int) (string, error) {
	return decToHex.Convert(d, minDigits)
}

// DecToBin converts a decimal string to binary.
func DecToBin(d string) (string, error) {
	return decToBin.Convert(d, 0)
}

// BinToDec converts a binary string to decimal.
func BinToDec(b string) (string, error) {
	return binToDec.Convert(b, 0)
}
