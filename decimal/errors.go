package decimal

import "errors"

var (
	// ErrDivisionByZero indicates a modulo by zero.
	ErrDivisionByZero = errors.New("decimal: division by zero")

	// ErrInvalidDigit indicates a character outside the converter's source alphabet.
	ErrInvalidDigit = errors.New("decimal: invalid digit for base")

	// ErrInvalidAlphabet indicates a digit alphabet that is too short or repeats a digit.
	ErrInvalidAlphabet = errors.New("decimal: invalid digit alphabet")
)
