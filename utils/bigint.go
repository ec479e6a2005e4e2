package utils

// MaxSQLInt is the largest id the store can index (signed 64-bit), kept as a
// decimal string for big-int comparison.
const MaxSQLInt = "9223372036854775807"

// CompareBigints compares two non-negative decimal strings of arbitrary
// precision without parsing them: first by digit length, then
// lexicographically. Returns <0, 0 or >0 in the usual cmp convention.
func CompareBigints(a, b string) int {
	if d := len(a) - len(b); d != 0 {
		return d
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
