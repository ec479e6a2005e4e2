package utils

import "testing"

func TestCompareBigints(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2", "1", 1},
		{"42", "42", 0},
		// Longer strings are larger regardless of lexicographic order.
		{"900", "1000", -1},
		{"1000", "900", 1},
		// Past the signed 64-bit range, where native parsing would fail.
		{"9223372036854775807", "9223372036854775808", -1},
		{"18446744073709551616", "9223372036854775807", 1},
	}
	for _, c := range cases {
		got := CompareBigints(c.a, c.b)
		if sign(got) != c.want {
			t.Fatalf("CompareBigints(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
