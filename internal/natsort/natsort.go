// Package natsort orders file names the way people read them: digit runs compare
// by numeric value, so call_2 sorts before call_10.
package natsort

import (
	"sort"
	"strings"
)

// Less reports whether a sorts before b. Digit runs compare by value, other
// text compares byte-wise (case-sensitive). Names equal under that rule
// (e.g. "call_01" and "call_1") fall back to plain string order, so Less is a
// strict total order.
func Less(a, b string) bool {
	if c := compare(a, b); c != 0 {
		return c < 0
	}
	return a < b
}

// Sort returns a sorted copy of names; the input is left untouched.
func Sort(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

func compare(a, b string) int {
	for a != "" && b != "" {
		ca, restA := chunk(a)
		cb, restB := chunk(b)
		var c int
		if isDigit(ca[0]) && isDigit(cb[0]) {
			c = compareNumeric(ca, cb)
		} else {
			c = strings.Compare(ca, cb)
		}
		if c != 0 {
			return c
		}
		a, b = restA, restB
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// chunk splits off the leading run of digits or non-digits.
func chunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

// compareNumeric compares digit runs of any length without overflow.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
