package engine

import (
	"strconv"
	"strings"
)

// IsProbablyVersion reports whether name looks like a dotted numeric engine
// version: digits and dots only, with at least one digit.
func IsProbablyVersion(name string) bool {
	if name == "" {
		return false
	}
	digit := false
	for _, r := range name {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r == '.':
		default:
			return false
		}
	}
	return digit
}

// CompareVersions compares dotted versions as numeric tuples. Missing
// trailing components count as zero and components that are not numbers
// are skipped. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa, pb := components(a), components(b)
	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func components(v string) []uint64 {
	parts := strings.Split(v, ".")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
