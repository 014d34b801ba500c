package svd

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber reads an SVD scaledNonNegativeInteger: decimal, 0x hex or
// #binary. Don't-care bits written as x read as 0.
func ParseNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(strings.Map(dontCare, s[1:]), 2, 64)
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		v, err = strconv.ParseUint(strings.Map(dontCare, s[2:]), 2, 64)
	default:
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrParse, s)
	}
	return v, nil
}

func dontCare(r rune) rune {
	if r == 'x' || r == 'X' {
		return '0'
	}
	return r
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%X", v)
}

func hex8(v uint64) string {
	return fmt.Sprintf("0x%08X", v)
}

// ParseDimIndex expands `a,b,c`, `n-m` and `A-Z` index lists.
func ParseDimIndex(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return []string{s}, nil
	}
	if a, err := strconv.ParseUint(lo, 10, 32); err == nil {
		b, err := strconv.ParseUint(hi, 10, 32)
		if err != nil || b < a {
			return nil, fmt.Errorf("%w: bad dimIndex %q", ErrParse, s)
		}
		res := make([]string, 0, b-a+1)
		for i := a; i <= b; i++ {
			res = append(res, uitoa(i))
		}
		return res, nil
	}
	if len(lo) == 1 && len(hi) == 1 && lo[0] <= hi[0] {
		res := make([]string, 0, hi[0]-lo[0]+1)
		for c := lo[0]; c <= hi[0]; c++ {
			res = append(res, string(c))
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: bad dimIndex %q", ErrParse, s)
}

// FormatDimIndex writes a compact range when the labels are consecutive
// numbers, a comma list otherwise.
func FormatDimIndex(idx []string) string {
	if len(idx) > 1 {
		first, err := strconv.ParseUint(idx[0], 10, 32)
		if err == nil && idx[0] == uitoa(first) {
			consecutive := true
			for i, s := range idx {
				if s != uitoa(first+uint64(i)) {
					consecutive = false
					break
				}
			}
			if consecutive {
				return idx[0] + "-" + idx[len(idx)-1]
			}
		}
	}
	return strings.Join(idx, ",")
}
