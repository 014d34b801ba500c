// Package svdpatch applies YAML patch documents to SVD device descriptions.
//
// The root package holds the name-spec matcher shared by every transformer:
// a spec is a comma separated list of glob alternatives, or a single glob
// with brace alternation, optionally prefixed with `?~`.
package svdpatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tony-format/svdpatch/debug"
)

var ErrMalformedSpec = errors.New("malformed spec")

// IgnorePrefix marks a spec that may match nothing.
const IgnorePrefix = "?~"

// ParseSpec strips a leading `?~` and reports whether it was present.
func ParseSpec(spec string) (string, bool) {
	if s, ok := strings.CutPrefix(spec, IgnorePrefix); ok {
		return s, true
	}
	return spec, false
}

// MatchSubspec returns the alternative of spec that matches name.
func MatchSubspec(name, spec string) (string, bool) {
	if strings.HasPrefix(spec, "_") {
		return "", false
	}
	if strings.Contains(spec, "{") {
		if globMatch(spec, name) {
			return spec, true
		}
		return "", false
	}
	for subspec := range strings.SplitSeq(spec, ",") {
		if globMatch(subspec, name) {
			if debug.Match() {
				debug.Logf("match %q with %q\n", name, subspec)
			}
			return subspec, true
		}
	}
	return "", false
}

func Matches(name, spec string) bool {
	_, ok := MatchSubspec(name, spec)
	return ok
}

// IsPattern reports whether spec can match more than a literal name.
func IsPattern(spec string) bool {
	return strings.ContainsAny(spec, "*?[]{},")
}

func globMatch(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		if debug.Match() {
			debug.Logf("bad pattern %q: %v\n", pattern, err)
		}
		return false
	}
	return ok
}

var tokenRe = regexp.MustCompile(`^\w*((?:[?*]|\[\d+(?:-\d+)?\]|\[[a-zA-Z]+(?:-[a-zA-Z]+)?\])+)\w*$`)

// LocateToken finds the single variable token in the first alternative of
// spec and returns the number of literal characters on each side of it.
func LocateToken(spec string) (left, right int, err error) {
	first, _, _ := strings.Cut(spec, ",")
	m := tokenRe.FindStringSubmatchIndex(first)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q must contain exactly one variable token", ErrMalformedSpec, spec)
	}
	return m[2], len(first) - m[3], nil
}

// IndexLabel cuts the per-instance label out of a matched name.
func IndexLabel(name string, left, right int) string {
	if left+right > len(name) {
		return ""
	}
	return name[left : len(name)-right]
}

// ReplaceToken substitutes repl for the variable token of spec.
func ReplaceToken(spec string, left, right int, repl string) string {
	first, _, _ := strings.Cut(spec, ",")
	return first[:left] + repl + first[len(first)-right:]
}
