// Package matcher implements Robot Framework's name-equality rules:
// case/space-insensitive keyword matching and sigil-stripping variable
// matching. Every other package in internal/robot builds its cache keys
// and map lookups on top of these two types.
package matcher

import (
	"strings"
	"unicode"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// ErrInvalidName is returned when a variable name has no extractable base
// (e.g. no sigil, unbalanced braces). Callers at the namespace boundary
// must trap this rather than letting it propagate as a crash.
var ErrInvalidName = errors.New("invalid name")

// KeywordMatcher wraps a keyword name so it can be used as a hashable,
// case/space/underscore-insensitive map key. Two KeywordMatchers have the
// same Key() iff EqKeyword(a.Name, b.Name); comparing the structs with ==
// also compares the original Name.
type KeywordMatcher struct {
	Name       string
	normalized string
}

// NewKeywordMatcher builds a KeywordMatcher for name.
func NewKeywordMatcher(name string) KeywordMatcher {
	return KeywordMatcher{Name: name, normalized: normalizeKeyword(name)}
}

// Key returns the comparable normalized form, suitable as a Go map key.
func (m KeywordMatcher) Key() string { return m.normalized }

// EqKeyword implements Robot's "eq": case-insensitive, ignoring spaces and
// underscores.
func EqKeyword(a, b string) bool {
	return normalizeKeyword(a) == normalizeKeyword(b)
}

func normalizeKeyword(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '_' {
			continue
		}
		b.WriteRune(toLowerASCIIAware(r))
	}
	return b.String()
}

func toLowerASCIIAware(r rune) rune {
	return unicode.ToLower(r)
}

// VariableMatcher is the canonical key for a variable reference: the
// sigil and braces stripped, any ":type" hint dropped, lowercased, with
// whitespace/underscore runs collapsed to a single underscore.
//
// VariableMatcher must be total, reflexive, symmetric and transitive; a
// name with no extractable base (VariableBase returns ok=false) produces
// ErrInvalidName rather than a degenerate matcher, so callers can trap it
// at the namespace boundary instead of propagating a bogus equality.
type VariableMatcher struct {
	Name       string
	normalized string
}

// NewVariableMatcher builds a VariableMatcher for name, or returns
// ErrInvalidName if name has no extractable base.
func NewVariableMatcher(name string) (VariableMatcher, error) {
	base, ok := VariableBase(name)
	if !ok {
		return VariableMatcher{}, errors.Wrapf(ErrInvalidName, "invalid variable %q", name)
	}
	return VariableMatcher{Name: name, normalized: normalizeVariableBase(base)}, nil
}

// Key returns the comparable normalized form, suitable as a Go map key.
func (m VariableMatcher) Key() string { return m.normalized }

// EqVariable reports whether a and b denote the same variable under
// canonical equality. Malformed input on either side is never equal.
func EqVariable(a, b string) bool {
	ma, err := NewVariableMatcher(a)
	if err != nil {
		return false
	}
	mb, err := NewVariableMatcher(b)
	if err != nil {
		return false
	}
	return ma.normalized == mb.normalized
}

const variableSigils = "$@&%"

// VariableBase strips the sigil and enclosing braces from a variable
// reference like "${my var}" or "@{LIST:int}", returning the text before
// any ":type" hint. ok is false when name does not start with one of the
// four sigils followed by a brace, or the braces are unbalanced.
func VariableBase(name string) (base string, ok bool) {
	if len(name) < 3 {
		return "", false
	}
	if strings.IndexByte(variableSigils, name[0]) < 0 {
		return "", false
	}
	if name[1] != '{' {
		return "", false
	}
	depth := 0
	end := -1
	for i := 1; i < len(name); i++ {
		switch name[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return "", false
	}
	inner := name[2:end]
	if idx := strings.IndexByte(inner, ':'); idx >= 0 {
		inner = inner[:idx]
	}
	return inner, true
}

func normalizeVariableBase(base string) string {
	var b strings.Builder
	b.Grow(len(base))
	lastWasSep := false
	for _, r := range base {
		if r == ' ' || r == '_' {
			if !lastWasSep && b.Len() > 0 {
				b.WriteByte('_')
				lastWasSep = true
			}
			continue
		}
		lastWasSep = false
		b.WriteRune(toLowerASCIIAware(r))
	}
	return strings.TrimSuffix(b.String(), "_")
}
