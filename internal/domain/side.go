package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether s is LONG or SHORT.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// ParseSide accepts LONG/SHORT and the BUY/SELL aliases, case-insensitively.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG", "BUY":
		return SideLong, nil
	case "SHORT", "SELL":
		return SideShort, nil
	}
	return "", fmt.Errorf("%w: side must be LONG or SHORT, got %q", ErrValidation, raw)
}

const quoteSuffix = "USDT"

var parPattern = regexp.MustCompile(`^[A-Z0-9_-]{2,20}$`)

// CanonicalPar trims, uppercases and strips a trailing quote-currency suffix
// without validating the result. Signal-feed candidates go through it so they
// compare equal to user input.
func CanonicalPar(raw string) string {
	p := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(p) > len(quoteSuffix) && strings.HasSuffix(p, quoteSuffix) {
		if trimmed := strings.TrimRight(strings.TrimSuffix(p, quoteSuffix), "-_/"); trimmed != "" {
			p = trimmed
		}
	}
	return p
}

// NormalizePar returns the canonical instrument symbol or ErrValidation.
func NormalizePar(raw string) (string, error) {
	p := CanonicalPar(raw)
	if !parPattern.MatchString(p) {
		return "", fmt.Errorf("%w: invalid par %q", ErrValidation, raw)
	}
	return p, nil
}
