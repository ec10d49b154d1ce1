package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FallbackPolicy selects what Normalize returns for a price it cannot parse.
type FallbackPolicy int

const (
	// FallbackZero substitutes ZeroPrice.
	FallbackZero FallbackPolicy = iota
	// FallbackOriginal returns the raw input unmodified.
	FallbackOriginal
)

// ZeroPrice is returned for blank input and by FallbackZero.
const ZeroPrice = "0.00"

var (
	// ErrBlankPrice marks empty or "N/A" input.
	ErrBlankPrice = errors.New("blank price")
	// ErrMalformedPrice marks input that holds no usable amount.
	ErrMalformedPrice = errors.New("malformed price")

	rangeSeparator = regexp.MustCompile(`(?i)\s+(?:to|-|–|—)\s+`)
	nonPriceChars  = regexp.MustCompile(`[^\d.,]`)
	// "10-20" is ambiguous: a range missing its spaces or a mangled number.
	unspacedRange = regexp.MustCompile(`\d\s*-\s*\d`)
)

// ParseFallbackPolicy accepts "zero" (or empty) and "original".
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return FallbackZero, nil
	case "original":
		return FallbackOriginal, nil
	default:
		return FallbackZero, fmt.Errorf("unknown price fallback policy %q", s)
	}
}

func (p FallbackPolicy) String() string {
	if p == FallbackOriginal {
		return "original"
	}
	return "zero"
}

func isBlankPrice(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || strings.EqualFold(s, "N/A")
}

// ParsePrice extracts the amount from a free-form price string. A range
// ("$15.74 to $150.00", "10 - 20") yields its larger end; every end must
// parse. A hyphen between digits that is not a spaced range separator is
// rejected.
func ParsePrice(raw string) (float64, error) {
	if isBlankPrice(raw) {
		return 0, ErrBlankPrice
	}

	parts := rangeSeparator.Split(strings.TrimSpace(raw), -1)

	best := 0.0
	for i, part := range parts {
		if unspacedRange.MatchString(part) {
			return 0, fmt.Errorf("%w: ambiguous hyphen in %q", ErrMalformedPrice, raw)
		}
		v, err := parseAmount(part)
		if err != nil {
			if len(parts) > 1 {
				return 0, fmt.Errorf("%w: bad range bound in %q", ErrMalformedPrice, raw)
			}
			return 0, err
		}
		if i == 0 || v > best {
			best = v
		}
	}
	return best, nil
}

func parseAmount(s string) (float64, error) {
	clean := normalizeSeparators(nonPriceChars.ReplaceAllString(s, ""))
	if clean == "" {
		return 0, fmt.Errorf("%w: no digits in %q", ErrMalformedPrice, s)
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || !IsFinite(v) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, s)
	}
	return v, nil
}

// normalizeSeparators rewrites s so that "." is the only decimal separator
// and thousands separators are gone.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if len(s)-lastComma-1 <= 2 {
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}

// FormatPrice renders v with exactly two fraction digits.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PriceNormalizer applies a multiplier to parsed prices and substitutes the
// configured fallback for values it cannot parse.
type PriceNormalizer struct {
	Multiplier float64
	Fallback   FallbackPolicy
	Logger     *slog.Logger

	// OnFallback, when set, is called for every malformed input.
	OnFallback func(raw string)
}

func NewPriceNormalizer(multiplier float64, fallback FallbackPolicy, logger *slog.Logger) *PriceNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceNormalizer{
		Multiplier: multiplier,
		Fallback:   fallback,
		Logger:     logger.With("component", "price_normalizer"),
	}
}

// Normalize returns raw as a two-digit decimal string multiplied by the
// multiplier. Blank input always yields ZeroPrice. Unparseable input and
// products that overflow float64 yield the fallback. It never fails.
func (n *PriceNormalizer) Normalize(raw string) string {
	v, err := ParsePrice(raw)
	if errors.Is(err, ErrBlankPrice) {
		return ZeroPrice
	}
	if err == nil {
		v *= n.Multiplier
		if !IsFinite(v) || v < 0 {
			err = fmt.Errorf("%w: %q times %v is out of range", ErrMalformedPrice, raw, n.Multiplier)
		}
	}
	if err != nil {
		n.Logger.Warn("error processing price", "price", raw, "error", err, "fallback", n.Fallback.String())
		if n.OnFallback != nil {
			n.OnFallback(raw)
		}
		if n.Fallback == FallbackOriginal {
			return raw
		}
		return ZeroPrice
	}
	return FormatPrice(v)
}

// IsFinite reports whether v is neither infinite nor NaN.
func IsFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
