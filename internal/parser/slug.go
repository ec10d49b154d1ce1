package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	urlEncoding   = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	nonSlugChars  = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns    = regexp.MustCompile(`-+`)
	foldTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// GenerateSlug lowercases title, keeps only [a-z0-9], whitespace and
// hyphens, turns whitespace runs into a single hyphen and trims hyphens.
// It returns "" when nothing survives.
func GenerateSlug(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case r == '-', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			continue
		}
		if pendingSpace {
			b.WriteByte('-')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	slug := hyphenRuns.ReplaceAllString(b.String(), "-")
	return strings.Trim(slug, "-")
}

// SlugOr returns the slug of title, or fallback when the slug is empty.
func SlugOr(title, fallback string) string {
	if s := GenerateSlug(title); s != "" {
		return s
	}
	return fallback
}

// FallbackSlug is the identifier-based slug used when a title yields nothing.
func FallbackSlug(id string) string {
	return "product-" + id
}

func HasURLEncoding(slug string) bool {
	return urlEncoding.MatchString(slug)
}

// CleanEncodedSlug decodes a percent-encoded slug and reduces it to ASCII
// letters, digits and single hyphens. Accented letters are folded to their
// base letter; emoji, CJK and other scripts are dropped.
func CleanEncodedSlug(slug string) string {
	decoded := percentDecode(slug)

	folded, _, err := transform.String(foldTransform, decoded)
	if err != nil {
		folded = decoded
	}

	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	cleaned := nonSlugChars.ReplaceAllString(ascii, "-")
	cleaned = hyphenRuns.ReplaceAllString(cleaned, "-")
	return strings.ToLower(strings.Trim(cleaned, "-"))
}

// percentDecode decodes %xx escapes and leaves malformed escapes in place.
// Invalid UTF-8 produced by decoding is dropped.
func percentDecode(s string) string {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	return strings.ToValidUTF8(string(buf), "")
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
