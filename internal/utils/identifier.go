package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// PropertyIDAlphabet is the character set of the random part of a public property id.
const PropertyIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const fallbackSlug = "property"

// RandomCode returns n characters drawn uniformly from alphabet using crypto/rand.
func RandomCode(alphabet string, n int) (string, error) {
	if alphabet == "" || n <= 0 {
		return "", fmt.Errorf("random code: empty alphabet or non-positive length %d", n)
	}
	upper := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", fmt.Errorf("random code: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Slugify lowercases text, transliterates diacritics and collapses every run of
// characters outside [a-z0-9] into a single hyphen, trimming hyphens at both ends.
func Slugify(text string) string {
	// Symbols become separators before slug.Make sees them, so its word
	// substitutions ("&" to "and", "@" to "at") and quote dropping never apply.
	return slug.Make(strings.Map(slugRune, text))
}

func slugRune(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
		return r
	}
	return ' '
}

// SlugWithSuffix builds "<slugify(parts...)>-NNNN" with a random suffix in [1000, 9999].
// Empty parts are skipped; an empty base falls back to "property".
func SlugWithSuffix(parts ...string) (string, error) {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	base := Slugify(strings.Join(kept, " "))
	if base == "" {
		base = fallbackSlug
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("slug suffix: %w", err)
	}
	return fmt.Sprintf("%s-%d", base, n.Int64()+1000), nil
}
