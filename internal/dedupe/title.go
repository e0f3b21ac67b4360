package dedupe

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	quoteReplacer = strings.NewReplacer(
		"‘", "'", "’", "'", "“", "'", "”", "'",
		"–", "-", "—", "-",
	)
	titleSuffixSeparators = []string{" - ", " | "}
	tokenPattern          = regexp.MustCompile(`[a-z0-9]{4,}`)
)

// TitleKey folds a headline so syndicated copies compare equal: lower case,
// ASCII quotes and dashes, trailing " - Site" or " | Site" dropped,
// punctuation stripped, whitespace collapsed.
func TitleKey(title string) string {
	s := strings.ToLower(norm.NFKC.String(title))
	s = quoteReplacer.Replace(s)
	for _, sep := range titleSuffixSeparators {
		if head, _, found := strings.Cut(s, sep); found {
			s = head
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the distinct alphanumeric runs of four or more characters in
// a title key.
func Tokens(titleKey string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(titleKey, -1) {
		tokens[token] = struct{}{}
	}
	return tokens
}

// Jaccard is |a ∩ b| / |a ∪ b|; zero when either side is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for token := range small {
		if _, ok := large[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
