package filter

import (
	"regexp"
	"strings"
)

// phraseMatcher finds the first configured phrase in lower-cased text. Whole
// word phrases must be bounded by non-alphanumerics so "ai" does not hit
// "chain".
type phraseMatcher struct {
	phrases []string
	words   []*regexp.Regexp
}

func newPhraseMatcher(phrases []string, wholeWord bool) phraseMatcher {
	cleaned := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if p := strings.ToLower(phrase); strings.TrimSpace(p) != "" {
			cleaned = append(cleaned, p)
		}
	}
	m := phraseMatcher{phrases: cleaned}
	if wholeWord {
		m.words = make([]*regexp.Regexp, 0, len(cleaned))
		for _, phrase := range cleaned {
			m.words = append(m.words, regexp.MustCompile(`(?:^|[^\pL\pN])`+regexp.QuoteMeta(phrase)+`(?:$|[^\pL\pN])`))
		}
	}
	return m
}

func (m phraseMatcher) empty() bool {
	return len(m.phrases) == 0
}

func (m phraseMatcher) find(text string) (string, bool) {
	if m.words != nil {
		for i, re := range m.words {
			if re.MatchString(text) {
				return m.phrases[i], true
			}
		}
		return "", false
	}
	for _, phrase := range m.phrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// MatchKeywords returns every phrase that occurs in text as a whole word, in
// configured order. Collectors record the result as a mention's matched list.
func MatchKeywords(text string, phrases []string) []string {
	lower := strings.ToLower(text)
	matched := make([]string, 0, 4)
	m := newPhraseMatcher(phrases, true)
	for i, re := range m.words {
		if re.MatchString(lower) {
			matched = append(matched, m.phrases[i])
		}
	}
	return matched
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host string, domains []string) (string, bool) {
	if host == "" {
		return "", false
	}
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}
