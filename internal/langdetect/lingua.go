// Package langdetect backs the English-only filter rule with lingua.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// Languages that show up in monitored feeds. Restricting the set keeps the
// preloaded models small.
var defaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Russian,
	lingua.Arabic,
}

const minLetters = 6

// Detector lazily builds a lingua detector on first use.
type Detector struct {
	once      sync.Once
	languages []lingua.Language
	detector  lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{languages: defaultLanguages}
}

// DetectISO6391 returns the two-letter code of text, or "" when text is too
// short or the language cannot be told.
func (d *Detector) DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := d.get().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func (d *Detector) get() lingua.LanguageDetector {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(d.languages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return d.detector
}

// NormalizeCode returns the primary subtag of a declared language such as
// "en-US" or "EN_gb". Malformed tags yield "".
func NormalizeCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	primary, _, _ := strings.Cut(trimmed, "-")
	if len(primary) < 2 || len(primary) > 3 {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}
