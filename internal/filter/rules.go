package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
)

// Universal rule names. Entity overrides refer to these in Exempt.
const (
	RuleWireBoilerplate = "wire_boilerplate"
	RulePressRelease    = "press_release"
	RuleBlockedDomain   = "blocked_domain"
	RuleStockPrice      = "stock_price"
	RuleCryptoTrading   = "crypto_trading"
	RuleOpinion         = "opinion"
	RuleLocalCrime      = "local_crime"
	RuleShopping        = "shopping"
	RuleReposter        = "reposter"
	RuleNonEnglish      = "non_english"
)

var priceInTitle = regexp.MustCompile(`\$\d+(\.\d{2})?`)

// wireBoilerplateRule matches syndicated wire titles. Markers are case
// sensitive; "Earnings Snapshot" is a fixed AP headline form.
func wireBoilerplateRule(markers []string) Rule {
	return Rule{
		Name: RuleWireBoilerplate,
		Match: func(s Subject) (string, bool) {
			for _, marker := range markers {
				if marker != "" && strings.Contains(s.Title, marker) {
					return fmt.Sprintf("title carries wire marker %q", marker), true
				}
			}
			return "", false
		},
	}
}

func pressReleaseRule(distributors []string) Rule {
	m := newPhraseMatcher(distributors, false)
	return Rule{
		Name: RulePressRelease,
		Match: func(s Subject) (string, bool) {
			if hit, ok := m.find(s.Text + " " + s.SourceLower); ok {
				return fmt.Sprintf("press-release distributor %q", hit), true
			}
			return "", false
		},
	}
}

func blockedDomainRule(domains []string) Rule {
	return Rule{
		Name: RuleBlockedDomain,
		Match: func(s Subject) (string, bool) {
			host := canon.Host(canon.Unwrap(s.Link))
			if domain, ok := hostMatches(host, domains); ok {
				return fmt.Sprintf("host %s is blocked (%s)", host, domain), true
			}
			return "", false
		},
	}
}

// stockPriceRule rejects price-movement coverage: stock keywords from a
// financial source, or a title that is plainly about the share price.
func stockPriceRule(textKeywords, financialSources, titlePhrases []string) Rule {
	text := newPhraseMatcher(textKeywords, false)
	sources := newPhraseMatcher(financialSources, false)
	titles := newPhraseMatcher(titlePhrases, false)
	return Rule{
		Name: RuleStockPrice,
		Match: func(s Subject) (string, bool) {
			if keyword, ok := text.find(s.Text); ok {
				if source, ok := sources.find(s.SourceLower); ok {
					return fmt.Sprintf("stock keyword %q from financial source %q", keyword, source), true
				}
			}
			if phrase, ok := titles.find(s.TitleLower); ok {
				return fmt.Sprintf("title is about stock movement (%q)", phrase), true
			}
			return "", false
		},
	}
}

func cryptoTradingRule(keywords []string) Rule {
	m := newPhraseMatcher(keywords, true)
	return Rule{
		Name: RuleCryptoTrading,
		Match: func(s Subject) (string, bool) {
			if keyword, ok := m.find(s.Text); ok {
				return fmt.Sprintf("crypto trading keyword %q", keyword), true
			}
			return "", false
		},
	}
}

func opinionRule(titleMarkers, urlMarkers, bylineMarkers []string) Rule {
	titles := newPhraseMatcher(titleMarkers, false)
	urls := newPhraseMatcher(urlMarkers, false)
	bylines := newPhraseMatcher(bylineMarkers, false)
	return Rule{
		Name: RuleOpinion,
		Match: func(s Subject) (string, bool) {
			if marker, ok := titles.find(s.TitleLower); ok {
				return fmt.Sprintf("opinion title marker %q", marker), true
			}
			if s.LinkLower != "" {
				if marker, ok := urls.find(s.LinkLower); ok {
					return fmt.Sprintf("opinion section path %q", marker), true
				}
			}
			if marker, ok := bylines.find(s.Text); ok {
				return fmt.Sprintf("opinion byline %q", marker), true
			}
			return "", false
		},
	}
}

func localCrimeRule(crimeKeywords, politicalKeywords []string) Rule {
	crime := newPhraseMatcher(crimeKeywords, false)
	political := newPhraseMatcher(politicalKeywords, false)
	return Rule{
		Name: RuleLocalCrime,
		Match: func(s Subject) (string, bool) {
			keyword, ok := crime.find(s.Text)
			if !ok {
				return "", false
			}
			if _, hasPolicy := political.find(s.Text); hasPolicy {
				return "", false
			}
			return fmt.Sprintf("local crime %q without a policy angle", keyword), true
		},
	}
}

func shoppingRule(keywords []string) Rule {
	m := newPhraseMatcher(keywords, false)
	return Rule{
		Name: RuleShopping,
		Match: func(s Subject) (string, bool) {
			if keyword, ok := m.find(s.Text); ok {
				return fmt.Sprintf("shopping keyword %q", keyword), true
			}
			if price := priceInTitle.FindString(s.TitleLower); price != "" {
				return fmt.Sprintf("price %s in title", price), true
			}
			return "", false
		},
	}
}

func reposterRule(reposters []string) Rule {
	m := newPhraseMatcher(reposters, false)
	return Rule{
		Name: RuleReposter,
		Match: func(s Subject) (string, bool) {
			if name, ok := m.find(s.SourceLower); ok {
				return fmt.Sprintf("reposter source %q", name), true
			}
			if name, ok := m.find(s.LinkLower); ok {
				return fmt.Sprintf("reposter link %q", name), true
			}
			return "", false
		},
	}
}

// LanguageDetector guesses the ISO 639-1 code of text, or "" when unsure.
type LanguageDetector interface {
	DetectISO6391(text string) string
}

// nonEnglishRule trusts a declared language first and falls back to
// detection. Undetermined text is accepted.
func nonEnglishRule(detector LanguageDetector, normalize func(string) string) Rule {
	return Rule{
		Name: RuleNonEnglish,
		Match: func(s Subject) (string, bool) {
			code := ""
			if normalize != nil {
				code = normalize(s.Language)
			}
			if code == "" && detector != nil {
				code = detector.DetectISO6391(strings.TrimSpace(s.Title + ". " + s.Summary))
			}
			if code == "" || code == "en" {
				return "", false
			}
			return fmt.Sprintf("language %s", code), true
		},
	}
}

// Field selects the text a KeywordRule inspects.
const (
	FieldText  = "text"
	FieldTitle = "title"
)

// KeywordRule is the data form of an entity override. It rejects when a
// MatchAny phrase hits, or when RequireAny is set and none hits, unless an
// UnlessAny phrase is present.
type KeywordRule struct {
	Name       string   `yaml:"name" json:"name"`
	Field      string   `yaml:"field,omitempty" json:"field,omitempty"`
	WholeWord  bool     `yaml:"whole_word,omitempty" json:"whole_word,omitempty"`
	MatchAny   []string `yaml:"match_any,omitempty" json:"match_any,omitempty"`
	UnlessAny  []string `yaml:"unless_any,omitempty" json:"unless_any,omitempty"`
	RequireAny []string `yaml:"require_any,omitempty" json:"require_any,omitempty"`
}

func (k KeywordRule) Compile() (Rule, error) {
	name := strings.TrimSpace(k.Name)
	if name == "" {
		return Rule{}, fmt.Errorf("keyword rule name is required")
	}
	field := strings.ToLower(strings.TrimSpace(k.Field))
	if field == "" {
		field = FieldText
	}
	if field != FieldText && field != FieldTitle {
		return Rule{}, fmt.Errorf("rule %s: field must be %q or %q", name, FieldText, FieldTitle)
	}
	match := newPhraseMatcher(k.MatchAny, k.WholeWord)
	unless := newPhraseMatcher(k.UnlessAny, k.WholeWord)
	require := newPhraseMatcher(k.RequireAny, k.WholeWord)
	if match.empty() && require.empty() {
		return Rule{}, fmt.Errorf("rule %s: match_any or require_any is required", name)
	}

	return Rule{
		Name: name,
		Match: func(s Subject) (string, bool) {
			text := s.Text
			if field == FieldTitle {
				text = s.TitleLower
			}

			reason := ""
			if keyword, ok := match.find(text); ok {
				reason = fmt.Sprintf("matched %q", keyword)
			} else if !require.empty() {
				if _, ok := require.find(text); !ok {
					reason = "no required keyword present"
				}
			}
			if reason == "" {
				return "", false
			}
			if _, ok := unless.find(text); ok {
				return "", false
			}
			return reason, true
		},
	}, nil
}
