package ingest

import "strings"

var (
	positiveTerms = []string{"win", "surge", "rally", "gain", "positive", "bull", "record", "secure", "approve", "partnership"}
	negativeTerms = []string{"hack", "breach", "lawsuit", "fine", "down", "drop", "negative", "bear", "investigate", "halt", "outage", "delay", "ban"}
)

// SentimentScore counts positive terms minus negative terms. Terms match as
// substrings, so "gains" counts as "gain".
func SentimentScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			score++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			score--
		}
	}
	return float64(score)
}

func SentimentLabel(score float64) string {
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}
