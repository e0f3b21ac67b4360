package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FlattenHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Adjacent text nodes are separated by a space.
func FlattenHTML(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsAny(trimmed, "<&") {
		return collapseSpace(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return collapseSpace(trimmed)
	}

	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				parts = append(parts, child.Text())
			case "script", "style", "noscript", "#comment":
			default:
				walk(child)
			}
		})
	}
	walk(doc.Selection)
	return collapseSpace(strings.Join(parts, " "))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
