package source

import (
	"fmt"
	"strings"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
)

// Origins and sections written for non-feed sources.
const (
	OriginMeltwater    = "meltwater_webhook"
	OriginCongress     = "congress"
	OriginNewsletter   = "newsletter"
	OriginGoogleAlerts = "google_alerts"

	SectionMeltwater    = "Meltwater"
	SectionCongress     = "Federal Legislation"
	SectionNewsletter   = "Newsletter"
	SectionGoogleAlerts = "Google Alerts"

	DefaultCongress = "119"
)

var congressBillPaths = map[string]string{
	"s":       "senate-bill",
	"hr":      "house-bill",
	"sres":    "senate-resolution",
	"hres":    "house-resolution",
	"sjres":   "senate-joint-resolution",
	"hjres":   "house-joint-resolution",
	"sconres": "senate-concurrent-resolution",
	"hconres": "house-concurrent-resolution",
}

// Adapt converts raw into a candidate. ParseFailure and items without a
// usable link or title yield a *ParseError.
func Adapt(raw Raw) (mention.Candidate, error) {
	switch item := raw.(type) {
	case RSSItem:
		return adaptRSS(item)
	case MeltwaterDocument:
		return adaptMeltwater(item)
	case CongressBill:
		return adaptCongress(item)
	case NewsletterItem:
		return adaptNewsletter(item)
	case GoogleAlert:
		return adaptGoogleAlert(item)
	case ParseFailure:
		return mention.Candidate{}, &ParseError{Kind: item.Kind, Reason: item.Reason}
	case nil:
		return mention.Candidate{}, &ParseError{Reason: "item is nil"}
	default:
		return mention.Candidate{}, &ParseError{Reason: fmt.Sprintf("unsupported item %T", raw)}
	}
}

func adaptRSS(item RSSItem) (mention.Candidate, error) {
	title := strings.TrimSpace(item.Title)
	link := canon.Unwrap(item.Link)
	if title == "" && link == "" {
		return mention.Candidate{}, &ParseError{Kind: KindRSS, Reason: "item has neither title nor link"}
	}

	origin := firstNonEmpty(item.Origin, OriginGoogleAlerts)
	return mention.Candidate{
		Kind:        TagRSS,
		Origin:      origin,
		Section:     firstNonEmpty(item.Section, sectionFromOrigin(origin)),
		Title:       firstNonEmpty(title, mention.UntitledTitle),
		Summary:     FlattenHTML(item.Summary),
		Link:        link,
		Source:      canon.DisplaySource(link, item.FeedTitle),
		PublishedAt: ParseTime(item.Published),
		Language:    strings.TrimSpace(item.Language),
	}, nil
}

func adaptMeltwater(doc MeltwaterDocument) (mention.Candidate, error) {
	title := strings.TrimSpace(doc.Title)
	link := strings.TrimSpace(doc.URL)
	if link == "#" {
		link = ""
	}
	if title == "" && link == "" {
		return mention.Candidate{}, &ParseError{Kind: KindMeltwater, Reason: "document has neither title nor url"}
	}

	summary := FlattenHTML(doc.Summary)
	summary = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(summary, "..."), "..."))

	candidate := mention.Candidate{
		Kind:        TagMeltwater,
		Origin:      OriginMeltwater,
		Section:     SectionMeltwater,
		Title:       firstNonEmpty(title, mention.UntitledTitle),
		Summary:     summary,
		Link:        link,
		Source:      firstNonEmpty(doc.SourceName, "Meltwater"),
		Provider:    "Meltwater",
		PublishedAt: ParseTime(doc.Published),
		Language:    strings.TrimSpace(doc.Language),
	}
	if doc.Reach > 0 {
		reach := doc.Reach
		candidate.Reach = &reach
	}
	candidate.Sentiment = meltwaterSentiment(doc)
	candidate.SentimentLabel = mention.StringPtr(strings.ToLower(doc.Sentiment))
	return candidate, nil
}

func meltwaterSentiment(doc MeltwaterDocument) *float64 {
	if doc.SentimentScore != nil {
		score := *doc.SentimentScore
		return &score
	}
	var score float64
	switch strings.ToLower(strings.TrimSpace(doc.Sentiment)) {
	case "positive":
		score = 1
	case "negative":
		score = -1
	case "neutral":
		score = 0
	default:
		return nil
	}
	return &score
}

func adaptCongress(bill CongressBill) (mention.Candidate, error) {
	number := strings.TrimSpace(bill.Number)
	billType := strings.TrimSpace(bill.Type)
	if number == "" || billType == "" {
		return mention.Candidate{}, &ParseError{Kind: KindCongress, Reason: "bill has no type or number"}
	}

	congress := firstNonEmpty(bill.Congress, DefaultCongress)
	path, ok := congressBillPaths[strings.ToLower(billType)]
	if !ok {
		path = strings.ToLower(billType) + "-bill"
	}
	link := fmt.Sprintf("https://www.congress.gov/bill/%sth-congress/%s/%s", congress, path, number)

	title := billType + number
	if name := strings.TrimSpace(bill.Title); name != "" {
		title += ": " + name
	}

	return mention.Candidate{
		Kind:        TagCongress,
		Origin:      OriginCongress,
		Section:     SectionCongress,
		Title:       title,
		Summary:     strings.TrimSpace(bill.LatestActionText),
		Link:        link,
		Source:      "Congress.gov",
		Provider:    "Congress.gov",
		PublishedAt: ParseTime(firstNonEmpty(bill.LatestActionDate, bill.UpdateDate)),
		Matched:     []string{"congress"},
	}, nil
}

func adaptNewsletter(item NewsletterItem) (mention.Candidate, error) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if link == "#" {
		link = ""
	}
	if title == "" && link == "" {
		return mention.Candidate{}, &ParseError{Kind: KindNewsletter, Reason: "item has neither title nor link"}
	}

	source := firstNonEmpty(item.Source, "Newsletter")
	matched := []string{"newsletter"}
	if keyword := strings.ToLower(strings.TrimSpace(item.MatchedKeyword)); keyword != "" {
		matched = append(matched, keyword)
	}

	return mention.Candidate{
		Kind:        TagNewsletter,
		Origin:      OriginNewsletter,
		Section:     SectionNewsletter,
		Title:       firstNonEmpty(title, mention.UntitledTitle),
		Summary:     FlattenHTML(item.Summary),
		Link:        link,
		Source:      source,
		Provider:    source,
		PublishedAt: ParseTime(item.Published),
		Matched:     matched,
	}, nil
}

func adaptGoogleAlert(alert GoogleAlert) (mention.Candidate, error) {
	link := canon.Unwrap(alert.Link)
	if link == "" || link == "#" {
		return mention.Candidate{}, &ParseError{Kind: KindGoogleAlerts, Reason: "alert has no link"}
	}

	return mention.Candidate{
		Kind:        TagGoogleAlerts,
		Origin:      OriginGoogleAlerts,
		Section:     SectionGoogleAlerts,
		Title:       firstNonEmpty(alert.Title, mention.UntitledTitle),
		Link:        link,
		Source:      canon.DisplaySource(link, "Google Alerts"),
		Provider:    "Google Alerts",
		PublishedAt: ParseTime(alert.Published),
		Matched:     []string{"google-alert"},
	}, nil
}

// sectionFromOrigin turns "delta_air_lines_rss" into "Delta Air Lines".
func sectionFromOrigin(origin string) string {
	name := strings.TrimSuffix(strings.ToLower(origin), "_rss")
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
