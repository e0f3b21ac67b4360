package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var kindAliases = map[string]string{
	"meltwater_webhook": KindMeltwater,
	"ga":                KindGoogleAlerts,
	"google-alerts":     KindGoogleAlerts,
	"google_alert":      KindGoogleAlerts,
	"newsletters":       KindNewsletter,
	"bills":             KindCongress,
}

// NormalizeKind maps webhook path names onto the canonical kinds. Unknown
// kinds come back lower-cased and otherwise unchanged.
func NormalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if alias, ok := kindAliases[k]; ok {
		return alias
	}
	return k
}

// Decode builds raw items from a webhook body. A body may hold one object or
// an array of objects; Meltwater and Congress bodies carry their items in an
// envelope. Decode never fails: anything it cannot read becomes a
// ParseFailure.
func Decode(kind string, body []byte) []Raw {
	k := NormalizeKind(kind)
	switch k {
	case KindMeltwater:
		return decodeEnvelope(k, body, []string{"documents", "docs"}, decodeMeltwater)
	case KindCongress:
		return decodeEnvelope(k, body, []string{"bills"}, decodeCongress)
	case KindNewsletter:
		return decodeEach(k, body, decodeNewsletter)
	case KindGoogleAlerts:
		return decodeEach(k, body, decodeGoogleAlert)
	case KindRSS:
		return decodeEach(k, body, decodeRSS)
	default:
		return []Raw{ParseFailure{Kind: k, Reason: fmt.Sprintf("unknown source kind %q", kind)}}
	}
}

type itemDecoder func(json.RawMessage) (Raw, error)

func decodeEach(kind string, body []byte, decode itemDecoder) []Raw {
	objects, err := splitObjects(body)
	if err != nil {
		return []Raw{ParseFailure{Kind: kind, Reason: err.Error()}}
	}
	out := make([]Raw, 0, len(objects))
	for _, object := range objects {
		raw, err := decode(object)
		if err != nil {
			out = append(out, ParseFailure{Kind: kind, Reason: err.Error()})
			continue
		}
		out = append(out, raw)
	}
	return out
}

// decodeEnvelope reads the item list from the first present envelope field,
// or treats the body itself as the item list when no field is present.
func decodeEnvelope(kind string, body []byte, fields []string, decode itemDecoder) []Raw {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return []Raw{ParseFailure{Kind: kind, Reason: "decode body: " + err.Error()}}
		}
		for _, field := range fields {
			if items, ok := envelope[field]; ok {
				return decodeEach(kind, items, decode)
			}
		}
		if hasAnyItemField(envelope) {
			return decodeEach(kind, trimmed, decode)
		}
		return []Raw{}
	}
	return decodeEach(kind, trimmed, decode)
}

func hasAnyItemField(envelope map[string]json.RawMessage) bool {
	for _, field := range []string{"title", "headline", "url", "link", "content", "number"} {
		if _, ok := envelope[field]; ok {
			return true
		}
	}
	return false
}

func splitObjects(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("body is empty")
	}
	if trimmed[0] == '[' {
		var objects []json.RawMessage
		if err := json.Unmarshal(trimmed, &objects); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		return objects, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("decode body: expected a JSON object or array")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

// nameField accepts either a bare string or an object with a name.
type nameField string

func (n *nameField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*n = nameField(s)
		return nil
	}
	var object struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return err
	}
	*n = nameField(object.Name)
	return nil
}

type meltwaterJSON struct {
	Title         string `json:"title"`
	Headline      string `json:"headline"`
	DocumentTitle string `json:"document_title"`
	URL           string `json:"url"`
	Link          string `json:"link"`
	DocumentURL   string `json:"document_url"`
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Snippet       string `json:"snippet"`
	Content       struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Snippet     string `json:"snippet"`
		OpeningText string `json:"opening_text"`
	} `json:"content"`
	Matched struct {
		HitSentence string `json:"hit_sentence"`
	} `json:"matched"`
	Source     nameField `json:"source"`
	SourceName string    `json:"source_name"`
	Media      struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"media"`
	Country       string `json:"country"`
	Language      string `json:"language"`
	Lang          string `json:"lang"`
	PublishedDate string `json:"published_date"`
	Date          string `json:"date"`
	Reach         int64  `json:"reach"`
	SourceReach   int64  `json:"source_reach"`
	Metrics       struct {
		Reach       int64 `json:"reach"`
		Circulation int64 `json:"circulation"`
	} `json:"metrics"`
	SentimentScore *float64 `json:"sentiment_score"`
	Sentiment      string   `json:"sentiment"`
}

func decodeMeltwater(data json.RawMessage) (Raw, error) {
	var doc meltwaterJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode meltwater document: %w", err)
	}
	return MeltwaterDocument{
		Title: firstNonEmpty(doc.Content.Title, doc.Title, doc.Headline, doc.DocumentTitle),
		URL:   firstNonEmpty(doc.Content.URL, doc.URL, doc.Link, doc.DocumentURL),
		Summary: firstNonEmpty(doc.Summary, doc.Description, doc.Snippet,
			doc.Content.Summary, doc.Content.Description, doc.Content.Snippet,
			doc.Matched.HitSentence, doc.Content.OpeningText),
		SourceName:     firstNonEmpty(string(doc.Source), doc.SourceName, doc.Media.Name),
		Published:      firstNonEmpty(doc.PublishedDate, doc.Date),
		Country:        firstNonEmpty(doc.Country, doc.Media.Country),
		Language:       firstNonEmpty(doc.Language, doc.Lang),
		Reach:          firstPositive(doc.Metrics.Reach, doc.Metrics.Circulation, doc.SourceReach, doc.Reach),
		SentimentScore: doc.SentimentScore,
		Sentiment:      doc.Sentiment,
	}, nil
}

func firstPositive(values ...int64) int64 {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}

type congressJSON struct {
	Congress     json.Number `json:"congress"`
	Number       json.Number `json:"number"`
	Type         string      `json:"type"`
	Title        string      `json:"title"`
	UpdateDate   string      `json:"updateDate"`
	LatestAction struct {
		Text       string `json:"text"`
		ActionDate string `json:"actionDate"`
	} `json:"latestAction"`
}

func decodeCongress(data json.RawMessage) (Raw, error) {
	var bill congressJSON
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, fmt.Errorf("decode congress bill: %w", err)
	}
	return CongressBill{
		Congress:         bill.Congress.String(),
		Number:           bill.Number.String(),
		Type:             bill.Type,
		Title:            bill.Title,
		LatestActionText: bill.LatestAction.Text,
		LatestActionDate: bill.LatestAction.ActionDate,
		UpdateDate:       bill.UpdateDate,
	}, nil
}

type newsletterJSON struct {
	Title          string `json:"title"`
	Headline       string `json:"headline"`
	Link           string `json:"link"`
	URL            string `json:"url"`
	PublishedAt    string `json:"published_at"`
	ISODate        string `json:"isoDate"`
	Date           string `json:"date"`
	Published      string `json:"published"`
	Source         string `json:"source"`
	Newsletter     string `json:"newsletter"`
	MatchedKeyword string `json:"matched_keyword"`
	Keyword        string `json:"keyword"`
	Summary        string `json:"summary"`
	Description    string `json:"description"`
}

func decodeNewsletter(data json.RawMessage) (Raw, error) {
	var item newsletterJSON
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode newsletter item: %w", err)
	}
	return NewsletterItem{
		Title:          firstNonEmpty(item.Title, item.Headline),
		Link:           firstNonEmpty(item.Link, item.URL),
		Summary:        firstNonEmpty(item.Summary, item.Description),
		Source:         firstNonEmpty(item.Source, item.Newsletter),
		Published:      firstNonEmpty(item.PublishedAt, item.ISODate, item.Date, item.Published),
		MatchedKeyword: firstNonEmpty(item.MatchedKeyword, item.Keyword),
	}, nil
}

type googleAlertJSON struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	ISODate     string `json:"isoDate"`
	PublishedAt string `json:"published_at"`
	Date        string `json:"date"`
}

func decodeGoogleAlert(data json.RawMessage) (Raw, error) {
	var alert googleAlertJSON
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, fmt.Errorf("decode google alert: %w", err)
	}
	return GoogleAlert{
		Title:     alert.Title,
		Link:      alert.Link,
		Published: firstNonEmpty(alert.ISODate, alert.PublishedAt, alert.Date),
	}, nil
}

type rssJSON struct {
	Origin         string `json:"origin"`
	Section        string `json:"section"`
	FeedTitle      string `json:"feed_title"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Summary        string `json:"summary"`
	ContentSnippet string `json:"contentSnippet"`
	Content        string `json:"content"`
	ISODate        string `json:"isoDate"`
	PubDate        string `json:"pubDate"`
	Published      string `json:"published"`
	Language       string `json:"language"`
}

func decodeRSS(data json.RawMessage) (Raw, error) {
	var item rssJSON
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode rss item: %w", err)
	}
	return RSSItem{
		Origin:    item.Origin,
		Section:   item.Section,
		FeedTitle: item.FeedTitle,
		Title:     item.Title,
		Link:      item.Link,
		Summary:   firstNonEmpty(item.ContentSnippet, item.Summary, item.Content),
		Published: firstNonEmpty(item.ISODate, item.PubDate, item.Published),
		Language:  item.Language,
	}, nil
}
