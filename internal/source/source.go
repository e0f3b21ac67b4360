// Package source turns raw collector payloads into candidate mentions.
package source

import (
	"fmt"
	"strings"
	"time"
)

// Webhook kinds accepted by Decode.
const (
	KindRSS          = "rss"
	KindMeltwater    = "meltwater"
	KindCongress     = "congress"
	KindNewsletter   = "newsletter"
	KindGoogleAlerts = "google_alerts"
)

// Id tags used as mention id prefixes. They match the identifiers already in
// the timeline.
const (
	TagRSS          = "m"
	TagMeltwater    = "mw_webhook"
	TagCongress     = "congress"
	TagNewsletter   = "newsletter"
	TagGoogleAlerts = "ga"
)

// Raw is one item as a collector received it. The set of variants is closed.
type Raw interface {
	rawKind() string
}

type RSSItem struct {
	Origin    string
	Section   string
	FeedTitle string
	Title     string
	Link      string
	Summary   string
	Published string
	Language  string
}

type MeltwaterDocument struct {
	Title          string
	URL            string
	Summary        string
	SourceName     string
	Published      string
	Country        string
	Language       string
	Reach          int64
	SentimentScore *float64
	Sentiment      string
}

type CongressBill struct {
	Congress         string
	Number           string
	Type             string
	Title            string
	LatestActionText string
	LatestActionDate string
	UpdateDate       string
}

type NewsletterItem struct {
	Title          string
	Link           string
	Summary        string
	Source         string
	Published      string
	MatchedKeyword string
}

type GoogleAlert struct {
	Title     string
	Link      string
	Published string
}

// ParseFailure stands in for a payload that could not be decoded.
type ParseFailure struct {
	Kind   string
	Reason string
}

func (RSSItem) rawKind() string           { return KindRSS }
func (MeltwaterDocument) rawKind() string { return KindMeltwater }
func (CongressBill) rawKind() string      { return KindCongress }
func (NewsletterItem) rawKind() string    { return KindNewsletter }
func (GoogleAlert) rawKind() string       { return KindGoogleAlerts }
func (f ParseFailure) rawKind() string    { return f.Kind }

// Kind names the variant of raw.
func Kind(raw Raw) string {
	if raw == nil {
		return ""
	}
	return raw.rawKind()
}

// ParseError reports a raw item that cannot become a candidate.
type ParseError struct {
	Kind   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Kind == "" {
		return "parse item: " + e.Reason
	}
	return fmt.Sprintf("parse %s item: %s", e.Kind, e.Reason)
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts the date formats seen across feeds and webhooks. The zero
// time means the value was missing or unrecognized.
func ParseTime(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
