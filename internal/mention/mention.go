package mention

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Store keys shared by every collector. The names predate this service and are
// kept so existing timelines stay readable.
const (
	TimelineKey  = "mentions:z"
	SeenIDKey    = "mentions:seen"
	SeenCanonKey = "mentions:seen:canon"
)

const UntitledTitle = "(untitled)"

// Mention is the stored wire record. It is immutable once written; corrections
// are a remove followed by a fresh insert.
type Mention struct {
	ID             string   `json:"id"`
	Canon          string   `json:"canon"`
	Title          string   `json:"title"`
	Link           *string  `json:"link"`
	Source         string   `json:"source"`
	Origin         string   `json:"origin"`
	Section        string   `json:"section"`
	Summary        string   `json:"summary"`
	PublishedTS    int64    `json:"published_ts"`
	Published      string   `json:"published"`
	Reach          *int64   `json:"reach,omitempty"`
	Sentiment      *float64 `json:"sentiment,omitempty"`
	SentimentLabel *string  `json:"sentiment_label,omitempty"`
	Matched        []string `json:"matched,omitempty"`
	Provider       string   `json:"provider,omitempty"`
}

// Candidate is the normalized shape every source adapter produces before
// canonicalization.
type Candidate struct {
	// Kind is the source-type tag used as the id prefix ("m", "mw_webhook", ...).
	Kind           string
	Origin         string
	Section        string
	Title          string
	Summary        string
	Link           string
	Source         string
	Provider       string
	PublishedAt    time.Time
	Reach          *int64
	Sentiment      *float64
	SentimentLabel *string
	Matched        []string

	// Language is the declared feed or document language, if the source
	// sends one.
	Language string
}

// LinkValue returns the link or an empty string for linkless records.
func (m Mention) LinkValue() string {
	if m.Link == nil {
		return ""
	}
	return *m.Link
}

// PublishedAt returns published_ts as a UTC time.
func (m Mention) PublishedAt() time.Time {
	return time.Unix(m.PublishedTS, 0).UTC()
}

// Encode serializes m. The output is stable for a given value so the exact
// member string can later be used for removal.
func Encode(m Mention) (string, error) {
	if strings.TrimSpace(m.ID) == "" {
		return "", fmt.Errorf("mention id is required")
	}
	if m.Published == "" {
		m.Published = FormatPublished(m.PublishedTS)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal mention: %w", err)
	}
	return string(payload), nil
}

// Decode parses a stored member. Records without an id, or without both link
// and canon, are rejected.
func Decode(raw string) (Mention, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Mention{}, fmt.Errorf("mention record is empty")
	}

	var m Mention
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return Mention{}, fmt.Errorf("decode mention: %w", err)
	}
	if strings.TrimSpace(m.ID) == "" {
		return Mention{}, fmt.Errorf("mention record has no id")
	}
	if strings.TrimSpace(m.Canon) == "" && strings.TrimSpace(m.LinkValue()) == "" {
		return Mention{}, fmt.Errorf("mention %s has neither canon nor link", m.ID)
	}
	return m, nil
}

func FormatPublished(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func StringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
