// Package filter decides whether a candidate mention is relevant enough to
// store. A Chain applies a bypass list, universal quality rules, then rules
// specific to the monitored entity behind the feed. Every rule is a pure
// function of the candidate.
package filter

import (
	"fmt"
	"strings"
)

// Candidate is the part of a mention the rules look at.
type Candidate struct {
	Origin  string
	Title   string
	Summary string
	Source  string
	Link    string
	// Language is the declared feed or document language, if any.
	Language string
}

// Subject is a Candidate with the lower-cased views rules match against.
type Subject struct {
	Candidate
	TitleLower  string
	Text        string
	SourceLower string
	LinkLower   string
}

func newSubject(c Candidate) Subject {
	titleLower := strings.ToLower(c.Title)
	return Subject{
		Candidate:   c,
		TitleLower:  titleLower,
		Text:        titleLower + " " + strings.ToLower(c.Summary),
		SourceLower: strings.ToLower(c.Source),
		LinkLower:   strings.ToLower(c.Link),
	}
}

// Rule rejects a subject when Match reports a hit. The string explains the
// hit for audit logs.
type Rule struct {
	Name  string
	Match func(Subject) (string, bool)
}

// Entity carries the overrides for one monitored origin.
type Entity struct {
	// Exempt names universal rules skipped for this origin.
	Exempt []string
	Rules  []Rule
}

func (e Entity) exempts(rule string) bool {
	for _, name := range e.Exempt {
		if name == rule {
			return true
		}
	}
	return false
}

type Decision struct {
	Reject bool   `json:"reject"`
	Rule   string `json:"rule,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (d Decision) String() string {
	if !d.Reject {
		return "accept"
	}
	return fmt.Sprintf("reject by %s: %s", d.Rule, d.Reason)
}

type Chain struct {
	bypass    map[string]struct{}
	universal []Rule
	overrides map[string]Entity
}

func NewChain(bypass []string, universal []Rule, overrides map[string]Entity) *Chain {
	c := &Chain{
		bypass:    make(map[string]struct{}, len(bypass)),
		universal: append([]Rule(nil), universal...),
		overrides: make(map[string]Entity, len(overrides)),
	}
	for _, origin := range bypass {
		if key := normalizeOrigin(origin); key != "" {
			c.bypass[key] = struct{}{}
		}
	}
	for origin, entity := range overrides {
		c.overrides[normalizeOrigin(origin)] = entity
	}
	return c
}

// ShouldFilter reports whether the candidate must be rejected.
func (c *Chain) ShouldFilter(origin, title, summary, source, link string) bool {
	return c.Evaluate(Candidate{
		Origin:  origin,
		Title:   title,
		Summary: summary,
		Source:  source,
		Link:    link,
	}).Reject
}

// Evaluate runs the chain and stops at the first rejecting rule.
func (c *Chain) Evaluate(candidate Candidate) Decision {
	origin := normalizeOrigin(candidate.Origin)
	if _, ok := c.bypass[origin]; ok {
		return Decision{}
	}

	subject := newSubject(candidate)
	entity := c.overrides[origin]

	for _, rule := range c.universal {
		if entity.exempts(rule.Name) {
			continue
		}
		if reason, hit := rule.Match(subject); hit {
			return Decision{Reject: true, Rule: rule.Name, Reason: reason}
		}
	}
	for _, rule := range entity.Rules {
		if reason, hit := rule.Match(subject); hit {
			return Decision{Reject: true, Rule: origin + "/" + rule.Name, Reason: reason}
		}
	}
	return Decision{}
}

// Bypassed reports whether origin skips filtering entirely.
func (c *Chain) Bypassed(origin string) bool {
	_, ok := c.bypass[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSpace(origin))
}
