package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

type Removal struct {
	ID      string `json:"id"`
	Removed int    `json:"removed"`
	Title   string `json:"title,omitempty"`
}

// Remove deletes every timeline member carrying id and releases its ledger
// entries so the item can be collected again. It returns store.ErrNotFound
// when no member matches.
func (s *Service) Remove(ctx context.Context, id string) (Removal, error) {
	id = strings.TrimSpace(id)
	removal := Removal{ID: id}
	if id == "" {
		return removal, fmt.Errorf("mention id is required")
	}

	members, err := s.timeline.RangeByRank(ctx, 0, -1, true)
	if err != nil {
		return removal, fmt.Errorf("scan timeline: %w", err)
	}

	for _, raw := range members {
		m, err := mention.Decode(raw)
		if err != nil || m.ID != id {
			continue
		}
		removed, err := s.timeline.Remove(ctx, raw)
		if err != nil {
			return removal, fmt.Errorf("remove mention %s: %w", id, err)
		}
		if !removed {
			continue
		}
		removal.Removed++
		if removal.Title == "" {
			removal.Title = m.Title
		}

		key := m.Canon
		if strings.TrimSpace(key) == "" {
			key = canon.Canonicalize(m.LinkValue(), m.Title)
		}
		if err := s.ledger.Revoke(ctx, key, m.ID); err != nil {
			return removal, err
		}
	}

	if removal.Removed == 0 {
		return removal, fmt.Errorf("mention %s: %w", id, store.ErrNotFound)
	}
	s.logger.Info().Str("id", id).Int("removed", removal.Removed).Msg("mention removed")
	return removal, nil
}
