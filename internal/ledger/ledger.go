// Package ledger records which canonical keys and ids have been admitted so a
// mention is stored at most once, across processes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TMG-AI/tara-dashboard/internal/canon"
	"github.com/TMG-AI/tara-dashboard/internal/mention"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

type Ledger struct {
	canons store.Set
	ids    store.Set
}

func New(canons, ids store.Set) *Ledger {
	return &Ledger{canons: canons, ids: ids}
}

// FromBackend wires the ledger to the shared seen-set keys.
func FromBackend(backend store.Backend) *Ledger {
	return New(backend.Set(mention.SeenCanonKey), backend.Set(mention.SeenIDKey))
}

// Admit claims key. Only the canonical-set insert is atomic; a false result
// means another caller already holds key and the item must be skipped. The id
// is recorded only after the claim succeeds; if recording it fails the claim
// is released so a retry can admit the item.
func (l *Ledger) Admit(ctx context.Context, key, id string) (bool, error) {
	ledgerKey := canon.LedgerKey(key)
	if ledgerKey == "" {
		return false, fmt.Errorf("ledger key is empty")
	}

	claimed, err := l.canons.Add(ctx, ledgerKey)
	if err != nil {
		return false, fmt.Errorf("claim canonical key: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if id = strings.TrimSpace(id); id != "" {
		if _, err := l.ids.Add(ctx, id); err != nil {
			if _, rollbackErr := l.canons.Remove(ctx, ledgerKey); rollbackErr != nil {
				return false, errors.Join(
					fmt.Errorf("record mention id %s: %w", id, err),
					fmt.Errorf("release canonical key: %w", rollbackErr),
				)
			}
			return false, fmt.Errorf("record mention id %s: %w", id, err)
		}
	}
	return true, nil
}

// Revoke releases key and id so the item may be admitted again. Either may be
// empty.
func (l *Ledger) Revoke(ctx context.Context, key, id string) error {
	if ledgerKey := canon.LedgerKey(key); ledgerKey != "" {
		if _, err := l.canons.Remove(ctx, ledgerKey); err != nil {
			return fmt.Errorf("revoke canonical key: %w", err)
		}
	}
	if id = strings.TrimSpace(id); id != "" {
		if _, err := l.ids.Remove(ctx, id); err != nil {
			return fmt.Errorf("revoke mention id %s: %w", id, err)
		}
	}
	return nil
}

func (l *Ledger) Seen(ctx context.Context, key string) (bool, error) {
	return l.canons.Contains(ctx, canon.LedgerKey(key))
}

func (l *Ledger) SeenID(ctx context.Context, id string) (bool, error) {
	return l.ids.Contains(ctx, strings.TrimSpace(id))
}

type Counts struct {
	Canonical int64 `json:"seen_canonical"`
	IDs       int64 `json:"seen_ids"`
}

func (l *Ledger) Counts(ctx context.Context) (Counts, error) {
	canonicals, err := l.canons.Count(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("count canonical keys: %w", err)
	}
	ids, err := l.ids.Count(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("count mention ids: %w", err)
	}
	return Counts{Canonical: canonicals, IDs: ids}, nil
}

// Flush forgets every admitted key and id. Items already in the timeline are
// untouched and may be re-ingested as new.
func (l *Ledger) Flush(ctx context.Context) (Counts, error) {
	canonicals, err := l.canons.Clear(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("flush canonical keys: %w", err)
	}
	ids, err := l.ids.Clear(ctx)
	if err != nil {
		return Counts{Canonical: canonicals}, fmt.Errorf("flush mention ids: %w", err)
	}
	return Counts{Canonical: canonicals, IDs: ids}, nil
}
