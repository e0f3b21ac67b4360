// Package store holds the mention timeline and the seen sets. Backends expose
// sorted-set and set semantics so the timeline survives a move between
// embedded SQLite, Postgres and memory without changing callers.
package store

import (
	"context"
	"errors"
	"math"
)

// Score bounds for open-ended range queries.
const (
	MinScore int64 = math.MinInt64
	MaxScore int64 = math.MaxInt64
)

// ScoredSet is a set of members ordered by integer score, ties broken by
// member bytes.
type ScoredSet interface {
	// Add inserts member or replaces its score. It reports whether member was new.
	Add(ctx context.Context, score int64, member string) (bool, error)
	// RangeByScore returns members with min <= score <= max in ascending order.
	RangeByScore(ctx context.Context, minScore, maxScore int64) ([]string, error)
	// RangeByRank returns members between the inclusive ranks start and stop.
	// Negative ranks count from the end. With reverse set, rank 0 is the
	// highest score.
	RangeByRank(ctx context.Context, start, stop int64, reverse bool) ([]string, error)
	RemoveRangeByScore(ctx context.Context, minScore, maxScore int64) (int64, error)
	Remove(ctx context.Context, member string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Set is an unordered set of strings. Add is the only primitive that must be
// atomic: under concurrent calls with the same member exactly one returns true.
type Set interface {
	Add(ctx context.Context, member string) (bool, error)
	Remove(ctx context.Context, member string) (bool, error)
	Contains(ctx context.Context, member string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
}

type Backend interface {
	Name() string
	ScoredSet(key string) ScoredSet
	Set(key string) Set
	Ping(ctx context.Context) error
	Close() error
}

// resolveRank converts inclusive start/stop ranks over n members into an
// offset and limit. ok is false when the range is empty.
func resolveRank(start, stop, n int64) (offset, limit int64, ok bool) {
	if n <= 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += n
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop - start + 1, true
}

// ErrNotFound reports that a requested member is not in the timeline.
var ErrNotFound = errors.New("store: not found")
