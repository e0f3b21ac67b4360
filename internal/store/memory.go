package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local Backend. Every set shares one lock.
type Memory struct {
	mu     sync.Mutex
	scored map[string]map[string]int64
	sets   map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		scored: make(map[string]map[string]int64),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) ScoredSet(key string) ScoredSet {
	return &memoryScoredSet{parent: m, key: key}
}

func (m *Memory) Set(key string) Set {
	return &memorySet{parent: m, key: key}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

type scoredEntry struct {
	member string
	score  int64
}

type memoryScoredSet struct {
	parent *Memory
	key    string
}

func (s *memoryScoredSet) Add(ctx context.Context, score int64, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	members, ok := s.parent.scored[s.key]
	if !ok {
		members = make(map[string]int64)
		s.parent.scored[s.key] = members
	}
	_, exists := members[member]
	members[member] = score
	return !exists, nil
}

func (s *memoryScoredSet) RangeByScore(ctx context.Context, minScore, maxScore int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	out := make([]string, 0)
	for _, entry := range s.sortedLocked() {
		if entry.score >= minScore && entry.score <= maxScore {
			out = append(out, entry.member)
		}
	}
	return out, nil
}

func (s *memoryScoredSet) RangeByRank(ctx context.Context, start, stop int64, reverse bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	entries := s.sortedLocked()
	if reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	offset, limit, ok := resolveRank(start, stop, int64(len(entries)))
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, limit)
	for _, entry := range entries[offset : offset+limit] {
		out = append(out, entry.member)
	}
	return out, nil
}

func (s *memoryScoredSet) RemoveRangeByScore(ctx context.Context, minScore, maxScore int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	var removed int64
	for member, score := range s.parent.scored[s.key] {
		if score >= minScore && score <= maxScore {
			delete(s.parent.scored[s.key], member)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryScoredSet) Remove(ctx context.Context, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	members := s.parent.scored[s.key]
	if _, ok := members[member]; !ok {
		return false, nil
	}
	delete(members, member)
	return true, nil
}

func (s *memoryScoredSet) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return int64(len(s.parent.scored[s.key])), nil
}

func (s *memoryScoredSet) sortedLocked() []scoredEntry {
	members := s.parent.scored[s.key]
	entries := make([]scoredEntry, 0, len(members))
	for member, score := range members {
		entries = append(entries, scoredEntry{member: member, score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].member < entries[j].member
	})
	return entries
}

type memorySet struct {
	parent *Memory
	key    string
}

func (s *memorySet) Add(ctx context.Context, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	members, ok := s.parent.sets[s.key]
	if !ok {
		members = make(map[string]struct{})
		s.parent.sets[s.key] = members
	}
	if _, exists := members[member]; exists {
		return false, nil
	}
	members[member] = struct{}{}
	return true, nil
}

func (s *memorySet) Remove(ctx context.Context, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	members := s.parent.sets[s.key]
	if _, ok := members[member]; !ok {
		return false, nil
	}
	delete(members, member)
	return true, nil
}

func (s *memorySet) Contains(ctx context.Context, member string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	_, ok := s.parent.sets[s.key][member]
	return ok, nil
}

func (s *memorySet) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return int64(len(s.parent.sets[s.key])), nil
}

func (s *memorySet) Clear(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	n := int64(len(s.parent.sets[s.key]))
	delete(s.parent.sets, s.key)
	return n, nil
}
