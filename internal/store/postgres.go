package store

import (
	"context"

	"github.com/TMG-AI/tara-dashboard/internal/db"
)

// Postgres adapts the gorm-backed pool to Backend.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) ScoredSet(key string) ScoredSet {
	return &postgresScoredSet{pool: p.pool, key: key}
}

func (p *Postgres) Set(key string) Set {
	return &postgresSet{pool: p.pool, key: key}
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error { return p.pool.Close() }

type postgresScoredSet struct {
	pool *db.Pool
	key  string
}

func (s *postgresScoredSet) Add(ctx context.Context, score int64, member string) (bool, error) {
	return s.pool.AddScoredMember(ctx, s.key, score, member)
}

func (s *postgresScoredSet) RangeByScore(ctx context.Context, minScore, maxScore int64) ([]string, error) {
	return s.pool.ScoredMembersByScore(ctx, s.key, minScore, maxScore)
}

func (s *postgresScoredSet) RangeByRank(ctx context.Context, start, stop int64, reverse bool) ([]string, error) {
	n, err := s.pool.CountScoredMembers(ctx, s.key)
	if err != nil {
		return nil, err
	}
	offset, limit, ok := resolveRank(start, stop, n)
	if !ok {
		return []string{}, nil
	}
	return s.pool.ScoredMembersByRank(ctx, s.key, offset, limit, reverse)
}

func (s *postgresScoredSet) RemoveRangeByScore(ctx context.Context, minScore, maxScore int64) (int64, error) {
	return s.pool.RemoveScoredMembersByScore(ctx, s.key, minScore, maxScore)
}

func (s *postgresScoredSet) Remove(ctx context.Context, member string) (bool, error) {
	return s.pool.RemoveScoredMember(ctx, s.key, member)
}

func (s *postgresScoredSet) Count(ctx context.Context) (int64, error) {
	return s.pool.CountScoredMembers(ctx, s.key)
}

type postgresSet struct {
	pool *db.Pool
	key  string
}

func (s *postgresSet) Add(ctx context.Context, member string) (bool, error) {
	return s.pool.AddSetMember(ctx, s.key, member)
}

func (s *postgresSet) Remove(ctx context.Context, member string) (bool, error) {
	return s.pool.RemoveSetMember(ctx, s.key, member)
}

func (s *postgresSet) Contains(ctx context.Context, member string) (bool, error) {
	return s.pool.HasSetMember(ctx, s.key, member)
}

func (s *postgresSet) Count(ctx context.Context) (int64, error) {
	return s.pool.CountSetMembers(ctx, s.key)
}

func (s *postgresSet) Clear(ctx context.Context) (int64, error) {
	return s.pool.ClearSet(ctx, s.key)
}
