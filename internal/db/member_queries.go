package db

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// MemberHash is the primary-key digest for a member string. Members are full
// JSON records, too long to index directly.
func MemberHash(member string) []byte {
	sum := sha256.Sum256([]byte(member))
	return sum[:]
}

// AddScoredMember inserts member or updates its score. It reports whether the
// member was new.
func (p *Pool) AddScoredMember(ctx context.Context, key string, score int64, member string) (bool, error) {
	const query = `
INSERT INTO tara.scored_members (set_key, member_hash, member, score)
VALUES ($1, $2, $3, $4)
ON CONFLICT (set_key, member_hash) DO UPDATE SET score = EXCLUDED.score
RETURNING (xmax = 0) AS inserted
`
	var inserted bool
	if err := p.scanRow(ctx, query, []any{key, MemberHash(member), member, score}, &inserted); err != nil {
		return false, fmt.Errorf("add scored member to %s: %w", key, err)
	}
	return inserted, nil
}

// ScoredMembersByScore returns members with min <= score <= max, ascending by
// score then member bytes.
func (p *Pool) ScoredMembersByScore(ctx context.Context, key string, minScore, maxScore int64) ([]string, error) {
	const query = `
SELECT member
FROM tara.scored_members
WHERE set_key = $1
	AND score >= $2
	AND score <= $3
ORDER BY score ASC, member COLLATE "C" ASC
`
	return p.queryMembers(ctx, key, query, key, minScore, maxScore)
}

// ScoredMembersByRank returns limit members starting at offset in ascending or
// descending order.
func (p *Pool) ScoredMembersByRank(ctx context.Context, key string, offset, limit int64, descending bool) ([]string, error) {
	query := `
SELECT member
FROM tara.scored_members
WHERE set_key = $1
ORDER BY score ASC, member COLLATE "C" ASC
OFFSET $2 LIMIT $3
`
	if descending {
		query = `
SELECT member
FROM tara.scored_members
WHERE set_key = $1
ORDER BY score DESC, member COLLATE "C" DESC
OFFSET $2 LIMIT $3
`
	}
	return p.queryMembers(ctx, key, query, key, offset, limit)
}

func (p *Pool) RemoveScoredMember(ctx context.Context, key, member string) (bool, error) {
	const query = `
DELETE FROM tara.scored_members
WHERE set_key = $1
	AND member_hash = $2
`
	affected, err := p.exec(ctx, query, key, MemberHash(member))
	if err != nil {
		return false, fmt.Errorf("remove scored member from %s: %w", key, err)
	}
	return affected > 0, nil
}

func (p *Pool) RemoveScoredMembersByScore(ctx context.Context, key string, minScore, maxScore int64) (int64, error) {
	const query = `
DELETE FROM tara.scored_members
WHERE set_key = $1
	AND score >= $2
	AND score <= $3
`
	affected, err := p.exec(ctx, query, key, minScore, maxScore)
	if err != nil {
		return 0, fmt.Errorf("remove scored range from %s: %w", key, err)
	}
	return affected, nil
}

func (p *Pool) CountScoredMembers(ctx context.Context, key string) (int64, error) {
	const query = `SELECT COUNT(*)::BIGINT FROM tara.scored_members WHERE set_key = $1`
	var count int64
	if err := p.scanRow(ctx, query, []any{key}, &count); err != nil {
		return 0, fmt.Errorf("count scored members in %s: %w", key, err)
	}
	return count, nil
}

// AddSetMember is the add-if-absent primitive behind the identity ledger. The
// insert is a single statement so concurrent callers see exactly one winner.
func (p *Pool) AddSetMember(ctx context.Context, key, member string) (bool, error) {
	const query = `
INSERT INTO tara.set_members (set_key, member_hash, member)
VALUES ($1, $2, $3)
ON CONFLICT (set_key, member_hash) DO NOTHING
`
	affected, err := p.exec(ctx, query, key, MemberHash(member), member)
	if err != nil {
		return false, fmt.Errorf("add set member to %s: %w", key, err)
	}
	return affected == 1, nil
}

func (p *Pool) RemoveSetMember(ctx context.Context, key, member string) (bool, error) {
	const query = `
DELETE FROM tara.set_members
WHERE set_key = $1
	AND member_hash = $2
`
	affected, err := p.exec(ctx, query, key, MemberHash(member))
	if err != nil {
		return false, fmt.Errorf("remove set member from %s: %w", key, err)
	}
	return affected > 0, nil
}

func (p *Pool) HasSetMember(ctx context.Context, key, member string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM tara.set_members WHERE set_key = $1 AND member_hash = $2
)
`
	var exists bool
	if err := p.scanRow(ctx, query, []any{key, MemberHash(member)}, &exists); err != nil {
		return false, fmt.Errorf("check set member in %s: %w", key, err)
	}
	return exists, nil
}

func (p *Pool) CountSetMembers(ctx context.Context, key string) (int64, error) {
	const query = `SELECT COUNT(*)::BIGINT FROM tara.set_members WHERE set_key = $1`
	var count int64
	if err := p.scanRow(ctx, query, []any{key}, &count); err != nil {
		return 0, fmt.Errorf("count set members in %s: %w", key, err)
	}
	return count, nil
}

func (p *Pool) ClearSet(ctx context.Context, key string) (int64, error) {
	affected, err := p.exec(ctx, `DELETE FROM tara.set_members WHERE set_key = $1`, key)
	if err != nil {
		return 0, fmt.Errorf("clear set %s: %w", key, err)
	}
	return affected, nil
}

func (p *Pool) queryMembers(ctx context.Context, key, query string, args ...any) ([]string, error) {
	rows, err := p.rows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members of %s: %w", key, err)
	}
	defer func() { _ = rows.Close() }()

	members := make([]string, 0, 64)
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan member of %s: %w", key, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members of %s: %w", key, err)
	}
	return members, nil
}
