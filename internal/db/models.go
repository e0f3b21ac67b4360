package db

import "time"

// ScoredMember maps tara.scored_members: one row per member of a scored set
// such as the mention timeline.
type ScoredMember struct {
	SetKey     string    `gorm:"column:set_key;type:text;primaryKey"`
	MemberHash []byte    `gorm:"column:member_hash;type:bytea;primaryKey"`
	Member     string    `gorm:"column:member;type:text;not null"`
	Score      int64     `gorm:"column:score;type:bigint;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ScoredMember) TableName() string { return "tara.scored_members" }

// SetMember maps tara.set_members: the seen-id and seen-canon ledgers.
type SetMember struct {
	SetKey     string    `gorm:"column:set_key;type:text;primaryKey"`
	MemberHash []byte    `gorm:"column:member_hash;type:bytea;primaryKey"`
	Member     string    `gorm:"column:member;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SetMember) TableName() string { return "tara.set_members" }

func autoMigrateModels() []any {
	return []any{
		&ScoredMember{},
		&SetMember{},
	}
}
