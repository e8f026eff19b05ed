package models

import (
	"time"
)

const (
	VoteTypeUp   = "upvote"
	VoteTypeDown = "downvote"
)

// IsValidVoteType checks a vote type string.
func IsValidVoteType(voteType string) bool {
	return voteType == VoteTypeUp || voteType == VoteTypeDown
}

// Vote holds one user's current stance on one report. The unique index on
// (report_id, user_id) enforces at most one row per pair at the storage layer.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"uniqueIndex:idx_vote_report_user;not null" json:"report_id"`
	Report    Report    `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	UserID    uint      `gorm:"uniqueIndex:idx_vote_report_user;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	VoteType  string    `gorm:"type:varchar(10);not null" json:"vote_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
