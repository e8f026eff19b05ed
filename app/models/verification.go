package models

import (
	"time"
)

// MinVerificationsForConfirm is the community threshold a report must reach
// before it becomes eligible for official confirmation.
const MinVerificationsForConfirm = 3

// Verification is a one-time "I corroborate this" mark. Append-only: there is
// no toggle and no removal. The unique index rejects duplicates.
type Verification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"uniqueIndex:idx_verification_report_user;not null" json:"report_id"`
	Report    Report    `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	UserID    uint      `gorm:"uniqueIndex:idx_verification_report_user;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
