package models

import (
	"time"
)

// ReportCluster is a materialized clustering result, not a source of truth.
// Each clustering run writes a fresh set of rows under a new RunID and drops
// the previous set in the same transaction.
type ReportCluster struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ClusterID       string     `gorm:"type:char(36);uniqueIndex;not null" json:"cluster_id"`
	RunID           string     `gorm:"type:char(36);index;not null" json:"run_id"`
	PrimaryReportID string     `gorm:"type:char(36);not null" json:"primary_report_id"`
	MemberIDs       StringList `gorm:"type:json" json:"related_report_ids"`
	Confidence      float64    `json:"confidence"`
	Reasons         StringList `gorm:"type:json" json:"reasons"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Size returns the cluster size including the primary member.
func (c *ReportCluster) Size() int {
	return len(c.MemberIDs) + 1
}
