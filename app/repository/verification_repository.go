package repository

import (
	"github.com/crisispulse/CrisisPulse/app/models"
	"gorm.io/gorm"
)

// verificationRepository implements the VerificationRepository interface
type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new verification repository instance
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// Create appends a verification. The unique index on (report_id, user_id)
// makes repeat attempts fail at the storage layer regardless of any
// check-then-act race above it.
func (r *verificationRepository) Create(verification *models.Verification) error {
	return r.db.Create(verification).Error
}

// Exists checks whether the user already verified the report
func (r *verificationRepository) Exists(reportID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Verification{}).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByReport returns the number of verifications for a report
func (r *verificationRepository) CountByReport(reportID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Verification{}).
		Where("report_id = ?", reportID).
		Count(&count).Error
	return count, err
}

// ListReportIDsByUser returns the public IDs of all reports the user has
// verified, newest first. Backs the client's "already verified" state.
func (r *verificationRepository) ListReportIDsByUser(userID uint) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Verification{}).
		Joins("JOIN reports ON reports.id = verifications.report_id").
		Where("verifications.user_id = ?", userID).
		Order("verifications.created_at DESC").
		Pluck("reports.uuid", &ids).Error
	return ids, err
}
