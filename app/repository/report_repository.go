package repository

import (
	"time"

	"github.com/crisispulse/CrisisPulse/app/models"
	"gorm.io/gorm"
)

// reportRepository implements the ReportRepository interface
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository instance
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create stores a freshly submitted report
func (r *reportRepository) Create(report *models.Report) error {
	return r.db.Create(report).Error
}

// GetByID retrieves a report by its database ID
func (r *reportRepository) GetByID(id uint) (*models.Report, error) {
	var report models.Report
	err := r.db.First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByUUID retrieves a report by its public identifier
func (r *reportRepository) GetByUUID(uuid string) (*models.Report, error) {
	var report models.Report
	err := r.db.Where("uuid = ?", uuid).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Save persists a mutated report row. The WHERE clause on the previous
// version makes the write a compare-and-swap: if a concurrent writer got
// there first, no row matches and gorm.ErrRecordNotFound is returned so the
// caller can reload and retry.
func (r *reportRepository) Save(report *models.Report) error {
	previousVersion := report.Version
	report.Version = previousVersion + 1
	report.UpdatedAt = time.Now()

	result := r.db.Model(&models.Report{}).
		Where("id = ? AND version = ?", report.ID, previousVersion).
		Select("*").
		Omit("id", "uuid", "created_at", "view_count").
		Updates(report)
	if result.Error != nil {
		report.Version = previousVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		report.Version = previousVersion
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepository) applyFilter(filter ReportFilter) *gorm.DB {
	query := r.db.Model(&models.Report{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	return query
}

// List returns reports matching the filter, newest first
func (r *reportRepository) List(filter ReportFilter, offset, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := r.applyFilter(filter).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

// GetRecent returns the most recently created reports
func (r *reportRepository) GetRecent(limit int) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.Order("created_at DESC").Limit(limit).Find(&reports).Error
	return reports, err
}

// Count returns the number of reports matching the filter
func (r *reportRepository) Count(filter ReportFilter) (int64, error) {
	var count int64
	err := r.applyFilter(filter).Count(&count).Error
	return count, err
}
