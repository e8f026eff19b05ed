package repository

import (
	"time"

	"github.com/crisispulse/CrisisPulse/app/models"
	"gorm.io/gorm"
)

// clusterRepository implements the ClusterRepository interface
type clusterRepository struct {
	db *gorm.DB
}

// NewClusterRepository creates a new cluster repository instance
func NewClusterRepository(db *gorm.DB) ClusterRepository {
	return &clusterRepository{db: db}
}

// ReplaceAll swaps the stored cluster set inside one transaction so readers
// never observe a partial run.
func (r *clusterRepository) ReplaceAll(runID string, clusters []models.ReportCluster) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id <> ?", runID).Delete(&models.ReportCluster{}).Error; err != nil {
			return err
		}
		if len(clusters) == 0 {
			return nil
		}
		return tx.Create(&clusters).Error
	})
}

// GetAll returns the current cluster set, largest first
func (r *clusterRepository) GetAll() ([]models.ReportCluster, error) {
	var clusters []models.ReportCluster
	err := r.db.Order("confidence DESC").Find(&clusters).Error
	return clusters, err
}

// Count returns the number of stored clusters
func (r *clusterRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ReportCluster{}).Count(&count).Error
	return count, err
}

// LastRunAt returns the creation time of the newest stored cluster row,
// nil when no run has produced clusters yet.
func (r *clusterRepository) LastRunAt() (*time.Time, error) {
	var cluster models.ReportCluster
	err := r.db.Order("created_at DESC").First(&cluster).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cluster.CreatedAt, nil
}
