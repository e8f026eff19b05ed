package repository

import (
	"time"

	"github.com/crisispulse/CrisisPulse/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Type     string
	Status   string
	Severity string
}

// ReportRepository defines the interface for report-related database operations
type ReportRepository interface {
	Create(report *models.Report) error
	GetByID(id uint) (*models.Report, error)
	GetByUUID(uuid string) (*models.Report, error)
	// Save persists the report after bumping its version by exactly 1.
	// It fails with gorm.ErrRecordNotFound if another writer bumped the
	// version since the report was loaded.
	Save(report *models.Report) error
	List(filter ReportFilter, offset, limit int) ([]models.Report, error)
	GetRecent(limit int) ([]models.Report, error)
	Count(filter ReportFilter) (int64, error)
}

// VoteRepository defines the interface for vote storage. Uniqueness of
// (report_id, user_id) is enforced by the storage layer.
type VoteRepository interface {
	Create(vote *models.Vote) error
	Get(reportID, userID uint) (*models.Vote, error)
	Update(vote *models.Vote) error
	Delete(vote *models.Vote) error
	CountByType(reportID uint) (upvotes int, downvotes int, err error)
}

// VerificationRepository defines the interface for the append-only
// verification ledger.
type VerificationRepository interface {
	Create(verification *models.Verification) error
	Exists(reportID, userID uint) (bool, error)
	CountByReport(reportID uint) (int64, error)
	ListReportIDsByUser(userID uint) ([]string, error)
}

// ClusterRepository manages the materialized clustering output.
type ClusterRepository interface {
	// ReplaceAll atomically swaps the stored cluster set for the given
	// run's clusters. Partial results are never visible.
	ReplaceAll(runID string, clusters []models.ReportCluster) error
	GetAll() ([]models.ReportCluster, error)
	Count() (int64, error)
	LastRunAt() (*time.Time, error)
}

// Repositories contains all repository instances
type Repositories struct {
	User         UserRepository
	Report       ReportRepository
	Vote         VoteRepository
	Verification VerificationRepository
	Cluster      ClusterRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Report:       NewReportRepository(db),
		Vote:         NewVoteRepository(db),
		Verification: NewVerificationRepository(db),
		Cluster:      NewClusterRepository(db),
	}
}
