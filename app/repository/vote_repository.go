package repository

import (
	"github.com/crisispulse/CrisisPulse/app/models"
	"gorm.io/gorm"
)

// voteRepository implements the VoteRepository interface
type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository instance
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Create stores a new vote. The unique index on (report_id, user_id) rejects
// a second row for the same pair.
func (r *voteRepository) Create(vote *models.Vote) error {
	return r.db.Create(vote).Error
}

// Get returns the user's current vote on a report
func (r *voteRepository) Get(reportID, userID uint) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.Where("report_id = ? AND user_id = ?", reportID, userID).First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// Update persists a changed vote type
func (r *voteRepository) Update(vote *models.Vote) error {
	return r.db.Model(vote).Update("vote_type", vote.VoteType).Error
}

// Delete removes a vote (toggle-off)
func (r *voteRepository) Delete(vote *models.Vote) error {
	return r.db.Delete(vote).Error
}

// CountByType returns the current up/down tallies for a report
func (r *voteRepository) CountByType(reportID uint) (int, int, error) {
	type tallyRow struct {
		VoteType string
		Total    int64
	}
	var rows []tallyRow
	err := r.db.Model(&models.Vote{}).
		Select("vote_type, COUNT(*) as total").
		Where("report_id = ?", reportID).
		Group("vote_type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}

	var upvotes, downvotes int
	for _, row := range rows {
		switch row.VoteType {
		case models.VoteTypeUp:
			upvotes = int(row.Total)
		case models.VoteTypeDown:
			downvotes = int(row.Total)
		}
	}
	return upvotes, downvotes, nil
}
