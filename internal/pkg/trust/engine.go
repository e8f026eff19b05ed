package trust

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
	"github.com/crisispulse/CrisisPulse/internal/pkg/notify"
)

const (
	lockStripes  = 256
	saveAttempts = 3
)

// Tally is the current vote state of a report.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Engine serializes all trust-field mutations per report and keeps the
// derived consensus state consistent with the underlying ledgers. Every
// mutation bumps the report version by exactly 1 and emits one change event.
type Engine struct {
	repos    *repository.Repositories
	notifier *notify.Notifier
	weights  Weights
	locks    [lockStripes]sync.Mutex
}

// NewEngine creates a trust engine over the given repositories.
func NewEngine(repos *repository.Repositories, notifier *notify.Notifier, weights Weights) *Engine {
	return &Engine{
		repos:    repos,
		notifier: notifier,
		weights:  weights,
	}
}

// lockFor returns the mutex stripe guarding a report's trust fields. All
// reports hashing to the same stripe share a lock; that only costs spurious
// serialization, never correctness.
func (e *Engine) lockFor(reportUUID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(reportUUID))
	return &e.locks[h.Sum32()%lockStripes]
}

func (e *Engine) loadReport(reportUUID string) (*models.Report, error) {
	report, err := e.repos.Report.GetByUUID(reportUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}

// recompute refreshes the consensus score from the report's current signals.
func (e *Engine) recompute(report *models.Report) {
	report.ConsensusScore = e.weights.Score(Signals{
		Upvotes:           report.Upvotes,
		Downvotes:         report.Downvotes,
		VerificationCount: report.VerificationCount,
		AIValidationScore: report.AIValidationScore,
		Confirmed:         report.IsConfirmed(),
	})
}

// save persists the report with its version CAS guard. Conflicts can only
// come from another process instance; reload and retry a bounded number of
// times before giving up.
func (e *Engine) save(report *models.Report, mutate func(*models.Report) error) error {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		err := e.repos.Report.Save(report)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		fresh, loadErr := e.repos.Report.GetByUUID(report.UUID)
		if loadErr != nil {
			return loadErr
		}
		if mutate != nil {
			if mutErr := mutate(fresh); mutErr != nil {
				return mutErr
			}
		}
		e.recompute(fresh)
		*report = *fresh
	}
	return fmt.Errorf("report %s: gave up after %d version conflicts", report.UUID, saveAttempts)
}

func (e *Engine) emit(eventType string, report *models.Report) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(notify.Event{
		Type: eventType,
		Data: map[string]interface{}{
			"report_id":          report.UUID,
			"status":             report.Status,
			"upvotes":            report.Upvotes,
			"downvotes":          report.Downvotes,
			"verification_count": report.VerificationCount,
			"consensus_score":    report.ConsensusScore,
			"version":            report.Version,
		},
	})
}

// CastVote applies toggle vote semantics for one user on one report: no
// existing vote creates one, the same vote type again removes it, the
// opposite type replaces it. Returns the resulting tally.
func (e *Engine) CastVote(reportUUID string, userID uint, voteType string) (*Tally, error) {
	if !models.IsValidVoteType(voteType) {
		return nil, NewValidationError("vote_type", "must be upvote or downvote")
	}

	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	existing, err := e.repos.Vote.Get(report.ID, userID)
	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		vote := &models.Vote{ReportID: report.ID, UserID: userID, VoteType: voteType}
		if err := e.repos.Vote.Create(vote); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existing.VoteType == voteType:
		// toggle-off
		if err := e.repos.Vote.Delete(existing); err != nil {
			return nil, err
		}
	default:
		existing.VoteType = voteType
		if err := e.repos.Vote.Update(existing); err != nil {
			return nil, err
		}
	}

	return e.refreshTally(report)
}

// RemoveVote deletes the user's vote if present. Removing a missing vote is
// a no-op, not an error.
func (e *Engine) RemoveVote(reportUUID string, userID uint) (*Tally, error) {
	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	existing, err := e.repos.Vote.Get(report.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Tally{Upvotes: report.Upvotes, Downvotes: report.Downvotes}, nil
		}
		return nil, err
	}
	if err := e.repos.Vote.Delete(existing); err != nil {
		return nil, err
	}

	return e.refreshTally(report)
}

// refreshTally recounts from the vote ledger, recomputes consensus and
// persists the report. Called under the report lock.
func (e *Engine) refreshTally(report *models.Report) (*Tally, error) {
	up, down, err := e.repos.Vote.CountByType(report.ID)
	if err != nil {
		return nil, err
	}

	apply := func(r *models.Report) error {
		r.Upvotes = up
		r.Downvotes = down
		return nil
	}
	if err := apply(report); err != nil {
		return nil, err
	}
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportUpdated, report)
	return &Tally{Upvotes: report.Upvotes, Downvotes: report.Downvotes}, nil
}

// GetVote returns the user's current vote, nil if none exists.
func (e *Engine) GetVote(reportUUID string, userID uint) (*models.Vote, error) {
	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}
	vote, err := e.repos.Vote.Get(report.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return vote, nil
}

// GetTally returns the stored tally together with the consensus score.
func (e *Engine) GetTally(reportUUID string) (*Tally, int, error) {
	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, 0, err
	}
	return &Tally{Upvotes: report.Upvotes, Downvotes: report.Downvotes}, report.ConsensusScore, nil
}

// RecordVerification appends a one-time verification for the user. A repeat
// attempt fails with ErrDuplicateVerification and leaves the count unchanged.
func (e *Engine) RecordVerification(reportUUID string, userID uint) (*models.Report, error) {
	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	exists, err := e.repos.Verification.Exists(report.ID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateVerification
	}

	verification := &models.Verification{ReportID: report.ID, UserID: userID}
	if err := e.repos.Verification.Create(verification); err != nil {
		// the unique index is the last line of defense against a
		// concurrent duplicate from another instance
		return nil, ErrDuplicateVerification
	}

	count, err := e.repos.Verification.CountByReport(report.ID)
	if err != nil {
		return nil, err
	}

	apply := func(r *models.Report) error {
		r.VerificationCount = int(count)
		return nil
	}
	apply(report)
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportVerified, report)
	if report.VerificationCount >= models.MinVerificationsForConfirm {
		log.Debugf("[Trust] report %s eligible for official confirmation (%d verifications)",
			report.UUID, report.VerificationCount)
	}
	return report, nil
}

// HasVerified reports whether the user already verified the report.
func (e *Engine) HasVerified(reportUUID string, userID uint) (bool, error) {
	report, err := e.loadReport(reportUUID)
	if err != nil {
		return false, err
	}
	return e.repos.Verification.Exists(report.ID, userID)
}

// ListVerifiedBy returns the public IDs of all reports the user verified.
func (e *Engine) ListVerifiedBy(userID uint) ([]string, error) {
	return e.repos.Verification.ListReportIDsByUser(userID)
}

// Confirm sets the official confirmation. Only volunteer, NGO and admin
// roles may confirm, and only once the report has reached the community
// verification threshold.
func (e *Engine) Confirm(reportUUID string, actor *models.User) (*models.Report, error) {
	if !models.CanConfirm(actor.Role) {
		return nil, ErrForbidden
	}

	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}
	if report.VerificationCount < models.MinVerificationsForConfirm {
		return nil, ErrNotEnoughVerifications
	}

	now := time.Now()
	apply := func(r *models.Report) error {
		r.ConfirmedByID = &actor.ID
		r.ConfirmedAt = &now
		return nil
	}
	apply(report)
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportConfirmed, report)
	return report, nil
}

// Unconfirm clears the official confirmation. Fails with
// ErrNothingToUnconfirm when the report is not currently confirmed.
func (e *Engine) Unconfirm(reportUUID string, actor *models.User) (*models.Report, error) {
	if !models.CanConfirm(actor.Role) {
		return nil, ErrForbidden
	}

	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}
	if !report.IsConfirmed() {
		return nil, ErrNothingToUnconfirm
	}

	apply := func(r *models.Report) error {
		r.ConfirmedByID = nil
		r.ConfirmedAt = nil
		return nil
	}
	apply(report)
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportUnconfirmed, report)
	return report, nil
}

// UpdateStatus advances the report lifecycle. When expectedVersion is
// non-nil and stale the update is rejected with an OptimisticLockError
// carrying the actual version; the caller must refetch and retry.
func (e *Engine) UpdateStatus(reportUUID string, newStatus string, expectedVersion *int) (*models.Report, error) {
	if !models.IsValidStatus(newStatus) {
		return nil, NewValidationError("status", "must be one of reported, verified, responding, resolved")
	}

	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	if expectedVersion != nil && *expectedVersion != report.Version {
		return nil, &OptimisticLockError{Expected: *expectedVersion, Actual: report.Version}
	}

	// the rank check lives in the closure so a conflict retry re-evaluates
	// it against the freshly loaded row
	apply := func(r *models.Report) error {
		if models.StatusRank(newStatus) < models.StatusRank(r.Status) {
			return NewValidationError("status",
				fmt.Sprintf("cannot move back from %s to %s", r.Status, newStatus))
		}
		r.Status = newStatus
		return nil
	}
	if err := apply(report); err != nil {
		return nil, err
	}
	e.recompute(report)

	if expectedVersion != nil {
		// externally guarded write: a save-time conflict means another
		// writer got in after our check, surface it as a stale version
		if err := e.repos.Report.Save(report); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fresh, loadErr := e.repos.Report.GetByUUID(report.UUID)
				if loadErr != nil {
					return nil, loadErr
				}
				return nil, &OptimisticLockError{Expected: *expectedVersion, Actual: fresh.Version}
			}
			return nil, err
		}
	} else if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportUpdated, report)
	return report, nil
}

// ApplyAIValidation stores the external classifier's score and recomputes.
func (e *Engine) ApplyAIValidation(reportUUID string, score int) (*models.Report, error) {
	if score < 0 || score > 100 {
		return nil, NewValidationError("ai_validation_score", "must be between 0 and 100")
	}

	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	apply := func(r *models.Report) error {
		r.AIValidationScore = &score
		return nil
	}
	apply(report)
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportUpdated, report)
	return report, nil
}

// ApplyFakeDetection annotates the report with the aggregated risk score and
// flags. It never blocks or fails report availability; a nil score clears a
// previous result.
func (e *Engine) ApplyFakeDetection(reportUUID string, score *int, flags []string) (*models.Report, error) {
	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return nil, err
	}

	apply := func(r *models.Report) error {
		r.FakeScore = score
		r.FakeFlags = models.StringList(flags)
		return nil
	}
	apply(report)
	e.recompute(report)
	if err := e.save(report, apply); err != nil {
		return nil, err
	}

	e.emit(notify.EventReportUpdated, report)
	return report, nil
}

// SetSimilarReports replaces the report's similar-report references,
// normally with its cluster's primary after a clustering run.
func (e *Engine) SetSimilarReports(reportUUID string, similarIDs []string) error {
	mu := e.lockFor(reportUUID)
	mu.Lock()
	defer mu.Unlock()

	report, err := e.loadReport(reportUUID)
	if err != nil {
		return err
	}

	apply := func(r *models.Report) error {
		r.SimilarReportIDs = models.StringList(similarIDs)
		return nil
	}
	apply(report)
	e.recompute(report)
	return e.save(report, apply)
}
