package trust

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/app/repository"
)

// memStore is a shared in-memory backing for the fake repositories. It
// reproduces the storage-layer guarantees the engine relies on: version CAS
// on report saves and unique (report, user) pairs in both ledgers.
type memStore struct {
	mu            sync.Mutex
	nextID        uint
	reports       map[uint]*models.Report
	votes         map[[2]uint]*models.Vote
	verifications map[[2]uint]*models.Verification
}

func newMemStore() *memStore {
	return &memStore{
		reports:       make(map[uint]*models.Report),
		votes:         make(map[[2]uint]*models.Vote),
		verifications: make(map[[2]uint]*models.Verification),
	}
}

func copyReport(r *models.Report) *models.Report {
	clone := *r
	return &clone
}

type fakeReportRepo struct {
	store *memStore
	// beforeSave runs once inside the next Save, under the store lock, to
	// simulate a concurrent writer from another instance
	beforeSave func(stored map[uint]*models.Report)
}

func (f *fakeReportRepo) Create(report *models.Report) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.nextID++
	report.ID = f.store.nextID
	report.CreatedAt = time.Now()
	f.store.reports[report.ID] = copyReport(report)
	return nil
}

func (f *fakeReportRepo) GetByID(id uint) (*models.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	stored, ok := f.store.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyReport(stored), nil
}

func (f *fakeReportRepo) GetByUUID(uuid string) (*models.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, stored := range f.store.reports {
		if stored.UUID == uuid {
			return copyReport(stored), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReportRepo) Save(report *models.Report) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.beforeSave != nil {
		hook := f.beforeSave
		f.beforeSave = nil
		hook(f.store.reports)
	}
	stored, ok := f.store.reports[report.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != report.Version {
		return gorm.ErrRecordNotFound
	}
	report.Version++
	report.UpdatedAt = time.Now()
	f.store.reports[report.ID] = copyReport(report)
	return nil
}

func (f *fakeReportRepo) List(filter repository.ReportFilter, offset, limit int) ([]models.Report, error) {
	return f.GetRecent(limit)
}

func (f *fakeReportRepo) GetRecent(limit int) ([]models.Report, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.Report, 0, len(f.store.reports))
	for _, stored := range f.store.reports {
		out = append(out, *copyReport(stored))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReportRepo) Count(filter repository.ReportFilter) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return int64(len(f.store.reports)), nil
}

type fakeVoteRepo struct{ store *memStore }

func (f *fakeVoteRepo) Create(vote *models.Vote) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	key := [2]uint{vote.ReportID, vote.UserID}
	if _, exists := f.store.votes[key]; exists {
		return errors.New("duplicate vote")
	}
	clone := *vote
	f.store.votes[key] = &clone
	return nil
}

func (f *fakeVoteRepo) Get(reportID, userID uint) (*models.Vote, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	vote, ok := f.store.votes[[2]uint{reportID, userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *vote
	return &clone, nil
}

func (f *fakeVoteRepo) Update(vote *models.Vote) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	clone := *vote
	f.store.votes[[2]uint{vote.ReportID, vote.UserID}] = &clone
	return nil
}

func (f *fakeVoteRepo) Delete(vote *models.Vote) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.votes, [2]uint{vote.ReportID, vote.UserID})
	return nil
}

func (f *fakeVoteRepo) CountByType(reportID uint) (int, int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	up, down := 0, 0
	for _, vote := range f.store.votes {
		if vote.ReportID != reportID {
			continue
		}
		if vote.VoteType == models.VoteTypeUp {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

type fakeVerificationRepo struct{ store *memStore }

func (f *fakeVerificationRepo) Create(verification *models.Verification) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	key := [2]uint{verification.ReportID, verification.UserID}
	if _, exists := f.store.verifications[key]; exists {
		return errors.New("duplicate verification")
	}
	clone := *verification
	f.store.verifications[key] = &clone
	return nil
}

func (f *fakeVerificationRepo) Exists(reportID, userID uint) (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	_, exists := f.store.verifications[[2]uint{reportID, userID}]
	return exists, nil
}

func (f *fakeVerificationRepo) CountByReport(reportID uint) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var count int64
	for _, verification := range f.store.verifications {
		if verification.ReportID == reportID {
			count++
		}
	}
	return count, nil
}

func (f *fakeVerificationRepo) ListReportIDsByUser(userID uint) ([]string, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var ids []string
	for _, verification := range f.store.verifications {
		if verification.UserID != userID {
			continue
		}
		if report, ok := f.store.reports[verification.ReportID]; ok {
			ids = append(ids, report.UUID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func newTestEngine(t *testing.T) (*Engine, *repository.Repositories) {
	t.Helper()
	store := newMemStore()
	repos := &repository.Repositories{
		Report:       &fakeReportRepo{store: store},
		Vote:         &fakeVoteRepo{store: store},
		Verification: &fakeVerificationRepo{store: store},
	}
	return NewEngine(repos, nil, DefaultWeights), repos
}

func seedReport(t *testing.T, repos *repository.Repositories) *models.Report {
	t.Helper()
	report := models.NewReport(1, "Flooded underpass on 5th", "Water level rising fast under the rail bridge", models.IncidentFlood, models.SeverityHigh)
	require.NoError(t, repos.Report.Create(report))
	return report
}

func TestCastVote_CreatesAndCounts(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	tally, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Upvotes)
	assert.Equal(t, 0, tally.Downvotes)

	stored, err := repos.Report.GetByUUID(report.UUID)
	require.NoError(t, err)
	// full upvote ratio (40) + neutral AI (10)
	assert.Equal(t, 50, stored.ConsensusScore)
	assert.Equal(t, 2, stored.Version)
}

func TestCastVote_SameTypeTogglesOff(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)
	tally, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)

	assert.Equal(t, 0, tally.Upvotes)
	assert.Equal(t, 0, tally.Downvotes)

	vote, err := engine.GetVote(report.UUID, 7)
	require.NoError(t, err)
	assert.Nil(t, vote)
}

func TestCastVote_OppositeTypeReplaces(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)
	tally, err := engine.CastVote(report.UUID, 7, models.VoteTypeDown)
	require.NoError(t, err)

	// a switched vote never counts twice
	assert.Equal(t, 0, tally.Upvotes)
	assert.Equal(t, 1, tally.Downvotes)
}

func TestCastVote_InvalidType(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.CastVote(report.UUID, 7, "sideways")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "vote_type", validationErr.Field)
}

func TestCastVote_UnknownReport(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CastVote("00000000-0000-0000-0000-000000000000", 7, models.VoteTypeUp)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestRemoveVote_MissingVoteIsNoop(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	tally, err := engine.RemoveVote(report.UUID, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Upvotes)
	assert.Equal(t, 0, tally.Downvotes)

	stored, err := repos.Report.GetByUUID(report.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version, "a no-op must not bump the version")
}

func TestRecordVerification_OncePerUser(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	updated, err := engine.RecordVerification(report.UUID, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.VerificationCount)

	_, err = engine.RecordVerification(report.UUID, 7)
	assert.ErrorIs(t, err, ErrDuplicateVerification)

	stored, err := repos.Report.GetByUUID(report.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VerificationCount, "a rejected duplicate must leave the count unchanged")
}

func TestRecordVerification_ListVerifiedBy(t *testing.T) {
	engine, repos := newTestEngine(t)
	first := seedReport(t, repos)
	second := seedReport(t, repos)

	_, err := engine.RecordVerification(first.UUID, 7)
	require.NoError(t, err)
	_, err = engine.RecordVerification(second.UUID, 7)
	require.NoError(t, err)

	ids, err := engine.ListVerifiedBy(7)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, first.UUID)
	assert.Contains(t, ids, second.UUID)
}

func TestConfirm_RequiresPrivilegedRole(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)
	citizen := &models.User{ID: 2, Role: models.ROLE_CITIZEN}

	_, err := engine.Confirm(report.UUID, citizen)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfirm_RequiresVerificationThreshold(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)
	ngo := &models.User{ID: 2, Role: models.ROLE_NGO}

	for userID := uint(10); userID < 12; userID++ {
		_, err := engine.RecordVerification(report.UUID, userID)
		require.NoError(t, err)
	}

	_, err := engine.Confirm(report.UUID, ngo)
	assert.ErrorIs(t, err, ErrNotEnoughVerifications)

	_, err = engine.RecordVerification(report.UUID, 12)
	require.NoError(t, err)

	confirmed, err := engine.Confirm(report.UUID, ngo)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedByID)
	assert.Equal(t, ngo.ID, *confirmed.ConfirmedByID)
	assert.NotNil(t, confirmed.ConfirmedAt)
	// 20 vote midpoint + 7.5 verify + 10 neutral AI + 15 confirmation
	assert.Equal(t, 53, confirmed.ConsensusScore)
}

func TestUnconfirm_RoundTrip(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)
	admin := &models.User{ID: 3, Role: models.ROLE_ADMIN}

	_, err := engine.Unconfirm(report.UUID, admin)
	assert.ErrorIs(t, err, ErrNothingToUnconfirm)

	for userID := uint(10); userID < 13; userID++ {
		_, err := engine.RecordVerification(report.UUID, userID)
		require.NoError(t, err)
	}
	confirmed, err := engine.Confirm(report.UUID, admin)
	require.NoError(t, err)

	unconfirmed, err := engine.Unconfirm(report.UUID, admin)
	require.NoError(t, err)
	assert.Nil(t, unconfirmed.ConfirmedByID)
	assert.Nil(t, unconfirmed.ConfirmedAt)
	assert.Equal(t, confirmed.ConsensusScore-15, unconfirmed.ConsensusScore)
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	updated, err := engine.UpdateStatus(report.UUID, models.ReportStatusResponding, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResponding, updated.Status)

	_, err = engine.UpdateStatus(report.UUID, models.ReportStatusVerified, nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "status", validationErr.Field)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.UpdateStatus(report.UUID, "closed", nil)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateStatus_StaleVersionRejected(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	// another writer bumps the version first
	_, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)

	stale := 1
	_, err = engine.UpdateStatus(report.UUID, models.ReportStatusVerified, &stale)
	var lockErr *OptimisticLockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 1, lockErr.Expected)
	assert.Equal(t, 2, lockErr.Actual)

	current := 2
	updated, err := engine.UpdateStatus(report.UUID, models.ReportStatusVerified, &current)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusVerified, updated.Status)
	assert.Equal(t, 3, updated.Version)
}

func TestUpdateStatus_ConflictRetryKeepsForwardOnly(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	// another instance resolves the report between our load and save
	repo := repos.Report.(*fakeReportRepo)
	repo.beforeSave = func(stored map[uint]*models.Report) {
		row := stored[report.ID]
		row.Status = models.ReportStatusResolved
		row.Version++
	}

	_, err := engine.UpdateStatus(report.UUID, models.ReportStatusVerified, nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "status", validationErr.Field)

	stored, err := repos.Report.GetByUUID(report.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, stored.Status, "a conflict retry must never move the status back")
}

func TestApplyAIValidation_RangeChecked(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.ApplyAIValidation(report.UUID, 101)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	updated, err := engine.ApplyAIValidation(report.UUID, 100)
	require.NoError(t, err)
	require.NotNil(t, updated.AIValidationScore)
	assert.Equal(t, 100, *updated.AIValidationScore)
	// 20 vote midpoint + 20 AI
	assert.Equal(t, 40, updated.ConsensusScore)
}

func TestApplyFakeDetection_SetAndClear(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	score := 45
	updated, err := engine.ApplyFakeDetection(report.UUID, &score, []string{"spam_pattern", "missing_exif"})
	require.NoError(t, err)
	require.NotNil(t, updated.FakeScore)
	assert.Equal(t, 45, *updated.FakeScore)
	assert.Equal(t, models.StringList{"spam_pattern", "missing_exif"}, updated.FakeFlags)

	cleared, err := engine.ApplyFakeDetection(report.UUID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.FakeScore)
	assert.Empty(t, cleared.FakeFlags)
}

func TestMutations_BumpVersionByExactlyOne(t *testing.T) {
	engine, repos := newTestEngine(t)
	report := seedReport(t, repos)

	_, err := engine.CastVote(report.UUID, 7, models.VoteTypeUp)
	require.NoError(t, err)
	_, err = engine.RecordVerification(report.UUID, 8)
	require.NoError(t, err)
	_, err = engine.ApplyAIValidation(report.UUID, 80)
	require.NoError(t, err)

	stored, err := repos.Report.GetByUUID(report.UUID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Version)
}
