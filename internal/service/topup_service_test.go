package service

import (
	"context"
	"testing"

	"catalyst/internal/model"
	"catalyst/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopupRepo struct {
	byID       map[int64]*model.TopupRequest
	nextID     int64
	approveErr error
	rejectErr  error
	newBalance int

	approvedSubID int64
}

func (f *fakeTopupRepo) Create(ctx context.Context, t *model.TopupRequest) error {
	f.nextID++
	t.ID = f.nextID
	t.Status = model.TopupPending
	if f.byID == nil {
		f.byID = make(map[int64]*model.TopupRequest)
	}
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTopupRepo) GetByID(ctx context.Context, id int64) (*model.TopupRequest, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrTopupNotFound
	}
	return t, nil
}

func (f *fakeTopupRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error) {
	return nil, nil
}

func (f *fakeTopupRepo) ListPending(ctx context.Context) ([]model.TopupRequest, error) {
	return nil, nil
}

func (f *fakeTopupRepo) Approve(ctx context.Context, id, adminID, subscriptionID int64, remark string) (int, error) {
	if f.approveErr != nil {
		return 0, f.approveErr
	}
	f.approvedSubID = subscriptionID
	return f.newBalance, nil
}

func (f *fakeTopupRepo) Reject(ctx context.Context, id, adminID int64, remark string) error {
	return f.rejectErr
}

type recordingNotify struct {
	submitted int
	reviewed  []bool
}

func (r *recordingNotify) TopupSubmitted(ctx context.Context, t *model.TopupRequest) { r.submitted++ }
func (r *recordingNotify) TopupReviewed(ctx context.Context, t *model.TopupRequest, approved bool, newBalance int) {
	r.reviewed = append(r.reviewed, approved)
}
func (r *recordingNotify) AnalysisCompleted(ctx context.Context, job *model.AnalysisJob) {}
func (r *recordingNotify) AnalysisFailed(ctx context.Context, job *model.AnalysisJob, reason string) {
}
func (r *recordingNotify) PurchaseCompleted(ctx context.Context, email string, credits, newBalance int, orderNo string) {
}

func TestSubmitTopup(t *testing.T) {
	repo := &fakeTopupRepo{}
	notify := &recordingNotify{}
	svc := NewTopupService(repo, &fakeSubRepo{}, notify, zerolog.Nop())

	tier := model.CreditTiers[0]
	req, err := svc.Submit(context.Background(), 1, "user@example.com", tier.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, model.TopupPending, req.Status)
	assert.Equal(t, tier.Credits, req.Credits)
	assert.Equal(t, tier.Name, req.TierName)
	assert.Equal(t, 1, notify.submitted)
}

func TestSubmitTopupUnknownTier(t *testing.T) {
	svc := NewTopupService(&fakeTopupRepo{}, &fakeSubRepo{}, &recordingNotify{}, zerolog.Nop())

	_, err := svc.Submit(context.Background(), 1, "user@example.com", "no-such-tier", nil)
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestGetTopupEnforcesOwnership(t *testing.T) {
	repo := &fakeTopupRepo{byID: map[int64]*model.TopupRequest{
		3: {ID: 3, UserID: 1},
	}}
	svc := NewTopupService(repo, &fakeSubRepo{}, &recordingNotify{}, zerolog.Nop())

	_, err := svc.Get(context.Background(), 3, 1)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 3, 2)
	assert.ErrorIs(t, err, ErrNotRequestOwner)
}

func TestApproveTopup(t *testing.T) {
	repo := &fakeTopupRepo{
		byID:       map[int64]*model.TopupRequest{3: {ID: 3, UserID: 1, Credits: 100, Status: model.TopupPending}},
		newBalance: 112,
	}
	notify := &recordingNotify{}
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 12)}
	svc := NewTopupService(repo, subs, notify, zerolog.Nop())

	req, err := svc.Approve(context.Background(), 3, 99, "receipt checked")
	require.NoError(t, err)

	assert.Equal(t, model.TopupApproved, req.Status)
	require.NotNil(t, req.AdminID)
	assert.Equal(t, int64(99), *req.AdminID)
	assert.Equal(t, int64(7), repo.approvedSubID)
	assert.Equal(t, []bool{true}, notify.reviewed)
}

func TestApproveTopupAlreadyReviewed(t *testing.T) {
	repo := &fakeTopupRepo{
		byID:       map[int64]*model.TopupRequest{3: {ID: 3, UserID: 1, Status: model.TopupApproved}},
		approveErr: repository.ErrTopupAlreadyReviewed,
	}
	subs := &fakeSubRepo{sub: subscription(model.LimitedQuota(5), 0)}
	svc := NewTopupService(repo, subs, &recordingNotify{}, zerolog.Nop())

	_, err := svc.Approve(context.Background(), 3, 99, "")
	assert.ErrorIs(t, err, repository.ErrTopupAlreadyReviewed)
}

func TestRejectTopup(t *testing.T) {
	repo := &fakeTopupRepo{
		byID: map[int64]*model.TopupRequest{3: {ID: 3, UserID: 1, Status: model.TopupPending}},
	}
	notify := &recordingNotify{}
	svc := NewTopupService(repo, &fakeSubRepo{}, notify, zerolog.Nop())

	req, err := svc.Reject(context.Background(), 3, 99, "receipt unreadable")
	require.NoError(t, err)

	assert.Equal(t, model.TopupRejected, req.Status)
	assert.Equal(t, []bool{false}, notify.reviewed)
}
