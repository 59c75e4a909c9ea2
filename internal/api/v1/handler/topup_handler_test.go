package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"catalyst/internal/middleware"
	"catalyst/internal/model"
	"catalyst/internal/repository"
	"catalyst/internal/service"
	"catalyst/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewSecret = "review-test-secret"

type fakeTopupService struct {
	request *model.TopupRequest
	err     error

	approvedID    int64
	approvedAdmin int64
	rejectedID    int64
	rejectedAdmin int64
	remark        string
}

func (f *fakeTopupService) Submit(ctx context.Context, userID int64, email, tierID string, receiptFileKey *string) (*model.TopupRequest, error) {
	return f.request, f.err
}

func (f *fakeTopupService) Get(ctx context.Context, id, userID int64) (*model.TopupRequest, error) {
	return f.request, f.err
}

func (f *fakeTopupService) ListMine(ctx context.Context, userID int64, limit int) ([]model.TopupRequest, error) {
	return nil, f.err
}

func (f *fakeTopupService) ListPending(ctx context.Context) ([]model.TopupRequest, error) {
	return nil, f.err
}

func (f *fakeTopupService) Approve(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error) {
	f.approvedID = id
	f.approvedAdmin = adminID
	f.remark = remark
	return f.request, f.err
}

func (f *fakeTopupService) Reject(ctx context.Context, id, adminID int64, remark string) (*model.TopupRequest, error) {
	f.rejectedID = id
	f.rejectedAdmin = adminID
	f.remark = remark
	return f.request, f.err
}

// adminAuth stands in for the JWT middleware and stamps an admin identity.
func adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDContextKey, int64(42))
		ctx = context.WithValue(ctx, middleware.RoleContextKey, model.RoleAdmin)
		ctx = context.WithValue(ctx, middleware.EmailContextKey, "admin@example.com")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTopupMux(svc service.TopupService) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewTopupHandler(svc, validator.New(validator.WithRequiredStructEnabled()), reviewSecret)
	h.RegisterRoutes(mux, adminAuth)
	return mux
}

func TestReviewAcceptsEmptyBody(t *testing.T) {
	svc := &fakeTopupService{request: &model.TopupRequest{ID: 7, Status: model.TopupApproved}}
	mux := newTopupMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/admin/topups/7/approve", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), svc.approvedID)
	assert.Equal(t, int64(42), svc.approvedAdmin)
	assert.Equal(t, "", svc.remark)
}

func TestQuickReviewApprove(t *testing.T) {
	svc := &fakeTopupService{request: &model.TopupRequest{ID: 7, Status: model.TopupApproved}}
	mux := newTopupMux(svc)

	token, err := util.CreateReviewToken(7, "approve", reviewSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/topups/review?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), svc.approvedID)
	// a link review carries no admin identity
	assert.Equal(t, int64(0), svc.approvedAdmin)
}

func TestQuickReviewReject(t *testing.T) {
	svc := &fakeTopupService{request: &model.TopupRequest{ID: 9, Status: model.TopupRejected}}
	mux := newTopupMux(svc)

	token, err := util.CreateReviewToken(9, "reject", reviewSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/topups/review?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), svc.rejectedID)
	assert.Equal(t, int64(0), svc.rejectedAdmin)
}

func TestQuickReviewInvalidToken(t *testing.T) {
	svc := &fakeTopupService{}
	mux := newTopupMux(svc)

	token, err := util.CreateReviewToken(7, "approve", "other-secret")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/topups/review?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), svc.approvedID)
}

func TestQuickReviewAlreadyReviewed(t *testing.T) {
	svc := &fakeTopupService{err: repository.ErrTopupAlreadyReviewed}
	mux := newTopupMux(svc)

	token, err := util.CreateReviewToken(7, "approve", reviewSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/topups/review?token="+url.QueryEscape(token), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
