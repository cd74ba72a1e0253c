package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type requestRepoStub struct {
	requests      map[string]*models.DocumentRequest
	filter        models.RequestFilter
	updateErrs    []error
	updateCalls   int
	statsResponse *models.RequestStats
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{requests: make(map[string]*models.DocumentRequest)}
}

func (r *requestRepoStub) Create(ctx context.Context, request *models.DocumentRequest) error {
	stored := *request
	r.requests[request.ID] = &stored
	return nil
}

func (r *requestRepoStub) GetByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	stored, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *stored
	copy.Timeline = append([]models.TimelineEntry(nil), stored.Timeline...)
	copy.AdminRemarks = append([]models.AdminRemark(nil), stored.AdminRemarks...)
	copy.UploadedDocuments = append([]models.UploadedDocument(nil), stored.UploadedDocuments...)
	return &copy, nil
}

func (r *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.DocumentRequest, error) {
	r.filter = filter
	result := make([]models.DocumentRequest, 0, len(r.requests))
	for _, stored := range r.requests {
		if filter.OwnerID != "" && stored.OwnerID != filter.OwnerID {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *requestRepoStub) Update(ctx context.Context, request *models.DocumentRequest) error {
	r.updateCalls++
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	stored := *request
	stored.Version++
	r.requests[request.ID] = &stored
	request.Version = stored.Version
	return nil
}

func (r *requestRepoStub) CountByStatus(ctx context.Context) (*models.RequestStats, error) {
	if r.statsResponse != nil {
		return r.statsResponse, nil
	}
	stats := &models.RequestStats{ByStatus: make(map[models.RequestStatus]int)}
	for _, stored := range r.requests {
		stats.Total++
		stats.ByStatus[stored.Status]++
	}
	return stats, nil
}

type requestAuditStub struct {
	logs []*models.AuditLog
}

func (a *requestAuditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type notifierStub struct {
	calls []notifierCall
}

type notifierCall struct {
	UserID    string
	RequestID string
	Kind      models.NotificationKind
	Message   string
}

func (n *notifierStub) Notify(userID, requestID string, kind models.NotificationKind, message string) {
	n.calls = append(n.calls, notifierCall{UserID: userID, RequestID: requestID, Kind: kind, Message: message})
}

type storageStub struct {
	saved []string
}

func (s *storageStub) SaveStream(filename string, r io.Reader) (string, error) {
	s.saved = append(s.saved, filename)
	_, _ = io.Copy(io.Discard, r)
	return "/tmp/" + filename, nil
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, FullName: "Student " + id}
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin, FullName: "Admin " + id}
}

func newTestRequestService(repo *requestRepoStub, audit *requestAuditStub, opts ...RequestServiceOption) *RequestService {
	cfg := RequestServiceConfig{
		ProcessingDays: map[models.RequestType]int{
			models.RequestTypeTranscript:     7,
			models.RequestTypeNameCorrection: 14,
		},
	}
	return NewRequestService(repo, audit, nil, cfg, opts...)
}

func createTestRequest(t *testing.T, svc *RequestService, owner string) *models.DocumentRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), dto.CreateRequestPayload{
		RequestType: models.RequestTypeTranscript,
		Title:       "Official transcript",
		Description: "Needed for a graduate school application",
	}, studentClaims(owner))
	require.NoError(t, err)
	return request
}

func TestRequestServiceCreateSeedsTimeline(t *testing.T) {
	repo := newRequestRepoStub()
	audit := &requestAuditStub{}
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestRequestService(repo, audit, WithRequestClock(func() time.Time { return base }))

	request, err := svc.Create(context.Background(), dto.CreateRequestPayload{
		RequestType: models.RequestTypeTranscript,
		Title:       "Official transcript",
		Description: "Needed for a graduate school application",
	}, studentClaims("student-1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusSubmitted, request.Status)
	assert.Equal(t, models.PriorityMedium, request.Priority)
	assert.Equal(t, "student-1", request.OwnerID)

	require.Len(t, request.Timeline, 1)
	entry := request.Timeline[0]
	assert.Equal(t, models.StatusSubmitted, entry.Status)
	assert.Equal(t, "Request submitted successfully", entry.Message)
	assert.Nil(t, entry.PerformedBy)

	require.NotNil(t, request.ExpectedCompletionDate)
	assert.Equal(t, base.AddDate(0, 0, 7), *request.ExpectedCompletionDate)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
}

func TestRequestServiceCreateValidation(t *testing.T) {
	svc := newTestRequestService(newRequestRepoStub(), &requestAuditStub{})

	_, err := svc.Create(context.Background(), dto.CreateRequestPayload{
		RequestType: "diploma_reprint",
		Title:       "Reprint",
		Description: "Lost the original",
	}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateRequestPayload{
		RequestType: models.RequestTypeTranscript,
		Title:       "   ",
		Description: "Needed for an application",
	}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateRequestPayload{
		RequestType: models.RequestTypeTranscript,
		Title:       "Official transcript",
		Description: "Needed for an application",
		Priority:    "asap",
	}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceGetEnforcesOwnership(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	request := createTestRequest(t, svc, "student-1")

	got, err := svc.Get(context.Background(), request.ID, studentClaims("student-1"))
	require.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)

	_, err = svc.Get(context.Background(), request.ID, studentClaims("student-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), request.ID, adminClaims("admin-1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "missing", adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceUpdateStatusAppendsOneEntry(t *testing.T) {
	repo := newRequestRepoStub()
	notifier := &notifierStub{}
	svc := newTestRequestService(repo, &requestAuditStub{}, WithRequestNotifier(notifier))
	request := createTestRequest(t, svc, "student-1")

	updated, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusUnderReview,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, updated.Status)
	require.Len(t, updated.Timeline, 2)
	assert.Equal(t, "Status updated to under_review", updated.Timeline[1].Message)
	require.NotNil(t, updated.Timeline[1].PerformedBy)
	assert.Equal(t, "admin-1", *updated.Timeline[1].PerformedBy)

	updated, err = svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status:  models.StatusApproved,
		Message: "Documents verified",
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.Len(t, updated.Timeline, 3)
	assert.Equal(t, "Documents verified", updated.Timeline[2].Message)

	require.Len(t, notifier.calls, 2)
	assert.Equal(t, "student-1", notifier.calls[0].UserID)
	assert.Equal(t, models.NotificationStatusChange, notifier.calls[0].Kind)
}

func TestRequestServiceUpdateStatusRejectsInvalidStatus(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	request := createTestRequest(t, svc, "student-1")

	_, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: "archived",
	}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	stored, getErr := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, getErr)
	assert.Len(t, stored.Timeline, 1)
}

func TestRequestServiceAdminOnlyOperations(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	request := createTestRequest(t, svc, "student-1")

	_, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{Status: models.StatusApproved}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.AddRemark(context.Background(), request.ID, dto.AddRemarkPayload{Remark: "note"}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Reject(context.Background(), request.ID, dto.RejectPayload{Reason: "incomplete"}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Stats(context.Background(), studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{Status: models.StatusApproved}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceAddRemarkMirrorsTimeline(t *testing.T) {
	repo := newRequestRepoStub()
	notifier := &notifierStub{}
	svc := newTestRequestService(repo, &requestAuditStub{}, WithRequestNotifier(notifier))
	request := createTestRequest(t, svc, "student-1")

	updated, err := svc.AddRemark(context.Background(), request.ID, dto.AddRemarkPayload{
		Remark: "Please upload the fee receipt",
	}, adminClaims("admin-1"))
	require.NoError(t, err)

	require.Len(t, updated.AdminRemarks, 1)
	assert.Equal(t, "admin-1", updated.AdminRemarks[0].AdminID)
	assert.Equal(t, "Please upload the fee receipt", updated.AdminRemarks[0].Remark)

	require.Len(t, updated.Timeline, 2)
	assert.Equal(t, models.StatusSubmitted, updated.Timeline[1].Status)
	assert.Equal(t, "Admin added a remark: Please upload the fee receipt", updated.Timeline[1].Message)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, models.NotificationRemark, notifier.calls[0].Kind)

	_, err = svc.AddRemark(context.Background(), request.ID, dto.AddRemarkPayload{Remark: "  "}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceRejectKeepsReason(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	request := createTestRequest(t, svc, "student-1")

	rejected, err := svc.Reject(context.Background(), request.ID, dto.RejectPayload{
		Reason: "ID proof does not match records",
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "ID proof does not match records", *rejected.RejectionReason)
	require.Len(t, rejected.Timeline, 2)
	assert.Equal(t, "Request rejected: ID proof does not match records", rejected.Timeline[1].Message)

	// Moving away from rejected keeps the historical reason.
	reopened, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusUnderReview,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NotNil(t, reopened.RejectionReason)
	assert.Equal(t, "ID proof does not match records", *reopened.RejectionReason)

	_, err = svc.Reject(context.Background(), request.ID, dto.RejectPayload{Reason: ""}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCompletedAtSetOnce(t *testing.T) {
	repo := newRequestRepoStub()
	current := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestRequestService(repo, &requestAuditStub{}, WithRequestClock(func() time.Time { return current }))
	request := createTestRequest(t, svc, "student-1")

	completed, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusCompleted,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	first := *completed.CompletedAt

	current = current.Add(48 * time.Hour)
	_, err = svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusUnderReview,
	}, adminClaims("admin-1"))
	require.NoError(t, err)

	again, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusCompleted,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NotNil(t, again.CompletedAt)
	assert.Equal(t, first, *again.CompletedAt)
}

func TestRequestServiceMutateRetriesOnceOnConflict(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	request := createTestRequest(t, svc, "student-1")

	repo.updateErrs = []error{sql.ErrNoRows}
	updated, err := svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusUnderReview,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, updated.Status)
	assert.Len(t, updated.Timeline, 2)

	repo.updateErrs = []error{sql.ErrNoRows, sql.ErrNoRows}
	_, err = svc.UpdateStatus(context.Background(), request.ID, dto.UpdateStatusPayload{
		Status: models.StatusApproved,
	}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceAttachDocument(t *testing.T) {
	repo := newRequestRepoStub()
	storage := &storageStub{}
	svc := newTestRequestService(repo, &requestAuditStub{}, WithRequestStorage(storage))
	request := createTestRequest(t, svc, "student-1")

	upload := DocumentUpload{
		Filename: "receipt.pdf",
		Size:     1024,
		MimeType: "application/pdf",
		Content:  strings.NewReader("%PDF-1.4"),
	}
	updated, err := svc.AttachDocument(context.Background(), request.ID, upload, studentClaims("student-1"))
	require.NoError(t, err)
	require.Len(t, updated.UploadedDocuments, 1)
	doc := updated.UploadedDocuments[0]
	assert.Equal(t, "receipt.pdf", doc.FileName)
	assert.Equal(t, "application/pdf", doc.FileType)
	assert.True(t, strings.HasPrefix(doc.FileURL, "/uploads/requests/"+request.ID+"/"))
	require.Len(t, storage.saved, 1)

	// Attachments are not timeline events.
	assert.Len(t, updated.Timeline, 1)
}

func TestRequestServiceAttachDocumentValidation(t *testing.T) {
	repo := newRequestRepoStub()
	storage := &storageStub{}
	svc := newTestRequestService(repo, &requestAuditStub{}, WithRequestStorage(storage))
	request := createTestRequest(t, svc, "student-1")

	_, err := svc.AttachDocument(context.Background(), request.ID, DocumentUpload{
		Filename: "receipt.pdf",
		Size:     1024,
		MimeType: "application/pdf",
		Content:  strings.NewReader("data"),
	}, studentClaims("student-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.AttachDocument(context.Background(), request.ID, DocumentUpload{
		Filename: "malware.exe",
		Size:     1024,
		MimeType: "application/x-msdownload",
		Content:  strings.NewReader("data"),
	}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AttachDocument(context.Background(), request.ID, DocumentUpload{
		Filename: "scan.pdf",
		Size:     11 * 1024 * 1024,
		MimeType: "application/pdf",
		Content:  strings.NewReader("data"),
	}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Empty(t, storage.saved)
}

func TestRequestServiceListMineScopesToOwner(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	createTestRequest(t, svc, "student-1")
	createTestRequest(t, svc, "student-2")

	mine, err := svc.ListMine(context.Background(), studentClaims("student-1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "student-1", mine[0].OwnerID)
	assert.Equal(t, "student-1", repo.filter.OwnerID)
}

func TestRequestServiceListAllPassesFilter(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	createTestRequest(t, svc, "student-1")

	_, err := svc.ListAll(context.Background(), dto.RequestQuery{
		Status:   models.StatusSubmitted,
		Priority: models.PriorityMedium,
		Search:   "  transcript  ",
		Limit:    10,
	}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, repo.filter.Status)
	assert.Equal(t, models.PriorityMedium, repo.filter.Priority)
	assert.Equal(t, "transcript", repo.filter.Search)
	assert.Equal(t, 10, repo.filter.Limit)

	_, err = svc.ListAll(context.Background(), dto.RequestQuery{}, studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceStatsCountsByStatus(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newTestRequestService(repo, &requestAuditStub{})
	first := createTestRequest(t, svc, "student-1")
	createTestRequest(t, svc, "student-2")

	_, err := svc.UpdateStatus(context.Background(), first.ID, dto.UpdateStatusPayload{
		Status: models.StatusUnderReview,
	}, adminClaims("admin-1"))
	require.NoError(t, err)

	stats, cacheHit, err := svc.Stats(context.Background(), adminClaims("admin-1"))
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.StatusSubmitted])
	assert.Equal(t, 1, stats.ByStatus[models.StatusUnderReview])
	assert.NotContains(t, stats.ByStatus, models.StatusRejected)
}
