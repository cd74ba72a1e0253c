package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const statsCacheKey = "requests:stats"

type requestStore interface {
	Create(ctx context.Context, request *models.DocumentRequest) error
	GetByID(ctx context.Context, id string) (*models.DocumentRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.DocumentRequest, error)
	Update(ctx context.Context, request *models.DocumentRequest) error
	CountByStatus(ctx context.Context) (*models.RequestStats, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type workflowNotifier interface {
	Notify(userID, requestID string, kind models.NotificationKind, message string)
}

type uploadStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
}

// DocumentUpload carries upload metadata and the content stream.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// RequestServiceConfig tunes workflow behaviour.
type RequestServiceConfig struct {
	StatsCacheTTL  time.Duration
	ProcessingDays map[models.RequestType]int
	MaxFileSize    int64
	AllowedMIMEs   []string
	UploadBasePath string
}

// RequestService owns the document request lifecycle: it enforces who may
// cause which transition, keeps the timeline and remark log append-only,
// and guarantees exactly one timeline entry per status-affecting or
// remark-affecting call.
type RequestService struct {
	repo      requestStore
	audit     auditLogger
	notifier  workflowNotifier
	storage   uploadStorage
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	mimeSet   map[string]struct{}
	cfg       RequestServiceConfig
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithRequestNotifier attaches the workflow notifier.
func WithRequestNotifier(notifier workflowNotifier) RequestServiceOption {
	return func(s *RequestService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithRequestCache attaches a cache used for stats payloads.
func WithRequestCache(cache *CacheService) RequestServiceOption {
	return func(s *RequestService) {
		s.cache = cache
	}
}

// WithRequestStorage attaches file storage for document uploads.
func WithRequestStorage(storage uploadStorage) RequestServiceOption {
	return func(s *RequestService) {
		s.storage = storage
	}
}

// WithRequestMetrics attaches instrumentation for query timings.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) {
		s.metrics = metrics
	}
}

// WithRequestClock overrides the time source (used by tests).
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs the service with defaults.
func NewRequestService(repo requestStore, audit auditLogger, logger *zap.Logger, cfg RequestServiceConfig, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.UploadBasePath == "" {
		cfg.UploadBasePath = "/uploads"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	svc := &RequestService{
		repo:      repo,
		audit:     audit,
		logger:    logger,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		mimeSet:   mimeSet,
		cfg:       cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates and persists a new request owned by the actor. The
// timeline is seeded with a single system-generated entry so it is never
// empty afterwards.
func (s *RequestService) Create(ctx context.Context, payload dto.CreateRequestPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !payload.RequestType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported request type: %s", payload.RequestType))
	}
	title := strings.TrimSpace(payload.Title)
	description := strings.TrimSpace(payload.Description)
	if title == "" || description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and description are required")
	}
	priority := payload.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported priority: %s", priority))
	}

	now := s.now()
	documents := make([]models.UploadedDocument, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		documents = append(documents, models.UploadedDocument{
			FileName:   doc.FileName,
			FileURL:    doc.FileURL,
			FileType:   doc.FileType,
			UploadedAt: now,
		})
	}

	request := &models.DocumentRequest{
		ID:                uuid.NewString(),
		OwnerID:           actor.UserID,
		RequestType:       payload.RequestType,
		Title:             title,
		Description:       description,
		CorrectionDetails: payload.CorrectionDetails,
		UploadedDocuments: documents,
		Status:            models.StatusSubmitted,
		Priority:          priority,
		Timeline: []models.TimelineEntry{{
			Status:    models.StatusSubmitted,
			Message:   "Request submitted successfully",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if days, ok := s.cfg.ProcessingDays[payload.RequestType]; ok && days > 0 {
		expected := now.AddDate(0, 0, days)
		request.ExpectedCompletionDate = &expected
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.emitAudit(ctx, actor, models.AuditActionRequestCreate, request.ID, map[string]interface{}{
		"requestType": request.RequestType,
		"title":       request.Title,
	})
	s.invalidateStats(ctx)
	return request, nil
}

// Get returns a request enforcing owner-or-admin access.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && request.OwnerID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// ListMine returns the actor's own requests, newest first.
func (s *RequestService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.DocumentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	requests, err := s.repo.List(ctx, models.RequestFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ListAll returns the filtered request register. Admin only.
func (s *RequestService) ListAll(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.DocumentRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	requests, err := s.repo.List(ctx, models.RequestFilter{
		Status:      query.Status,
		RequestType: query.RequestType,
		Priority:    query.Priority,
		Search:      strings.TrimSpace(query.Search),
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// UpdateStatus moves a request to the given status. Any status is reachable
// from any other; the workflow deliberately enforces no adjacency graph.
// CompletedAt is set the first time the request reaches completed and is
// never cleared afterwards.
func (s *RequestService) UpdateStatus(ctx context.Context, id string, payload dto.UpdateStatusPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !payload.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported status: %s", payload.Status))
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = fmt.Sprintf("Status updated to %s", payload.Status)
	}

	request, err := s.mutate(ctx, id, func(request *models.DocumentRequest) error {
		request.Status = payload.Status
		s.appendTimeline(request, payload.Status, message, actor)
		if payload.Status == models.StatusCompleted && request.CompletedAt == nil {
			completed := s.now()
			request.CompletedAt = &completed
		}
		if payload.ExpectedCompletionDate != nil {
			request.ExpectedCompletionDate = payload.ExpectedCompletionDate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionRequestStatus, request.ID, map[string]interface{}{
		"status":  request.Status,
		"message": message,
	})
	s.notify(request.OwnerID, request.ID, models.NotificationStatusChange,
		fmt.Sprintf("Your request %q is now %s", request.Title, request.Status))
	s.invalidateStats(ctx)
	return request, nil
}

// AddRemark records an admin remark and mirrors it into the timeline at the
// unchanged current status.
func (s *RequestService) AddRemark(ctx context.Context, id string, payload dto.AddRemarkPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	remark := strings.TrimSpace(payload.Remark)
	if remark == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remark is required")
	}

	request, err := s.mutate(ctx, id, func(request *models.DocumentRequest) error {
		request.AdminRemarks = append(request.AdminRemarks, models.AdminRemark{
			AdminID:   actor.UserID,
			AdminName: actor.FullName,
			Remark:    remark,
			Timestamp: s.now(),
		})
		s.appendTimeline(request, request.Status, fmt.Sprintf("Admin added a remark: %s", remark), actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionRequestRemark, request.ID, map[string]interface{}{"remark": remark})
	s.notify(request.OwnerID, request.ID, models.NotificationRemark,
		fmt.Sprintf("An admin commented on your request %q", request.Title))
	return request, nil
}

// Reject moves a request to rejected with a mandatory reason. The reason is
// kept even if the status later changes away from rejected.
func (s *RequestService) Reject(ctx context.Context, id string, payload dto.RejectPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	request, err := s.mutate(ctx, id, func(request *models.DocumentRequest) error {
		request.Status = models.StatusRejected
		request.RejectionReason = &reason
		s.appendTimeline(request, models.StatusRejected, fmt.Sprintf("Request rejected: %s", reason), actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionRequestReject, request.ID, map[string]interface{}{"reason": reason})
	s.notify(request.OwnerID, request.ID, models.NotificationRejection,
		fmt.Sprintf("Your request %q was rejected: %s", request.Title, reason))
	s.invalidateStats(ctx)
	return request, nil
}

// AttachDocument stores an uploaded file and appends its reference to the
// request. Only the owner may attach documents; the timeline is untouched
// because attachments are neither status nor remark events.
func (s *RequestService) AttachDocument(ctx context.Context, id string, upload DocumentUpload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "upload storage not configured")
	}
	if upload.Content == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.MaxFileSize))
	}
	if _, ok := s.mimeSet[strings.ToLower(upload.MimeType)]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type: %s", upload.MimeType))
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	ext := filepath.Ext(upload.Filename)
	relPath := fmt.Sprintf("requests/%s/%s%s", id, uuid.NewString(), ext)
	if _, err := s.storage.SaveStream(relPath, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}
	reference := models.UploadedDocument{
		FileName:   filepath.Base(upload.Filename),
		FileURL:    strings.TrimRight(s.cfg.UploadBasePath, "/") + "/" + relPath,
		FileType:   upload.MimeType,
		UploadedAt: s.now(),
	}

	request, err := s.mutate(ctx, id, func(request *models.DocumentRequest) error {
		if request.OwnerID != actor.UserID {
			return appErrors.ErrForbidden
		}
		request.UploadedDocuments = append(request.UploadedDocuments, reference)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionRequestAttach, request.ID, map[string]interface{}{
		"fileName": reference.FileName,
		"fileType": reference.FileType,
	})
	return request, nil
}

// Stats aggregates request counts by current status. Admin only; the result
// is cached briefly and invalidated by any lifecycle mutation. The boolean
// reports whether the cache served the result.
func (s *RequestService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.RequestStats, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	if s.cache.Enabled() {
		var cached models.RequestStats
		if hit, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}
	start := time.Now()
	stats, err := s.repo.CountByStatus(ctx)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("request_stats", time.Since(start))
	}
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate request stats")
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("failed to cache request stats", zap.Error(err))
		}
	}
	return stats, false, nil
}

// mutate runs a read-modify-write cycle against one request. When the
// version guard reports a concurrent writer, the record is reloaded and the
// change re-applied once before surfacing a conflict.
func (s *RequestService) mutate(ctx context.Context, id string, apply func(*models.DocumentRequest) error) (*models.DocumentRequest, error) {
	for attempt := 0; ; attempt++ {
		request, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := apply(request); err != nil {
			return nil, err
		}
		request.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, request); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if attempt == 0 {
					continue
				}
				return nil, appErrors.Clone(appErrors.ErrConflict, "request was modified concurrently")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
		}
		return request, nil
	}
}

func (s *RequestService) load(ctx context.Context, id string) (*models.DocumentRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) appendTimeline(request *models.DocumentRequest, status models.RequestStatus, message string, actor *models.JWTClaims) {
	entry := models.TimelineEntry{
		Status:    status,
		Message:   message,
		Timestamp: s.now(),
	}
	if actor != nil {
		performedBy := actor.UserID
		entry.PerformedBy = &performedBy
		entry.PerformedByName = actor.FullName
	}
	request.Timeline = append(request.Timeline, entry)
}

func (s *RequestService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, requestID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = []byte("{}")
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "document_request",
		ResourceID: &requestID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "request-service",
	}
	if actor != nil {
		userID := actor.UserID
		log.UserID = &userID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *RequestService) notify(userID, requestID string, kind models.NotificationKind, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(userID, requestID, kind, message)
}

func (s *RequestService) invalidateStats(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdmin() {
		return appErrors.ErrForbidden
	}
	return nil
}
