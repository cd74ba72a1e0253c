package handler

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, payload dto.CreateRequestPayload, actor *models.JWTClaims) (*models.DocumentRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentRequest, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.DocumentRequest, error)
	ListAll(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.DocumentRequest, error)
	UpdateStatus(ctx context.Context, id string, payload dto.UpdateStatusPayload, actor *models.JWTClaims) (*models.DocumentRequest, error)
	AddRemark(ctx context.Context, id string, payload dto.AddRemarkPayload, actor *models.JWTClaims) (*models.DocumentRequest, error)
	Reject(ctx context.Context, id string, payload dto.RejectPayload, actor *models.JWTClaims) (*models.DocumentRequest, error)
	AttachDocument(ctx context.Context, id string, upload service.DocumentUpload, actor *models.JWTClaims) (*models.DocumentRequest, error)
	Stats(ctx context.Context, actor *models.JWTClaims) (*models.RequestStats, bool, error)
}

type registerExporter interface {
	GenerateRegister(ctx context.Context, query dto.RequestQuery, format service.ExportFormat) (*service.ExportResult, error)
	OpenByToken(token string) (*os.File, error)
}

// RequestHandler exposes REST endpoints for the document request workflow.
type RequestHandler struct {
	service  requestService
	exporter registerExporter
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService, exporter registerExporter) *RequestHandler {
	return &RequestHandler{service: service, exporter: exporter}
}

// Create godoc
// @Summary Submit a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	request, err := h.service.Create(c.Request.Context(), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// ListMine godoc
// @Summary List own document requests
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/my [get]
func (h *RequestHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.ListMine(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ListAll godoc
// @Summary List all document requests (admin)
// @Tags Requests
// @Produce json
// @Param status query string false "Status filter"
// @Param requestType query string false "Request type filter"
// @Param priority query string false "Priority filter"
// @Param search query string false "Case-insensitive title/description search"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) ListAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.ListAll(c.Request.Context(), queryFromContext(c), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// UpdateStatus godoc
// @Summary Update request status (admin)
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateStatusPayload true "Status decision"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/status [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.UpdateStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	request, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// AddRemark godoc
// @Summary Add admin remark (admin)
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.AddRemarkPayload true "Remark"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/remarks [post]
func (h *RequestHandler) AddRemark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.AddRemarkPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid remark payload"))
		return
	}
	request, err := h.service.AddRemark(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a request (admin)
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectPayload true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload dto.RejectPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rejection payload"))
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), payload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// AttachDocument godoc
// @Summary Attach a document to an own request
// @Tags Requests
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param file formData file true "Document file"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/documents [post]
func (h *RequestHandler) AttachDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	upload := service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  file,
	}
	request, err := h.service.AttachDocument(c.Request.Context(), c.Param("id"), upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Stats godoc
// @Summary Aggregate request counts by status (admin)
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/stats [get]
func (h *RequestHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	stats, cacheHit, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, stats, nil, meta)
}

// ExportRegister godoc
// @Summary Export the request register as CSV or PDF (admin)
// @Tags Requests
// @Produce json
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /requests/export [get]
func (h *RequestHandler) ExportRegister(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	result, err := h.exporter.GenerateRegister(c.Request.Context(), queryFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DownloadExport godoc
// @Summary Download a generated register export
// @Tags Requests
// @Produce octet-stream
// @Param token path string true "Signed export token"
// @Success 200 {file} binary
// @Router /requests/export/{token} [get]
func (h *RequestHandler) DownloadExport(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	file, err := h.exporter.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	c.File(file.Name())
}

func queryFromContext(c *gin.Context) dto.RequestQuery {
	query := dto.RequestQuery{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if raw := c.Query("status"); raw != "" {
		query.Status = models.RequestStatus(strings.ToLower(raw))
	}
	if raw := c.Query("requestType"); raw != "" {
		query.RequestType = models.RequestType(strings.ToLower(raw))
	}
	if raw := c.Query("priority"); raw != "" {
		query.Priority = models.RequestPriority(strings.ToLower(raw))
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			query.Offset = offset
		}
	}
	return query
}
