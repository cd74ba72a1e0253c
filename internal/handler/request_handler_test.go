package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type requestServiceMock struct {
	createResp *models.DocumentRequest
	createErr  error
	getErr     error
	listQuery  dto.RequestQuery
	attachErr  error
	attached   *service.DocumentUpload
	statsResp  *models.RequestStats
}

func (m *requestServiceMock) Create(ctx context.Context, payload dto.CreateRequestPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createResp != nil {
		return m.createResp, nil
	}
	return &models.DocumentRequest{ID: "req-1", OwnerID: actor.UserID, Title: payload.Title, Status: models.StatusSubmitted}, nil
}

func (m *requestServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.DocumentRequest{ID: id, OwnerID: actor.UserID}, nil
}

func (m *requestServiceMock) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.DocumentRequest, error) {
	return []models.DocumentRequest{{ID: "req-1", OwnerID: actor.UserID}}, nil
}

func (m *requestServiceMock) ListAll(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.DocumentRequest, error) {
	m.listQuery = query
	return []models.DocumentRequest{}, nil
}

func (m *requestServiceMock) UpdateStatus(ctx context.Context, id string, payload dto.UpdateStatusPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	return &models.DocumentRequest{ID: id, Status: payload.Status}, nil
}

func (m *requestServiceMock) AddRemark(ctx context.Context, id string, payload dto.AddRemarkPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	return &models.DocumentRequest{ID: id}, nil
}

func (m *requestServiceMock) Reject(ctx context.Context, id string, payload dto.RejectPayload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	return &models.DocumentRequest{ID: id, Status: models.StatusRejected, RejectionReason: &payload.Reason}, nil
}

func (m *requestServiceMock) AttachDocument(ctx context.Context, id string, upload service.DocumentUpload, actor *models.JWTClaims) (*models.DocumentRequest, error) {
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	m.attached = &upload
	return &models.DocumentRequest{ID: id}, nil
}

func (m *requestServiceMock) Stats(ctx context.Context, actor *models.JWTClaims) (*models.RequestStats, bool, error) {
	if m.statsResp != nil {
		return m.statsResp, true, nil
	}
	return &models.RequestStats{ByStatus: map[models.RequestStatus]int{}}, false, nil
}

type exporterMock struct {
	result *service.ExportResult
	format service.ExportFormat
}

func (m *exporterMock) GenerateRegister(ctx context.Context, query dto.RequestQuery, format service.ExportFormat) (*service.ExportResult, error) {
	m.format = format
	if m.result != nil {
		return m.result, nil
	}
	return &service.ExportResult{Token: "tok", URL: "/api/v1/requests/export/tok", Format: format}, nil
}

func (m *exporterMock) OpenByToken(token string) (*os.File, error) {
	if token != "tok" {
		return nil, appErrors.ErrForbidden
	}
	file, err := os.CreateTemp("", "export-*.csv")
	if err != nil {
		return nil, err
	}
	if _, err := file.WriteString("ID,Owner\n"); err != nil {
		return nil, err
	}
	return file, nil
}

func newRequestTestContext(t *testing.T, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestRequestHandlerCreate(t *testing.T) {
	mock := &requestServiceMock{}
	handler := NewRequestHandler(mock, &exporterMock{})

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	body, _ := json.Marshal(dto.CreateRequestPayload{
		RequestType: models.RequestTypeTranscript,
		Title:       "Official transcript",
		Description: "For an application",
	})
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "req-1")
}

func TestRequestHandlerCreateRequiresAuth(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{}, &exporterMock{})

	c, w := newRequestTestContext(t, nil)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{}, &exporterMock{})

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerGetMapsServiceError(t *testing.T) {
	mock := &requestServiceMock{getErr: appErrors.ErrNotFound}
	handler := NewRequestHandler(mock, &exporterMock{})

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	req, _ := http.NewRequest(http.MethodGet, "/requests/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestHandlerListAllParsesQuery(t *testing.T) {
	mock := &requestServiceMock{}
	handler := NewRequestHandler(mock, &exporterMock{})

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	req, _ := http.NewRequest(http.MethodGet, "/requests?status=Under_Review&requestType=TRANSCRIPT&priority=high&search=degree&limit=25&offset=5", nil)
	c.Request = req

	handler.ListAll(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusUnderReview, mock.listQuery.Status)
	assert.Equal(t, models.RequestTypeTranscript, mock.listQuery.RequestType)
	assert.Equal(t, models.PriorityHigh, mock.listQuery.Priority)
	assert.Equal(t, "degree", mock.listQuery.Search)
	assert.Equal(t, 25, mock.listQuery.Limit)
	assert.Equal(t, 5, mock.listQuery.Offset)
}

func TestRequestHandlerAttachDocument(t *testing.T) {
	mock := &requestServiceMock{}
	handler := NewRequestHandler(mock, &exporterMock{})

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "receipt.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/documents", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.AttachDocument(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.attached)
	assert.Equal(t, "receipt.pdf", mock.attached.Filename)
	assert.Equal(t, int64(8), mock.attached.Size)
}

func TestRequestHandlerAttachDocumentMissingFile(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{}, &exporterMock{})

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	req, _ := http.NewRequest(http.MethodPost, "/requests/req-1/documents", bytes.NewReader(nil))
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.AttachDocument(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerExportRegister(t *testing.T) {
	exporter := &exporterMock{}
	handler := NewRequestHandler(&requestServiceMock{}, exporter)

	c, w := newRequestTestContext(t, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	req, _ := http.NewRequest(http.MethodGet, "/requests/export?format=PDF", nil)
	c.Request = req

	handler.ExportRegister(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatPDF, exporter.format)
	assert.Contains(t, w.Body.String(), "tok")
}

func TestRequestHandlerDownloadExportInvalidToken(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{}, &exporterMock{})

	c, w := newRequestTestContext(t, nil)
	req, _ := http.NewRequest(http.MethodGet, "/requests/export/bad", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.DownloadExport(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
