package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

// ExportFormat selects the rendered register format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportRequestLister interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.DocumentRequest, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders the admin request register as CSV or PDF and hands
// out signed download tokens for the stored files.
type ExportService struct {
	requests exportRequestLister
	storage  exportFileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(requests exportRequestLister, fileStorage exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		requests: requests,
		storage:  fileStorage,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// GenerateRegister renders the filtered register and stores the file.
// Admin access is enforced by the route guarding this operation.
func (s *ExportService) GenerateRegister(ctx context.Context, query dto.RequestQuery, format ExportFormat) (*ExportResult, error) {
	requests, err := s.requests.List(ctx, models.RequestFilter{
		Status:      query.Status,
		RequestType: query.RequestType,
		Priority:    query.Priority,
		Search:      strings.TrimSpace(query.Search),
		Limit:       200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests for export")
	}

	dataset := buildRegisterDataset(requests)
	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Document Request Register")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("register/%s.%s", exportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export URL")
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/requests/export/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// OpenByToken validates a download token and opens the stored file.
func (s *ExportService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired export token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, nil
}

func buildRegisterDataset(requests []models.DocumentRequest) export.Dataset {
	headers := []string{"ID", "Owner", "Type", "Title", "Status", "Priority", "Created", "Updated"}
	rows := make([]map[string]string, 0, len(requests))
	for _, request := range requests {
		rows = append(rows, map[string]string{
			"ID":       request.ID,
			"Owner":    request.OwnerID,
			"Type":     string(request.RequestType),
			"Title":    request.Title,
			"Status":   string(request.Status),
			"Priority": string(request.Priority),
			"Created":  request.CreatedAt.Format(time.RFC3339),
			"Updated":  request.UpdatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
