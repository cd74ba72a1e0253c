package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/export"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

type registerListerStub struct {
	filter models.RequestFilter
}

func (s *registerListerStub) List(ctx context.Context, filter models.RequestFilter) ([]models.DocumentRequest, error) {
	s.filter = filter
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return []models.DocumentRequest{
		{
			ID:          "req-1",
			OwnerID:     "student-1",
			RequestType: models.RequestTypeTranscript,
			Title:       "Official transcript",
			Status:      models.StatusUnderReview,
			Priority:    models.PriorityHigh,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "req-2",
			OwnerID:     "student-2",
			RequestType: models.RequestTypeMarksheet,
			Title:       "Semester marksheet",
			Status:      models.StatusCompleted,
			Priority:    models.PriorityLow,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage, *registerListerStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	lister := &registerListerStub{}
	svc := NewExportService(lister, store, signer, ExportConfig{APIPrefix: "/api/v1"},
		zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store, lister
}

func TestExportServiceGenerateRegisterCSV(t *testing.T) {
	svc, store, lister := newExportServiceForTest(t)

	result, err := svc.GenerateRegister(context.Background(), dto.RequestQuery{
		Status: models.StatusUnderReview,
	}, ExportFormatCSV)
	require.NoError(t, err)
	require.Equal(t, ExportFormatCSV, result.Format)
	require.NotEmpty(t, result.Token)
	require.Contains(t, result.URL, "/api/v1/requests/export/")
	require.Equal(t, models.StatusUnderReview, lister.filter.Status)
	require.Equal(t, 200, lister.filter.Limit)

	content, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	text := string(content)
	require.Contains(t, text, "req-1")
	require.Contains(t, text, "under_review")
	require.True(t, strings.HasPrefix(text, "ID,"))
}

func TestExportServiceGenerateRegisterPDF(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)

	result, err := svc.GenerateRegister(context.Background(), dto.RequestQuery{}, ExportFormatPDF)
	require.NoError(t, err)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)

	_, err := svc.GenerateRegister(context.Background(), dto.RequestQuery{}, "xlsx")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceOpenByToken(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)

	result, err := svc.GenerateRegister(context.Background(), dto.RequestQuery{}, ExportFormatCSV)
	require.NoError(t, err)

	file, err := svc.OpenByToken(result.Token)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	_, err = svc.OpenByToken("not-a-token")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
