package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const requestColumns = `id, owner_id, request_type, title, description, correction_details,
       uploaded_documents, status, priority, admin_remarks, timeline, rejection_reason,
       expected_completion_date, completed_at, created_at, updated_at, version`

// RequestRepository persists document requests. Timeline, remarks and
// document references are stored as JSONB columns so append order survives
// round-trips unchanged.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

type requestRow struct {
	ID                     string         `db:"id"`
	OwnerID                string         `db:"owner_id"`
	RequestType            string         `db:"request_type"`
	Title                  string         `db:"title"`
	Description            string         `db:"description"`
	CorrectionDetails      []byte         `db:"correction_details"`
	UploadedDocuments      []byte         `db:"uploaded_documents"`
	Status                 string         `db:"status"`
	Priority               string         `db:"priority"`
	AdminRemarks           []byte         `db:"admin_remarks"`
	Timeline               []byte         `db:"timeline"`
	RejectionReason        sql.NullString `db:"rejection_reason"`
	ExpectedCompletionDate *time.Time     `db:"expected_completion_date"`
	CompletedAt            *time.Time     `db:"completed_at"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
	Version                int64          `db:"version"`
}

func toRequestRow(request *models.DocumentRequest) (*requestRow, error) {
	documents, err := json.Marshal(emptyIfNilDocs(request.UploadedDocuments))
	if err != nil {
		return nil, fmt.Errorf("marshal uploaded documents: %w", err)
	}
	remarks, err := json.Marshal(emptyIfNilRemarks(request.AdminRemarks))
	if err != nil {
		return nil, fmt.Errorf("marshal admin remarks: %w", err)
	}
	timeline, err := json.Marshal(emptyIfNilTimeline(request.Timeline))
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	row := &requestRow{
		ID:                     request.ID,
		OwnerID:                request.OwnerID,
		RequestType:            string(request.RequestType),
		Title:                  request.Title,
		Description:            request.Description,
		UploadedDocuments:      documents,
		Status:                 string(request.Status),
		Priority:               string(request.Priority),
		AdminRemarks:           remarks,
		Timeline:               timeline,
		ExpectedCompletionDate: request.ExpectedCompletionDate,
		CompletedAt:            request.CompletedAt,
		CreatedAt:              request.CreatedAt,
		UpdatedAt:              request.UpdatedAt,
		Version:                request.Version,
	}
	if request.CorrectionDetails != nil {
		details, err := json.Marshal(request.CorrectionDetails)
		if err != nil {
			return nil, fmt.Errorf("marshal correction details: %w", err)
		}
		row.CorrectionDetails = details
	}
	if request.RejectionReason != nil {
		row.RejectionReason = sql.NullString{String: *request.RejectionReason, Valid: true}
	}
	return row, nil
}

func fromRequestRow(row *requestRow) (*models.DocumentRequest, error) {
	request := &models.DocumentRequest{
		ID:                     row.ID,
		OwnerID:                row.OwnerID,
		RequestType:            models.RequestType(row.RequestType),
		Title:                  row.Title,
		Description:            row.Description,
		Status:                 models.RequestStatus(row.Status),
		Priority:               models.RequestPriority(row.Priority),
		ExpectedCompletionDate: row.ExpectedCompletionDate,
		CompletedAt:            row.CompletedAt,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
		Version:                row.Version,
	}
	if len(row.CorrectionDetails) > 0 {
		details := &models.CorrectionDetails{}
		if err := json.Unmarshal(row.CorrectionDetails, details); err != nil {
			return nil, fmt.Errorf("unmarshal correction details: %w", err)
		}
		request.CorrectionDetails = details
	}
	if len(row.UploadedDocuments) > 0 {
		if err := json.Unmarshal(row.UploadedDocuments, &request.UploadedDocuments); err != nil {
			return nil, fmt.Errorf("unmarshal uploaded documents: %w", err)
		}
	}
	if len(row.AdminRemarks) > 0 {
		if err := json.Unmarshal(row.AdminRemarks, &request.AdminRemarks); err != nil {
			return nil, fmt.Errorf("unmarshal admin remarks: %w", err)
		}
	}
	if len(row.Timeline) > 0 {
		if err := json.Unmarshal(row.Timeline, &request.Timeline); err != nil {
			return nil, fmt.Errorf("unmarshal timeline: %w", err)
		}
	}
	if row.RejectionReason.Valid {
		reason := row.RejectionReason.String
		request.RejectionReason = &reason
	}
	return request, nil
}

// Create inserts a new request row with version 1.
func (r *RequestRepository) Create(ctx context.Context, request *models.DocumentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = request.CreatedAt
	}
	request.Version = 1

	row, err := toRequestRow(request)
	if err != nil {
		return err
	}
	const query = `INSERT INTO document_requests
	(id, owner_id, request_type, title, description, correction_details, uploaded_documents,
	 status, priority, admin_remarks, timeline, rejection_reason, expected_completion_date,
	 completed_at, created_at, updated_at, version)
	VALUES (:id, :owner_id, :request_type, :title, :description, :correction_details, :uploaded_documents,
	 :status, :priority, :admin_remarks, :timeline, :rejection_reason, :expected_completion_date,
	 :completed_at, :created_at, :updated_at, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create document request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier. sql.ErrNoRows passes through so
// callers can map it to a not-found error.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.DocumentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_requests WHERE id = $1`, requestColumns)
	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return fromRequestRow(&row)
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.DocumentRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 5)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM document_requests", requestColumns))

	conditions := make([]string, 0, 5)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RequestType != "" {
		args = append(args, string(filter.RequestType))
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	// No LIMIT unless the caller asked for one: owner listings and
	// filtered admin listings return the complete result set.
	if filter.Limit > 0 {
		limit := filter.Limit
		if limit > 200 {
			limit = 200
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	if filter.Offset > 0 {
		builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
	}

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list document requests: %w", err)
	}
	requests := make([]models.DocumentRequest, 0, len(rows))
	for i := range rows {
		request, err := fromRequestRow(&rows[i])
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, nil
}

// Update persists the full mutable state of a request guarded by its
// version. A concurrent writer bumps the version first, making this call
// report sql.ErrNoRows so the caller can reload and retry; timeline appends
// are never silently lost.
func (r *RequestRepository) Update(ctx context.Context, request *models.DocumentRequest) error {
	row, err := toRequestRow(request)
	if err != nil {
		return err
	}
	const query = `UPDATE document_requests SET
	 status = :status,
	 priority = :priority,
	 uploaded_documents = :uploaded_documents,
	 admin_remarks = :admin_remarks,
	 timeline = :timeline,
	 rejection_reason = :rejection_reason,
	 expected_completion_date = :expected_completion_date,
	 completed_at = :completed_at,
	 updated_at = :updated_at,
	 version = version + 1
	WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update document request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	request.Version++
	return nil
}

// CountByStatus aggregates request counts grouped by current status. Only
// statuses with at least one request appear in the map.
func (r *RequestRepository) CountByStatus(ctx context.Context) (*models.RequestStats, error) {
	const query = `SELECT status, COUNT(*) AS count FROM document_requests GROUP BY status`
	type statusCount struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var counts []statusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	stats := &models.RequestStats{ByStatus: make(map[models.RequestStatus]int, len(counts))}
	for _, sc := range counts {
		stats.ByStatus[models.RequestStatus(sc.Status)] = sc.Count
		stats.Total += sc.Count
	}
	return stats, nil
}

func emptyIfNilDocs(docs []models.UploadedDocument) []models.UploadedDocument {
	if docs == nil {
		return []models.UploadedDocument{}
	}
	return docs
}

func emptyIfNilRemarks(remarks []models.AdminRemark) []models.AdminRemark {
	if remarks == nil {
		return []models.AdminRemark{}
	}
	return remarks
}

func emptyIfNilTimeline(timeline []models.TimelineEntry) []models.TimelineEntry {
	if timeline == nil {
		return []models.TimelineEntry{}
	}
	return timeline
}
