package models

import "time"

// RequestType enumerates the academic documents a student can request.
type RequestType string

const (
	RequestTypeDegreeCertificate      RequestType = "degree_certificate"
	RequestTypeProvisionalCertificate RequestType = "provisional_certificate"
	RequestTypeMigrationCertificate   RequestType = "migration_certificate"
	RequestTypeTranscript             RequestType = "transcript"
	RequestTypeMarksheet              RequestType = "marksheet"
	RequestTypeNameCorrection         RequestType = "name_correction"
	RequestTypeDOBCorrection          RequestType = "dob_correction"
	RequestTypeRetotaling             RequestType = "retotaling"
	RequestTypeRechecking             RequestType = "rechecking"
	RequestTypeOther                  RequestType = "other"
)

// Valid reports whether the value is a recognised request type.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeDegreeCertificate, RequestTypeProvisionalCertificate,
		RequestTypeMigrationCertificate, RequestTypeTranscript,
		RequestTypeMarksheet, RequestTypeNameCorrection,
		RequestTypeDOBCorrection, RequestTypeRetotaling,
		RequestTypeRechecking, RequestTypeOther:
		return true
	}
	return false
}

// RequestStatus captures the workflow state of a document request.
type RequestStatus string

const (
	StatusSubmitted          RequestStatus = "submitted"
	StatusUnderReview        RequestStatus = "under_review"
	StatusCorrectionRequired RequestStatus = "correction_required"
	StatusApproved           RequestStatus = "approved"
	StatusRejected           RequestStatus = "rejected"
	StatusInProcessing       RequestStatus = "in_processing"
	StatusReady              RequestStatus = "ready"
	StatusCompleted          RequestStatus = "completed"
)

// Valid reports whether the value is a recognised status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusCorrectionRequired,
		StatusApproved, StatusRejected, StatusInProcessing,
		StatusReady, StatusCompleted:
		return true
	}
	return false
}

// RequestPriority orders requests for admin processing.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

// Valid reports whether the value is a recognised priority.
func (p RequestPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// CorrectionDetails describes the change requested for correction-type
// requests. It is advisory only: no cross-check against the request type
// is performed.
type CorrectionDetails struct {
	CurrentValue   string `json:"currentValue"`
	RequestedValue string `json:"requestedValue"`
	Reason         string `json:"reason"`
}

// UploadedDocument references a stored file attached to a request.
type UploadedDocument struct {
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileType   string    `json:"fileType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// TimelineEntry is one event in the append-only audit trail of a request.
// PerformedBy is nil for system-generated entries.
type TimelineEntry struct {
	Status          RequestStatus `json:"status"`
	Message         string        `json:"message"`
	PerformedBy     *string       `json:"performedBy"`
	PerformedByName string        `json:"performedByName,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// AdminRemark is an admin-authored note, kept separate from the timeline
// but mirrored into it when added.
type AdminRemark struct {
	AdminID   string    `json:"adminId"`
	AdminName string    `json:"adminName"`
	Remark    string    `json:"remark"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentRequest is a single document-service ticket submitted by a student.
// Timeline and AdminRemarks are append-only; entries are never edited or
// removed. Version is bumped by the repository on every update and guards
// against lost appends under concurrent writers.
type DocumentRequest struct {
	ID                     string             `json:"id"`
	OwnerID                string             `json:"ownerId"`
	RequestType            RequestType        `json:"requestType"`
	Title                  string             `json:"title"`
	Description            string             `json:"description"`
	CorrectionDetails      *CorrectionDetails `json:"correctionDetails,omitempty"`
	UploadedDocuments      []UploadedDocument `json:"uploadedDocuments"`
	Status                 RequestStatus      `json:"status"`
	Priority               RequestPriority    `json:"priority"`
	AdminRemarks           []AdminRemark      `json:"adminRemarks"`
	Timeline               []TimelineEntry    `json:"timeline"`
	RejectionReason        *string            `json:"rejectionReason,omitempty"`
	ExpectedCompletionDate *time.Time         `json:"expectedCompletionDate,omitempty"`
	CompletedAt            *time.Time         `json:"completedAt,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
	Version                int64              `json:"-"`
}

// RequestFilter constrains listing queries. Zero-valued fields impose no
// constraint; set fields combine with AND. Search matches title or
// description case-insensitively.
type RequestFilter struct {
	OwnerID     string
	Status      RequestStatus
	RequestType RequestType
	Priority    RequestPriority
	Search      string
	Limit       int
	Offset      int
}

// RequestStats aggregates request counts by current status. ByStatus only
// contains statuses with at least one matching request.
type RequestStats struct {
	Total    int                   `json:"total"`
	ByStatus map[RequestStatus]int `json:"byStatus"`
}
