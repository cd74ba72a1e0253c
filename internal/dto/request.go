package dto

import (
	"time"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// DocumentReference carries a persisted-file reference supplied by the
// upload layer at creation time.
type DocumentReference struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

// CreateRequestPayload is the payload for submitting a document request.
type CreateRequestPayload struct {
	RequestType       models.RequestType        `json:"requestType" validate:"required"`
	Title             string                    `json:"title" validate:"required"`
	Description       string                    `json:"description" validate:"required"`
	CorrectionDetails *models.CorrectionDetails `json:"correctionDetails,omitempty"`
	Documents         []DocumentReference       `json:"documents,omitempty"`
	Priority          models.RequestPriority    `json:"priority,omitempty"`
}

// UpdateStatusPayload carries an admin status decision. Message defaults to
// "Status updated to {status}" when empty.
type UpdateStatusPayload struct {
	Status                 models.RequestStatus `json:"status"`
	Message                string               `json:"message,omitempty"`
	ExpectedCompletionDate *time.Time           `json:"expectedCompletionDate,omitempty"`
}

// AddRemarkPayload carries an admin remark.
type AddRemarkPayload struct {
	Remark string `json:"remark"`
}

// RejectPayload carries an admin rejection with mandatory reason.
type RejectPayload struct {
	Reason string `json:"reason"`
}

// RequestQuery mirrors supported listing filters for the admin register.
type RequestQuery struct {
	Status      models.RequestStatus
	RequestType models.RequestType
	Priority    models.RequestPriority
	Search      string
	Limit       int
	Offset      int
}
