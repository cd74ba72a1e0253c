package models

import "time"

// NotificationKind categorises user-facing notifications.
type NotificationKind string

const (
	NotificationStatusChange NotificationKind = "STATUS_CHANGE"
	NotificationRemark       NotificationKind = "REMARK"
	NotificationRejection    NotificationKind = "REJECTION"
)

// Notification is a user-visible event emitted by the request workflow.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	RequestID string           `db:"request_id" json:"requestId"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}
