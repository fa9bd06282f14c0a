package model

import "time"

// AccessStatus is the outcome of the most recent request/response cycle of a permission.
type AccessStatus string

// Access status constants
const (
	AccessStatusPending  AccessStatus = "PENDING"
	AccessStatusApproved AccessStatus = "APPROVED"
	AccessStatusDenied   AccessStatus = "DENIED"
)

// AccessPermission is the ledger row for one (video, viewer) pair
type AccessPermission struct {
	ID              int64        `json:"id"`
	VideoID         int64        `json:"video_id"`
	ViewerID        int64        `json:"viewer_id"`
	Status          AccessStatus `json:"status"`
	RequestReason   string       `json:"request_reason"`
	ResponseMessage string       `json:"response_message"`
	RequestedAt     time.Time    `json:"requested_at"`
	RespondedAt     *time.Time   `json:"responded_at"`
	Revoked         bool         `json:"revoked"`         // permanent removal
	SuspendedUntil  *time.Time   `json:"suspended_until"` // temporary removal, nil = not suspended
}

// IsPending checks if permission is pending
func (p *AccessPermission) IsPending() bool {
	return p.Status == AccessStatusPending
}

// IsApproved checks if permission is approved
func (p *AccessPermission) IsApproved() bool {
	return p.Status == AccessStatusApproved
}

// IsDenied checks if permission is denied
func (p *AccessPermission) IsDenied() bool {
	return p.Status == AccessStatusDenied
}

// IsSuspendedAt reports whether the suspension deadline is strictly after now.
// A deadline in the past is the same as no suspension.
func (p *AccessPermission) IsSuspendedAt(now time.Time) bool {
	return p.SuspendedUntil != nil && p.SuspendedUntil.After(now)
}

// AccessView is a permission joined with the video title and viewer name
type AccessView struct {
	AccessPermission
	VideoTitle string `json:"video_title"`
	ViewerName string `json:"viewer_name"`
}
