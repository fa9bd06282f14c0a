package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessAction names a ledger transition recorded in the audit trail
type AccessAction string

const (
	ActionRequested        AccessAction = "requested"
	ActionApproved         AccessAction = "approved"
	ActionDenied           AccessAction = "denied"
	ActionRevoked          AccessAction = "revoked"
	ActionSuspended        AccessAction = "suspended"
	ActionRevokedPermanent AccessAction = "revoked_permanently"
	ActionRestored         AccessAction = "restored"
	ActionRedeemed         AccessAction = "redeemed"
	ActionCodeGenerated    AccessAction = "code_generated"
	ActionCodeDisabled     AccessAction = "code_disabled"
	ActionVideoPublished   AccessAction = "video_published"
	ActionVideoUnpublished AccessAction = "video_unpublished"
)

// AccessEvent is one append-only audit record.
// PermissionID outlives the permission row: revoked rows are deleted.
type AccessEvent struct {
	ID           uuid.UUID    `json:"id"`
	VideoID      int64        `json:"video_id"`
	ViewerID     *int64       `json:"viewer_id"`
	PermissionID *int64       `json:"permission_id"`
	ActorID      int64        `json:"actor_id"`
	Action       AccessAction `json:"action"`
	Message      string       `json:"message"`
	CreatedAt    time.Time    `json:"created_at"`
}
