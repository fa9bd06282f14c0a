package service

import (
	"time"

	"github.com/Freeeeeet/video_access/internal/model"
)

// Причины решения о доступе
const (
	ReasonOwner       = "owner"
	ReasonUnpublished = "unpublished"
	ReasonNoGrant     = "no_grant"
	ReasonRevoked     = "revoked"
	ReasonSuspended   = "suspended"
	ReasonGranted     = "granted"
)

// Decision результат проверки доступа к видео
type Decision struct {
	Allowed bool
	Reason  string
}

// Decide вычисляет доступ зрителя к видео. Порядок проверок важен:
// автор видит все, неопубликованное закрыто до чтения журнала,
// постоянный отзыв проверяется раньше приостановки.
func Decide(video *model.Video, viewerID int64, grant *model.AccessPermission, now time.Time) Decision {
	switch {
	case video.IsOwnedBy(viewerID):
		return Decision{Allowed: true, Reason: ReasonOwner}
	case !video.IsPublished:
		return Decision{Reason: ReasonUnpublished}
	case grant == nil || !grant.IsApproved():
		return Decision{Reason: ReasonNoGrant}
	case grant.Revoked:
		return Decision{Reason: ReasonRevoked}
	case grant.IsSuspendedAt(now):
		return Decision{Reason: ReasonSuspended}
	default:
		return Decision{Allowed: true, Reason: ReasonGranted}
	}
}
