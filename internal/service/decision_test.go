package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/video_access/internal/model"
)

func TestDecide(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	const (
		creatorID = int64(1)
		viewerID  = int64(2)
	)

	published := &model.Video{ID: 10, CreatorID: creatorID, IsPublished: true}
	draft := &model.Video{ID: 11, CreatorID: creatorID}

	grant := func(status model.AccessStatus, revoked bool, until *time.Time) *model.AccessPermission {
		return &model.AccessPermission{
			VideoID:        published.ID,
			ViewerID:       viewerID,
			Status:         status,
			Revoked:        revoked,
			SuspendedUntil: until,
		}
	}

	tests := []struct {
		name   string
		video  *model.Video
		viewer int64
		grant  *model.AccessPermission
		want   Decision
	}{
		{name: "owner of draft", video: draft, viewer: creatorID, want: Decision{Allowed: true, Reason: ReasonOwner}},
		{name: "owner with revoked row", video: published, viewer: creatorID, grant: grant(model.AccessStatusApproved, true, nil), want: Decision{Allowed: true, Reason: ReasonOwner}},
		{name: "draft hides approved grant", video: draft, viewer: viewerID, grant: grant(model.AccessStatusApproved, false, nil), want: Decision{Reason: ReasonUnpublished}},
		{name: "no row", video: published, viewer: viewerID, want: Decision{Reason: ReasonNoGrant}},
		{name: "pending", video: published, viewer: viewerID, grant: grant(model.AccessStatusPending, false, nil), want: Decision{Reason: ReasonNoGrant}},
		{name: "denied", video: published, viewer: viewerID, grant: grant(model.AccessStatusDenied, false, nil), want: Decision{Reason: ReasonNoGrant}},
		{name: "revoked", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, true, nil), want: Decision{Reason: ReasonRevoked}},
		{name: "revoked wins over stale suspension", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, true, &future), want: Decision{Reason: ReasonRevoked}},
		{name: "revoked with past suspension", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, true, &past), want: Decision{Reason: ReasonRevoked}},
		{name: "suspended", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, false, &future), want: Decision{Reason: ReasonSuspended}},
		{name: "suspension at deadline", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, false, &now), want: Decision{Allowed: true, Reason: ReasonGranted}},
		{name: "suspension in past", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, false, &past), want: Decision{Allowed: true, Reason: ReasonGranted}},
		{name: "granted", video: published, viewer: viewerID, grant: grant(model.AccessStatusApproved, false, nil), want: Decision{Allowed: true, Reason: ReasonGranted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.video, tt.viewer, tt.grant, now))
		})
	}
}
