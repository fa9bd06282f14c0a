package service

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/ratelimit"
)

// codeBytes maps the alphabet positions of "WXYZ2345"
var codeBytes = []byte{20, 21, 22, 23, 24, 25, 26, 27}

func withRandom(r io.Reader) func(d *Deps) {
	return func(d *Deps) { d.Random = r }
}

func TestGenerateAccessCode(t *testing.T) {
	f := newFixture(t)

	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.True(t, IsValidCode(code), code)

	got, err := f.codes.GetAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, code, got)

	video, err := f.videos.GetVideo(f.ctx, f.video.ID)
	require.NoError(t, err)
	assert.True(t, video.RequiresAccessCode)
}

func TestGenerateAccessCode_Authorization(t *testing.T) {
	f := newFixture(t)

	_, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.codes.GenerateAccessCode(f.ctx, 999, f.creator.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.codes.GetAccessCode(f.ctx, f.video.ID, f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrForbidden)

	err = f.codes.DisableAccessCode(f.ctx, f.video.ID, f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestGetAccessCode_NotEnabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.codes.GetAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	require.NoError(t, f.codes.DisableAccessCode(f.ctx, f.video.ID, f.creator.ID))

	_, err = f.codes.GetAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, model.CodeInvalidState, model.Code(err))
}

func TestGenerateAccessCode_RegenerateInvalidatesOldCode(t *testing.T) {
	f := newFixture(t)

	oldCode, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	newCode, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	require.NotEqual(t, oldCode, newCode)

	_, err = f.codes.RedeemAccessCode(f.ctx, oldCode, f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	ok, err := f.codes.RedeemAccessCode(f.ctx, newCode, f.viewerA.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateAccessCode_RetriesOnCollision(t *testing.T) {
	// Two draws of the same bytes, then ABCDEFGH
	random := bytes.NewReader(append(append(append([]byte{}, codeBytes...), codeBytes...), 0, 1, 2, 3, 4, 5, 6, 7))
	f := newFixture(t, withRandom(random))
	second := f.addVideo(t, f.creator.ID, "Lecture 2", true)

	first, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, "WXYZ-2345", first)

	code, err := f.codes.GenerateAccessCode(f.ctx, second.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", code)
	assert.Equal(t, 1, f.metrics.collisions)
}

func TestGenerateAccessCode_GivesUpAfterMaxAttempts(t *testing.T) {
	random := bytes.NewReader(bytes.Repeat(codeBytes, maxCodeAttempts+1))
	f := newFixture(t, withRandom(random))
	second := f.addVideo(t, f.creator.ID, "Lecture 2", true)

	_, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	_, err = f.codes.GenerateAccessCode(f.ctx, second.ID, f.creator.ID)
	require.Error(t, err)
	assert.Equal(t, maxCodeAttempts, f.metrics.collisions)

	_, err = f.codes.GetAccessCode(f.ctx, second.ID, f.creator.ID)
	require.ErrorIs(t, err, model.ErrInvalidState, "failed generation leaves no code behind")
}

func TestRedeemAccessCode_Scenario(t *testing.T) {
	f := newFixture(t, withRandom(bytes.NewReader(codeBytes)))

	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	require.Equal(t, "WXYZ-2345", code)

	ok, err := f.codes.RedeemAccessCode(f.ctx, "wxyz-2345", f.viewerB.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	views, err := f.access.GetMyRequests(f.ctx, f.viewerB.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, model.AccessStatusApproved, views[0].Status)
	assert.Contains(t, views[0].RequestReason, "WXYZ-2345")
	assert.Equal(t, autoApprovalMessage, views[0].ResponseMessage)
	assert.True(t, f.hasAccess(t, f.video.ID, f.viewerB.ID))
	assert.Equal(t, 1, f.metrics.redemptions[RedeemGranted])
}

func TestRedeemAccessCode_Idempotent(t *testing.T) {
	f := newFixture(t)
	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := f.codes.RedeemAccessCode(f.ctx, code, f.viewerA.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	views, err := f.access.GetAccessForVideo(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, 1, f.metrics.redemptions[RedeemAlreadyApproved])
}

func TestRedeemAccessCode_Normalization(t *testing.T) {
	f := newFixture(t, withRandom(bytes.NewReader(codeBytes)))
	_, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	for _, input := range []string{" wxyz-2345 ", "WXYZ2345", "wx yz 23 45", "wxyz\t2345"} {
		ok, err := f.codes.RedeemAccessCode(f.ctx, input, f.viewerA.ID)
		require.NoError(t, err, input)
		assert.True(t, ok, input)
	}
}

func TestRedeemAccessCode_Errors(t *testing.T) {
	f := newFixture(t, withRandom(bytes.NewReader(codeBytes)))
	_, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		code    string
		viewer  int64
		wantErr error
	}{
		{name: "empty", code: "   ", viewer: f.viewerA.ID, wantErr: model.ErrInvalidInput},
		{name: "too short", code: "WXYZ-234", viewer: f.viewerA.ID, wantErr: model.ErrInvalidInput},
		{name: "ambiguous glyph", code: "WXYZ-2340", viewer: f.viewerA.ID, wantErr: model.ErrInvalidInput},
		{name: "misplaced hyphen", code: "WXY-Z2345", viewer: f.viewerA.ID, wantErr: model.ErrInvalidInput},
		{name: "unknown code", code: "ABCD-EFGH", viewer: f.viewerA.ID, wantErr: model.ErrNotFound},
		{name: "unknown viewer", code: "WXYZ-2345", viewer: 999, wantErr: model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.codes.RedeemAccessCode(f.ctx, tt.code, tt.viewer)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, ok)
		})
	}

	views, err := f.access.GetAccessForVideo(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRedeemAccessCode_DisabledCode(t *testing.T) {
	f := newFixture(t)
	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	require.NoError(t, f.codes.DisableAccessCode(f.ctx, f.video.ID, f.creator.ID))

	_, err = f.codes.RedeemAccessCode(f.ctx, code, f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrInvalidState)
	assert.Equal(t, 1, f.metrics.redemptions[RedeemDisabled])

	// Regenerating enables redemption again
	code, err = f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	ok, err := f.codes.RedeemAccessCode(f.ctx, code, f.viewerA.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedeemAccessCode_ExistingRows(t *testing.T) {
	f := newFixture(t)
	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	t.Run("pending row is approved in place", func(t *testing.T) {
		req, err := f.access.RequestAccess(f.ctx, f.viewerA.ID, f.video.ID, "please")
		require.NoError(t, err)

		ok, err := f.codes.RedeemAccessCode(f.ctx, code, f.viewerA.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		views, err := f.access.GetMyRequests(f.ctx, f.viewerA.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, req.ID, views[0].ID)
		assert.Equal(t, model.AccessStatusApproved, views[0].Status)
		assert.Equal(t, "please", views[0].RequestReason)
		assert.True(t, f.hasAccess(t, f.video.ID, f.viewerA.ID))
	})

	t.Run("denied row is approved in place", func(t *testing.T) {
		req, err := f.access.RequestAccess(f.ctx, f.viewerB.ID, f.video.ID, "")
		require.NoError(t, err)
		_, err = f.access.DenyAccess(f.ctx, req.ID, f.creator.ID, "no")
		require.NoError(t, err)

		ok, err := f.codes.RedeemAccessCode(f.ctx, code, f.viewerB.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, f.hasAccess(t, f.video.ID, f.viewerB.ID))
		assert.Equal(t, 2, f.metrics.redemptions[RedeemUpgraded])
	})

	t.Run("permanently revoked grant stays revoked", func(t *testing.T) {
		viewer := f.addUser(t, "Eve", model.RoleViewer)
		view := f.approved(t, viewer.ID)
		_, err := f.access.RevokeAccessPermanently(f.ctx, view.ID, f.creator.ID, "")
		require.NoError(t, err)

		ok, err := f.codes.RedeemAccessCode(f.ctx, code, viewer.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, f.hasAccess(t, f.video.ID, viewer.ID))
	})
}

func TestRedeemAccessCode_Owner(t *testing.T) {
	f := newFixture(t)
	code, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)

	ok, err := f.codes.RedeemAccessCode(f.ctx, code, f.creator.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	views, err := f.access.GetAccessForVideo(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRedeemAccessCode_RateLimited(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.RedeemLimiter = ratelimit.New(1, time.Hour, 2, time.Hour)
	})

	for i := 0; i < 2; i++ {
		_, err := f.codes.RedeemAccessCode(f.ctx, "ABCD-EFGH", f.viewerA.ID)
		require.ErrorIs(t, err, model.ErrNotFound)
	}

	_, err := f.codes.RedeemAccessCode(f.ctx, "ABCD-EFGH", f.viewerA.ID)
	require.ErrorIs(t, err, model.ErrRateLimited)
	assert.Equal(t, model.CodeRateLimited, model.Code(err))

	// Other viewers have their own budget
	_, err = f.codes.RedeemAccessCode(f.ctx, "ABCD-EFGH", f.viewerB.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCodeAuditEventsAreMasked(t *testing.T) {
	f := newFixture(t, withRandom(bytes.NewReader(codeBytes)))
	_, err := f.codes.GenerateAccessCode(f.ctx, f.video.ID, f.creator.ID)
	require.NoError(t, err)
	_, err = f.codes.RedeemAccessCode(f.ctx, "WXYZ-2345", f.viewerA.ID)
	require.NoError(t, err)

	events, err := f.access.GetAccessHistory(f.ctx, f.video.ID, f.creator.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ActionRedeemed, events[0].Action)
	assert.Equal(t, model.ActionCodeGenerated, events[1].Action)
	for _, e := range events {
		assert.False(t, strings.Contains(e.Message, "2345"), e.Message)
	}
}
