package notify

import (
	"context"

	"github.com/Freeeeeet/video_access/internal/model"
)

// Noop используется, когда бот не настроен
type Noop struct{}

func (Noop) AccessRequested(context.Context, *model.User, *model.AccessView) error {
	return nil
}

func (Noop) AccessChanged(context.Context, *model.User, *model.AccessView, model.AccessAction) error {
	return nil
}

func (Noop) PendingDigest(context.Context, *model.User, int) error {
	return nil
}
