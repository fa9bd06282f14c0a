package memory

import (
	"context"

	"github.com/Freeeeeet/video_access/internal/model"
)

type eventRepository struct {
	s *Store
}

func (r *eventRepository) Record(ctx context.Context, event *model.AccessEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	cp := *event
	r.s.st.events = append(r.s.st.events, &cp)

	return nil
}

// ListByVideo возвращает события в обратном порядке записи
func (r *eventRepository) ListByVideo(ctx context.Context, videoID int64, limit int) ([]*model.AccessEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	var events []*model.AccessEvent
	for i := len(r.s.st.events) - 1; i >= 0; i-- {
		if limit > 0 && len(events) >= limit {
			break
		}
		if e := r.s.st.events[i]; e.VideoID == videoID {
			cp := *e
			events = append(events, &cp)
		}
	}
	return events, nil
}
