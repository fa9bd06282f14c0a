package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/video_access/internal/model"
)

type EventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// Record добавляет событие в журнал аудита
func (r *EventRepository) Record(ctx context.Context, event *model.AccessEvent) error {
	query := `
		INSERT INTO access_events (id, video_id, viewer_id, permission_id, actor_id, action, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx, query,
		event.ID,
		event.VideoID,
		event.ViewerID,
		event.PermissionID,
		event.ActorID,
		event.Action,
		event.Message,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record access event: %w", err)
	}

	return nil
}

// ListByVideo получает последние события по видео, новые первыми
func (r *EventRepository) ListByVideo(ctx context.Context, videoID int64, limit int) ([]*model.AccessEvent, error) {
	query := `
		SELECT id, video_id, viewer_id, permission_id, actor_id, action, message, created_at
		FROM access_events
		WHERE video_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("list access events: %w", err)
	}
	defer rows.Close()

	var events []*model.AccessEvent
	for rows.Next() {
		var event model.AccessEvent
		err := rows.Scan(
			&event.ID,
			&event.VideoID,
			&event.ViewerID,
			&event.PermissionID,
			&event.ActorID,
			&event.Action,
			&event.Message,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan access event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access events: %w", err)
	}

	return events, nil
}
