package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

type PermissionRepository struct {
	db DBTX
}

func NewPermissionRepository(db DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `id, video_id, viewer_id, status, request_reason, response_message,
	requested_at, responded_at, revoked, suspended_until`

const viewSelect = `
	SELECT p.id, p.video_id, p.viewer_id, p.status, p.request_reason, p.response_message,
		p.requested_at, p.responded_at, p.revoked, p.suspended_until,
		v.title, u.name
	FROM video_access_permissions p
	JOIN videos v ON v.id = p.video_id
	JOIN users u ON u.id = p.viewer_id
`

func scanPermission(row pgx.Row) (*model.AccessPermission, error) {
	var p model.AccessPermission
	err := row.Scan(
		&p.ID,
		&p.VideoID,
		&p.ViewerID,
		&p.Status,
		&p.RequestReason,
		&p.ResponseMessage,
		&p.RequestedAt,
		&p.RespondedAt,
		&p.Revoked,
		&p.SuspendedUntil,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanView(row pgx.Row) (*model.AccessView, error) {
	var v model.AccessView
	err := row.Scan(
		&v.ID,
		&v.VideoID,
		&v.ViewerID,
		&v.Status,
		&v.RequestReason,
		&v.ResponseMessage,
		&v.RequestedAt,
		&v.RespondedAt,
		&v.Revoked,
		&v.SuspendedUntil,
		&v.VideoTitle,
		&v.ViewerName,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create создаёт запись доступа. Уникальный индекс (video_id, viewer_id)
// закрывает гонку двух одновременных запросов.
func (r *PermissionRepository) Create(ctx context.Context, p *model.AccessPermission) error {
	query := `
		INSERT INTO video_access_permissions
			(video_id, viewer_id, status, request_reason, response_message, requested_at, responded_at, revoked, suspended_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRow(
		ctx, query,
		p.VideoID,
		p.ViewerID,
		p.Status,
		p.RequestReason,
		p.ResponseMessage,
		p.RequestedAt,
		p.RespondedAt,
		p.Revoked,
		p.SuspendedUntil,
	).Scan(&p.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("create permission: %w", err)
	}

	return nil
}

// GetByID получает запись доступа по ID
func (r *PermissionRepository) GetByID(ctx context.Context, id int64) (*model.AccessPermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM video_access_permissions WHERE id = $1`

	p, err := scanPermission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get permission: %w", err)
	}

	return p, nil
}

// GetByIDForUpdate получает запись доступа и блокирует её до конца транзакции
func (r *PermissionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.AccessPermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM video_access_permissions WHERE id = $1 FOR UPDATE`

	p, err := scanPermission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock permission: %w", err)
	}

	return p, nil
}

// GetByVideoAndViewer получает запись для пары видео/зритель
func (r *PermissionRepository) GetByVideoAndViewer(ctx context.Context, videoID, viewerID int64) (*model.AccessPermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM video_access_permissions WHERE video_id = $1 AND viewer_id = $2`

	p, err := scanPermission(r.db.QueryRow(ctx, query, videoID, viewerID))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get permission by pair: %w", err)
	}

	return p, nil
}

// Update сохраняет изменяемые поля записи. requested_at не меняется никогда.
func (r *PermissionRepository) Update(ctx context.Context, p *model.AccessPermission) error {
	query := `
		UPDATE video_access_permissions
		SET status = $1, response_message = $2, responded_at = $3, revoked = $4, suspended_until = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(
		ctx, query,
		p.Status,
		p.ResponseMessage,
		p.RespondedAt,
		p.Revoked,
		p.SuspendedUntil,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("permission not found")
	}

	return nil
}

// Delete удаляет запись доступа целиком
func (r *PermissionRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM video_access_permissions
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("permission not found")
	}

	return nil
}

// GetView получает запись с названием видео и именем зрителя
func (r *PermissionRepository) GetView(ctx context.Context, id int64) (*model.AccessView, error) {
	query := viewSelect + ` WHERE p.id = $1`

	v, err := scanView(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get permission view: %w", err)
	}

	return v, nil
}

// ListByCreatorAndStatus получает записи по видео автора с заданным статусом
func (r *PermissionRepository) ListByCreatorAndStatus(ctx context.Context, creatorID int64, status model.AccessStatus) ([]*model.AccessView, error) {
	query := viewSelect + ` WHERE v.creator_id = $1 AND p.status = $2 ORDER BY p.requested_at ASC, p.id ASC`
	return r.listViews(ctx, "list by creator", query, creatorID, status)
}

// ListByViewer получает все запросы зрителя в любом статусе
func (r *PermissionRepository) ListByViewer(ctx context.Context, viewerID int64) ([]*model.AccessView, error) {
	query := viewSelect + ` WHERE p.viewer_id = $1 ORDER BY p.requested_at DESC, p.id DESC`
	return r.listViews(ctx, "list by viewer", query, viewerID)
}

// ListByVideo получает полный список доступа к одному видео
func (r *PermissionRepository) ListByVideo(ctx context.Context, videoID int64) ([]*model.AccessView, error) {
	query := viewSelect + ` WHERE p.video_id = $1 ORDER BY p.requested_at ASC, p.id ASC`
	return r.listViews(ctx, "list by video", query, videoID)
}

func (r *PermissionRepository) listViews(ctx context.Context, op, query string, args ...any) ([]*model.AccessView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var views []*model.AccessView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission view: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission views: %w", err)
	}

	return views, nil
}

// ListViewerIDsByVideo получает ID всех зрителей, у которых есть запись по видео
func (r *PermissionRepository) ListViewerIDsByVideo(ctx context.Context, videoID int64) ([]int64, error) {
	query := `
		SELECT viewer_id
		FROM video_access_permissions
		WHERE video_id = $1
	`

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video viewer ids: %w", err)
	}
	defer rows.Close()

	var viewerIDs []int64
	for rows.Next() {
		var viewerID int64
		if err := rows.Scan(&viewerID); err != nil {
			return nil, fmt.Errorf("scan viewer id: %w", err)
		}
		viewerIDs = append(viewerIDs, viewerID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewer ids: %w", err)
	}

	return viewerIDs, nil
}

// CountPendingByCreator подсчитывает pending записи по каждому автору
func (r *PermissionRepository) CountPendingByCreator(ctx context.Context) (map[int64]int, error) {
	query := `
		SELECT v.creator_id, COUNT(*)
		FROM video_access_permissions p
		JOIN videos v ON v.id = p.video_id
		WHERE p.status = $1
		GROUP BY v.creator_id
	`

	rows, err := r.db.Query(ctx, query, model.AccessStatusPending)
	if err != nil {
		return nil, fmt.Errorf("count pending permissions: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var creatorID int64
		var count int
		if err := rows.Scan(&creatorID, &count); err != nil {
			return nil, fmt.Errorf("scan pending count: %w", err)
		}
		counts[creatorID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending counts: %w", err)
	}

	return counts, nil
}
