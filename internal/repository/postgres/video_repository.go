package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

type VideoRepository struct {
	db DBTX
}

func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, creator_id, title, is_published, access_code, requires_access_code, created_at`

func scanVideo(row pgx.Row) (*model.Video, error) {
	var video model.Video
	err := row.Scan(
		&video.ID,
		&video.CreatorID,
		&video.Title,
		&video.IsPublished,
		&video.AccessCode,
		&video.RequiresAccessCode,
		&video.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}

// Create создаёт запись о видео
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	query := `
		INSERT INTO videos (creator_id, title, is_published, access_code, requires_access_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		video.CreatorID,
		video.Title,
		video.IsPublished,
		video.AccessCode,
		video.RequiresAccessCode,
	).Scan(&video.ID, &video.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("create video: %w", err)
	}

	return nil
}

// GetByID получает видео по ID
func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get video by id: %w", err)
	}

	return video, nil
}

// GetByIDForUpdate получает видео и блокирует строку до конца транзакции
func (r *VideoRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 FOR UPDATE`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock video: %w", err)
	}

	return video, nil
}

// GetByAccessCode ищет видео по точному совпадению кода
func (r *VideoRepository) GetByAccessCode(ctx context.Context, code string) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE access_code = $1`

	video, err := scanVideo(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get video by access code: %w", err)
	}

	return video, nil
}

// GetByCreator получает все видео автора, включая неопубликованные
func (r *VideoRepository) GetByCreator(ctx context.Context, creatorID int64) ([]*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE creator_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get videos by creator: %w", err)
	}
	defer rows.Close()

	var videos []*model.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// CodeExists проверяет, существует ли код у какого-либо видео
func (r *VideoRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM videos
			WHERE access_code = $1
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}

	return exists, nil
}

// SetAccessCode заменяет код видео и включает требование кода
func (r *VideoRepository) SetAccessCode(ctx context.Context, id int64, code string) error {
	query := `
		UPDATE videos
		SET access_code = $1, requires_access_code = true
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, code, id)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("set access code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("video not found")
	}

	return nil
}

// SetRequiresAccessCode включает или выключает код, не трогая его значение
func (r *VideoRepository) SetRequiresAccessCode(ctx context.Context, id int64, requires bool) error {
	query := `
		UPDATE videos
		SET requires_access_code = $1
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, requires, id)
	if err != nil {
		return fmt.Errorf("set requires access code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("video not found")
	}

	return nil
}

// SetPublished меняет статус публикации
func (r *VideoRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	query := `
		UPDATE videos
		SET is_published = $1
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, published, id)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("video not found")
	}

	return nil
}
