package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

// requireCreator загружает видео и проверяет, что вызывающий его автор.
// Единая проверка для всех операций журнала и кодов доступа.
func requireCreator(ctx context.Context, videos repository.VideoRepository, videoID, callerID int64) (*model.Video, error) {
	video, err := videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	if video == nil {
		return nil, fmt.Errorf("video %d: %w", videoID, model.ErrNotFound)
	}

	if !video.IsOwnedBy(callerID) {
		return nil, fmt.Errorf("video %d belongs to another creator: %w", videoID, model.ErrForbidden)
	}

	return video, nil
}

// requireCreatorForUpdate то же самое, но блокирует строку видео до конца транзакции
func requireCreatorForUpdate(ctx context.Context, videos repository.VideoRepository, videoID, callerID int64) (*model.Video, error) {
	video, err := videos.GetByIDForUpdate(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	if video == nil {
		return nil, fmt.Errorf("video %d: %w", videoID, model.ErrNotFound)
	}

	if !video.IsOwnedBy(callerID) {
		return nil, fmt.Errorf("video %d belongs to another creator: %w", videoID, model.ErrForbidden)
	}

	return video, nil
}
