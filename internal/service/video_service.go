package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

// VideoService ведет справочник видео в части, которую читает контроль доступа
type VideoService struct {
	base
}

func NewVideoService(deps Deps) *VideoService {
	return &VideoService{base: newBase(deps)}
}

// CreateVideo создает видео автора и сразу выдает ему код доступа
func (s *VideoService) CreateVideo(ctx context.Context, creatorID int64, title string, publish bool) (*model.Video, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("video title is required: %w", model.ErrInvalidInput)
	}

	var video *model.Video
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		creator, err := tx.Users().GetByID(ctx, creatorID)
		if err != nil {
			return fmt.Errorf("get creator: %w", err)
		}

		if creator == nil {
			return fmt.Errorf("user %d: %w", creatorID, model.ErrNotFound)
		}

		if !creator.CanPublish() {
			return fmt.Errorf("role %s cannot own videos: %w", creator.Role, model.ErrForbidden)
		}

		created := &model.Video{
			CreatorID:   creatorID,
			Title:       title,
			IsPublished: publish,
			CreatedAt:   s.clock(),
		}

		if err := tx.Videos().Create(ctx, created); err != nil {
			return fmt.Errorf("create video: %w", err)
		}

		code, err := assignUniqueCode(ctx, tx, created.ID, s.random, s.metrics)
		if err != nil {
			return fmt.Errorf("assign access code: %w", err)
		}

		err = s.recordEvent(ctx, tx, model.AccessEvent{
			VideoID: created.ID,
			ActorID: creatorID,
			Action:  model.ActionCodeGenerated,
			Message: MaskCode(code),
		})
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		video, err = tx.Videos().GetByID(ctx, created.ID)
		if err != nil {
			return fmt.Errorf("get video: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Video created",
		zap.Int64("video_id", video.ID),
		zap.Int64("creator_id", creatorID),
		zap.Bool("published", video.IsPublished),
	)

	return video, nil
}

// PublishVideo открывает видео для зрителей с доступом
func (s *VideoService) PublishVideo(ctx context.Context, videoID, creatorID int64) error {
	return s.setPublished(ctx, videoID, creatorID, true)
}

// UnpublishVideo прячет видео от всех, кроме автора
func (s *VideoService) UnpublishVideo(ctx context.Context, videoID, creatorID int64) error {
	return s.setPublished(ctx, videoID, creatorID, false)
}

func (s *VideoService) setPublished(ctx context.Context, videoID, creatorID int64, published bool) error {
	action := model.ActionVideoPublished
	if !published {
		action = model.ActionVideoUnpublished
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := requireCreatorForUpdate(ctx, tx.Videos(), videoID, creatorID); err != nil {
			return err
		}

		if err := tx.Videos().SetPublished(ctx, videoID, published); err != nil {
			return fmt.Errorf("set published: %w", err)
		}

		return s.recordEvent(ctx, tx, model.AccessEvent{
			VideoID: videoID,
			ActorID: creatorID,
			Action:  action,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.Transition(action)

	// Решения всех зрителей видео зависят от флага публикации
	viewerIDs, err := s.store.Permissions().ListViewerIDsByVideo(ctx, videoID)
	if err != nil {
		s.logger.Warn("Failed to list viewers for invalidation",
			zap.Int64("video_id", videoID),
			zap.Error(err),
		)
	} else {
		s.invalidate(ctx, videoID, viewerIDs...)
	}

	s.logger.Info("Video publication changed",
		zap.Int64("video_id", videoID),
		zap.Int64("creator_id", creatorID),
		zap.Bool("published", published),
	)

	return nil
}

// GetVideo получает видео по ID
func (s *VideoService) GetVideo(ctx context.Context, videoID int64) (*model.Video, error) {
	video, err := s.store.Videos().GetByID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}

	if video == nil {
		return nil, fmt.Errorf("video %d: %w", videoID, model.ErrNotFound)
	}

	return video, nil
}

// ListCreatorVideos получает видео автора, новые первыми
func (s *VideoService) ListCreatorVideos(ctx context.Context, creatorID int64) ([]*model.Video, error) {
	videos, err := s.store.Videos().GetByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator videos: %w", err)
	}

	if videos == nil {
		return []*model.Video{}, nil
	}
	return videos, nil
}
