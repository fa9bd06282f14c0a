package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
	"github.com/Freeeeeet/video_access/internal/tracing"
)

// maxTextLen ограничение длины причины запроса и ответа автора
const maxTextLen = 500

// DefaultHistoryLimit размер выборки журнала событий по умолчанию
const DefaultHistoryLimit = 100

// AccessService журнал разрешений на просмотр и проверка доступа
type AccessService struct {
	base
}

func NewAccessService(deps Deps) *AccessService {
	return &AccessService{base: newBase(deps)}
}

// ============ Проверка доступа ============

// HasAccess решает, может ли зритель смотреть видео. Вызывается на каждом защищенном чтении.
func (s *AccessService) HasAccess(ctx context.Context, videoID, viewerID int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "access.has_access",
		tracing.VideoIDKey.Int64(videoID),
		tracing.ViewerIDKey.Int64(viewerID),
	)
	allowed, err := s.hasAccess(ctx, videoID, viewerID)
	tracing.End(span, err)
	return allowed, err
}

func (s *AccessService) hasAccess(ctx context.Context, videoID, viewerID int64) (bool, error) {
	if s.cache != nil {
		allowed, found, err := s.cache.Get(ctx, videoID, viewerID)
		if err != nil {
			s.logger.Warn("Failed to read cached access decision",
				zap.Int64("video_id", videoID),
				zap.Int64("viewer_id", viewerID),
				zap.Error(err),
			)
		} else if found {
			s.metrics.Decision(allowed, "cached")
			return allowed, nil
		}
	}

	video, err := s.store.Videos().GetByID(ctx, videoID)
	if err != nil {
		return false, fmt.Errorf("get video: %w", err)
	}

	if video == nil {
		return false, fmt.Errorf("video %d: %w", videoID, model.ErrNotFound)
	}

	// Журнал читаем только если решение от него зависит
	var grant *model.AccessPermission
	if !video.IsOwnedBy(viewerID) && video.IsPublished {
		grant, err = s.store.Permissions().GetByVideoAndViewer(ctx, videoID, viewerID)
		if err != nil {
			return false, fmt.Errorf("get permission: %w", err)
		}
	}

	now := s.clock()
	decision := Decide(video, viewerID, grant, now)
	s.metrics.Decision(decision.Allowed, decision.Reason)

	if s.cache != nil {
		ttl := s.cacheTTL
		// Закэшированный отказ не должен пережить приостановку
		if decision.Reason == ReasonSuspended {
			if remaining := grant.SuspendedUntil.Sub(now); remaining < ttl {
				ttl = remaining
			}
		}
		if ttl > 0 {
			if err := s.cache.Set(ctx, videoID, viewerID, decision.Allowed, ttl); err != nil {
				s.logger.Warn("Failed to cache access decision",
					zap.Int64("video_id", videoID),
					zap.Int64("viewer_id", viewerID),
					zap.Error(err),
				)
			}
		}
	}

	return decision.Allowed, nil
}

// ============ Запросы доступа ============

// RequestAccess создает запрос зрителя на доступ к видео
func (s *AccessService) RequestAccess(ctx context.Context, viewerID, videoID int64, reason string) (*model.AccessView, error) {
	if err := validateText("request reason", reason); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "access.request",
		tracing.VideoIDKey.Int64(videoID),
		tracing.ViewerIDKey.Int64(viewerID),
	)
	var (
		view      *model.AccessView
		creatorID int64
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		video, err := tx.Videos().GetByID(ctx, videoID)
		if err != nil {
			return fmt.Errorf("get video: %w", err)
		}

		if video == nil {
			return fmt.Errorf("video %d: %w", videoID, model.ErrNotFound)
		}

		viewer, err := tx.Users().GetByID(ctx, viewerID)
		if err != nil {
			return fmt.Errorf("get viewer: %w", err)
		}

		if viewer == nil {
			return fmt.Errorf("user %d: %w", viewerID, model.ErrNotFound)
		}

		// Автору запрос не нужен
		if video.IsOwnedBy(viewerID) {
			return fmt.Errorf("creator cannot request access to own video: %w", model.ErrInvalidState)
		}

		existing, err := tx.Permissions().GetByVideoAndViewer(ctx, videoID, viewerID)
		if err != nil {
			return fmt.Errorf("get permission: %w", err)
		}

		if existing != nil {
			return fmt.Errorf("access request already exists: %w", model.ErrConflict)
		}

		permission := &model.AccessPermission{
			VideoID:       videoID,
			ViewerID:      viewerID,
			Status:        model.AccessStatusPending,
			RequestReason: reason,
			RequestedAt:   s.clock(),
		}

		// Уникальный индекс закрывает гонку двух одновременных запросов
		err = tx.Permissions().Create(ctx, permission)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("access request already exists: %w", model.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("create permission: %w", err)
		}

		event := permissionEvent(permission, viewerID, model.ActionRequested, reason, permission.RequestedAt)
		if err := s.recordEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		view, err = tx.Permissions().GetView(ctx, permission.ID)
		if err != nil {
			return fmt.Errorf("get permission view: %w", err)
		}

		creatorID = video.CreatorID
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(model.ActionRequested)

	s.logger.Info("Access requested",
		zap.Int64("permission_id", view.ID),
		zap.Int64("video_id", videoID),
		zap.Int64("viewer_id", viewerID),
		zap.Int64("creator_id", creatorID),
	)

	s.notifyCreator(ctx, creatorID, view)

	return view, nil
}

// ============ Решения автора ============

// transition описывает одно изменение записи доступа автором
type transition struct {
	action  model.AccessAction
	message string
	apply   func(p *model.AccessPermission, now time.Time)
}

// ApproveAccess одобряет доступ. revoked и suspendedUntil не меняются.
func (s *AccessService) ApproveAccess(ctx context.Context, permissionID, creatorID int64, message string) (*model.AccessView, error) {
	if err := validateText("response message", message); err != nil {
		return nil, err
	}

	return s.mutate(ctx, permissionID, creatorID, transition{
		action:  model.ActionApproved,
		message: message,
		apply: func(p *model.AccessPermission, now time.Time) {
			p.Status = model.AccessStatusApproved
			p.RespondedAt = &now
			p.ResponseMessage = message
		},
	})
}

// DenyAccess отклоняет доступ
func (s *AccessService) DenyAccess(ctx context.Context, permissionID, creatorID int64, message string) (*model.AccessView, error) {
	if err := validateText("response message", message); err != nil {
		return nil, err
	}

	return s.mutate(ctx, permissionID, creatorID, transition{
		action:  model.ActionDenied,
		message: message,
		apply: func(p *model.AccessPermission, now time.Time) {
			p.Status = model.AccessStatusDenied
			p.RespondedAt = &now
			p.ResponseMessage = message
		},
	})
}

// SuspendAccess временно закрывает доступ до until. Статус не меняется.
func (s *AccessService) SuspendAccess(ctx context.Context, permissionID, creatorID int64, until time.Time) (*model.AccessView, error) {
	if until.IsZero() {
		return nil, fmt.Errorf("suspension deadline is required: %w", model.ErrInvalidInput)
	}

	return s.mutate(ctx, permissionID, creatorID, transition{
		action:  model.ActionSuspended,
		message: until.UTC().Format(time.RFC3339),
		apply: func(p *model.AccessPermission, _ time.Time) {
			p.SuspendedUntil = &until
			p.Revoked = false
		},
	})
}

// RevokeAccessPermanently закрывает доступ до явного восстановления.
// Запись остается одобренной, чтобы сохранить историю выдачи.
func (s *AccessService) RevokeAccessPermanently(ctx context.Context, permissionID, creatorID int64, message string) (*model.AccessView, error) {
	if err := validateText("response message", message); err != nil {
		return nil, err
	}

	return s.mutate(ctx, permissionID, creatorID, transition{
		action:  model.ActionRevokedPermanent,
		message: message,
		apply: func(p *model.AccessPermission, now time.Time) {
			p.Revoked = true
			p.SuspendedUntil = nil
			p.Status = model.AccessStatusApproved
			p.RespondedAt = &now
			p.ResponseMessage = message
		},
	})
}

// RestoreAccess снимает отзыв и приостановку, статус остается прежним
func (s *AccessService) RestoreAccess(ctx context.Context, permissionID, creatorID int64) (*model.AccessView, error) {
	return s.mutate(ctx, permissionID, creatorID, transition{
		action: model.ActionRestored,
		apply: func(p *model.AccessPermission, _ time.Time) {
			p.Revoked = false
			p.SuspendedUntil = nil
		},
	})
}

// RevokeAccess удаляет запись целиком, после чего зритель может запросить доступ заново
func (s *AccessService) RevokeAccess(ctx context.Context, permissionID, creatorID int64) error {
	var permission *model.AccessPermission
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		permission, err = s.lockOwned(ctx, tx, permissionID, creatorID)
		if err != nil {
			return err
		}

		if err := tx.Permissions().Delete(ctx, permissionID); err != nil {
			return fmt.Errorf("delete permission: %w", err)
		}

		event := permissionEvent(permission, creatorID, model.ActionRevoked, "", s.clock())
		if err := s.recordEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Transition(model.ActionRevoked)
	s.invalidate(ctx, permission.VideoID, permission.ViewerID)

	s.logger.Info("Access revoked",
		zap.Int64("permission_id", permissionID),
		zap.Int64("video_id", permission.VideoID),
		zap.Int64("viewer_id", permission.ViewerID),
		zap.Int64("creator_id", creatorID),
	)

	return nil
}

// mutate применяет изменение к записи в одной транзакции, затем сбрасывает кэш и уведомляет зрителя
func (s *AccessService) mutate(ctx context.Context, permissionID, creatorID int64, t transition) (*model.AccessView, error) {
	ctx, span := tracing.StartSpan(ctx, "access."+string(t.action),
		tracing.PermissionIDKey.Int64(permissionID),
		tracing.CreatorIDKey.Int64(creatorID),
	)
	var view *model.AccessView
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		permission, err := s.lockOwned(ctx, tx, permissionID, creatorID)
		if err != nil {
			return err
		}

		now := s.clock()
		t.apply(permission, now)

		if err := tx.Permissions().Update(ctx, permission); err != nil {
			return fmt.Errorf("update permission: %w", err)
		}

		event := permissionEvent(permission, creatorID, t.action, t.message, now)
		if err := s.recordEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		view, err = tx.Permissions().GetView(ctx, permissionID)
		if err != nil {
			return fmt.Errorf("get permission view: %w", err)
		}

		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(t.action)
	s.invalidate(ctx, view.VideoID, view.ViewerID)

	s.logger.Info("Access permission changed",
		zap.String("action", string(t.action)),
		zap.Int64("permission_id", view.ID),
		zap.Int64("video_id", view.VideoID),
		zap.Int64("viewer_id", view.ViewerID),
		zap.Int64("creator_id", creatorID),
	)

	s.notifyViewer(ctx, view, t.action)

	return view, nil
}

// lockOwned блокирует запись и проверяет, что вызывающий автор видео
func (s *AccessService) lockOwned(ctx context.Context, tx repository.Store, permissionID, creatorID int64) (*model.AccessPermission, error) {
	permission, err := tx.Permissions().GetByIDForUpdate(ctx, permissionID)
	if err != nil {
		return nil, fmt.Errorf("get permission: %w", err)
	}

	if permission == nil {
		return nil, fmt.Errorf("permission %d: %w", permissionID, model.ErrNotFound)
	}

	if _, err := requireCreator(ctx, tx.Videos(), permission.VideoID, creatorID); err != nil {
		return nil, err
	}

	return permission, nil
}

// ============ Выборки ============

// GetPendingRequests получает ожидающие запросы к видео автора
func (s *AccessService) GetPendingRequests(ctx context.Context, creatorID int64) ([]*model.AccessView, error) {
	views, err := s.store.Permissions().ListByCreatorAndStatus(ctx, creatorID, model.AccessStatusPending)
	if err != nil {
		return nil, fmt.Errorf("get pending requests: %w", err)
	}

	return nonNil(views), nil
}

// GetMyRequests получает все запросы зрителя в любом статусе
func (s *AccessService) GetMyRequests(ctx context.Context, viewerID int64) ([]*model.AccessView, error) {
	views, err := s.store.Permissions().ListByViewer(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("get viewer requests: %w", err)
	}

	return nonNil(views), nil
}

// GetApprovedAccess получает одобренные доступы к видео автора
func (s *AccessService) GetApprovedAccess(ctx context.Context, creatorID int64) ([]*model.AccessView, error) {
	views, err := s.store.Permissions().ListByCreatorAndStatus(ctx, creatorID, model.AccessStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("get approved access: %w", err)
	}

	return nonNil(views), nil
}

// GetAccessForVideo получает все записи доступа к видео (только автор)
func (s *AccessService) GetAccessForVideo(ctx context.Context, videoID, creatorID int64) ([]*model.AccessView, error) {
	if _, err := requireCreator(ctx, s.store.Videos(), videoID, creatorID); err != nil {
		return nil, err
	}

	views, err := s.store.Permissions().ListByVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video access: %w", err)
	}

	return nonNil(views), nil
}

// GetAccessHistory получает журнал событий доступа к видео, новые первыми
func (s *AccessService) GetAccessHistory(ctx context.Context, videoID, creatorID int64, limit int) ([]*model.AccessEvent, error) {
	if _, err := requireCreator(ctx, s.store.Videos(), videoID, creatorID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	events, err := s.store.Events().ListByVideo(ctx, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("get access history: %w", err)
	}

	if events == nil {
		return []*model.AccessEvent{}, nil
	}
	return events, nil
}

// ============ Уведомления ============

// NotifyPendingDigest отправляет авторам число ожидающих запросов.
// Возвращает количество отправленных сводок.
func (s *AccessService) NotifyPendingDigest(ctx context.Context) (int, error) {
	counts, err := s.store.Permissions().CountPendingByCreator(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}

	if len(counts) == 0 {
		return 0, nil
	}

	creatorIDs := make([]int64, 0, len(counts))
	for id := range counts {
		creatorIDs = append(creatorIDs, id)
	}

	creators, err := s.store.Users().GetByIDs(ctx, creatorIDs)
	if err != nil {
		return 0, fmt.Errorf("get creators: %w", err)
	}

	sent := 0
	for _, creator := range creators {
		if err := s.notifier.PendingDigest(ctx, creator, counts[creator.ID]); err != nil {
			s.logger.Error("Failed to send pending digest",
				zap.Int64("creator_id", creator.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	s.logger.Info("Pending digest sent",
		zap.Int("creators", len(creators)),
		zap.Int("sent", sent),
	)

	return sent, nil
}

// notifyCreator сообщает автору о новом запросе
func (s *AccessService) notifyCreator(ctx context.Context, creatorID int64, view *model.AccessView) {
	creator, err := s.store.Users().GetByID(ctx, creatorID)
	if err != nil || creator == nil {
		s.logger.Warn("Failed to load creator for notification",
			zap.Int64("creator_id", creatorID),
			zap.Error(err),
		)
		return
	}

	if err := s.notifier.AccessRequested(ctx, creator, view); err != nil {
		s.logger.Error("Failed to notify creator",
			zap.Int64("creator_id", creatorID),
			zap.Int64("permission_id", view.ID),
			zap.Error(err),
		)
	}
}

func validateText(field, value string) error {
	if utf8.RuneCountInString(value) > maxTextLen {
		return fmt.Errorf("%s longer than %d characters: %w", field, maxTextLen, model.ErrInvalidInput)
	}
	return nil
}

func nonNil(views []*model.AccessView) []*model.AccessView {
	if views == nil {
		return []*model.AccessView{}
	}
	return views
}
