package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
	"github.com/Freeeeeet/video_access/internal/tracing"
)

// Исходы погашения кода для метрик
const (
	RedeemGranted         = "granted"
	RedeemUpgraded        = "upgraded"
	RedeemAlreadyApproved = "already_approved"
	RedeemOwner           = "owner"
	RedeemInvalid         = "invalid"
	RedeemUnknown         = "unknown"
	RedeemDisabled        = "disabled"
	RedeemRateLimited     = "rate_limited"
)

const autoApprovalMessage = "Automatic approval via access code"

// AccessCodeService выдает коды доступа к видео и превращает погашение кода в одобренный доступ
type AccessCodeService struct {
	base
}

func NewAccessCodeService(deps Deps) *AccessCodeService {
	return &AccessCodeService{base: newBase(deps)}
}

// GenerateAccessCode создает новый код для видео. Предыдущий код сразу перестает работать.
func (s *AccessCodeService) GenerateAccessCode(ctx context.Context, videoID, creatorID int64) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "access_code.generate",
		tracing.VideoIDKey.Int64(videoID),
		tracing.CreatorIDKey.Int64(creatorID),
	)
	var code string
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := requireCreatorForUpdate(ctx, tx.Videos(), videoID, creatorID); err != nil {
			return err
		}

		var err error
		code, err = assignUniqueCode(ctx, tx, videoID, s.random, s.metrics)
		if err != nil {
			return fmt.Errorf("assign access code: %w", err)
		}

		return s.recordEvent(ctx, tx, model.AccessEvent{
			VideoID: videoID,
			ActorID: creatorID,
			Action:  model.ActionCodeGenerated,
			Message: MaskCode(code),
		})
	})
	tracing.End(span, err)
	if err != nil {
		return "", err
	}

	s.metrics.Transition(model.ActionCodeGenerated)

	s.logger.Info("Access code generated",
		zap.Int64("video_id", videoID),
		zap.Int64("creator_id", creatorID),
		zap.String("code", MaskCode(code)),
	)

	return code, nil
}

// GetAccessCode возвращает действующий код видео
func (s *AccessCodeService) GetAccessCode(ctx context.Context, videoID, creatorID int64) (string, error) {
	video, err := requireCreator(ctx, s.store.Videos(), videoID, creatorID)
	if err != nil {
		return "", err
	}

	if !video.HasActiveCode() {
		return "", fmt.Errorf("access code not enabled for video %d: %w", videoID, model.ErrInvalidState)
	}

	return *video.AccessCode, nil
}

// DisableAccessCode выключает код. Значение сохраняется, но погасить его нельзя.
func (s *AccessCodeService) DisableAccessCode(ctx context.Context, videoID, creatorID int64) error {
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := requireCreatorForUpdate(ctx, tx.Videos(), videoID, creatorID); err != nil {
			return err
		}

		if err := tx.Videos().SetRequiresAccessCode(ctx, videoID, false); err != nil {
			return fmt.Errorf("disable access code: %w", err)
		}

		return s.recordEvent(ctx, tx, model.AccessEvent{
			VideoID: videoID,
			ActorID: creatorID,
			Action:  model.ActionCodeDisabled,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.Transition(model.ActionCodeDisabled)

	s.logger.Info("Access code disabled",
		zap.Int64("video_id", videoID),
		zap.Int64("creator_id", creatorID),
	)

	return nil
}

// RedeemAccessCode выдает зрителю одобренный доступ по коду, минуя запрос к автору.
// Повторное погашение при уже одобренной записи ничего не меняет.
func (s *AccessCodeService) RedeemAccessCode(ctx context.Context, rawCode string, viewerID int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "access_code.redeem", tracing.ViewerIDKey.Int64(viewerID))
	ok, err := s.redeem(ctx, rawCode, viewerID)
	tracing.End(span, err)
	return ok, err
}

func (s *AccessCodeService) redeem(ctx context.Context, rawCode string, viewerID int64) (bool, error) {
	// Перебор кодов одним зрителем ограничен
	if s.limiter != nil && !s.limiter.Allow(strconv.FormatInt(viewerID, 10)) {
		s.metrics.Redemption(RedeemRateLimited)
		return false, fmt.Errorf("too many redemption attempts: %w", model.ErrRateLimited)
	}

	code, err := NormalizeCode(rawCode)
	if err != nil {
		s.metrics.Redemption(RedeemInvalid)
		return false, err
	}

	var (
		videoID int64
		outcome string
	)
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		video, err := tx.Videos().GetByAccessCode(ctx, code)
		if err != nil {
			return fmt.Errorf("get video by code: %w", err)
		}

		if video == nil {
			outcome = RedeemUnknown
			return fmt.Errorf("access code %s: %w", MaskCode(code), model.ErrNotFound)
		}

		videoID = video.ID
		if !video.RequiresAccessCode {
			outcome = RedeemDisabled
			return fmt.Errorf("access code disabled for video %d: %w", video.ID, model.ErrInvalidState)
		}

		viewer, err := tx.Users().GetByID(ctx, viewerID)
		if err != nil {
			return fmt.Errorf("get viewer: %w", err)
		}

		if viewer == nil {
			return fmt.Errorf("user %d: %w", viewerID, model.ErrNotFound)
		}

		if video.IsOwnedBy(viewerID) {
			outcome = RedeemOwner
			return nil
		}

		outcome, err = s.grantByCode(ctx, tx, video.ID, viewerID, code)
		return err
	})
	if err != nil {
		if outcome != "" {
			s.metrics.Redemption(outcome)
		}
		return false, err
	}

	s.metrics.Redemption(outcome)
	if outcome == RedeemGranted || outcome == RedeemUpgraded {
		s.metrics.Transition(model.ActionRedeemed)
		s.invalidate(ctx, videoID, viewerID)
	}

	s.logger.Info("Access code redeemed",
		zap.Int64("video_id", videoID),
		zap.Int64("viewer_id", viewerID),
		zap.String("code", MaskCode(code)),
		zap.String("outcome", outcome),
	)

	return true, nil
}

// grantByCode создает одобренную запись или одобряет существующую
func (s *AccessCodeService) grantByCode(ctx context.Context, tx repository.Store, videoID, viewerID int64, code string) (string, error) {
	existing, err := tx.Permissions().GetByVideoAndViewer(ctx, videoID, viewerID)
	if err != nil {
		return "", fmt.Errorf("get permission: %w", err)
	}

	if existing == nil {
		now := s.clock()
		permission := &model.AccessPermission{
			VideoID:         videoID,
			ViewerID:        viewerID,
			Status:          model.AccessStatusApproved,
			RequestReason:   "Access code: " + code,
			ResponseMessage: autoApprovalMessage,
			RequestedAt:     now,
		}

		// Параллельный запрос мог успеть создать запись: тогда работаем с ней
		err = tx.InTx(ctx, func(sp repository.Store) error {
			return sp.Permissions().Create(ctx, permission)
		})
		switch {
		case err == nil:
			event := permissionEvent(permission, viewerID, model.ActionRedeemed, MaskCode(code), now)
			if err := s.recordEvent(ctx, tx, event); err != nil {
				return "", fmt.Errorf("record event: %w", err)
			}
			return RedeemGranted, nil
		case errors.Is(err, repository.ErrConflict):
			existing, err = tx.Permissions().GetByVideoAndViewer(ctx, videoID, viewerID)
			if err != nil {
				return "", fmt.Errorf("get permission: %w", err)
			}
			if existing == nil {
				return "", fmt.Errorf("permission vanished after conflict: %w", model.ErrConflict)
			}
		default:
			return "", fmt.Errorf("create permission: %w", err)
		}
	}

	if existing.IsApproved() {
		return RedeemAlreadyApproved, nil
	}

	existing.Status = model.AccessStatusApproved
	existing.ResponseMessage = autoApprovalMessage
	if err := tx.Permissions().Update(ctx, existing); err != nil {
		return "", fmt.Errorf("update permission: %w", err)
	}

	event := permissionEvent(existing, viewerID, model.ActionRedeemed, MaskCode(code), s.clock())
	if err := s.recordEvent(ctx, tx, event); err != nil {
		return "", fmt.Errorf("record event: %w", err)
	}

	return RedeemUpgraded, nil
}
