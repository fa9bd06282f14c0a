package service

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

// Notifier доставляет уведомления пользователям после фиксации транзакции
type Notifier interface {
	AccessRequested(ctx context.Context, creator *model.User, view *model.AccessView) error
	AccessChanged(ctx context.Context, viewer *model.User, view *model.AccessView, action model.AccessAction) error
	PendingDigest(ctx context.Context, creator *model.User, pending int) error
}

// DecisionCache хранит результаты HasAccess для пары видео/зритель
type DecisionCache interface {
	Get(ctx context.Context, videoID, viewerID int64) (allowed bool, found bool, err error)
	Set(ctx context.Context, videoID, viewerID int64, allowed bool, ttl time.Duration) error
	Invalidate(ctx context.Context, videoID int64, viewerIDs ...int64) error
}

// Recorder собирает метрики ядра доступа
type Recorder interface {
	Decision(allowed bool, reason string)
	Transition(action model.AccessAction)
	Redemption(outcome string)
	CodeCollision()
}

// Limiter ограничивает частоту действия по ключу
type Limiter interface {
	Allow(key string) bool
}

// Deps зависимости сервисов доступа. Store и Logger обязательны.
type Deps struct {
	Store    repository.Store
	Notifier Notifier
	Cache    DecisionCache
	Metrics  Recorder
	Logger   *zap.Logger

	// RedeemLimiter ограничивает попытки погашения кода одним зрителем
	RedeemLimiter Limiter

	// CacheTTL верхняя граница жизни закэшированного решения
	CacheTTL time.Duration

	Clock  func() time.Time
	Random io.Reader
}

type base struct {
	store    repository.Store
	notifier Notifier
	cache    DecisionCache
	metrics  Recorder
	limiter  Limiter
	logger   *zap.Logger
	cacheTTL time.Duration
	clock    func() time.Time
	idGen    func() uuid.UUID
	random   io.Reader
}

func newBase(d Deps) base {
	b := base{
		store:    d.Store,
		notifier: d.Notifier,
		cache:    d.Cache,
		metrics:  d.Metrics,
		limiter:  d.RedeemLimiter,
		logger:   d.Logger,
		cacheTTL: d.CacheTTL,
		clock:    d.Clock,
		idGen:    uuid.New,
		random:   d.Random,
	}
	if b.notifier == nil {
		b.notifier = noopNotifier{}
	}
	if b.metrics == nil {
		b.metrics = noopRecorder{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.random == nil {
		b.random = rand.Reader
	}
	if b.cacheTTL <= 0 {
		b.cacheTTL = 30 * time.Second
	}
	return b
}

// recordEvent пишет событие аудита в той же транзакции, что и изменение
func (b *base) recordEvent(ctx context.Context, tx repository.Store, event model.AccessEvent) error {
	event.ID = b.idGen()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.clock()
	}
	return tx.Events().Record(ctx, &event)
}

// permissionEvent собирает событие по записи доступа
func permissionEvent(p *model.AccessPermission, actorID int64, action model.AccessAction, message string, at time.Time) model.AccessEvent {
	permissionID := p.ID
	viewerID := p.ViewerID
	return model.AccessEvent{
		VideoID:      p.VideoID,
		ViewerID:     &viewerID,
		PermissionID: &permissionID,
		ActorID:      actorID,
		Action:       action,
		Message:      message,
		CreatedAt:    at,
	}
}

// invalidate сбрасывает закэшированные решения. Ошибка кэша не ломает операцию.
func (b *base) invalidate(ctx context.Context, videoID int64, viewerIDs ...int64) {
	if b.cache == nil || len(viewerIDs) == 0 {
		return
	}
	if err := b.cache.Invalidate(ctx, videoID, viewerIDs...); err != nil {
		b.logger.Warn("Failed to invalidate access decisions",
			zap.Int64("video_id", videoID),
			zap.Error(err),
		)
	}
}

// notifyViewer уведомляет зрителя об изменении доступа
func (b *base) notifyViewer(ctx context.Context, view *model.AccessView, action model.AccessAction) {
	viewer, err := b.store.Users().GetByID(ctx, view.ViewerID)
	if err != nil || viewer == nil {
		b.logger.Warn("Failed to load viewer for notification",
			zap.Int64("viewer_id", view.ViewerID),
			zap.Error(err),
		)
		return
	}

	if err := b.notifier.AccessChanged(ctx, viewer, view, action); err != nil {
		// Не возвращаем ошибку, т.к. изменение уже зафиксировано
		b.logger.Error("Failed to notify viewer",
			zap.Int64("viewer_id", view.ViewerID),
			zap.Int64("permission_id", view.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

type noopNotifier struct{}

func (noopNotifier) AccessRequested(context.Context, *model.User, *model.AccessView) error {
	return nil
}

func (noopNotifier) AccessChanged(context.Context, *model.User, *model.AccessView, model.AccessAction) error {
	return nil
}

func (noopNotifier) PendingDigest(context.Context, *model.User, int) error {
	return nil
}

type noopRecorder struct{}

func (noopRecorder) Decision(bool, string)         {}
func (noopRecorder) Transition(model.AccessAction) {}
func (noopRecorder) Redemption(string)             {}
func (noopRecorder) CodeCollision()                {}
