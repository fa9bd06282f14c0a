package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DigestSender рассылает авторам сводку ожидающих запросов
type DigestSender interface {
	NotifyPendingDigest(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	digest   DigestSender
	interval time.Duration
	onSent   func(sent int)
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик. onSent может быть nil.
func NewScheduler(digest DigestSender, interval time.Duration, onSent func(sent int), logger *zap.Logger) *Scheduler {
	return &Scheduler{
		digest:   digest,
		interval: interval,
		onSent:   onSent,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи. Нулевой интервал отключает сводку.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Pending digest disabled")
		close(s.done)
		return
	}

	s.logger.Info("Starting background scheduler", zap.Duration("digest_interval", s.interval))

	go s.runDigestTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.done
}

// runDigestTask периодически отправляет сводку ожидающих запросов
func (s *Scheduler) runDigestTask(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendDigest(ctx)
		case <-s.stopChan:
			s.logger.Info("Pending digest task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Pending digest task cancelled")
			return
		}
	}
}

// sendDigest выполняет одну рассылку
func (s *Scheduler) sendDigest(ctx context.Context) {
	sent, err := s.digest.NotifyPendingDigest(ctx)
	if err != nil {
		s.logger.Error("Failed to send pending digest", zap.Error(err))
		return
	}

	if s.onSent != nil {
		s.onSent(sent)
	}
}
