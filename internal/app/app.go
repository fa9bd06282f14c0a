package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/cache"
	"github.com/Freeeeeet/video_access/internal/config"
	"github.com/Freeeeeet/video_access/internal/metrics"
	"github.com/Freeeeeet/video_access/internal/notify"
	"github.com/Freeeeeet/video_access/internal/ratelimit"
	"github.com/Freeeeeet/video_access/internal/repository"
	"github.com/Freeeeeet/video_access/internal/repository/memory"
	"github.com/Freeeeeet/video_access/internal/repository/postgres"
	"github.com/Freeeeeet/video_access/internal/service"
	"github.com/Freeeeeet/video_access/internal/tracing"
)

// App собирает ядро контроля доступа и его инфраструктуру
type App struct {
	Users  *service.UserService
	Videos *service.VideoService
	Access *service.AccessService
	Codes  *service.AccessCodeService

	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	cfg       *config.Config
	logger    *zap.Logger
	scheduler *Scheduler
	closers   []func()
}

// New создаёт зависимости по конфигурации. Вызывающий обязан вызвать Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	decisionCache, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := a.openNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: serviceName,
		JaegerURL:   cfg.JaegerURL,
		Environment: cfg.Environment,
		SampleRate:  cfg.TracingSampleRate,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shutdown tracer provider", zap.Error(err))
		}
	})

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewCollector(a.Registry)

	deps := service.Deps{
		Store:         store,
		Notifier:      notifier,
		Cache:         decisionCache,
		Metrics:       a.Metrics,
		Logger:        logger,
		RedeemLimiter: ratelimit.New(cfg.RedeemRatePerMinute, time.Minute, cfg.RedeemBurst, 10*time.Minute),
		CacheTTL:      cfg.DecisionCacheTTL,
	}

	a.Users = service.NewUserService(deps)
	a.Videos = service.NewVideoService(deps)
	a.Access = service.NewAccessService(deps)
	a.Codes = service.NewAccessCodeService(deps)

	a.scheduler = NewScheduler(a.Access, cfg.DigestInterval, a.Metrics.DigestsSent, logger)

	return a, nil
}

// openStore подключает PostgreSQL с миграциями или хранилище в памяти
func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.StorageDriver == config.StorageDriverMemory {
		a.logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}

	pool, err := pgxpool.New(ctx, a.cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, a.logger)
	if err != nil {
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		return nil, err
	}

	return postgres.NewStore(pool), nil
}

// openCache выбирает кэш решений. nil означает работу без кэша.
func (a *App) openCache(ctx context.Context) (service.DecisionCache, error) {
	switch a.cfg.CacheDriver {
	case config.CacheDriverMemory:
		c := cache.NewMemory(a.cfg.DecisionCacheTTL)
		a.closers = append(a.closers, c.Stop)
		return c, nil
	case config.CacheDriverRedis:
		client, err := cache.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.logger.Info("Connected to Redis", zap.String("address", a.cfg.RedisAddr))
		return cache.NewRedis(client), nil
	default:
		return nil, nil
	}
}

// openNotifier включает Telegram, если задан токен
func (a *App) openNotifier() (service.Notifier, error) {
	if a.cfg.TelegramToken == "" {
		a.logger.Info("TELEGRAM_TOKEN not set, notifications disabled")
		return notify.Noop{}, nil
	}

	b, err := bot.New(a.cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return notify.NewTelegram(b, a.logger), nil
}

// Run запускает фоновые задачи и сервер метрик, блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	if a.cfg.MetricsAddr == "" {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Serving metrics", zap.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
