package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"taskReminder/internal/clock"
	"taskReminder/internal/config"
	"taskReminder/internal/handlers"
	"taskReminder/internal/logger"
	"taskReminder/internal/middleware"
	"taskReminder/internal/notify"
	"taskReminder/internal/service"
	"taskReminder/internal/worker"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     *service.TaskStore
	service   *service.TaskService
	worker    *worker.NotificationWorker
	bus       *notify.Bus
	feed      *notify.Feed
	shutdowns []func(context.Context) error // выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(context.Context) error, 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.onShutdown(func(context.Context) error {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
		return nil
	})

	a.bus = notify.NewBus(a.config.Scheduler.EventBuffer)
	a.feed = notify.NewFeed(a.config.Scheduler.FeedSize)

	clk := clock.Real()
	store, closeStore, err := OpenStore(ctx, a.config, a.bus, clk)
	if err != nil {
		return err
	}
	a.onShutdown(func(context.Context) error {
		closeStore()
		return nil
	})

	a.store = store
	a.service = service.NewTaskService(a.store, a.bus, clk, a.config.Scheduler.PostponeMinutes)
	a.worker = worker.NewNotificationWorker(a.store, a.bus, clk, a.config.Scheduler.Interval)

	a.initRouter()
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("App: Инициализация завершена",
		zap.String("backend", a.config.Storage.Backend),
		zap.String("addr", a.server.Addr))
	return nil
}

func (a *App) initRouter() {
	a.router = chi.NewRouter()

	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logging)
	a.router.Use(middleware.RateLimit(a.config.Server.RateLimit))
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.Origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	handlers.NewTaskHandler(a.service, a.feed).Register(a.router)
}

// Handler нужен для тестов через httptest
func (a *App) Handler() http.Handler {
	return a.router
}

// Run загружает задачи и работает до отмены ctx или первой фатальной ошибки
func (a *App) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, a.shutdown())
	}()

	g, gctx := errgroup.WithContext(ctx)

	// лента должна читать шину до загрузки, иначе предупреждения упрутся в буфер
	g.Go(func() error {
		a.feed.Run(gctx, a.bus.Events())
		return nil
	})

	if err := a.store.Load(gctx); err != nil {
		// не стартуем поверх нечитаемых данных: первое же сохранение их перезапишет
		g.Go(func() error { return err })
		return g.Wait()
	}
	a.onShutdown(func(ctx context.Context) error {
		return a.store.Save(ctx)
	})

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP: Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("HTTP: Остановка сервера")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) onShutdown(fn func(context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.shutdowns[i](ctx))
	}
	a.shutdowns = nil
	return err
}
