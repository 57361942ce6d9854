package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"QuantPulse/internal/arbiter"
	"QuantPulse/internal/handler/api"
	"QuantPulse/internal/usecase"
	pkgch "QuantPulse/pkg/clickhouse"
	"QuantPulse/pkg/config"
	xhttp "QuantPulse/pkg/http"
	pkgkafka "QuantPulse/pkg/kafka"
	applogger "QuantPulse/pkg/logger"
	"QuantPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.TickCollector
	queue      *queue.RedisQueue
	jobHandler *usecase.PipelineJobHandler
	arbiter    *arbiter.Arbiter
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaTicksHandler
	handler    *api.PipelineEchoHandler
	chClient   *pkgch.Client

	httpServer *xhttp.Server
	cron       *cron.Cron
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	collector *usecase.TickCollector,
	q *queue.RedisQueue,
	jobHandler *usecase.PipelineJobHandler,
	arb *arbiter.Arbiter,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	handler *api.PipelineEchoHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		logger:     lgr,
		collector:  collector,
		queue:      q,
		jobHandler: jobHandler,
		arbiter:    arb,
		consumer:   consumer,
		kh:         kh,
		handler:    handler,
		chClient:   chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// pipeline job workers
	a.queue.RegisterHandler(a.jobHandler)
	if err := a.queue.Start(); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}
	l.Info("job queue started", applogger.Int("workers", a.cfg.Queue.Workers))

	// arbitration cadence
	a.cron = cron.New()
	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", a.cfg.Scheduler.Cadence), func() {
		_ = a.arbiter.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("arbiter schedule: %w", err)
	}
	a.cron.Start()
	l.Info("arbiter scheduled", applogger.Duration("cadence_ms", a.cfg.Scheduler.Cadence))

	// quote feed
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()

	// brokered ticks, when configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// operational API
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	// stop the cadence loop and leave the low lane resumed
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	a.queue.ResumeLow()

	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.queue.Stop(shutdownCtx); err != nil {
		l.Warn("queue stop error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
