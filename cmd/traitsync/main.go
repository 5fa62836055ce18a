package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/audienceops/traitsync/config"
	"github.com/audienceops/traitsync/pkg/contact"
	"github.com/audienceops/traitsync/pkg/events"
	"github.com/audienceops/traitsync/pkg/httpclient"
	"github.com/audienceops/traitsync/pkg/kafka"
	"github.com/audienceops/traitsync/pkg/middleware"
	"github.com/audienceops/traitsync/pkg/profile"
	"github.com/audienceops/traitsync/pkg/routes/health"
	syncroute "github.com/audienceops/traitsync/pkg/routes/sync"
	"github.com/audienceops/traitsync/pkg/startup"
	syncpipe "github.com/audienceops/traitsync/pkg/sync"
	"github.com/audienceops/traitsync/pkg/tracing"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.WithField("app", cfg.AppName).Info("Starting traitsync")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := startup.NewManager(logger, cfg.StartupMaxAttempts)

	if cfg.TracingEnabled {
		manager.Add(newTracingDependency(cfg))
	}

	httpClientCfg := httpclient.DefaultConfig()
	httpClientCfg.Timeout = cfg.UpstreamTimeout
	upstream := httpclient.NewClient(httpClientCfg, logger)

	profiles := profile.NewClient(upstream, cfg.ProfileBaseURL, cfg.ProfileSpaceID, cfg.ProfileAPIKey, logger)
	contacts := contact.NewClient(upstream, cfg.ContactBaseURL, cfg.ContactAPIKey, logger)
	orchestrator := syncpipe.NewOrchestrator(profiles, contacts, cfg.SyncedTraits, cfg.FetchConcurrency, logger)

	checker := health.NewChecker(version)
	checker.AddCheck("contact_store", health.Cached(30*time.Second, func(ctx context.Context) error {
		_, err := contacts.FetchFieldSchema(ctx)
		return err
	}))

	if cfg.KafkaConsumerEnabled {
		dep, err := newKafkaDependency(cfg, orchestrator, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to build kafka consumer")
			os.Exit(1)
		}
		manager.Add(dep)
	}

	manager.Add(newServerDependency(cfg, orchestrator, checker, logger))

	if err := manager.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := manager.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) ectologger.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// tracingDependency manages the otel tracer provider lifecycle.
type tracingDependency struct {
	cfg      *config.Config
	shutdown func(context.Context) error
}

func newTracingDependency(cfg *config.Config) *tracingDependency {
	return &tracingDependency{cfg: cfg}
}

func (d *tracingDependency) GetName() string     { return "tracing" }
func (d *tracingDependency) DependsOn() []string { return nil }

func (d *tracingDependency) Start(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: d.cfg.AppName,
		Endpoint:    d.cfg.OTLPEndpoint,
		Insecure:    d.cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	d.shutdown = shutdown
	return nil
}

func (d *tracingDependency) Stop(ctx context.Context) error {
	if d.shutdown == nil {
		return nil
	}
	return d.shutdown(ctx)
}

// kafkaDependency manages the consumer and its dead-letter producer.
type kafkaDependency struct {
	consumer *kafka.Consumer
	producer *kafka.Producer
	handler  kafka.EventHandler
}

func newKafkaDependency(cfg *config.Config, orchestrator *syncpipe.Orchestrator, logger ectologger.Logger) (*kafkaDependency, error) {
	producerCfg := kafka.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producerCfg.Topic = cfg.KafkaErrorTopic
	producer, err := kafka.NewProducer(producerCfg, logger)
	if err != nil {
		return nil, err
	}

	consumerCfg := kafka.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.KafkaBrokers
	consumerCfg.Topic = cfg.KafkaInputTopic
	consumerCfg.GroupID = cfg.KafkaConsumerGroup
	consumerCfg.MaxRetryAttempts = cfg.KafkaMaxRetryAttempts
	consumerCfg.RetryBackoff = cfg.KafkaRetryBackoff
	consumer, err := kafka.NewConsumer(consumerCfg, producer, logger)
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, ev *events.Event) error {
		_, err := orchestrator.ProcessIdentify(ctx, ev)
		return err
	}

	return &kafkaDependency{
		consumer: consumer,
		producer: producer,
		handler:  handler,
	}, nil
}

func (d *kafkaDependency) GetName() string     { return "kafka-consumer" }
func (d *kafkaDependency) DependsOn() []string { return nil }

func (d *kafkaDependency) Start(ctx context.Context) error {
	return d.consumer.Start(ctx, d.handler)
}

func (d *kafkaDependency) Stop(ctx context.Context) error {
	if err := d.consumer.Stop(); err != nil {
		return err
	}
	return d.producer.Close()
}

// serverDependency manages the echo HTTP server.
type serverDependency struct {
	cfg    *config.Config
	echo   *echo.Echo
	logger ectologger.Logger
}

func newServerDependency(cfg *config.Config, orchestrator *syncpipe.Orchestrator, checker *health.Checker, logger ectologger.Logger) *serverDependency {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Logger(logger))

	checker.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	syncGroup := e.Group("/v1/sync", middleware.SharedSecretAuth(logger, cfg.WebhookToken))
	syncroute.NewHandler(orchestrator).Register(syncGroup)

	return &serverDependency{cfg: cfg, echo: e, logger: logger}
}

func (d *serverDependency) GetName() string     { return "http-server" }
func (d *serverDependency) DependsOn() []string { return nil }

func (d *serverDependency) Start(ctx context.Context) error {
	go func() {
		addr := fmt.Sprintf(":%d", d.cfg.Port)
		d.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := d.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			d.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

func (d *serverDependency) Stop(ctx context.Context) error {
	return d.echo.Shutdown(ctx)
}
