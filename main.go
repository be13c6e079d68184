package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/marcboeker/go-duckdb/v2"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	var serverConfig ServerConfig
	envconfig.Process("", &serverConfig)
	configFile, err := os.ReadFile(*configPath)
	if err == nil {
		if err := yaml.Unmarshal(configFile, &serverConfig); err != nil {
			slog.Error("failed to unmarshal config file", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to read config file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.SetLogLoggerLevel(serverConfig.Server.LogLevel)

	if serverConfig.Sentry.Dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:                serverConfig.Sentry.Dsn,
			SampleRate:         serverConfig.Sentry.ErrorSampleRate,
			TracesSampleRate:   serverConfig.Sentry.TracesSampleRate,
			ProfilesSampleRate: serverConfig.Sentry.ProfilingSampleRate,
			Debug:              serverConfig.Sentry.Debug,
			Release:            Version,
		})
		if err != nil {
			slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := sql.Open("duckdb", serverConfig.Database.Path)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	setupCtx, setupCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := Migrate(db, setupCtx, false); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		setupCancel()
		os.Exit(1)
	}
	setupCancel()

	ctx := context.Background()

	ingestProducer, err := pubsub.OpenTopic(ctx, serverConfig.TaskQueue.Ingester.ProducerAddress)
	if err != nil {
		slog.Error("failed to open ingester producer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer ingestProducer.Shutdown(ctx)

	ingestConsumer, err := pubsub.OpenSubscription(ctx, serverConfig.TaskQueue.Ingester.ConsumerAddress)
	if err != nil {
		slog.Error("failed to open ingester consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer ingestConsumer.Shutdown(ctx)

	nodeStore := NewNodeStore(db)
	sampleStore := NewSampleStore(db)
	prober := NewProber(ProberOptions{})

	scheduler := NewScheduler(SchedulerOptions{
		NodeStore:        nodeStore,
		SampleStore:      sampleStore,
		Prober:           prober,
		IngestProducer:   ingestProducer,
		ProbeConcurrency: serverConfig.Scheduler.ProbeConcurrency,
	})

	telemetry := NewTelemetry(nodeStore, sampleStore,
		time.Duration(serverConfig.Dashboard.CacheTTLSeconds)*time.Second)

	service := NewService(ServiceOptions{
		NodeStore:   nodeStore,
		SampleStore: sampleStore,
		Scheduler:   scheduler,
		Telemetry:   telemetry,
		Prober:      prober,
	})

	server, err := NewServer(ServerOptions{
		Service:      service,
		ServerConfig: serverConfig,
	})
	if err != nil {
		slog.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := scheduler.Boot(ctx); err != nil {
		slog.Error("failed to boot scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ingester := NewIngesterWorker(sampleStore, ingestConsumer)
	go func() {
		if err := ingester.Start(); err != nil {
			slog.Error("ingester worker stopped", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	scheduler.StopAll()
	if err := ingester.Stop(); err != nil {
		slog.Error("failed to stop ingester worker", slog.String("error", err.Error()))
	}
}
