// Command nats3 runs the server: it loads configuration, connects to
// Postgres, NATS JetStream, and S3, wires the job runtime, and serves the
// HTTP façade until signaled to shut down. Grounded on the teacher's
// cmd/ddb-pitr/main.go wiring shape (flag parsing, AWS config, coordinator
// construction, run-to-completion) generalized to a long-running server with
// signal.NotifyContext-driven graceful shutdown (the same pattern the
// teacher's own coordinator.Run uses for its restore operation).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gurre/nats3/completer"
	"github.com/gurre/nats3/config"
	"github.com/gurre/nats3/coordinator"
	"github.com/gurre/nats3/httpapi"
	"github.com/gurre/nats3/metadata/postgres"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("nats3", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml or config.yaml (default "+config.DefaultPath+")")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logLevel := parseLogLevel(cfg.Log)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	if cfg.Postgres.Migrate {
		log.Info("running database migrations")
		if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	store, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer store.Close()

	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("acquiring jetstream context: %w", err)
	}
	adapter := stream.NewNATSAdapter(js)

	s3Client := newS3Client(ctx, cfg)
	objects := objstore.New(s3Client)

	m := metrics.New(prometheus.DefaultRegisterer)

	jobRegistry := registry.New(64, log)
	coord := coordinator.New(store, jobRegistry, adapter, objects, m, log)

	done := make(chan struct{})
	comp := completer.New(store, jobRegistry, log)
	go func() {
		comp.Run(ctx)
		close(done)
	}()

	for _, create := range cfg.StoreJobs {
		if _, err := coord.StartNewStoreJob(ctx, create); err != nil {
			log.Error("failed to start configured store job", "name", create.Name, "error", err)
		}
	}

	server := httpapi.NewServer(coord, store)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: server}

	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	coord.Wait()
	jobRegistry.CloseExits()
	<-done

	log.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newS3Client(ctx context.Context, cfg *config.Config) *s3.Client {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(cfg.S3.Access, cfg.S3.Secret, "")),
	)
	if err != nil {
		// LoadDefaultConfig only fails on malformed shared config files on
		// disk; with static credentials and an explicit region supplied,
		// that cannot happen here.
		panic(err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})
}
