package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hatemosphere/pgrotate/internal/api"
	"github.com/hatemosphere/pgrotate/internal/audit"
	"github.com/hatemosphere/pgrotate/internal/auth"
	"github.com/hatemosphere/pgrotate/internal/backup"
	"github.com/hatemosphere/pgrotate/internal/config"
	"github.com/hatemosphere/pgrotate/internal/history"
	"github.com/hatemosphere/pgrotate/internal/logging"
	"github.com/hatemosphere/pgrotate/internal/metrics"
)

func main() {
	cfg := config.Parse()

	slog.SetDefault(slog.New(logging.New(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), os.Stdout, os.Stderr)))

	if !cfg.AuditLogs {
		audit.Enabled = false
	}

	ctx := context.Background()

	store, err := backup.NewS3Store(ctx, backup.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create S3 store: %v\n", err)
		os.Exit(1)
	}

	producer := backup.NewDumpProducer(backup.DumpConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		SSLMode:  cfg.DBSSLMode,
		Binary:   cfg.DumpBinary,
		Timeout:  cfg.DumpTimeout,
		WorkDir:  cfg.WorkDir,
		Compress: cfg.Compress,
		SkipPing: cfg.SkipPing,
	}, store)

	layout := backup.Layout{Environment: cfg.Environment, Extension: producer.Extension()}

	recorders := []backup.Recorder{metrics.Recorder{}}
	var hist *history.Store
	if cfg.HistoryDB != "" {
		hist, err = history.Open(cfg.HistoryDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open history database: %v\n", err)
			os.Exit(1)
		}
		defer hist.Close()
		recorders = append(recorders, hist)
		slog.Info("run history enabled", "path", cfg.HistoryDB)
	}
	// Pushing only makes sense for one-shot runs; daemons are scraped.
	if cfg.PushgatewayURL != "" && cfg.Interval == 0 {
		recorders = append(recorders, metrics.NewPusher(cfg.PushgatewayURL, "pgrotate"))
	}

	job := backup.NewJob(cfg.Tiers, store, producer, layout, backup.SystemClock, recorders...)

	slog.Info("pgrotate starting",
		"environment", cfg.Environment,
		"bucket", cfg.S3Bucket,
		"tiers", len(cfg.Tiers),
		"interval", cfg.Interval.String(),
	)

	if cfg.Interval == 0 {
		// Tier failures are reported in the logs; they never change the exit status.
		job.Run(ctx)
		return
	}

	if err := runDaemon(cfg, job, hist); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

// runDaemon runs the job on cfg.Interval until SIGINT or SIGTERM. SIGUSR1
// requests an immediate run.
func runDaemon(cfg *config.Config, job *backup.Job, hist *history.Store) error {
	validator, err := managementAuth(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := backup.NewScheduler(func(ctx context.Context) error {
		if failed := job.Run(ctx).Failed(); len(failed) > 0 {
			return fmt.Errorf("%d tier(s) failed", len(failed))
		}
		return nil
	}, cfg.Interval)
	sched.Trigger()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		usr1 := make(chan os.Signal, 1)
		signal.Notify(usr1, syscall.SIGUSR1)
		defer signal.Stop(usr1)
		for {
			select {
			case <-usr1:
				slog.Info("manual backup run requested")
				sched.Trigger()
			case <-gctx.Done():
				return nil
			}
		}
	})

	if cfg.MetricsAddr != "" {
		var opts []api.ServerOption
		if validator != nil {
			opts = append(opts, api.WithAuth(validator))
		}
		if hist != nil {
			opts = append(opts, api.WithHistory(hist))
		}
		mgmt := api.NewServer(cfg.Tiers, sched.Trigger, opts...)

		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mgmt.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("management server starting", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("management server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("shutting down")
	sched.Shutdown()
	return err
}

// managementAuth picks the validator guarding mutating management endpoints.
// A nil validator leaves them open.
func managementAuth(cfg *config.Config) (auth.Validator, error) {
	switch {
	case cfg.MetricsAddr == "":
		return nil, nil
	case cfg.APIJWTKey != "":
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			SigningKey: cfg.APIJWTKey,
			Issuer:     cfg.APIJWTIssuer,
			Audience:   cfg.APIJWTAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("create JWT authenticator: %w", err)
		}
		slog.Info("management API auth: jwt", "issuer", cfg.APIJWTIssuer, "audience", cfg.APIJWTAudience)
		return jwtAuth, nil
	case cfg.APIToken != "":
		slog.Info("management API auth: token")
		return auth.NewStaticToken(cfg.APIToken), nil
	default:
		slog.Warn("management API has no authentication configured")
		return nil, nil
	}
}
