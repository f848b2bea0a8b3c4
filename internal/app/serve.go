package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/httpapi"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/trigger"
)

// syncRunWriteMargin covers the store work around the synthesis call.
const syncRunWriteMargin = 5 * time.Minute

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	noScheduler := fs.Bool("no-scheduler", false, "Serve the API without the background fetch trigger")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	pool, err := connectPool(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize synthesis gateway: %v\n", err)
		return 1
	}
	orch, err := newOrchestrator(cfg, pool, gateway, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orchestrator: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if !*noScheduler {
		fetcher, err := newFetcher(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize fetcher: %v\n", err)
			return 1
		}
		scheduler := trigger.NewScheduler(orch, orch.State(), pool, fetcher, trigger.Options{
			Enabled:              cfg.FetchingEnabled,
			Interval:             cfg.FetchInterval,
			InitialDelay:         cfg.FetchInitialDelay,
			ScheduledLimit:       cfg.FetchScheduledLimit,
			StartupLimit:         cfg.FetchStartupLimit,
			Threshold:            cfg.SynthesisTriggerThreshold,
			OrchestrateOnStartup: cfg.OrchestrateOnStartup,
		}, logger)
		scheduler.Start(ctx)
		defer scheduler.Wait()
	}

	if cfg.AdminTokenHash == "" && !cfg.IsLocal() {
		logger.Warn().Msg("ADMIN_TOKEN_HASH is empty; admin endpoints are disabled")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Orchestrator: orch,
		Store:        pool,
		Breaker:      gateway,
		Gatherer:     orch.Metrics().Registry(),
		Logger:       logger,
	}, httpapi.Options{
		Host:                *host,
		Port:                *port,
		ReadTimeout:         *readTimeout,
		WriteTimeout:        *writeTimeout,
		ShutdownTimeout:     *shutdownTimeout,
		SyncRunWriteTimeout: cfg.SynthesisTimeout + syncRunWriteMargin,
		AdminTokenHash:      cfg.AdminTokenHash,
		AllowOpenAdmin:      cfg.IsLocal(),
		AdminRateLimit:      cfg.AdminRateLimit,
		CORSAllowedOrigins:  cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		cancel()
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	cancel()
	return 0
}
