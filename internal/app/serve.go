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

	"github.com/TMG-AI/tara-dashboard/internal/cli"
	"github.com/TMG-AI/tara-dashboard/internal/httpapi"
	"github.com/TMG-AI/tara-dashboard/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	trimEvery := fs.Duration("trim-every", time.Hour, "Run retention on this interval (0 disables)")

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
	if *trimEvery < 0 {
		fmt.Fprintln(os.Stderr, "--trim-every must be >= 0")
		return 2
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer openCancel()

	rt, err := openServices(openCtx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if *trimEvery > 0 {
		go runTrimLoop(ctx, rt, *trimEvery)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Backend:  rt.backend,
		Timeline: rt.timeline,
		Ledger:   rt.ledger,
		Ingest:   rt.ingest,
		Resolver: rt.resolver,
		Metrics:  rt.metrics,
	}, logging.Component(rt.logger, "http"), httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AdminKey:        rt.cfg.AdminKey,
		WebhookSecret:   rt.cfg.WebhookSecret,
		DedupeLimit:     rt.cfg.DedupeScanLimit,
		Location:        rt.cfg.Location(),
	})

	if err := srv.Start(ctx); err != nil {
		rt.logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// runTrimLoop applies retention on a fixed interval until ctx ends. Ingestion
// already trims after every store; this covers quiet periods.
func runTrimLoop(ctx context.Context, rt *services, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := rt.trimmer.TrimNow(ctx)
			if err != nil {
				rt.logger.Error().Err(err).Msg("scheduled trim failed")
				continue
			}
			rt.metrics.RecordTrim(removed)
		}
	}
}
