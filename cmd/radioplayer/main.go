// ABOUTME: Main entry point for the radio stream player
// ABOUTME: Loads config, wires the session, runs the control API and console
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/sync/errgroup"

	"github.com/harper/radio-player/internal/application/config"
	"github.com/harper/radio-player/internal/application/manager"
	"github.com/harper/radio-player/internal/infrastructure/http"
	"github.com/harper/radio-player/internal/infrastructure/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON}, nil)

	mgr, err := manager.NewFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Listen.Port > 0 {
		srv := newServer(cfg, mgr)
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("control api listening (try /status)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if readline.DefaultIsTerminal() {
		g.Go(func() error {
			defer stop()
			return runConsole(gctx, mgr, log)
		})
	}

	if err := mgr.Start(gctx); err != nil {
		stop()
		g.Wait()
		return fmt.Errorf("start player: %w", err)
	}

	<-gctx.Done()
	log.Info().Msg("shutting down...")

	err = g.Wait()

	if shutdownErr := mgr.Shutdown(context.Background()); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("shutdown player")
	}

	if err != nil {
		return err
	}

	log.Info().Msg("shutdown complete")
	return nil
}

func newServer(cfg *config.Config, mgr *manager.Manager) *nethttp.Server {
	return &nethttp.Server{
		Addr:              net.JoinHostPort(cfg.Listen.Host, fmt.Sprint(cfg.Listen.Port)),
		Handler:           http.NewMux(mgr),
		ReadHeaderTimeout: 5 * time.Second,
		// Commands wait out stream connects and switch settle delays.
		WriteTimeout: 60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}
}
