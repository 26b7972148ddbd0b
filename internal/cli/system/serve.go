package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/instance"
	"github.com/julianstephens/ididit/internal/server"
)

// ServeCmd runs the JSON API until interrupted.
type ServeCmd struct {
	Host string `help:"Listen host (overrides config)."`
	Port int    `help:"Listen port (overrides config)."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authSvc, err := ctx.Auth(sigCtx)
	if err != nil {
		return err
	}

	cfg := ctx.Config.Server
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}

	srv := server.New(ctx.Store, authSvc, server.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Timeout:          ctx.Timeout(),
		PurgeInterval:    cfg.PurgeInterval,
		ConfirmationMode: ctx.Config.Confirmation.Mode,
		Probability:      ctx.Config.Confirmation.Probability,
		Location:         ctx.Location,
		LockDir:          config.Dir(ctx.ConfigPath),
		Debug:            ctx.Config.Debug,
	})

	ctx.PerformAutomaticBackup(sigCtx)
	fmt.Printf("Serving ididit API on http://%s:%d/api/v1 (Ctrl+C to stop)\n", cfg.Host, cfg.Port)
	if err := srv.Run(sigCtx); err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			return fmt.Errorf("%w; see 'ididit status'", err)
		}
		return err
	}
	fmt.Println("Server stopped.")
	return nil
}

// StatusCmd reports whether a local API server is running.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	lock, err := instance.Find(config.Dir(ctx.ConfigPath))
	if errors.Is(err, instance.ErrNotRunning) {
		fmt.Println("ididit server is not running.")
		return nil
	}
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	health, err := instance.Probe(probeCtx, ctx.Config.Server.Host, lock)
	if err != nil {
		return fmt.Errorf("server pid %d holds the lock but does not answer: %w", lock.PID, err)
	}
	fmt.Printf("✓ ididit server %s running (pid %d, port %d, %d active session(s))\n",
		health.Version, lock.PID, lock.Port, health.Sessions)
	if health.Version != constants.Version {
		fmt.Printf("⚠ server version %s differs from this binary (%s)\n", health.Version, constants.Version)
	}
	return nil
}
