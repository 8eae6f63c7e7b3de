// Command indexer runs one replica of the watchlist indexer: it loads
// settings, opens every backing store, and runs the election, scheduler,
// and upstream-propagation loops until a shutdown signal arrives.
//
// Grounded on the teacher's cmd/kcn/main.go: a package-level cli.App built
// in init(), flags collected ahead of app.Action, and a plain
// app.Run(os.Args) in main().
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"

	"github.com/barreleye-go/indexer/internal/app"
	"github.com/barreleye-go/indexer/internal/httpserver"
	"github.com/barreleye-go/indexer/internal/logging"
	"github.com/barreleye-go/indexer/internal/settings"
)

// Exit codes spec.md §6 names for the supervisor process.
const (
	exitOK = iota
	exitSignalHandlerFailure
	exitConfigInvalid
	exitExternalServiceUnavailable
)

// shutdownGrace bounds how long the HTTP listener waits for in-flight
// requests to drain once a shutdown signal arrives.
const shutdownGrace = 5 * time.Second

var cliApp = cli.NewApp()

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the klaywatch.toml settings file",
	}
	devLogFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "use a development (console, debug-level) logger instead of production JSON",
	}
)

func init() {
	cliApp.Name = "indexer"
	cliApp.Usage = "multi-chain watchlist indexer"
	cliApp.Flags = []cli.Flag{configFlag, devLogFlag}
	cliApp.Action = runIndexer
}

func main() {
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func runIndexer(ctx *cli.Context) error {
	cfg, err := settings.Load(ctx.String(configFlag.Name))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("config: %v", err), exitConfigInvalid)
	}

	log, err := logging.New(ctx.Bool(devLogFlag.Name))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("logging: %v", err), exitSignalHandlerFailure)
	}
	defer log.Sync()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutdown signal received", zap.Stringer("signal", sig))
		cancel()
	}()

	state, err := app.New(runCtx, cfg, log)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("app: %v", err), exitExternalServiceUnavailable)
	}

	var srv *httpserver.Server
	if cfg.Role.IsServer {
		addr := fmt.Sprintf("%s:%d", cfg.Server.IPv4, cfg.Server.Port)
		srv = httpserver.New(addr, state, log.Named("httpserver"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server exited", zap.Error(err))
			}
		}()
	}

	runErr := state.Run(runCtx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		return cli.NewExitError(fmt.Sprintf("indexer: %v", runErr), exitExternalServiceUnavailable)
	}
	return nil
}

func exitCodeFor(err error) int {
	if exitErr, ok := err.(*cli.ExitError); ok {
		return exitErr.ExitCode()
	}
	return exitExternalServiceUnavailable
}
