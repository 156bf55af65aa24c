package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("atbridge"),
		kong.Description("Bridge a local socket to a cellular modem's AT interface and decode its responses."),
		kong.UsageOnError(),
	)

	err := run(&cli, func(app *App) error {
		return kctx.Run(app)
	})
	kctx.FatalIfErrorf(err)
}

// run resolves the configuration and executes one command. Everything it
// opens is released before it returns, so the caller may exit right after.
func run(cli *CLI, execute func(*App) error) error {
	config, err := LoadConfig(WithDefaults(), WithFile(cli.Config), WithEnv(), WithCLI(cli))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closer := newLogger(config)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{
		Context: ctx,
		Config:  config,
		Logger:  logger,
		Out:     os.Stdout,
	}

	if err := execute(app); err != nil {
		logger.Error("Command failed", "error", err)
		return err
	}
	return nil
}
