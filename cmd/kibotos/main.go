package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/kibotos/internal/app"
	"github.com/semmidev/kibotos/internal/config"
	"github.com/semmidev/kibotos/internal/domain"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("kibotos", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	flags.BoolP("verbose", "v", false, "print detailed transfer output")
	flags.BoolP("transfer-only", "t", false, "transfer existing chunks without archiving")
	flags.BoolP("archive-only", "c", false, "archive without transferring")
	flags.BoolP("gzip", "z", false, "compress the archive stream with gzip")
	flags.StringP("source", "s", "~", "source directory to back up")
	flags.Int64P("chunk-size", "p", config.DefaultChunkSize, "chunk size in bytes")
	flags.String("host", "home_server", "destination host alias or address")
	flags.String("remote-dir", config.DefaultRemoteDir, "remote directory for chunks")
	flags.BoolP("yes", "y", false, "skip the confirmation prompt")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		// Configuration errors happen before any side effect and are safe
		// to show directly.
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		if _, ok := err.(*domain.ConfigurationError); ok {
			return err
		}
		// Details are in the audit log; keep the terminal message generic.
		return fmt.Errorf("an error occurred, check %s for details", cfg.App.LogFile)
	}
	return nil
}
