// Chaichat is a terminal chat client for OpenAI, Google and Anthropic models.
// It loads a YAML configuration, opens a session on the configured model and
// runs a read-eval-print loop that streams responses as they arrive. Slash
// commands switch models, attach media, and run the freelance writing
// workflows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/chaichat/pkg/engine"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "chaichat.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	modelName := flag.String("model", "", "model to start with (overrides model in config)")
	verbose := flag.Bool("verbose", false, "log stream lifecycle to stderr and print session events")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *modelName, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path. If the file does not exist
// it is silently ignored so that .env files remain optional.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// run builds the engine from configPath, opens a session and enters the
// interactive loop.
func run(configPath, modelName string, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if modelName != "" {
		cfg.Model = modelName
	}

	eng, err := engine.New(cfg, engine.WithLogger(newLogger(verbose)))
	if err != nil {
		return err
	}

	sess, err := eng.NewSession()
	if err != nil {
		return err
	}

	r := newREPL(eng, sess, os.Stdin, os.Stdout, verbose)
	defer r.close()
	r.banner()

	return r.loop(ctx)
}
