// Command lunactl talks to the Luna chat engine and the cleanup wizard from
// a terminal, without the HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/lovecleanup/internal/agent"
	"github.com/ashureev/lovecleanup/internal/config"
	"github.com/ashureev/lovecleanup/internal/provider"
	"github.com/ashureev/lovecleanup/internal/responder"
	"github.com/ashureev/lovecleanup/internal/session"
	"github.com/ashureev/lovecleanup/internal/stream"
)

var (
	// Global flags
	verbose bool
	offline bool
	seed    uint64
	timeout time.Duration

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "lunactl",
	Short: "Luna command line companion",
	Long: `lunactl runs the Luna conversation engine and the cleanup wizard
locally. Providers are read from the same environment as the server
(PROVIDERS_FILE and friends). Use --offline to answer only with the
built-in responder.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Skip remote providers and use only the local responder")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Seed for the local responder and scanner (0 = clock)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Provider initialization timeout")

	rootCmd.AddCommand(chatCmd, classifyCmd, scanCmd, confirmCmd, selfTestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine bundles what a chat command needs.
type engine struct {
	chain *provider.Chain
	svc   *agent.Service
}

func (e *engine) Close() {
	e.svc.Close()
}

// newEngine builds the provider chain the same way the server does. Offline
// mode, or a missing configuration, leaves only the local responder.
func newEngine(ctx context.Context) (*engine, error) {
	var gen *responder.Generator
	if seed != 0 {
		gen = responder.NewSeeded(seed)
	} else {
		gen = responder.New(nil)
	}

	limit, window := session.DefaultRequestLimit, session.DefaultWindow
	minDelay, maxDelay := time.Duration(0), time.Duration(0)
	var descriptors []provider.Descriptor
	attemptTimeout := provider.DefaultAttemptTimeout

	if !offline {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		descriptors, err = provider.Build(cfg.Providers, &http.Client{}, logger)
		if err != nil {
			return nil, fmt.Errorf("build providers: %w", err)
		}
		limit, window = cfg.Session.RequestLimit, cfg.Session.HistoryWindow
		minDelay, maxDelay = cfg.Stream.MinDelay, cfg.Stream.MaxDelay
		attemptTimeout = cfg.AttemptTimeout
	}

	chain := provider.NewChain(descriptors, provider.Options{
		AttemptTimeout: attemptTimeout,
		Fallback:       gen,
		Logger:         logger,
	})
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := chain.Init(initCtx); err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}

	svc := agent.NewService(
		chain,
		session.NewRegistry(limit, window),
		stream.New(minDelay, maxDelay, nil),
		nil,
		logger,
	)
	return &engine{chain: chain, svc: svc}, nil
}
