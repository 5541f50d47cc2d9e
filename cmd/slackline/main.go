package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/slackline/internal/archive"
	"github.com/mattjoyce/slackline/internal/config"
	"github.com/mattjoyce/slackline/internal/events"
	"github.com/mattjoyce/slackline/internal/fetch"
	"github.com/mattjoyce/slackline/internal/lock"
	"github.com/mattjoyce/slackline/internal/log"
	"github.com/mattjoyce/slackline/internal/signature"
	"github.com/mattjoyce/slackline/internal/slack"
	"github.com/mattjoyce/slackline/internal/storage"
	"github.com/mattjoyce/slackline/internal/tui/watch"
	"github.com/mattjoyce/slackline/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := versionInfo{Version: version, Commit: gitCommit, BuildTime: buildDate}
	if *jsonOut {
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version info: %v\n", err)
			return 1
		}
		fmt.Println(string(b))
		return 0
	}

	fmt.Printf("slackline %s (%s, %s)\n", info.Version, info.Commit, info.BuildTime)
	return 0
}

func printUsage() {
	fmt.Println(`slackline - Slack event sink and archive gateway

Usage:
  slackline start   [--config PATH]      Run the event sink
  slackline watch   [--api URL] [--key K]  Live activity TUI
  slackline version [--json]             Show version
  slackline help                         Show this help

The sink receives Slack Events API deliveries, verifies each request's
v0 signature, and appends events to per-team/per-channel/per-day JSONL
files under the configured archive root. Shared files are fetched in the
background into {team}/FILES/.`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("slackline starting", "version", version, "config", *configPath)

	pidLock, err := lock.Acquire(filepath.Join(cfg.Archive.Root, "sink.pid"))
	if err != nil {
		logger.Error("failed to acquire archive lock", "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Ledger.Path)
	if err != nil {
		logger.Error("failed to open fetch ledger", "path", cfg.Ledger.Path, "error", err)
		return 1
	}
	defer db.Close()

	store, err := archive.NewStore(cfg.Archive.Root)
	if err != nil {
		logger.Error("failed to initialize archive store", "root", cfg.Archive.Root, "error", err)
		return 1
	}
	logger.Info("archive store ready", "root", store.Root())

	hub := events.NewHub(200)
	api := slack.NewClient(cfg.Slack.BotToken)
	pool := fetch.NewPool(api, store, fetch.NewLedger(db), hub,
		log.WithComponent("fetch"), cfg.Fetch.Workers, cfg.Fetch.QueueDepth)

	verifier := signature.New(cfg.Slack.SigningSecret, cfg.Slack.MaxSkew)
	server := webhook.New(webhook.Config{
		Listen: cfg.Server.Listen,
		APIKey: cfg.Server.APIKey,
	}, verifier, store, pool, hub, log.WithComponent("webhook"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		pool.Start(ctx)
	}()

	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("webhook server: %w", err)
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		return 0
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api", "http://127.0.0.1:8080", "Sink base URL")
	apiKey := fs.String("key", "", "API key for the observability endpoints")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	p := tea.NewProgram(watch.New(*apiURL, *apiKey))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch TUI failed: %v\n", err)
		return 1
	}
	return 0
}
