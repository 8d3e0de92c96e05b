// meetbot - a meeting assistant that joins a live video call through an MCP
// server, listens to the transcript, and speaks model replies back into the
// meeting.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxhall/meetbot/internal/log"
	"github.com/voxhall/meetbot/pkg/agent"
)

func main() {
	cfg := parseFlags()

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	app, err := agent.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() agent.Config {
	cfg := agent.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	meetingURL := flag.String("meeting-url", "", "Meeting URL to join (overrides MEETING_URL env var)")
	serverURL := flag.String("mcp-url", "", "Meeting MCP server URL (overrides MCP_SERVER_URL env var)")
	name := flag.String("name", "", "Bot display name (overrides MEETBOT_NAME env var)")
	model := flag.String("model", "", "Model identifier (overrides MEETBOT_MODEL env var)")
	immediate := flag.Bool("immediate", false, "Flush on first transcript segment instead of debouncing")
	debounce := flag.Duration("debounce", cfg.DebounceDelay, "Quiet period before a flush")
	poll := flag.Duration("poll", cfg.PollInterval, "Transcript poll interval")
	archivePath := flag.String("archive", "", "Path to the sqlite meeting archive (disabled when empty)")
	dashboardPort := flag.String("dashboard-port", "", "Status dashboard port (disabled when empty)")

	flag.Parse()

	cfg.Debug = *debug
	cfg.Immediate = *immediate
	cfg.DebounceDelay = *debounce
	cfg.PollInterval = *poll
	cfg.ArchivePath = *archivePath
	cfg.DashboardPort = *dashboardPort
	if *meetingURL != "" {
		cfg.MeetingURL = *meetingURL
	}

	// Environment variables
	cfg.LoadEnvConfig()
	if *serverURL != "" {
		cfg.MCPServerURL = *serverURL
	}
	if *name != "" {
		cfg.BotName = *name
	}
	if *model != "" {
		cfg.Model = *model
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return cfg
}
