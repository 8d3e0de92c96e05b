// Package agent owns the meeting session: configuration, the join/announce/
// poll/leave lifecycle, and the tool-call driver that turns transcript
// batches into spoken replies.
package agent

import (
	"os"
	"time"
)

// Default configuration values.
const (
	DefaultBotName      = "MeetBot"
	DefaultMCPServerURL = "http://localhost:8000/mcp"
	DefaultTranscript   = "transcript://live"
)

// Config holds all configuration for the meetbot application.
// Flag parsing is done in cmd/meetbot/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// MeetingURL is the meeting to join. Required.
	MeetingURL string

	// MCPServerURL is the meeting server's MCP endpoint.
	MCPServerURL string

	// TranscriptURI is the live transcript resource on the MCP server.
	TranscriptURI string

	// BotName is the display name announced in the meeting.
	BotName string

	// Model endpoint configuration.
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
	Temperature   float64

	// Scheduling.
	PollInterval  time.Duration
	DebounceDelay time.Duration
	Immediate     bool // flush on first segment instead of debouncing

	// Cycle budgets.
	MaxSteps    int
	HistoryKeep int

	// ArchivePath enables the sqlite meeting record when non-empty.
	ArchivePath string

	// DashboardPort enables the status dashboard when non-empty.
	DashboardPort string
}

// DefaultConfig returns sensible defaults for meetbot configuration.
func DefaultConfig() Config {
	return Config{
		MCPServerURL:  DefaultMCPServerURL,
		TranscriptURI: DefaultTranscript,
		BotName:       DefaultBotName,
		Temperature:   0.7,
		PollInterval:  time.Second,
		DebounceDelay: 2 * time.Second,
		MaxSteps:      DefaultMaxSteps,
		HistoryKeep:   DefaultHistoryKeep,
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnvConfig() {
	if url := os.Getenv("MEETING_URL"); url != "" && c.MeetingURL == "" {
		c.MeetingURL = url
	}
	if url := os.Getenv("MCP_SERVER_URL"); url != "" {
		c.MCPServerURL = url
	}
	if uri := os.Getenv("TRANSCRIPT_URI"); uri != "" {
		c.TranscriptURI = uri
	}
	if name := os.Getenv("MEETBOT_NAME"); name != "" {
		c.BotName = name
	}
	if model := os.Getenv("MEETBOT_MODEL"); model != "" {
		c.Model = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAIKey = key
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		c.OpenAIBaseURL = base
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.MeetingURL == "" {
		return &ConfigError{Field: "MeetingURL", Message: "MEETING_URL environment variable is required"}
	}
	if c.OpenAIKey == "" {
		return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ConfigError{Field: "Temperature", Message: "temperature must be between 0 and 2"}
	}
	if c.MaxSteps < 0 {
		return &ConfigError{Field: "MaxSteps", Message: "max steps must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
