package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxhall/meetbot/internal/log"
	"github.com/voxhall/meetbot/pkg/archive"
	"github.com/voxhall/meetbot/pkg/conversation"
	"github.com/voxhall/meetbot/pkg/gateway"
	"github.com/voxhall/meetbot/pkg/llm"
	"github.com/voxhall/meetbot/pkg/schedule"
	"github.com/voxhall/meetbot/pkg/transcript"
	"github.com/voxhall/meetbot/pkg/web"
)

// Instructions is the fixed system prompt for the meeting assistant.
const Instructions = `You are a helpful meeting assistant participating in a live video call. You hear the meeting through its transcript and reply by speaking.

BEHAVIOR:
- Keep replies short and conversational - one or two sentences unless asked for detail
- Only respond when addressed or when you can clearly help; stay quiet otherwise by replying with an empty message
- Use your tools when they help answer a question - never invent data a tool could fetch
- Address people by name when the transcript names them

IMPORTANT:
- Your reply text is spoken aloud in the meeting, so write it as natural speech
- Never read out tool names, JSON, or markdown
- Never mention the transcript mechanism; you simply "hear" the meeting`

// shutdownTimeout bounds the farewell/leave compensation sequence.
const shutdownTimeout = 10 * time.Second

// App is the meeting session aggregate. It owns the gateway connection, the
// conversation store, the scheduler, the poller, and the optional archive
// and dashboard, with an explicit create/init/run/shutdown lifecycle.
type App struct {
	config    Config
	meetingID string

	gateway *gateway.Gateway
	model   *llm.Client
	store   *conversation.Store
	driver  *Driver
	sched   *schedule.Scheduler
	poller  *transcript.Poller

	archive   *archive.Store
	dashboard *web.Server

	shutdownOnce sync.Once
}

// New creates a meetbot application with the given configuration.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config:    cfg,
		meetingID: uuid.NewString(),
	}, nil
}

// Init connects to the meeting server, discovers tools, joins the meeting,
// and announces the bot. Failures here are fatal startup errors; the caller
// exits non-zero without attempting further cleanup.
func (a *App) Init(ctx context.Context) error {
	gw, err := gateway.Connect(ctx, a.config.MCPServerURL, a.config.BotName)
	if err != nil {
		return fmt.Errorf("meeting server: %w", err)
	}
	a.gateway = gw

	for _, required := range []string{gateway.ToolJoin, gateway.ToolSpeak, gateway.ToolLeave} {
		if !gw.HasTool(required) {
			return fmt.Errorf("meeting server is missing the %s tool", required)
		}
	}

	a.model = llm.New(llm.Config{
		BaseURL:     a.config.OpenAIBaseURL,
		APIKey:      a.config.OpenAIKey,
		Model:       a.config.Model,
		Temperature: a.config.Temperature,
	})

	a.store = conversation.NewStore(Instructions)
	a.driver = NewDriver(a.model, gw, gatewaySpeaker{gw}, a.store, gw.Tools(), a.config.MaxSteps, a.config.HistoryKeep)

	if a.config.ArchivePath != "" {
		arch, err := archive.Open(a.config.ArchivePath)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		a.archive = arch
		if err := arch.BeginMeeting(a.meetingID, a.config.MeetingURL, a.config.BotName); err != nil {
			log.Warn("archive begin failed", "error", err)
		}
	}

	if a.config.DashboardPort != "" {
		a.dashboard = web.NewServer(a.config.DashboardPort)
		a.dashboard.StartAsync()
		a.dashboard.UpdateState(func(s *web.State) {
			s.Connected = true
			s.MeetingURL = a.config.MeetingURL
			s.BotName = a.config.BotName
		})
	}

	a.driver.OnFinal = func(text string) {
		a.record("bot", text)
		a.updateDashboard(func(s *web.State) {
			s.LastBotMessage = text
		})
	}

	if _, err := gw.Call(ctx, gateway.ToolJoin, map[string]any{
		"meeting_url":      a.config.MeetingURL,
		"participant_name": a.config.BotName,
	}); err != nil {
		return fmt.Errorf("join meeting: %w", err)
	}
	log.Info("joined meeting", "url", a.config.MeetingURL, "name", a.config.BotName)
	a.updateDashboard(func(s *web.State) { s.InMeeting = true })

	greeting := fmt.Sprintf("Hi, I'm %s. Mention my name if you need me.", a.config.BotName)
	if _, err := gw.Call(ctx, gateway.ToolSpeak, map[string]any{"text": greeting}); err != nil {
		log.Warn("greeting failed", "error", err)
	}

	return nil
}

// Run wires the transcript poller to the scheduler and the scheduler to the
// tool-call driver, then blocks until the context is cancelled. Runtime
// failures are logged and the loop keeps going; the bot simply does not
// respond to that turn.
func (a *App) Run(ctx context.Context) error {
	policy := schedule.PolicyDebounce
	if a.config.Immediate {
		policy = schedule.PolicyImmediate
	}

	a.sched = schedule.New(policy, a.config.DebounceDelay, func(content string) {
		a.store.Append(conversation.User(content))
		a.record("user", content)
		a.updateDashboard(func(s *web.State) {
			s.LastUserMessage = content
			s.Cycles++
		})

		if err := a.driver.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("model cycle failed", "error", err)
		}
	})

	a.poller = transcript.NewPoller(
		transcriptSource{a.gateway, a.config.TranscriptURI},
		a.config.PollInterval,
		time.Now(),
		func(segments []transcript.Segment) {
			a.archiveSegments(segments)
			a.sched.Add(segments)
		},
	)

	log.Info("listening to meeting transcript",
		"resource", a.config.TranscriptURI,
		"poll_interval", a.config.PollInterval,
		"debounce", a.config.DebounceDelay,
		"immediate", a.config.Immediate,
	)

	a.poller.Run(ctx)
	return nil
}

// Shutdown runs the compensation sequence exactly once: cancel pending
// timers first so no stray flush fires mid-teardown, then say goodbye,
// leave the meeting, and close everything that was opened.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		log.Info("shutting down")

		if a.sched != nil {
			a.sched.Stop()
		}

		// The run context is already cancelled; the farewell gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.gateway != nil {
			if _, err := a.gateway.Call(ctx, gateway.ToolSpeak, map[string]any{
				"text": "I'm leaving the meeting now. Goodbye!",
			}); err != nil {
				log.Warn("farewell failed", "error", err)
			}
			if _, err := a.gateway.Call(ctx, gateway.ToolLeave, map[string]any{}); err != nil {
				log.Warn("leave meeting failed", "error", err)
			}
			if err := a.gateway.Close(); err != nil {
				log.Warn("gateway close failed", "error", err)
			}
		}

		if a.archive != nil {
			if err := a.archive.EndMeeting(a.meetingID); err != nil {
				log.Warn("archive end failed", "error", err)
			}
			if err := a.archive.Close(); err != nil {
				log.Warn("archive close failed", "error", err)
			}
		}

		if a.dashboard != nil {
			if err := a.dashboard.Shutdown(); err != nil {
				log.Warn("dashboard shutdown failed", "error", err)
			}
		}
	})
}

// record archives one exchange and mirrors it to the dashboard feed.
func (a *App) record(role, content string) {
	if a.archive != nil {
		if err := a.archive.SaveExchange(a.meetingID, role, content); err != nil {
			log.Warn("archive exchange failed", "error", err)
		}
	}
	if a.dashboard != nil {
		a.dashboard.AddConversation(role, content)
	}
}

func (a *App) archiveSegments(segments []transcript.Segment) {
	if a.archive == nil {
		return
	}
	for _, seg := range segments {
		if err := a.archive.SaveSegment(a.meetingID, seg); err != nil {
			log.Warn("archive segment failed", "error", err)
		}
	}
}

func (a *App) updateDashboard(update func(*web.State)) {
	if a.dashboard != nil {
		a.dashboard.UpdateState(update)
	}
}

// gatewaySpeaker forwards final text through the speak_text tool.
type gatewaySpeaker struct {
	caller gateway.Caller
}

func (g gatewaySpeaker) Speak(ctx context.Context, text string) error {
	_, err := g.caller.Call(ctx, gateway.ToolSpeak, map[string]any{"text": text})
	return err
}

// transcriptSource adapts the gateway's resource reader to the poller.
type transcriptSource struct {
	reader gateway.ResourceReader
	uri    string
}

func (s transcriptSource) Read(ctx context.Context) ([]byte, error) {
	return s.reader.ReadResource(ctx, s.uri)
}
