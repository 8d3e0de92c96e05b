// Package web provides a real-time status dashboard for a running meetbot
// session: current state, recent conversation, and a live event feed.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/voxhall/meetbot/internal/log"
	"github.com/voxhall/meetbot/pkg/hub"
)

// State is the session snapshot served to the dashboard.
type State struct {
	Connected       bool   `json:"connected"`
	InMeeting       bool   `json:"in_meeting"`
	MeetingURL      string `json:"meeting_url"`
	BotName         string `json:"bot_name"`
	Cycles          int    `json:"cycles"`
	LastUserMessage string `json:"last_user_message"`
	LastBotMessage  string `json:"last_bot_message"`
}

// ConversationEntry is one exchange shown on the dashboard.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"` // user, bot, tool
	Message string `json:"message"`
}

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	port string

	state   State
	stateMu sync.RWMutex

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	events *hub.Hub
}

// NewServer creates a dashboard server on the given port.
func NewServer(port string) *Server {
	s := &Server{
		port:         port,
		conversation: make([]ConversationEntry, 0, 200),
		events:       hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "meetbot dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the server; blocks until shutdown.
func (s *Server) Start() error {
	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	go s.events.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server and the event hub.
func (s *Server) Shutdown() error {
	s.events.Stop()
	return s.app.Shutdown()
}

// UpdateState mutates the session snapshot and broadcasts it to clients.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.events.BroadcastJSON(event{Type: "state", State: &state})
}

// AddConversation records one exchange and broadcasts it.
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > 200 {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()

	s.events.BroadcastJSON(event{Type: "conversation", Entry: &entry})
}

// event is the websocket feed envelope.
type event struct {
	Type  string             `json:"type"`
	State *State             `json:"state,omitempty"`
	Entry *ConversationEntry `json:"entry,omitempty"`
}

// handleStatus returns the current session state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

// handleConversation returns the recent conversation buffer.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleEventsWS streams state and conversation events to a client.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	// Send current state first so the client renders immediately.
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()
	c.WriteJSON(event{Type: "state", State: &state})

	client := hub.NewClient(s.events, c)
	client.Run()
}
