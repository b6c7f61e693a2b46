// Package api serves a small local HTTP status endpoint for a running
// connector: connection health, subscriptions, scheduled jobs, and a
// websocket stream of live diagnostics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sipeed/onebot-go/pkg/bus"
	"github.com/sipeed/onebot-go/pkg/eventbus"
	"github.com/sipeed/onebot-go/pkg/logger"
	"github.com/sipeed/onebot-go/pkg/scheduler"
)

// Client is the view of a connection the status server reports on.
// *onebot.Client satisfies it.
type Client interface {
	URL() string
	Pending() int
	DroppedEvents() uint64
	Done() <-chan struct{}
	Err() error
	Registry() *eventbus.Registry
}

// Server is the HTTP status server.
type Server struct {
	addr        string
	client      Client
	cronService *scheduler.Service
	messageBus  *bus.MessageBus
	wsHub       *WSHub
	eventBridge *EventBridge
	startTime   time.Time
	server      *http.Server
}

// NewServer creates a status server. sched and mb may be nil.
func NewServer(addr string, client Client, sched *scheduler.Service, mb *bus.MessageBus) *Server {
	s := &Server{
		addr:        addr,
		client:      client,
		cronService: sched,
		messageBus:  mb,
		startTime:   time.Now(),
	}
	s.wsHub = NewWSHub(s.status)
	if mb != nil {
		s.eventBridge = NewEventBridge(mb, s.wsHub)
	}
	return s
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/subscriptions", s.handleSubscriptions)
	mux.HandleFunc("/api/cron/jobs", s.handleCronJobs)
	mux.HandleFunc("/api/cron/status", s.handleCronStatus)

	// WebSocket for live diagnostics
	mux.HandleFunc("/api/ws", s.wsHub.HandleWebSocket)

	return corsMiddleware(mux)
}

// Start begins listening on the configured address. Background loops stop
// when ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.InfoCF("api", "Status server starting", map[string]interface{}{
		"addr": s.addr,
	})

	s.runBackground(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (s *Server) runBackground(ctx context.Context) {
	go s.wsHub.Run(ctx)
	if s.eventBridge != nil {
		s.eventBridge.Run(ctx)
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// --- Middleware ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
				"error": "method not allowed",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAllowedOrigin checks if the origin is a trusted localhost address.
func isAllowedOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// --- Handlers ---

func (s *Server) connected() bool {
	select {
	case <-s.client.Done():
		return false
	default:
		return true
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.connected() {
		status, code = "disconnected", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() map[string]interface{} {
	uptime := time.Since(s.startTime)

	conn := map[string]interface{}{
		"url":            s.client.URL(),
		"connected":      s.connected(),
		"pending":        s.client.Pending(),
		"dropped_events": s.client.DroppedEvents(),
	}
	if err := s.client.Err(); err != nil {
		conn["error"] = err.Error()
	}

	cronStatus := make(map[string]interface{})
	if s.cronService != nil {
		cronStatus = s.cronService.Status()
	}

	status := map[string]interface{}{
		"uptime_seconds": int(uptime.Seconds()),
		"uptime_human":   formatDuration(uptime),
		"connection":     conn,
		"subscriptions":  s.client.Registry().HandlerCount(),
		"cron":           cronStatus,
	}
	if s.messageBus != nil {
		status["bus_dropped"] = s.messageBus.Dropped()
	}
	return status
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	reg := s.client.Registry()
	topics := make(map[string]int)
	for _, topic := range reg.Topics() {
		topics[topic] = reg.ListenerCount(topic)
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleCronJobs(w http.ResponseWriter, r *http.Request) {
	if s.cronService == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}

	jobs := s.cronService.ListJobs(true)
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleCronStatus(w http.ResponseWriter, r *http.Request) {
	if s.cronService == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.cronService.Status())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
