package devtools

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/filament-dev/filament/pkg/filament"
)

// EventKind labels a streamed engine event.
type EventKind string

const (
	EventTrack     EventKind = "track"
	EventTrigger   EventKind = "trigger"
	EventFlush     EventKind = "flush"
	EventEffectRun EventKind = "effect_run"
)

// Event is the wire format sent to inspector clients.
type Event struct {
	Kind         EventKind `json:"kind"`
	SourceID     uint64    `json:"sourceId,omitempty"`
	SubscriberID uint64    `json:"subscriberId,omitempty"`
	Op           string    `json:"op,omitempty"`
	Subscribers  int       `json:"subscribers,omitempty"`
	Jobs         int       `json:"jobs,omitempty"`
	DurationUS   int64     `json:"durationUs,omitempty"`
	Error        string    `json:"error,omitempty"`
	When         time.Time `json:"when"`
}

// Stats is the snapshot served by GET /stats.
type Stats struct {
	LiveLinks      int64  `json:"liveLinks"`
	Clients        int    `json:"clients"`
	Goroutines     int    `json:"goroutines"`
	HeapBytes      uint64 `json:"heapBytes"`
	HeapBytesHuman string `json:"heapBytesHuman"`
}

// Server streams live engine activity to WebSocket clients for
// inspection during development. It is not meant to face production
// traffic; the origin check accepts everything.
type Server struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	detach   func()
}

// NewServer creates a detached inspector server. Call Attach to start
// observing the engine.
func NewServer() *Server {
	return &Server{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dev tool, allow all origins
			},
		},
	}
}

// Attach registers the engine hooks that feed the event stream.
// Idempotent until Detach or Close.
func (s *Server) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detach != nil {
		return
	}

	removeTrack := filament.HookOnTrack(func(ev filament.TrackEvent) {
		s.broadcast(Event{
			Kind:         EventTrack,
			SourceID:     ev.SourceID,
			SubscriberID: ev.SubscriberID,
			Op:           ev.Op.String(),
			When:         time.Now(),
		})
	})
	removeTrigger := filament.HookOnTrigger(func(ev filament.TriggerEvent) {
		s.broadcast(Event{
			Kind:        EventTrigger,
			SourceID:    ev.SourceID,
			Op:          ev.Op.String(),
			Subscribers: ev.Subscribers,
			When:        time.Now(),
		})
	})
	removeFlush := filament.HookOnFlush(func(ev filament.FlushEvent) {
		s.broadcast(Event{
			Kind:       EventFlush,
			Jobs:       ev.Jobs,
			DurationUS: ev.Duration.Microseconds(),
			When:       ev.When,
		})
	})
	removeRun := filament.HookOnEffectRun(func(ev filament.EffectRunEvent) {
		e := Event{
			Kind:         EventEffectRun,
			SubscriberID: ev.SubscriberID,
			DurationUS:   ev.Duration.Microseconds(),
			When:         ev.When,
		}
		if ev.Err != nil {
			e.Error = ev.Err.Error()
		}
		s.broadcast(e)
	})

	s.detach = func() {
		removeTrack()
		removeTrigger()
		removeFlush()
		removeRun()
	}
}

// Detach removes the engine hooks but keeps client connections open.
func (s *Server) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
}

// Handler returns the inspector's HTTP surface:
//
//	GET /healthz  liveness probe
//	GET /stats    JSON snapshot of engine counters
//	GET /events   WebSocket event stream
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Get("/events", s.handleEvents)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		LiveLinks:      filament.LiveLinks(),
		Clients:        s.ClientCount(),
		Goroutines:     runtime.NumGoroutine(),
		HeapBytes:      mem.HeapAlloc,
		HeapBytesHuman: humanize.Bytes(mem.HeapAlloc),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// handleEvents upgrades to WebSocket and holds the connection until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// broadcast fans an event out to all connected clients, evicting any that
// fail to write.
func (s *Server) broadcast(ev Event) {
	s.mu.RLock()
	if len(s.clients) == 0 {
		s.mu.RUnlock()
		return
	}
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.mu.Lock()
			delete(s.clients, client)
			s.mu.Unlock()
			client.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close detaches from the engine and drops all client connections.
func (s *Server) Close() {
	s.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}
