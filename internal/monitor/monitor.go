// Package monitor serves the modem state over HTTP.
//
// Routes:
//
//	GET /health   liveness and transport status
//	GET /state    JSON snapshot of every state field
//	GET /ws       websocket feed: a snapshot, then every notification
//	GET /metrics  Prometheus metrics, when a gatherer is configured
package monitor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taylorsreid/govara/varaprotocol"
)

// Source is the part of *varaprotocol.Client the monitor reads.
type Source interface {
	State() varaprotocol.StateView
	IsConnected() bool
	Subscribe(handler func(varaprotocol.Notification)) func()
	SubscribeData(handler func(varaprotocol.Notification)) func()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves a modem's state over HTTP: /health, /state, a /ws feed
// that sends a snapshot followed by every notification and data chunk,
// and /metrics when a gatherer is configured.
type Server struct {
	source   Source
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	hub      *hub
	router   chi.Router

	mu     sync.Mutex
	server *http.Server
	unsubs []func()
}

// New builds a monitor for source. A nil gatherer disables /metrics.
func New(source Source, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		source:   source,
		gatherer: gatherer,
		logger:   logger.With("component", "monitor"),
		hub:      newHub(),
	}
	s.router = s.routes()
	s.unsubs = []func(){
		source.Subscribe(func(n varaprotocol.Notification) {
			s.hub.broadcast(Envelope{Type: envelopeNotification, Payload: n})
		}),
		source.SubscribeData(func(n varaprotocol.Notification) {
			s.hub.broadcast(Envelope{Type: envelopeData, Payload: n})
		}),
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/state", s.state)
	r.Get("/ws", s.websocket)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	return r
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil, errors.New("monitor already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server failed", "error", err)
		}
	}()
	s.logger.Info("monitor listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Close stops the server, drops websocket clients and unsubscribes from
// the source.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.hub.closeAll()
	if srv != nil {
		return srv.Close()
	}
	return nil
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Variant   string `json:"variant"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Connected: s.source.IsConnected(),
		Variant:   s.source.State().Variant().String(),
	})
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.State().Snapshot())
}

type clientMessage struct {
	Type string `json:"type"`
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newWSClient(uuid.NewString(), conn)
	s.hub.register(client)
	defer s.hub.unregister(client.id)
	s.logger.Debug("websocket client connected", "client_id", client.id, "remote", r.RemoteAddr)

	go client.writeLoop()

	if !client.queue(Envelope{Type: envelopeSnapshot, Payload: s.source.State().Snapshot()}) {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("websocket client gone", "client_id", client.id, "error", err)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			if !client.queue(Envelope{Type: envelopePong}) {
				return
			}
		case "snapshot":
			if !client.queue(Envelope{Type: envelopeSnapshot, Payload: s.source.State().Snapshot()}) {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
