// internal/handlers/server.go
package handlers

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/jason-s-yu/nines/internal/middleware"
	"github.com/sirupsen/logrus"
)

// DefaultTableID is the table served at /ws and /health.
var DefaultTableID = uuid.Nil

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	// ClientOrigins are the browser origins allowed for CORS and the WebSocket handshake.
	ClientOrigins []string

	// AllowRawPlayerID accepts ?playerId=<uuid> without a token.
	AllowRawPlayerID bool
}

// Server owns the table store and one gateway per table.
type Server struct {
	Store *game.TableStore

	opts ServerOptions
	log  logrus.FieldLogger

	mu       sync.Mutex
	gateways map[uuid.UUID]*Gateway
}

// NewServer wires every table the store creates to its own gateway and creates the default table.
func NewServer(store *game.TableStore, opts ServerOptions, logger logrus.FieldLogger) *Server {
	s := &Server{
		Store:    store,
		opts:     opts,
		log:      logger,
		gateways: make(map[uuid.UUID]*Gateway),
	}
	store.OnCreate = s.attach
	store.OnDelete = s.detach
	store.GetOrCreate(DefaultTableID)
	return s
}

// attach runs under the store lock.
func (s *Server) attach(t *game.Table) {
	gw := NewGateway(s.log.WithField("table_id", t.ID))
	t.BroadcastFn = gw.Broadcast
	t.BroadcastToPlayerFn = gw.SendTo

	s.mu.Lock()
	s.gateways[t.ID] = gw
	s.mu.Unlock()
}

// detach runs under the store lock.
func (s *Server) detach(t *game.Table) {
	s.mu.Lock()
	delete(s.gateways, t.ID)
	s.mu.Unlock()
}

// reclaim drops a table nobody is attached to. The default table is never dropped.
func (s *Server) reclaim(tableID uuid.UUID) {
	if tableID == DefaultTableID {
		return
	}
	dropped := s.Store.Reclaim(tableID, func(t *game.Table) bool {
		gw := s.Gateway(t.ID)
		return (gw == nil || gw.Len() == 0) && t.Idle()
	})
	if dropped {
		s.log.WithField("table_id", tableID).Info("reclaimed idle table")
	}
}

// Gateway returns the gateway attached to tableID.
func (s *Server) Gateway(tableID uuid.UUID) *Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateways[tableID]
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.opts.ClientOrigins))

	r.Group(func(r chi.Router) {
		r.Use(middleware.LogMiddleware(s.log))
		r.Get("/health", s.HealthHandler)
		r.Get("/health/{tableID}", s.HealthHandler)
		r.Post("/session", s.SessionHandler)
	})

	r.Get("/ws", s.TableWSHandler)
	r.Get("/ws/{tableID}", s.TableWSHandler)
	return r
}

// tableIDParam reads {tableID}, falling back to the default table when the route has none.
func tableIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "tableID")
	if raw == "" {
		return DefaultTableID, nil
	}
	return uuid.Parse(raw)
}
