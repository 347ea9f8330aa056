// internal/handlers/gateway.go
package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/sirupsen/logrus"
)

// outBuffer is how many events a client may fall behind before it is dropped.
const outBuffer = 64

// Client is one live WebSocket connection. OutChan is drained by the write pump and is never
// closed; Cancel stops both pumps.
type Client struct {
	PlayerID uuid.UUID
	ConnID   uuid.UUID
	OutChan  chan game.GameEvent
	Cancel   context.CancelFunc
}

func NewClient(playerID uuid.UUID, cancel context.CancelFunc) *Client {
	return &Client{
		PlayerID: playerID,
		ConnID:   uuid.New(),
		OutChan:  make(chan game.GameEvent, outBuffer),
		Cancel:   cancel,
	}
}

// Gateway fans table events out to the clients attached to one table. It only enqueues,
// so it is safe to call while the table or game lock is held.
type Gateway struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	log     logrus.FieldLogger
}

func NewGateway(logger logrus.FieldLogger) *Gateway {
	return &Gateway{
		clients: make(map[uuid.UUID]*Client),
		log:     logger,
	}
}

// Register makes c the live client for its player. A previous client for the same player is
// canceled and returned.
func (g *Gateway) Register(c *Client) *Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.clients[c.PlayerID]
	g.clients[c.PlayerID] = c
	if old != nil && old != c {
		g.log.WithField("player_id", c.PlayerID).Info("replacing older connection")
		old.Cancel()
		return old
	}
	return nil
}

// Unregister removes c if it is still the live client and reports whether it was.
func (g *Gateway) Unregister(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.clients[c.PlayerID] != c {
		return false
	}
	delete(g.clients, c.PlayerID)
	return true
}

// Broadcast sends ev to every attached client.
func (g *Gateway) Broadcast(ev game.GameEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.clients {
		g.enqueue(c, ev)
	}
}

// SendTo sends ev to the live client of playerID, if any.
func (g *Gateway) SendTo(playerID uuid.UUID, ev game.GameEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[playerID]; ok {
		g.enqueue(c, ev)
	}
}

// Len is the number of attached clients.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// enqueue never blocks. A client whose buffer is full is canceled; it will get a fresh
// snapshot when it reconnects. Assumes g.mu is held.
func (g *Gateway) enqueue(c *Client, ev game.GameEvent) {
	select {
	case c.OutChan <- ev:
	default:
		g.log.WithFields(logrus.Fields{
			"player_id": c.PlayerID,
			"event":     ev.Type,
		}).Warn("client too slow, dropping connection")
		c.Cancel()
	}
}
