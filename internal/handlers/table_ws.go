// internal/handlers/table_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/jason-s-yu/nines/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "nines"

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
	readLimit    = 4096

	// Inbound commands are throttled per connection.
	commandEvery = 100 * time.Millisecond
	commandBurst = 10
)

// TableWSHandler upgrades to a WebSocket bound to one table. The identity is resolved before
// the upgrade so a freshly minted token can still be set as a cookie. Every inbound packet
// becomes a table command; everything outbound goes through the table's gateway.
func (s *Server) TableWSHandler(w http.ResponseWriter, r *http.Request) {
	tableID, err := tableIDParam(r)
	if err != nil {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return
	}
	playerID, token, err := s.resolveIdentity(r)
	if errors.Is(err, errInvalidPlayerID) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to resolve player identity")
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	setAuthCookie(w, token)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.opts.ClientOrigins,
	})
	if err != nil {
		s.log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the nines subprotocol")
		return
	}
	c.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	client := NewClient(playerID, cancel)

	// Registering under the store lock keeps an idle-table reclaim from racing this attach.
	var gw *Gateway
	tbl := s.Store.Acquire(tableID, func(t *game.Table) {
		if gw = s.Gateway(t.ID); gw != nil {
			gw.Register(client)
		}
	})
	if gw == nil {
		c.Close(InvalidTableIDError, "table has no gateway")
		return
	}
	logger := s.log.WithFields(logrus.Fields{"table_id": tableID, "player_id": playerID})
	middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

	// Queued ahead of the snapshot Connect sends.
	gw.SendTo(playerID, game.GameEvent{
		Type:    game.EventSession,
		Payload: map[string]interface{}{"playerId": playerID, "token": token},
	})

	go writePump(ctx, c, client, logger)
	tbl.Connect(playerID, client.ConnID)

	readErr := readPump(ctx, c, tbl, client, logger)
	cancel()

	if gw.Unregister(client) {
		tbl.Disconnect(playerID, client.ConnID)
		s.reclaim(tableID)
	} else {
		c.Close(ReplacedError, "replaced by a newer connection")
	}
	middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
}

// readPump decodes packets into commands until the connection closes. It returns the read
// error unless the close was a normal one.
func readPump(ctx context.Context, c *websocket.Conn, tbl *game.Table, client *Client, logger logrus.FieldLogger) error {
	l := rate.NewLimiter(rate.Every(commandEvery), commandBurst)
	for {
		if err := l.Wait(ctx); err != nil {
			return nil
		}
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(data, &packet); err != nil {
			logger.WithError(err).Debug("invalid json")
			sendError(client, "invalid JSON format")
			continue
		}
		cmd, err := decodeCommand(packet)
		if err != nil {
			logger.WithError(err).Debug("malformed command")
			sendError(client, "malformed command")
			continue
		}

		// Rejections are already sent to this player by the table.
		_ = tbl.Dispatch(client.PlayerID, client.ConnID, cmd)
	}
}

// sendError writes straight to this client's queue, bypassing the gateway.
func sendError(client *Client, msg string) {
	ev := game.GameEvent{
		Type:    game.EventGameError,
		Payload: map[string]interface{}{"message": msg},
	}
	select {
	case client.OutChan <- ev:
	default:
	}
}

// writePump drains the client's queue onto the socket and pings periodically.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger logrus.FieldLogger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer client.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-client.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.WithError(err).Warnf("failed to marshal %s", ev.Type)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}
