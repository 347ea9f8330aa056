package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/auth"
	"github.com/jason-s-yu/nines/internal/game"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireEvent is the client-side view of an outbound event.
type wireEvent struct {
	Type    string                   `json:"type"`
	Players []map[string]interface{} `json:"players"`
	State   *struct {
		Status        string `json:"status"`
		CurrentPlayer string `json:"currentPlayer"`
		Players       []struct {
			ID       string   `json:"id"`
			HandSize int      `json:"handSize"`
			Hand     []string `json:"hand"`
		} `json:"players"`
	} `json:"state"`
	Payload map[string]interface{} `json:"payload"`
}

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	require.NoError(t, auth.Init(0))
	logger, _ := test.NewNullLogger()

	store := game.NewTableStore(game.TableOptions{TurnDuration: time.Minute, Logger: logger})
	s := NewServer(store, ServerOptions{AllowRawPlayerID: true}, logger)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		store.CloseAll("test finished")
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, path string, protocols ...string) *websocket.Conn {
	t.Helper()
	if protocols == nil {
		protocols = []string{Subprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil skips events until one of type typ arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ game.GameEventType) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var ev wireEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == string(typ) {
			return ev
		}
	}
}

func TestSessionIssuesAndKeepsIdentity(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEqual(t, uuid.Nil, body.PlayerID)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, body.Token, cookie.Value)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/session", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()

	var again sessionResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&again))
	assert.Equal(t, body.PlayerID, again.PlayerID)

	resp3, err := http.Post(ts.URL+"/session?playerId=nope", "application/json", nil)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	s, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["players"])
	assert.Nil(t, body["gameState"])

	other := uuid.New()
	resp2, err := http.Get(ts.URL + "/health/" + other.String())
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	s.Store.GetOrCreate(other)
	resp3, err := http.Get(ts.URL + "/health/" + other.String())
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)

	resp4, err := http.Get(ts.URL + "/health/not-a-uuid")
	require.NoError(t, err)
	resp4.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp4.StatusCode)
}

func TestWebSocketRejectsMissingSubprotocol(t *testing.T) {
	_, ts := setupTestServer(t)
	c := dial(t, ts, "/ws", "something-else")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestWebSocketGameFlow(t *testing.T) {
	s, ts := setupTestServer(t)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	names := []string{"Ada", "Bo", "Cy"}

	conns := make([]*websocket.Conn, len(ids))
	for i, id := range ids {
		conns[i] = dial(t, ts, "/ws?playerId="+id.String())
		ev := readUntil(t, conns[i], game.EventSession)
		assert.Equal(t, id.String(), ev.Payload["playerId"])
		assert.NotEmpty(t, ev.Payload["token"])
	}

	for i, c := range conns {
		send(t, c, map[string]interface{}{"type": "join_lobby", "playerName": names[i]})
		ev := readUntil(t, c, game.EventPlayersUpdated)
		assert.Len(t, ev.Players, i+1)
	}

	send(t, conns[0], map[string]interface{}{"type": "ping"})
	readUntil(t, conns[0], game.EventPong)

	send(t, conns[1], map[string]interface{}{"type": "start_game"})
	var current string
	for i, c := range conns {
		ev := readUntil(t, c, game.EventGameStarted)
		require.NotNil(t, ev.State)
		assert.Equal(t, string(game.PhasePlaying), ev.State.Status)
		require.Len(t, ev.State.Players, 3)
		for _, p := range ev.State.Players {
			if p.ID == ids[i].String() {
				assert.Len(t, p.Hand, p.HandSize, "own hand is revealed")
			} else {
				assert.Empty(t, p.Hand, "other hands stay hidden")
			}
		}
		current = ev.State.CurrentPlayer
	}

	// Anyone but the current player is told it is not their turn, privately.
	for i, c := range conns {
		if ids[i].String() == current {
			continue
		}
		send(t, c, map[string]interface{}{"type": "draw_cards", "action": "draw3"})
		ev := readUntil(t, c, game.EventGameError)
		assert.Equal(t, "not your turn", ev.Payload["message"])
		break
	}

	send(t, conns[2], map[string]interface{}{"type": "request_state"})
	ev := readUntil(t, conns[2], game.EventCurrentState)
	require.NotNil(t, ev.State)
	assert.Equal(t, current, ev.State.CurrentPlayer)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st game.TableStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.NotNil(t, st.GameState)
	assert.Equal(t, 3, st.Players)
	assert.Equal(t, current, st.GameState.CurrentPlayer.String())

	// Dropping a participant that still holds cards cancels the game for everyone else.
	conns[0].Close(websocket.StatusNormalClosure, "bye")
	ev = readUntil(t, conns[1], game.EventGameCanceled)
	assert.Equal(t, "Ada disconnected", ev.Payload["reason"])
	assert.Eventually(t, func() bool { return s.Gateway(DefaultTableID).Len() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketReconnectReplacesConnection(t *testing.T) {
	s, ts := setupTestServer(t)
	id := uuid.New()

	first := dial(t, ts, "/ws?playerId="+id.String())
	readUntil(t, first, game.EventSession)
	send(t, first, map[string]interface{}{"type": "join_lobby", "playerName": "Ada"})
	readUntil(t, first, game.EventPlayersUpdated)

	second := dial(t, ts, "/ws?playerId="+id.String())
	readUntil(t, second, game.EventSession)
	ev := readUntil(t, second, game.EventPlayersUpdated)
	require.Len(t, ev.Players, 1, "reconnecting never adds a seat")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		if _, _, err := first.Read(ctx); err != nil {
			break
		}
	}

	tbl, ok := s.Store.GetTable(DefaultTableID)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return s.Gateway(DefaultTableID).Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	roster := tbl.Roster()
	require.Len(t, roster, 1)
	assert.True(t, roster[0].Connected, "closing the replaced socket does not mark the player gone")
}

func TestWebSocketInvalidJSON(t *testing.T) {
	_, ts := setupTestServer(t)
	c := dial(t, ts, "/ws")
	readUntil(t, c, game.EventSession)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	ev := readUntil(t, c, game.EventGameError)
	assert.Equal(t, "invalid JSON format", ev.Payload["message"])

	send(t, c, map[string]interface{}{"type": "dance"})
	ev = readUntil(t, c, game.EventGameError)
	assert.Equal(t, "unknown command", ev.Payload["message"])
}

func TestWebSocketReclaimsIdleTable(t *testing.T) {
	s, ts := setupTestServer(t)
	tableID := uuid.New()

	c := dial(t, ts, "/ws/"+tableID.String()+"?playerId="+uuid.NewString())
	readUntil(t, c, game.EventSession)
	send(t, c, map[string]interface{}{"type": "join_lobby", "playerName": "Ada"})
	readUntil(t, c, game.EventPlayersUpdated)

	_, ok := s.Store.GetTable(tableID)
	require.True(t, ok)
	require.NotNil(t, s.Gateway(tableID))

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool {
		_, ok := s.Store.GetTable(tableID)
		return !ok && s.Gateway(tableID) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketKeepsTableWithLiveClient(t *testing.T) {
	s, ts := setupTestServer(t)
	tableID := uuid.New()
	path := "/ws/" + tableID.String() + "?playerId="

	stays := dial(t, ts, path+uuid.NewString())
	readUntil(t, stays, game.EventSession)
	leaves := dial(t, ts, path+uuid.NewString())
	readUntil(t, leaves, game.EventSession)
	require.Eventually(t, func() bool { return s.Gateway(tableID).Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, leaves.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return s.Gateway(tableID).Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := s.Store.GetTable(tableID)
	assert.True(t, ok)

	// The default table outlives its last client.
	d := dial(t, ts, "/ws")
	readUntil(t, d, game.EventSession)
	require.NoError(t, d.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return s.Gateway(DefaultTableID).Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, ok = s.Store.GetTable(DefaultTableID)
	assert.True(t, ok)
	assert.NotNil(t, s.Gateway(DefaultTableID))
}
