// internal/game/table.go
package game

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TableOptions configures every table created by a store.
type TableOptions struct {
	MaxPlayers   int
	TurnDuration time.Duration
	Logger       logrus.FieldLogger
}

// Table is one session: a lobby roster and at most one game.
//
// Lock order is Table.mu, then NinesGame.Mu. The turn clock takes only the game lock, so a table
// call and a timer fire are serialized on the game lock without deadlocking.
type Table struct {
	ID uuid.UUID

	mu    sync.Mutex
	lobby *Lobby
	game  *NinesGame
	opts  TableOptions
	log   logrus.FieldLogger

	// BroadcastFn sends to every connection attached to the table.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends to the live connection of one player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
}

func NewTable(id uuid.UUID, opts TableOptions) *Table {
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = DefaultMaxPlayers
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	return &Table{
		ID:    id,
		lobby: NewLobby(opts.MaxPlayers),
		opts:  opts,
		log:   opts.Logger.WithField("table_id", id),
	}
}

// Connect binds a fresh connection to playerID. A lobby member gets the roster, a game
// participant gets a current_state snapshot. Repeating it only rebinds again.
func (t *Table) Connect(playerID, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lobby.Rebind(playerID, connID) {
		t.log.WithField("player_id", playerID).Info("reconnected to lobby")
		t.sendTo(playerID, t.rosterEvent())
	}
	if g := t.activeGame(); g != nil && g.HandleReconnect(playerID, connID) {
		t.log.WithField("player_id", playerID).Info("reconnected to game")
	}
}

// Disconnect reports a closed connection. It is ignored when connID is no longer the bound one.
// A participant still holding cards cancels the game.
func (t *Table) Disconnect(playerID, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lobby.MarkDisconnected(playerID, connID) {
		t.broadcast(t.rosterEvent())
	}
	if g := t.activeGame(); g != nil {
		g.HandleDisconnect(playerID, connID)
	}
}

func (t *Table) JoinLobby(playerID, connID uuid.UUID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.lobby.Join(playerID, connID, name)
	if err != nil {
		return err
	}
	t.log.WithFields(logrus.Fields{"player_id": playerID, "name": m.Name}).Info("joined lobby")
	t.broadcast(t.rosterEvent())
	return nil
}

func (t *Table) LeaveLobby(playerID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.lobby.Leave(playerID)
	if m == nil {
		return precondition(ErrNotInLobby)
	}
	t.log.WithFields(logrus.Fields{"player_id": playerID, "name": m.Name}).Info("left lobby")
	t.broadcast(t.rosterEvent())
	return nil
}

// ClearLobby empties the roster. A running game is not affected.
func (t *Table) ClearLobby() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lobby.Clear()
	t.log.Info("lobby cleared")
	t.broadcast(t.rosterEvent())
}

// StartGame needs a full lobby and no game in play. Lobby order becomes seat order.
func (t *Table) StartGame() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeGame() != nil {
		return precondition(ErrGameInProgress)
	}
	if !t.lobby.Full() {
		return precondition(ErrNotEnoughPlayers)
	}

	g := NewNinesGame(t.ID, t.lobby.Roster(), t.opts.TurnDuration, t.opts.Logger)
	g.BroadcastFn = t.BroadcastFn
	g.BroadcastToPlayerFn = t.BroadcastToPlayerFn
	if err := g.Start(); err != nil {
		return err
	}
	t.game = g
	return nil
}

func (t *Table) PlayCards(playerID uuid.UUID, cmd Command) error {
	cards, err := cmd.PlayedCards()
	if err != nil {
		return err
	}
	return t.withGame(func(g *NinesGame) error { return g.Play(playerID, cards) })
}

func (t *Table) DrawCards(playerID uuid.UUID, action string) error {
	return t.withGame(func(g *NinesGame) error { return g.Draw(playerID, action) })
}

func (t *Table) Decide(playerID uuid.UUID, choice string) error {
	return t.withGame(func(g *NinesGame) error { return g.Decide(playerID, choice) })
}

func (t *Table) RequestState(playerID uuid.UUID) error {
	return t.withGame(func(g *NinesGame) error { return g.RequestState(playerID) })
}

func (t *Table) LeaveGame(playerID uuid.UUID) error {
	return t.withGame(func(g *NinesGame) error { return g.Leave(playerID) })
}

// Dispatch applies one client command. A rejection is sent back to playerID only and also returned.
func (t *Table) Dispatch(playerID, connID uuid.UUID, cmd Command) error {
	var err error
	switch cmd.Type {
	case CmdJoinLobby:
		err = t.JoinLobby(playerID, connID, cmd.PlayerName)
	case CmdLeaveLobby:
		err = t.LeaveLobby(playerID)
	case CmdStartGame:
		err = t.StartGame()
	case CmdPlayCard:
		err = t.PlayCards(playerID, cmd)
	case CmdDrawCards:
		err = t.DrawCards(playerID, cmd.Action)
	case CmdPlayerDecision:
		err = t.Decide(playerID, cmd.Decision)
	case CmdRequestState:
		err = t.RequestState(playerID)
	case CmdLeaveGame:
		err = t.LeaveGame(playerID)
	case CmdClearLobby:
		t.ClearLobby()
	case CmdPing:
		t.mu.Lock()
		t.sendTo(playerID, GameEvent{Type: EventPong})
		t.mu.Unlock()
	default:
		err = precondition(ErrUnknownCommand)
	}

	if err != nil {
		t.log.WithFields(logrus.Fields{
			"player_id": playerID,
			"command":   cmd.Type,
			"kind":      KindOf(err).String(),
		}).WithError(err).Debug("command rejected")
		t.mu.Lock()
		t.sendTo(playerID, ErrorEventFor(err))
		t.mu.Unlock()
	}
	return err
}

// TableStatus is the read-only view behind the health endpoint.
type TableStatus struct {
	Status    string      `json:"status"`
	TableID   uuid.UUID   `json:"tableId"`
	Players   int         `json:"players"`
	GameState *GameStatus `json:"gameState"`
}

func (t *Table) Status() TableStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := TableStatus{Status: "healthy", TableID: t.ID, Players: t.lobby.Size()}
	if t.gameInPlay() {
		gs := t.game.Status()
		st.GameState = &gs
	}
	return st
}

// Idle reports whether nothing holds the table: no game in play and no connected lobby member.
func (t *Table) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.gameInPlay() && t.lobby.ConnectedCount() == 0
}

// Roster returns a copy of the lobby members.
func (t *Table) Roster() []LobbyMember {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lobby.Roster()
}

// Game returns the game in play, or nil.
func (t *Table) Game() *NinesGame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeGame()
}

// Close cancels a game in play with reason.
func (t *Table) Close(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g := t.activeGame(); g != nil {
		g.Abort(reason)
	}
}

func (t *Table) withGame(fn func(g *NinesGame) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.activeGame()
	if g == nil {
		return precondition(ErrGameNotActive)
	}
	return fn(g)
}

// gameInPlay is the read-only form of activeGame. Assumes t.mu is held.
func (t *Table) gameInPlay() bool {
	return t.game != nil && !t.game.Over()
}

// activeGame drops a game that already ended or was canceled. Assumes t.mu is held.
func (t *Table) activeGame() *NinesGame {
	if t.game != nil && t.game.Over() {
		t.game = nil
	}
	return t.game
}

func (t *Table) rosterEvent() GameEvent {
	return GameEvent{Type: EventPlayersUpdated, Players: t.lobby.Roster()}
}

func (t *Table) broadcast(ev GameEvent) {
	if t.BroadcastFn != nil {
		t.BroadcastFn(ev)
	}
}

func (t *Table) sendTo(playerID uuid.UUID, ev GameEvent) {
	if t.BroadcastToPlayerFn != nil {
		t.BroadcastToPlayerFn(playerID, ev)
	}
}
