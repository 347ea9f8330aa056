// internal/game/events.go
package game

import (
	"github.com/google/uuid"
)

// GameEventType names an outbound message.
type GameEventType string

const (
	EventPlayersUpdated GameEventType = "players_updated" // lobby roster changed
	EventGameStarted    GameEventType = "game_started"
	EventGameUpdated    GameEventType = "game_updated"
	EventCurrentState   GameEventType = "current_state" // private snapshot on reconnect / request_state
	EventTurnStarted    GameEventType = "turn_started"
	EventAskDecision    GameEventType = "ask_decision" // private, after a quad clear
	EventPlayerWon      GameEventType = "player_won"
	EventGameEnded      GameEventType = "game_ended"
	EventGameCanceled   GameEventType = "game_canceled"
	EventGameError      GameEventType = "game_error"  // private
	EventLobbyError     GameEventType = "lobby_error" // private
	EventSession        GameEventType = "session"     // private, identity handed to a fresh connection
	EventPong           GameEventType = "pong"
)

// EventUser identifies a player inside an event.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// GameEvent is the single envelope for everything sent to clients.
type GameEvent struct {
	Type GameEventType `json:"type"`
	User *EventUser    `json:"user,omitempty"`

	// Players carries the lobby roster for players_updated.
	Players []LobbyMember `json:"players,omitempty"`

	// State is a per-recipient snapshot; only the recipient's own hand is revealed.
	State *GameSnapshot `json:"state,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

func errorEvent(typ GameEventType, err error) GameEvent {
	return GameEvent{
		Type:    typ,
		Payload: map[string]interface{}{"message": err.Error()},
	}
}

// ErrorEventFor picks lobby_error or game_error depending on where err came from.
func ErrorEventFor(err error) GameEvent {
	if IsLobbyError(err) {
		return errorEvent(EventLobbyError, err)
	}
	return errorEvent(EventGameError, err)
}
