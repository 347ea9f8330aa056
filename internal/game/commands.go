// internal/game/commands.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/nines/internal/models"
)

// CommandType is the closed set of inbound messages a table understands.
type CommandType string

const (
	CmdJoinLobby      CommandType = "join_lobby"
	CmdLeaveLobby     CommandType = "leave_lobby"
	CmdStartGame      CommandType = "start_game"
	CmdPlayCard       CommandType = "play_card"
	CmdDrawCards      CommandType = "draw_cards"
	CmdPlayerDecision CommandType = "player_decision"
	CmdRequestState   CommandType = "request_state"
	CmdLeaveGame      CommandType = "leave_game"
	CmdClearLobby     CommandType = "clear_lobby"
	CmdPing           CommandType = "ping"
)

// Command is a decoded client message. Card accepts the single-card form of play_card,
// Cards the multi-card form; either may be sent.
type Command struct {
	Type       CommandType `mapstructure:"type"`
	PlayerName string      `mapstructure:"playerName"`
	Cards      []string    `mapstructure:"cards"`
	Card       []string    `mapstructure:"card"`
	Action     string      `mapstructure:"action"`
	Decision   string      `mapstructure:"decision"`
}

// PlayedCards parses whichever card field was sent.
func (c Command) PlayedCards() ([]models.Card, error) {
	raw := c.Cards
	if len(raw) == 0 {
		raw = c.Card
	}
	if len(raw) == 0 {
		return nil, precondition(ErrNoCards)
	}
	cards, err := models.ParseCards(raw)
	if err != nil {
		return nil, precondition(fmt.Errorf("%w: %v", ErrBadCard, err))
	}
	return cards, nil
}
