// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a command was rejected or a game was torn down.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindPrecondition: wrong turn, wrong phase, lobby full, duplicate join. State is unchanged.
	KindPrecondition
	// KindIllegalMove: the play validator refused the cards. State is unchanged.
	KindIllegalMove
	// KindFatal: the game cannot continue and has been canceled for everyone.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition_violation"
	case KindIllegalMove:
		return "illegal_move"
	case KindFatal:
		return "fatal_game_fault"
	default:
		return "unknown"
	}
}

var (
	ErrGameNotActive    = errors.New("no game in progress")
	ErrGameInProgress   = errors.New("a game is already in progress")
	ErrNotEnoughPlayers = errors.New("the lobby needs exactly three players to start")
	ErrNotInGame        = errors.New("you are not in this game")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrWrongPhase       = errors.New("that action is not allowed right now")
	ErrNoCards          = errors.New("no cards selected")
	ErrBadCard          = errors.New("unrecognized card")
	ErrCardsNotHeld     = errors.New("you don't have those cards")
	ErrIllegalPlay      = errors.New("invalid play")
	ErrNothingToDraw    = errors.New("not enough cards to draw")
	ErrUnknownAction    = errors.New("cannot perform that action")
	ErrNameRequired     = errors.New("player name is required")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotInLobby       = errors.New("you are not in the lobby")
	ErrUnknownCommand   = errors.New("unknown command")
)

// GameError carries an ErrorKind alongside the underlying sentinel.
type GameError struct {
	Kind ErrorKind
	Err  error
}

func (e *GameError) Error() string { return e.Err.Error() }

func (e *GameError) Unwrap() error { return e.Err }

func precondition(err error) error { return &GameError{Kind: KindPrecondition, Err: err} }

func illegalMove(err error) error { return &GameError{Kind: KindIllegalMove, Err: err} }

func fatal(format string, args ...interface{}) *GameError {
	return &GameError{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the ErrorKind of err, or KindUnknown if err is not a *GameError.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IsLobbyError reports whether err came from lobby membership rather than play.
func IsLobbyError(err error) bool {
	return errors.Is(err, ErrNameRequired) || errors.Is(err, ErrLobbyFull) ||
		errors.Is(err, ErrAlreadyJoined) || errors.Is(err, ErrNotInLobby)
}
