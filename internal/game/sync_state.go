// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/models"
)

// PlayerView is one seat as seen by a given recipient. Hand is only filled for the recipient.
type PlayerView struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Seat          int           `json:"seat"`
	HandSize      int           `json:"handSize"`
	Connected     bool          `json:"connected"`
	IsCurrentTurn bool          `json:"isCurrentTurn"`
	Finished      bool          `json:"finished"`
	Hand          []models.Card `json:"hand,omitempty"`
}

// GameSnapshot is the client-facing state. Piles are public, hands are not.
type GameSnapshot struct {
	GameID          uuid.UUID     `json:"gameId"`
	TableID         uuid.UUID     `json:"tableId"`
	Status          Phase         `json:"status"`
	SubPhase        SubPhase      `json:"subPhase,omitempty"`
	CurrentPlayerID uuid.UUID     `json:"currentPlayer"`
	Players         []PlayerView  `json:"players"`
	MainPile        []PileEntry   `json:"mainPile"`
	SidePile        []models.Card `json:"sidePile"`
	DrawPileSize    int           `json:"drawPileSize"`
	BurnedSize      int           `json:"burnedSize"`
	Turn            int           `json:"turn"`
	TurnEndsAt      int64         `json:"turnEndsAt,omitempty"` // epoch ms
	TurnRemainingMs int64         `json:"turnRemainingMs,omitempty"`
}

// Snapshot builds the view of the game for forUser. Takes the game lock.
func (g *NinesGame) Snapshot(forUser uuid.UUID) GameSnapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshot(forUser)
}

// snapshot assumes the lock is held. Slices are copied so the result can leave the lock.
func (g *NinesGame) snapshot(forUser uuid.UUID) GameSnapshot {
	snap := GameSnapshot{
		GameID:          g.ID,
		TableID:         g.TableID,
		Status:          g.Phase,
		CurrentPlayerID: g.CurrentPlayerID,
		MainPile:        append([]PileEntry{}, g.MainPile...),
		SidePile:        append([]models.Card{}, g.SidePile...),
		DrawPileSize:    len(g.DrawPile),
		BurnedSize:      len(g.Burned),
		Turn:            g.TurnID,
	}
	if g.Phase == PhasePlaying {
		snap.SubPhase = g.SubPhase
		if deadline := g.clock.Deadline(); !deadline.IsZero() {
			snap.TurnEndsAt = deadline.UnixMilli()
			snap.TurnRemainingMs = g.clock.Remaining().Milliseconds()
		}
	}

	view := func(p *models.Player, finished bool) PlayerView {
		pv := PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			Seat:          p.Seat,
			HandSize:      len(p.Hand),
			Connected:     p.Connected,
			IsCurrentTurn: !finished && p.ID == g.CurrentPlayerID,
			Finished:      finished,
		}
		if p.ID == forUser {
			pv.Hand = append([]models.Card{}, p.Hand...)
		}
		return pv
	}
	for _, p := range g.Players {
		snap.Players = append(snap.Players, view(p, false))
	}
	for _, p := range g.Finished {
		snap.Players = append(snap.Players, view(p, true))
	}
	return snap
}

// GameStatus is the read-only summary used by the health surface.
type GameStatus struct {
	Status        Phase     `json:"status"`
	Players       int       `json:"players"`
	CurrentPlayer uuid.UUID `json:"currentPlayer"`
}

// Status reports phase, active player count and current actor. Takes the game lock.
func (g *NinesGame) Status() GameStatus {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return GameStatus{
		Status:        g.Phase,
		Players:       len(g.Players),
		CurrentPlayer: g.CurrentPlayerID,
	}
}

// sendState sends typ with a personal snapshot to every participant still attached to the game.
// Assumes lock is held.
func (g *NinesGame) sendState(typ GameEventType) {
	for _, p := range g.participants() {
		snap := g.snapshot(p.ID)
		g.fireEventToPlayer(p.ID, GameEvent{Type: typ, State: &snap})
	}
}

// sendStateTo sends typ with a personal snapshot to a single participant. Assumes lock is held.
func (g *NinesGame) sendStateTo(playerID uuid.UUID, typ GameEventType) {
	snap := g.snapshot(playerID)
	g.fireEventToPlayer(playerID, GameEvent{Type: typ, State: &snap})
}
