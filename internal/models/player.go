package models

import (
	"github.com/google/uuid"
)

// Player is a seated participant of a running game.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Seat      int       `json:"seat"`
	Hand      []Card    `json:"hand"`
	Connected bool      `json:"connected"`

	// ConnID identifies the live connection currently bound to this player.
	// uuid.Nil while the player is disconnected.
	ConnID uuid.UUID `json:"-"`
}

// HasCard reports whether the hand contains c.
func (p *Player) HasCard(c Card) bool {
	for _, h := range p.Hand {
		if h == c {
			return true
		}
	}
	return false
}

// HoldsAll reports whether every card in cards is in the hand, each counted once.
func (p *Player) HoldsAll(cards []Card) bool {
	seen := make(map[Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] || !p.HasCard(c) {
			return false
		}
		seen[c] = true
	}
	return true
}

// RemoveCards drops every card in cards from the hand, keeping the order of what remains.
func (p *Player) RemoveCards(cards []Card) {
	drop := make(map[Card]bool, len(cards))
	for _, c := range cards {
		drop[c] = true
	}
	kept := p.Hand[:0:0]
	for _, c := range p.Hand {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	p.Hand = kept
}
