// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/nines/internal/models"
)

// DeckSize is the number of cards in a full deck: 6 ranks x 4 suits.
const DeckSize = 24

// SeedCard starts the main pile and can never be drawn or stolen.
var SeedCard = models.Card{Rank: models.Rank9, Suit: models.Hearts}

// NewDeck returns the full deck in canonical suit-major order (all hearts 9..A, then diamonds, ...).
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			deck = append(deck, models.Card{Rank: rank, Suit: suit})
		}
	}
	return deck
}

// Shuffle returns a uniformly permuted copy of deck. rand.Shuffle is a Fisher-Yates pass.
func Shuffle(deck []models.Card, r *rand.Rand) []models.Card {
	out := make([]models.Card, len(deck))
	copy(out, deck)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Deal hands out cards round-robin, card i going to seat i%playerCount, until the deck is exhausted.
func Deal(deck []models.Card, playerCount int) [][]models.Card {
	hands := make([][]models.Card, playerCount)
	if playerCount <= 0 {
		return hands
	}
	for i := range hands {
		hands[i] = make([]models.Card, 0, len(deck)/playerCount+1)
	}
	for i, c := range deck {
		seat := i % playerCount
		hands[seat] = append(hands[seat], c)
	}
	return hands
}
