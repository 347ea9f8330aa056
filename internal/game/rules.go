// internal/game/rules.go
package game

import "github.com/jason-s-yu/nines/internal/models"

// WildRank is the weakest rank. Three of them form a wild triple that is always playable
// and goes to the side pile.
const WildRank = models.Rank9

// SameRank reports whether cards is non-empty and every card shares one rank.
func SameRank(cards []models.Card) bool {
	if len(cards) == 0 {
		return false
	}
	for _, c := range cards[1:] {
		if c.Rank != cards[0].Rank {
			return false
		}
	}
	return true
}

// IsWildTriple reports whether cards is exactly three cards of the wild rank.
func IsWildTriple(cards []models.Card) bool {
	return len(cards) == 3 && SameRank(cards) && cards[0].Rank == WildRank
}

// IsQuad reports whether cards is four cards of one rank.
func IsQuad(cards []models.Card) bool {
	return len(cards) == 4 && SameRank(cards)
}

// IsLegalPlay decides whether played may go on top of top. A nil top means the main pile is empty.
//
// Rules, first match wins:
//   - empty pile: any single, triple or quad of one rank
//   - three wild cards: always
//   - single: rank at least as strong as the top card
//   - triple: same rank as the top card
//   - quad: always
//
// Mixed ranks and any other size are never legal.
func IsLegalPlay(played []models.Card, top *models.Card) bool {
	if !SameRank(played) {
		return false
	}
	size := len(played)
	if size != 1 && size != 3 && size != 4 {
		return false
	}
	if top == nil {
		return true
	}
	if IsWildTriple(played) {
		return true
	}

	rank := played[0].Rank
	switch size {
	case 1:
		return rank.Strength() >= top.Rank.Strength()
	case 3:
		return rank == top.Rank
	default:
		return true
	}
}
