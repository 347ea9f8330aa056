// internal/models/card.go
package models

import (
	"fmt"
	"strings"
)

// Rank is a card rank. Only 9 through A exist in this deck.
type Rank string

// Suit is one of the four French suit marks.
type Suit string

const (
	Rank9     Rank = "9"
	Rank10    Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankAce   Rank = "A"
)

const (
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
	Spades   Suit = "♠"
)

// Ranks lists every rank from weakest to strongest. A rank's strength is its index here.
var Ranks = []Rank{Rank9, Rank10, RankJack, RankQueen, RankKing, RankAce}

// Suits lists the suits in canonical deck order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Strength returns the rank's position in Ranks, or -1 for an unknown rank.
func (r Rank) Strength() int {
	for i, rank := range Ranks {
		if rank == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is part of the deck.
func (r Rank) Valid() bool { return r.Strength() >= 0 }

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	for _, suit := range Suits {
		if suit == s {
			return true
		}
	}
	return false
}

// Card is an immutable rank+suit value. Two cards are equal iff rank and suit match.
// On the wire a card is its text form, e.g. "10♠".
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// ParseCard reads the "<rank><suit>" form used by clients.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	for _, suit := range Suits {
		if rank, ok := strings.CutSuffix(s, string(suit)); ok {
			c := Card{Rank: Rank(strings.ToUpper(rank)), Suit: suit}
			if !c.Rank.Valid() {
				return Card{}, fmt.Errorf("unknown rank in card %q", s)
			}
			return c, nil
		}
	}
	return Card{}, fmt.Errorf("unknown suit in card %q", s)
}

// ParseCards parses a list of card strings, failing on the first bad entry.
func ParseCards(in []string) ([]Card, error) {
	out := make([]Card, 0, len(in))
	for _, s := range in {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParseCards is ParseCards for literals; it panics on bad input.
func MustParseCards(in ...string) []Card {
	out, err := ParseCards(in)
	if err != nil {
		panic(err)
	}
	return out
}

func (c Card) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
