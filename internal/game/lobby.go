// internal/game/lobby.go
package game

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxPlayers is both the lobby capacity and the exact number of players a game needs.
const DefaultMaxPlayers = 3

// LobbyMember is a named player waiting at a table. Join order becomes seat order.
type LobbyMember struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
	ConnID    uuid.UUID `json:"-"`
}

// Lobby is the ordered roster of a table. It is not safe for concurrent use; the owning Table locks it.
type Lobby struct {
	MaxPlayers int
	Members    []*LobbyMember
}

func NewLobby(maxPlayers int) *Lobby {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Lobby{MaxPlayers: maxPlayers}
}

// Join adds a member after trimming the name. Checks run in order: name, capacity, duplicate.
func (l *Lobby) Join(id, connID uuid.UUID, name string) (*LobbyMember, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, precondition(ErrNameRequired)
	}
	if l.Full() {
		return nil, precondition(ErrLobbyFull)
	}
	if l.Find(id) != nil {
		return nil, precondition(ErrAlreadyJoined)
	}
	m := &LobbyMember{ID: id, Name: name, Connected: true, ConnID: connID}
	l.Members = append(l.Members, m)
	return m, nil
}

// Leave removes id and returns the removed member, or nil if absent.
func (l *Lobby) Leave(id uuid.UUID) *LobbyMember {
	for i, m := range l.Members {
		if m.ID == id {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			return m
		}
	}
	return nil
}

func (l *Lobby) Clear() {
	l.Members = nil
}

func (l *Lobby) Find(id uuid.UUID) *LobbyMember {
	for _, m := range l.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Rebind points an existing member at a new connection. Reports whether id is a member.
func (l *Lobby) Rebind(id, connID uuid.UUID) bool {
	m := l.Find(id)
	if m == nil {
		return false
	}
	m.ConnID = connID
	m.Connected = true
	return true
}

// MarkDisconnected clears the connection of id if connID is still the bound one.
func (l *Lobby) MarkDisconnected(id, connID uuid.UUID) bool {
	m := l.Find(id)
	if m == nil || m.ConnID != connID {
		return false
	}
	m.Connected = false
	m.ConnID = uuid.Nil
	return true
}

// Roster returns a copy safe to hand to the broadcaster.
func (l *Lobby) Roster() []LobbyMember {
	out := make([]LobbyMember, 0, len(l.Members))
	for _, m := range l.Members {
		out = append(out, *m)
	}
	return out
}

func (l *Lobby) Size() int { return len(l.Members) }

func (l *Lobby) Full() bool { return len(l.Members) >= l.MaxPlayers }

// ConnectedCount is the number of members with a live connection.
func (l *Lobby) ConnectedCount() int {
	n := 0
	for _, m := range l.Members {
		if m.Connected {
			n++
		}
	}
	return n
}
