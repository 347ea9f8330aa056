package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/auth"
)

var errInvalidPlayerID = errors.New("invalid playerId")

type sessionResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Token    string    `json:"token"`
}

// SessionHandler issues a player identity, or returns the one already carried by the request.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	playerID, token, err := s.resolveIdentity(r)
	if errors.Is(err, errInvalidPlayerID) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to issue session")
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	setAuthCookie(w, token)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sessionResponse{PlayerID: playerID, Token: token}); err != nil {
		s.log.WithError(err).Warn("failed to encode session response")
	}
}

// resolveIdentity finds the player behind a request: the auth cookie, then a token query
// parameter, then (if allowed) a raw playerId. Anything else gets a new identity.
// The returned token is always valid for the returned id.
func (s *Server) resolveIdentity(r *http.Request) (uuid.UUID, string, error) {
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		if id, err := auth.AuthenticateJWT(c.Value); err == nil {
			return id, c.Value, nil
		}
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		if id, err := auth.AuthenticateJWT(tok); err == nil {
			return id, tok, nil
		}
	}

	id := uuid.New()
	if s.opts.AllowRawPlayerID {
		if raw := r.URL.Query().Get("playerId"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				return uuid.Nil, "", fmt.Errorf("%w %q: %v", errInvalidPlayerID, raw, err)
			}
			id = parsed
		}
	}

	token, err := auth.CreateJWT(id)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create player token: %w", err)
	}
	return id, token, nil
}

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
}
