// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/cache"
	"github.com/jason-s-yu/nines/internal/database"
	"github.com/jason-s-yu/nines/internal/models"
	"github.com/sirupsen/logrus"
)

// Phase is the coarse lifecycle of a game. Ended and Canceled are both terminal.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhasePlaying  Phase = "playing"
	PhaseEnded    Phase = "ended"
	PhaseCanceled Phase = "canceled"
)

// SubPhase decides what the current player may do while the game is playing.
type SubPhase string

const (
	AwaitingAction   SubPhase = "awaiting_action"
	AwaitingDecision SubPhase = "awaiting_decision"
)

// Draw actions and post-quad decisions accepted from clients.
const (
	DrawThree        = "draw3"
	StealPile        = "stealPile"
	DecisionContinue = "continue"
	DecisionPass     = "pass"
)

// PileEntry is a card on the main pile. Fixed marks the seed, which draws and steals never take.
type PileEntry struct {
	Card  models.Card `json:"card"`
	Fixed bool        `json:"isFixed,omitempty"`
}

// NinesGame holds the entire state for a single game instance in memory.
//
// Every exported method takes Mu. Methods that reject a command return a *GameError and leave the
// state untouched; the lowercase helpers assume Mu is held.
type NinesGame struct {
	ID      uuid.UUID
	TableID uuid.UUID // references the table that spawned this game

	Phase    Phase
	SubPhase SubPhase

	// Players are the active seats in original seat order. A player who empties their hand
	// moves to Finished, in finishing order.
	Players  []*models.Player
	Finished []*models.Player

	MainPile []PileEntry
	SidePile []models.Card
	// DrawPile is the undealt remainder. Dealing consumes the whole deck, so it stays empty.
	DrawPile []models.Card
	// Burned holds main-pile cards removed by a quad clear. They never return to play.
	Burned []models.Card

	CurrentPlayerID uuid.UUID
	TurnID          int // increments each time the clock is armed

	LoserID      uuid.UUID
	CancelReason string
	StartedAt    time.Time

	clock       *TurnClock
	actionIndex int
	rng         *rand.Rand

	Mu  sync.Mutex
	Log logrus.FieldLogger

	// BroadcastFn is used to send events to all participants. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
}

// NewNinesGame seats members in the given order. The game is not dealt until Start.
func NewNinesGame(tableID uuid.UUID, members []LobbyMember, turnDuration time.Duration, logger logrus.FieldLogger) *NinesGame {
	id, _ := uuid.NewRandom()
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	g := &NinesGame{
		ID:      id,
		TableID: tableID,
		Phase:   PhaseStarting,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Log:     logger.WithFields(logrus.Fields{"game_id": id, "table_id": tableID}),
	}
	for i, m := range members {
		g.Players = append(g.Players, &models.Player{
			ID:        m.ID,
			Name:      m.Name,
			Seat:      i,
			Connected: m.Connected,
			ConnID:    m.ConnID,
		})
	}
	g.clock = NewTurnClock(turnDuration, g.handleClockExpiry)
	return g
}

// Start shuffles, deals, pins the seed card and hands the first turn to the seat after its holder.
func (g *NinesGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.startWithDeck(Shuffle(NewDeck(), g.rng))
}

func (g *NinesGame) startWithDeck(deck []models.Card) error {
	if g.Phase != PhaseStarting {
		return precondition(ErrGameInProgress)
	}
	if len(g.Players) < 2 {
		return precondition(ErrNotEnoughPlayers)
	}
	if err := validateDeck(deck); err != nil {
		return err
	}

	hands := Deal(deck, len(g.Players))
	seedSeat := -1
	for i, p := range g.Players {
		p.Hand = hands[i]
		if p.HasCard(SeedCard) {
			seedSeat = i
		}
	}
	g.Players[seedSeat].RemoveCards([]models.Card{SeedCard})

	g.MainPile = []PileEntry{{Card: SeedCard, Fixed: true}}
	g.SidePile = []models.Card{}
	g.DrawPile = []models.Card{}
	g.Burned = []models.Card{}
	g.Phase = PhasePlaying
	g.SubPhase = AwaitingAction
	g.CurrentPlayerID = g.Players[(seedSeat+1)%len(g.Players)].ID
	g.StartedAt = time.Now()

	seeded := g.Players[seedSeat]
	g.Log.WithFields(logrus.Fields{
		"players":     len(g.Players),
		"seed_holder": seeded.ID,
	}).Info("game started")
	g.logAction(uuid.Nil, "game_start", map[string]interface{}{
		"players":    g.playerIDs(),
		"seedHolder": seeded.ID,
	})
	g.persistStart()

	g.sendState(EventGameStarted)
	g.beginTurn()
	return nil
}

func validateDeck(deck []models.Card) error {
	if len(deck) != DeckSize {
		return fatal("deck has %d cards, want %d", len(deck), DeckSize)
	}
	seen := make(map[models.Card]bool, len(deck))
	for _, c := range deck {
		if !c.Rank.Valid() || !c.Suit.Valid() {
			return fatal("deck contains invalid card %q", c)
		}
		if seen[c] {
			return fatal("deck contains %s twice", c)
		}
		seen[c] = true
	}
	return nil
}

// Play puts cards from the current player's hand onto the main pile, or the side pile for a wild
// triple. Emptying the hand wins; a quad clears the main pile and asks the player to continue or pass.
func (g *NinesGame) Play(playerID uuid.UUID, cards []models.Card) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	idx, player, err := g.checkActor(playerID, AwaitingAction)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return precondition(ErrNoCards)
	}
	if !player.HoldsAll(cards) {
		return precondition(ErrCardsNotHeld)
	}
	if !IsLegalPlay(cards, g.topCard()) {
		return illegalMove(ErrIllegalPlay)
	}

	player.RemoveCards(cards)
	wild := IsWildTriple(cards)
	quad := IsQuad(cards)
	if wild {
		g.SidePile = append(g.SidePile, cards...)
	} else {
		for _, c := range cards {
			g.MainPile = append(g.MainPile, PileEntry{Card: c})
		}
	}
	if quad {
		for _, e := range g.MainPile {
			g.Burned = append(g.Burned, e.Card)
		}
		g.MainPile = []PileEntry{}
	}
	g.logAction(playerID, "play_cards", map[string]interface{}{
		"cards": cards,
		"wild":  wild,
		"quad":  quad,
	})

	if len(player.Hand) == 0 {
		g.handleWin(idx)
		return nil
	}

	if quad {
		// Same player keeps the turn and the running deadline until they decide.
		g.SubPhase = AwaitingDecision
		g.sendState(EventGameUpdated)
		g.fireEventToPlayer(playerID, GameEvent{Type: EventAskDecision, User: eventUser(player)})
		return nil
	}

	g.advance(idx)
	g.sendState(EventGameUpdated)
	g.beginTurn()
	return nil
}

// Draw takes cards back from the main pile: up to three with draw3, everything above the seed with
// stealPile. Either way the turn passes on.
func (g *NinesGame) Draw(playerID uuid.UUID, action string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	idx, player, err := g.checkActor(playerID, AwaitingAction)
	if err != nil {
		return err
	}

	limit := 0
	switch action {
	case DrawThree:
		limit = 3
	case StealPile:
	default:
		return precondition(ErrUnknownAction)
	}

	n := g.drawable()
	if n == 0 {
		return precondition(ErrNothingToDraw)
	}
	if limit > 0 && n > limit {
		n = limit
	}

	cut := len(g.MainPile) - n
	taken := make([]models.Card, 0, n)
	for _, e := range g.MainPile[cut:] {
		taken = append(taken, e.Card)
	}
	g.MainPile = append([]PileEntry{}, g.MainPile[:cut]...)
	player.Hand = append(player.Hand, taken...)

	g.logAction(playerID, "draw_cards", map[string]interface{}{
		"action": action,
		"count":  len(taken),
	})

	g.advance(idx)
	g.sendState(EventGameUpdated)
	g.beginTurn()
	return nil
}

// Decide resolves a quad clear. continue keeps the turn with a fresh deadline, pass moves on.
func (g *NinesGame) Decide(playerID uuid.UUID, choice string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	idx, _, err := g.checkActor(playerID, AwaitingDecision)
	if err != nil {
		return err
	}

	switch choice {
	case DecisionContinue:
		g.SubPhase = AwaitingAction
	case DecisionPass:
		g.advance(idx)
	default:
		return precondition(ErrUnknownAction)
	}

	g.logAction(playerID, "player_decision", map[string]interface{}{"decision": choice})
	g.sendState(EventGameUpdated)
	g.beginTurn()
	return nil
}

// Leave handles a voluntary exit. Leaving with cards cancels the game; a player who already won
// is simply dropped.
func (g *NinesGame) Leave(playerID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying {
		return precondition(ErrGameNotActive)
	}
	if p := g.activePlayer(playerID); p != nil && len(p.Hand) > 0 {
		g.logAction(playerID, "leave_game", map[string]interface{}{"handSize": len(p.Hand)})
		g.cancel(fmt.Sprintf("%s left the game", p.Name))
		return nil
	}
	for i, p := range g.Finished {
		if p.ID == playerID {
			g.Finished = append(g.Finished[:i], g.Finished[i+1:]...)
			g.logAction(playerID, "leave_game", map[string]interface{}{"handSize": 0})
			g.sendState(EventGameUpdated)
			return nil
		}
	}
	return precondition(ErrNotInGame)
}

// HandleDisconnect processes a dropped connection. connID must match the bound connection, so a
// late disconnect from a connection that was already replaced is ignored. A player holding cards
// cancels the game immediately. Reports whether the game knew the connection.
func (g *NinesGame) HandleDisconnect(playerID, connID uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying {
		return false
	}
	p := g.participant(playerID)
	if p == nil {
		return false
	}
	if p.ConnID != connID {
		g.Log.WithField("player_id", playerID).Debug("ignoring disconnect of a replaced connection")
		return false
	}

	p.Connected = false
	p.ConnID = uuid.Nil
	g.logAction(playerID, "player_disconnect", nil)

	if g.activePlayer(playerID) != nil && len(p.Hand) > 0 {
		g.cancel(fmt.Sprintf("%s disconnected", p.Name))
		return true
	}
	g.sendState(EventGameUpdated)
	return true
}

// HandleReconnect rebinds playerID to connID and replays the current state to that player only.
// Calling it twice in a row only rebinds twice. Reports whether the player is in this game.
func (g *NinesGame) HandleReconnect(playerID, connID uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying {
		return false
	}
	p := g.participant(playerID)
	if p == nil {
		return false
	}
	p.ConnID = connID
	p.Connected = true
	g.logAction(playerID, "player_reconnect", nil)

	g.sendStateTo(playerID, EventCurrentState)
	if g.SubPhase == AwaitingDecision && g.CurrentPlayerID == playerID {
		g.fireEventToPlayer(playerID, GameEvent{Type: EventAskDecision, User: eventUser(p)})
	}
	return true
}

// RequestState sends a current_state snapshot to playerID.
func (g *NinesGame) RequestState(playerID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying {
		return precondition(ErrGameNotActive)
	}
	if g.participant(playerID) == nil {
		return precondition(ErrNotInGame)
	}
	g.sendStateTo(playerID, EventCurrentState)
	return nil
}

// Over reports whether the game reached a terminal phase.
func (g *NinesGame) Over() bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.Phase == PhaseEnded || g.Phase == PhaseCanceled
}

// HasParticipant reports whether playerID is seated, active or finished.
func (g *NinesGame) HasParticipant(playerID uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.participant(playerID) != nil
}

// Abort cancels a game in play from outside, e.g. on server shutdown.
func (g *NinesGame) Abort(reason string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Phase == PhasePlaying {
		g.cancel(reason)
	}
}

// CheckInvariants verifies card conservation and that the current player is an active seat.
func (g *NinesGame) CheckInvariants() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase == PhaseStarting {
		return nil
	}

	seen := make(map[models.Card]bool, DeckSize)
	add := func(c models.Card) error {
		if seen[c] {
			return fmt.Errorf("card %s appears twice", c)
		}
		seen[c] = true
		return nil
	}
	for _, p := range g.participants() {
		for _, c := range p.Hand {
			if err := add(c); err != nil {
				return err
			}
		}
	}
	for _, e := range g.MainPile {
		if err := add(e.Card); err != nil {
			return err
		}
	}
	for _, pile := range [][]models.Card{g.SidePile, g.DrawPile, g.Burned} {
		for _, c := range pile {
			if err := add(c); err != nil {
				return err
			}
		}
	}
	if len(seen) != DeckSize {
		return fmt.Errorf("card conservation broken: %d cards accounted for, want %d", len(seen), DeckSize)
	}

	switch g.Phase {
	case PhasePlaying:
		if g.activePlayer(g.CurrentPlayerID) == nil {
			return fmt.Errorf("current player %s is not an active seat", g.CurrentPlayerID)
		}
		if len(g.Players) < 2 {
			return fmt.Errorf("game in play with %d active players", len(g.Players))
		}
	default:
		if g.CurrentPlayerID != uuid.Nil {
			return fmt.Errorf("finished game still has current player %s", g.CurrentPlayerID)
		}
	}
	return nil
}

// handleClockExpiry runs on the timer goroutine. A fire that lost the race against an action sees a
// different TurnID or actor and is dropped.
func (g *NinesGame) handleClockExpiry(playerID uuid.UUID, turnID int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying || g.TurnID != turnID || g.CurrentPlayerID != playerID {
		g.Log.WithFields(logrus.Fields{
			"player_id":    playerID,
			"timer_turn":   turnID,
			"current_turn": g.TurnID,
		}).Debug("stale turn timer ignored")
		return
	}
	p := g.activePlayer(playerID)
	if p == nil || len(p.Hand) == 0 {
		return
	}
	g.Log.WithField("player_id", playerID).Info("turn timed out")
	g.logAction(playerID, "player_timeout", map[string]interface{}{"turn": turnID})
	g.cancel(fmt.Sprintf("%s took too long", p.Name))
}

// handleWin moves the active player at idx to Finished. One survivor ends the game as the loser;
// otherwise the turn goes to whoever now sits at idx.
func (g *NinesGame) handleWin(idx int) {
	winner := g.Players[idx]
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)
	g.Finished = append(g.Finished, winner)

	g.Log.WithField("player_id", winner.ID).Info("player went out")
	g.logAction(winner.ID, string(EventPlayerWon), map[string]interface{}{"place": len(g.Finished)})
	g.fireEvent(GameEvent{
		Type: EventPlayerWon,
		User: eventUser(winner),
		Payload: map[string]interface{}{
			"playerId":   winner.ID,
			"playerName": winner.Name,
		},
	})

	if len(g.Players) == 1 {
		g.end(g.Players[0])
		return
	}

	g.CurrentPlayerID = g.Players[idx%len(g.Players)].ID
	g.SubPhase = AwaitingAction
	g.sendState(EventGameUpdated)
	g.beginTurn()
}

func (g *NinesGame) end(loser *models.Player) {
	g.clock.Stop()
	g.Phase = PhaseEnded
	g.SubPhase = ""
	g.CurrentPlayerID = uuid.Nil
	g.LoserID = loser.ID

	g.Log.WithField("loser_id", loser.ID).Info("game ended")
	g.logAction(loser.ID, "game_end", map[string]interface{}{"loserId": loser.ID})
	g.fireEvent(GameEvent{
		Type: EventGameEnded,
		User: eventUser(loser),
		Payload: map[string]interface{}{
			"loserId":   loser.ID,
			"loserName": loser.Name,
		},
	})
	g.persistOutcome(database.StatusCompleted)
}

func (g *NinesGame) cancel(reason string) {
	g.clock.Stop()
	g.Phase = PhaseCanceled
	g.SubPhase = ""
	g.CurrentPlayerID = uuid.Nil
	g.CancelReason = reason

	g.Log.WithField("reason", reason).Warn("game canceled")
	g.logAction(uuid.Nil, "game_canceled", map[string]interface{}{"reason": reason})
	g.fireEvent(GameEvent{
		Type:    EventGameCanceled,
		Payload: map[string]interface{}{"reason": reason},
	})
	g.persistOutcome(database.StatusCanceled)
}

// beginTurn arms the clock for the current player and announces the deadline.
func (g *NinesGame) beginTurn() {
	g.TurnID++
	deadline := g.clock.Arm(g.CurrentPlayerID, g.TurnID)

	payload := map[string]interface{}{
		"playerId":        g.CurrentPlayerID,
		"totalTurnTimeMs": g.clock.Duration().Milliseconds(),
		"turn":            g.TurnID,
	}
	if !deadline.IsZero() {
		payload["serverEndTime"] = deadline.UnixMilli()
	}
	var user *EventUser
	if p := g.activePlayer(g.CurrentPlayerID); p != nil {
		user = eventUser(p)
	}
	g.fireEvent(GameEvent{Type: EventTurnStarted, User: user, Payload: payload})
	g.logAction(g.CurrentPlayerID, string(EventTurnStarted), map[string]interface{}{"turn": g.TurnID})
}

// advance hands the turn to the seat after idx among the active players.
func (g *NinesGame) advance(idx int) {
	g.CurrentPlayerID = g.Players[(idx+1)%len(g.Players)].ID
	g.SubPhase = AwaitingAction
}

// checkActor enforces, in order: game in play, player seated, player's turn, expected sub-phase.
func (g *NinesGame) checkActor(playerID uuid.UUID, want SubPhase) (int, *models.Player, error) {
	if g.Phase != PhasePlaying {
		return -1, nil, precondition(ErrGameNotActive)
	}
	idx := g.activeIndex(playerID)
	if idx < 0 {
		return -1, nil, precondition(ErrNotInGame)
	}
	if playerID != g.CurrentPlayerID {
		return -1, nil, precondition(ErrNotYourTurn)
	}
	if g.SubPhase != want {
		return -1, nil, precondition(ErrWrongPhase)
	}
	return idx, g.Players[idx], nil
}

func (g *NinesGame) topCard() *models.Card {
	if len(g.MainPile) == 0 {
		return nil
	}
	top := g.MainPile[len(g.MainPile)-1].Card
	return &top
}

// drawable counts main-pile entries above the highest fixed entry.
func (g *NinesGame) drawable() int {
	n := 0
	for i := len(g.MainPile) - 1; i >= 0 && !g.MainPile[i].Fixed; i-- {
		n++
	}
	return n
}

func (g *NinesGame) activeIndex(playerID uuid.UUID) int {
	for i, p := range g.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

func (g *NinesGame) activePlayer(playerID uuid.UUID) *models.Player {
	if i := g.activeIndex(playerID); i >= 0 {
		return g.Players[i]
	}
	return nil
}

func (g *NinesGame) participant(playerID uuid.UUID) *models.Player {
	for _, p := range g.participants() {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *NinesGame) participants() []*models.Player {
	out := make([]*models.Player, 0, len(g.Players)+len(g.Finished))
	out = append(out, g.Players...)
	return append(out, g.Finished...)
}

func (g *NinesGame) playerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.Players))
	for _, p := range g.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func eventUser(p *models.Player) *EventUser {
	return &EventUser{ID: p.ID, Name: p.Name}
}

// fireEvent broadcasts an event to all participants.
func (g *NinesGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to one participant if they are connected.
func (g *NinesGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		return
	}
	if p := g.participant(playerID); p != nil && p.Connected {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// logAction sends the action details to the historian via Redis.
func (g *NinesGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if cache.Rdb == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		TableID:       g.TableID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			g.Log.WithError(err).WithField("action_index", rec.ActionIndex).Warn("failed to publish game action")
		}
	}(record)
}

func (g *NinesGame) persistStart() {
	if database.DB == nil {
		return
	}
	go func(gameID, tableID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.RecordGameStart(ctx, gameID, tableID); err != nil {
			g.Log.WithError(err).Warn("failed to record game start")
		}
	}(g.ID, g.TableID)
}

// persistOutcome writes the final row asynchronously. Finishers are placed in order; in a completed
// game the loser takes the last place.
func (g *NinesGame) persistOutcome(status string) {
	if database.DB == nil {
		return
	}
	outcome := database.GameOutcome{
		GameID:  g.ID,
		TableID: g.TableID,
		Status:  status,
		LoserID: g.LoserID,
		Reason:  g.CancelReason,
		EndedAt: time.Now(),
	}
	for i, p := range g.Finished {
		outcome.Seats = append(outcome.Seats, database.SeatResult{PlayerID: p.ID, Seat: p.Seat, Placement: i + 1})
	}
	for _, p := range g.Players {
		placement := 0
		if status == database.StatusCompleted {
			placement = len(g.Finished) + 1
		}
		outcome.Seats = append(outcome.Seats, database.SeatResult{PlayerID: p.ID, Seat: p.Seat, Placement: placement})
	}

	go func(o database.GameOutcome) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.RecordGameOutcome(ctx, o); err != nil {
			g.Log.WithError(err).Warn("failed to record game outcome")
		}
	}(outcome)
}
