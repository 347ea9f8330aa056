// internal/historian/historian.go drains the action queue into Postgres and marks games
// abandoned once their action stream goes quiet.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/nines/internal/cache"
	"github.com/jason-s-yu/nines/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields raw queue entries. ok is false when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error)
}

// Sink persists what the historian collects.
type Sink interface {
	InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error)
}

// RedisSource pops from a Redis list with BLPOP.
type RedisSource struct {
	Client *redis.Client
	Queue  string
}

func (s RedisSource) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := s.Client.BLPop(ctx, timeout, s.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// PostgresSink writes through the database package.
type PostgresSink struct{}

func (PostgresSink) InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	return database.InsertGameActions(ctx, records)
}

func (PostgresSink) MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	return database.MarkGameAbandoned(ctx, gameID)
}

type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a game may go without actions before it is marked abandoned.
	Inactivity time.Duration
	SweepEvery time.Duration
	PopTimeout time.Duration
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.SweepEvery <= 0 {
		o.SweepEvery = time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
}

// Service batches action records from a Source into a Sink.
type Service struct {
	src  Source
	sink Sink
	opts Options
	log  logrus.FieldLogger

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.GameActionRecord

	now func() time.Time
}

func NewService(src Source, sink Sink, opts Options, logger logrus.FieldLogger) *Service {
	opts.defaults()
	return &Service{
		src:   src,
		sink:  sink,
		opts:  opts,
		log:   logger,
		batch: make([]cache.GameActionRecord, 0, opts.BatchSize),
		now:   time.Now,
	}
}

// Run blocks until ctx is canceled, then flushes whatever is still batched.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.readLoop(ctx) })
	eg.Go(func() error { return s.flushLoop(ctx) })
	eg.Go(func() error { return s.inactivityLoop(ctx) })
	err := eg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("historian stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, ok, err := s.src.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.WithError(err).Error("queue pop failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		rec, err := cache.DecodeGameAction(payload)
		if err != nil {
			s.log.WithError(err).Warn("dropping undecodable action")
			continue
		}
		s.Add(ctx, rec)
	}
}

// Add records activity for the game and batches rec, flushing when the batch is full.
func (s *Service) Add(ctx context.Context, rec cache.GameActionRecord) {
	switch rec.ActionType {
	case "game_end", "game_canceled":
		s.lastActivity.Delete(rec.GameID)
	default:
		s.lastActivity.Store(rec.GameID, s.now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. A failed batch is logged and dropped.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]cache.GameActionRecord, 0, s.opts.BatchSize)
	s.batchMu.Unlock()

	if err := s.sink.InsertGameActions(ctx, pending); err != nil {
		s.log.WithError(err).WithField("count", len(pending)).Error("failed to flush actions")
		return
	}
	s.log.WithField("count", len(pending)).Debug("flushed actions")
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep marks every game idle for longer than Inactivity as abandoned.
func (s *Service) Sweep(ctx context.Context) {
	now := s.now()
	s.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		// Pending actions for this game must land before the status flips.
		s.Flush(ctx)
		changed, err := s.sink.MarkGameAbandoned(ctx, gameID)
		if err != nil {
			s.log.WithError(err).WithField("game_id", gameID).Error("failed to mark game abandoned")
			return true
		}
		if changed {
			s.log.WithField("game_id", gameID).Info("marked game abandoned after inactivity")
		}
		s.lastActivity.Delete(gameID)
		return true
	})
}
