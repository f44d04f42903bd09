// Package engine runs the rating protocol on top of a ledger.Store: direct
// commits, the pending approval queue, undo, comments and the read API.
// Every mutation of a scope runs under that scope's lock.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"elo-ledger/server/elo"
	"elo-ledger/server/ledger"
)

type Options struct {
	Policy      elo.Policy
	StartRating float64
	Logger      *slog.Logger
	Now         func() time.Time
}

type Service struct {
	store  ledger.Store
	policy elo.Policy
	start  float64
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[ledger.Scope]*sync.Mutex

	events *broker
}

func New(store ledger.Store, opts Options) *Service {
	if opts.Policy.Base == nil {
		opts.Policy = elo.DefaultPolicy()
	}
	if opts.StartRating <= 0 {
		opts.StartRating = ledger.DefaultStartRating
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  store,
		policy: opts.Policy,
		start:  opts.StartRating,
		log:    opts.Logger,
		now:    opts.Now,
		locks:  map[ledger.Scope]*sync.Mutex{},
		events: newBroker(),
	}
}

func (s *Service) Policy() elo.Policy { return s.policy }

// scopeLock returns the mutex for scope. Entries are never evicted; the
// number of scopes is small and bounded by the teams on disk.
func (s *Service) scopeLock(scope ledger.Scope) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scope] = l
	}
	return l
}

type emitFunc func(game string, kind EventKind)

// locked runs fn while holding the scope lock. Events emitted by fn are
// published once the lock is released.
func (s *Service) locked(ctx context.Context, scope ledger.Scope, fn func(ctx context.Context, emit emitFunc) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var evs []Event
	emit := func(game string, kind EventKind) {
		evs = append(evs, Event{Scope: scope, Game: game, Kind: kind, At: s.now()})
	}
	err := func() error {
		l := s.scopeLock(scope)
		l.Lock()
		defer l.Unlock()
		// once the sequence starts it runs to completion
		return fn(context.WithoutCancel(ctx), emit)
	}()
	s.events.publish(evs...)
	return err
}

func (s *Service) logger(scope ledger.Scope) *slog.Logger {
	return s.log.With("scope", scope.String())
}

func (s *Service) timestamp() string { return ledger.FormatTimestamp(s.now()) }

// Subscribe returns a channel of mutation events. Slow readers miss events
// rather than block writers.
func (s *Service) Subscribe() <-chan Event { return s.events.subscribe() }

// Close ends every subscription.
func (s *Service) Close() { s.events.close() }
