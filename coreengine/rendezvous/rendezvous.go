// Package rendezvous implements the rendezvous store: the place
// a blocked or deferred caller waits for the execution event answering its
// transaction_id, and the place an inbound execution event is posted when
// it arrives, however the two happen to interleave.
//
// The correlation idiom — register interest under an id, then either
// deliver into it or buffer the delivery until someone asks — is grounded
// on correlated_chan.go (gford1000/go-saferr) in the retrieval pack: a
// buffered, single-slot channel per id, with a background sweep dropping
// anything nobody claimed.
package rendezvous

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	coreerrors "github.com/Minecraftian14/RobotsMakingIcecream/coreengine/errors"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/observability"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/wire"
	"github.com/Minecraftian14/RobotsMakingIcecream/eventbus"
)

type waiter struct {
	ch        chan *wire.ExecutionEvent
	createdAt time.Time
}

// Store correlates outbound transaction ids with inbound execution events.
// The zero value is not usable; construct with New.
type Store struct {
	logger   rlog.Logger
	notifier eventbus.Bus

	mu      sync.Mutex
	pending map[int64]*waiter
	late    map[int64]lateDelivery

	nextTxnID int64

	sweepInterval time.Duration
	lateTTL       time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

type lateDelivery struct {
	event     *wire.ExecutionEvent
	deliverAt time.Time
}

// Config bounds how long a pending transaction waits before it is swept as
// timed out, and how long an unclaimed late delivery is retained.
type Config struct {
	SweepInterval time.Duration
	PendingTTL    time.Duration
	LateTTL       time.Duration
	Logger        rlog.Logger

	// Notifier, if set, receives a TransactionTimedOut event whenever a
	// pending wait expires without a matching post. Nil disables it.
	Notifier eventbus.Bus
}

// DefaultConfig matches the runtime facade's defaults: a five-second sweep
// tick, thirty-second pending timeout, ten-second late-delivery retention.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 5 * time.Second,
		PendingTTL:    30 * time.Second,
		LateTTL:       10 * time.Second,
	}
}

// New creates a store and starts its background sweep loop. Call Close to
// stop the loop.
func New(cfg Config) *Store {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultConfig().PendingTTL
	}
	if cfg.LateTTL <= 0 {
		cfg.LateTTL = DefaultConfig().LateTTL
	}
	s := &Store{
		logger:        rlog.OrStd(cfg.Logger),
		notifier:      cfg.Notifier,
		pending:       make(map[int64]*waiter),
		late:          make(map[int64]lateDelivery),
		sweepInterval: cfg.SweepInterval,
		lateTTL:       cfg.LateTTL,
		done:          make(chan struct{}),
	}
	go s.sweepLoop(cfg.PendingTTL)
	return s
}

// Begin allocates the next transaction id and registers a waiter for it in
// one step, so no caller can observe an id with no corresponding entry.
func (s *Store) Begin() int64 {
	tid := atomic.AddInt64(&s.nextTxnID, 1) - 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if ld, ok := s.late[tid]; ok {
		// Unreachable in practice (ids are fresh), kept for safety against
		// counter reuse in tests that seed nextTxnID directly.
		delete(s.late, tid)
		w := &waiter{ch: make(chan *wire.ExecutionEvent, 1), createdAt: time.Now()}
		w.ch <- ld.event
		s.pending[tid] = w
		return tid
	}
	s.pending[tid] = &waiter{ch: make(chan *wire.ExecutionEvent, 1), createdAt: time.Now()}
	observability.SetRendezvousPending(len(s.pending))
	return tid
}

// Post delivers an execution event for a transaction. If nobody is waiting
// yet, the event is buffered as a late delivery until Wait arrives or the
// sweep discards it. Post is idempotent: a second post for an id already
// delivered is dropped as a ghost response. A post for an id whose result
// was already claimed finds no waiter and is buffered as a late delivery
// until the sweep discards it.
func (s *Store) Post(event *wire.ExecutionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.pending[tidOf(event)]; ok {
		select {
		case w.ch <- event:
		default:
			observability.RecordRendezvousOutcome("ghost_dropped")
			s.logger.Warn("rendezvous: dropping ghost response, waiter already delivered", "transactionID", tidOf(event))
		}
		return
	}
	if _, ok := s.late[tidOf(event)]; ok {
		s.logger.Warn("rendezvous: dropping duplicate late delivery", "transactionID", tidOf(event))
		return
	}
	s.late[tidOf(event)] = lateDelivery{event: event, deliverAt: time.Now()}
}

func tidOf(e *wire.ExecutionEvent) int64 { return e.TransactionID }

// notifyTimedOut publishes a TransactionTimedOut event, if a notifier was
// configured. Best-effort: publish errors (no subscriber failures from
// this particular event type are expected) are swallowed.
func (s *Store) notifyTimedOut(tid int64, waitedMS int64) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Publish(context.Background(), &eventbus.TransactionTimedOut{
		TransactionID: tid,
		WaitedMS:      waitedMS,
	})
}

// Wait blocks until a result for tid is posted, ctx is canceled, or timeout
// elapses (timeout <= 0 means unbounded, deferring entirely to ctx).
func (s *Store) Wait(ctx context.Context, tid int64, timeout time.Duration) (*wire.ExecutionEvent, error) {
	s.mu.Lock()
	if ld, ok := s.late[tid]; ok {
		delete(s.late, tid)
		delete(s.pending, tid)
		s.mu.Unlock()
		return ld.event, nil
	}
	w, ok := s.pending[tid]
	s.mu.Unlock()
	if !ok {
		return nil, &coreerrors.UnknownObjectError{ObjectID: tid}
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case event := <-w.ch:
		s.mu.Lock()
		delete(s.pending, tid)
		pendingCount := len(s.pending)
		s.mu.Unlock()
		observability.SetRendezvousPending(pendingCount)
		observability.RecordRendezvousOutcome("delivered")
		return event, nil
	case <-timeoutCh:
		s.mu.Lock()
		delete(s.pending, tid)
		pendingCount := len(s.pending)
		s.mu.Unlock()
		observability.SetRendezvousPending(pendingCount)
		observability.RecordRendezvousOutcome("timed_out")
		s.notifyTimedOut(tid, timeout.Milliseconds())
		return nil, &coreerrors.TimeoutError{TransactionID: tid}
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, tid)
		pendingCount := len(s.pending)
		s.mu.Unlock()
		observability.SetRendezvousPending(pendingCount)
		observability.RecordRendezvousOutcome("canceled")
		return nil, ctx.Err()
	}
}

// ContainsPending reports whether tid is still awaiting delivery.
func (s *Store) ContainsPending(tid int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[tid]
	return ok
}

// ContainsDelivered reports whether tid has a buffered, unclaimed result,
// either as a late delivery or sitting in its waiter's slot.
func (s *Store) ContainsDelivered(tid int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.late[tid]; ok {
		return true
	}
	w, ok := s.pending[tid]
	return ok && len(w.ch) > 0
}

// Abort wakes a pending waiter with err without posting a real result,
// used when the owning connection drops.
func (s *Store) Abort(tid int64, err error) {
	s.mu.Lock()
	w, ok := s.pending[tid]
	s.mu.Unlock()
	if !ok {
		return
	}
	ev := &wire.ExecutionEvent{TransactionID: tid, Err: err}
	select {
	case w.ch <- ev:
	default:
	}
}

// Close stops the background sweep loop. Safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Store) sweepLoop(pendingTTL time.Duration) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweepOnce(now, pendingTTL)
		}
	}
}

func (s *Store) sweepOnce(now time.Time, pendingTTL time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tid, w := range s.pending {
		if now.Sub(w.createdAt) < pendingTTL {
			continue
		}
		select {
		case w.ch <- &wire.ExecutionEvent{TransactionID: tid, Err: &coreerrors.TimeoutError{TransactionID: tid}}:
		default:
		}
		delete(s.pending, tid)
		observability.RecordRendezvousOutcome("swept_timeout")
		s.logger.Warn("rendezvous: swept timed-out transaction", "transactionID", tid)
		s.notifyTimedOut(tid, pendingTTL.Milliseconds())
	}
	observability.SetRendezvousPending(len(s.pending))
	for tid, ld := range s.late {
		if now.Sub(ld.deliverAt) < s.lateTTL {
			continue
		}
		delete(s.late, tid)
		s.logger.Warn("rendezvous: swept unclaimed late delivery", "transactionID", tid)
	}
}
