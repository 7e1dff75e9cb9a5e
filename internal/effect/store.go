package effect

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/effectwatch/internal/model"
)

// Store owns the effect collection. Writes are serialized; reads go through
// the latest published Snapshot and never block writers.
type Store struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   map[int]chan *Snapshot
	nextID int
	closed bool

	schedules atomic.Int64
	progress  atomic.Int64
	removes   atomic.Int64
	ignored   atomic.Int64
	pruned    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStore creates an empty Effect Store.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DisplayCap <= 0 {
		cfg.DisplayCap = DefaultDisplayCap
	}
	if cfg.TerminalStates == nil {
		cfg.TerminalStates = DefaultConfig().TerminalStates
	}

	s := &Store{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan *Snapshot),
	}
	s.current.Store(emptySnapshot(cfg.DisplayCap))
	return s
}

// Start launches the retention loop when RetainTerminal is set.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.RetainTerminal > 0 {
		interval := s.cfg.PruneInterval
		if interval <= 0 {
			interval = s.cfg.RetainTerminal
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.retentionLoop(s.ctx, interval)
		}()
	}

	s.logger.Info("effect store started",
		"display_cap", s.cfg.DisplayCap,
		"retain_terminal", s.cfg.RetainTerminal,
	)
	return nil
}

// Stop ends the retention loop and closes every subscription.
func (s *Store) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.subMu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()

	s.logger.Info("effect store stopped")
	return nil
}

// Snapshot returns the latest published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// RenderList returns the bounded, ordered view of the latest snapshot.
func (s *Store) RenderList() []model.EffectRecord {
	return s.Snapshot().RenderList()
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	snap := s.Snapshot()
	shown := snap.Len()
	if shown > s.cfg.DisplayCap {
		shown = s.cfg.DisplayCap
	}
	return Stats{
		Tracked:   snap.Len(),
		Shown:     shown,
		Version:   snap.Version(),
		Schedules: s.schedules.Load(),
		Progress:  s.progress.Load(),
		Removes:   s.removes.Load(),
		Ignored:   s.ignored.Load(),
		Pruned:    s.pruned.Load(),
	}
}

// Subscribe returns a channel that receives the latest snapshot after every
// change, starting with the current one. Slow readers only see the most
// recent snapshot. The returned function cancels the subscription.
func (s *Store) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.Snapshot()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// ApplySchedule inserts a record for ev.ID, replacing any existing record.
// A replaced record keeps its position; a new one is appended.
func (s *Store) ApplySchedule(ev model.ScheduleEvent) bool {
	at := s.stamp(ev.ReceivedAt)

	s.mu.Lock()
	next := s.Snapshot().clone()
	_, existed := next.records[ev.ID]
	next.records[ev.ID] = model.EffectRecord{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		ScheduledAt: at,
		UpdatedAt:   at,
	}
	if !existed {
		next.order = append(next.order, ev.ID)
	}
	s.publish(next)
	s.mu.Unlock()

	s.schedules.Add(1)
	s.logger.Debug("effect scheduled",
		"id", ev.ID,
		"title", ev.Title,
		"replaced", existed,
	)
	return true
}

// ApplyProgress updates progress and state of a tracked record.
// Progress for an unknown id is dropped.
func (s *Store) ApplyProgress(ev model.ProgressEvent) bool {
	at := s.stamp(ev.ReceivedAt)

	s.mu.Lock()
	cur := s.Snapshot()
	rec, ok := cur.records[ev.ID]
	if !ok {
		s.mu.Unlock()
		s.ignored.Add(1)
		s.logger.Warn("progress for unknown effect", "id", ev.ID, "progress", ev.Progress)
		return false
	}

	rec.Progress = ev.Progress
	rec.State = ev.State
	rec.UpdatedAt = at

	next := cur.clone()
	next.records[ev.ID] = rec
	s.publish(next)
	s.mu.Unlock()

	s.progress.Add(1)
	return true
}

// ApplyRemove deletes a tracked record. Removing an unknown id is a no-op.
func (s *Store) ApplyRemove(ev model.RemoveEvent) bool {
	s.mu.Lock()
	cur := s.Snapshot()
	if _, ok := cur.records[ev.ID]; !ok {
		s.mu.Unlock()
		s.ignored.Add(1)
		s.logger.Debug("remove for unknown effect", "id", ev.ID)
		return false
	}

	next := cur.clone()
	next.removeID(ev.ID)
	s.publish(next)
	s.mu.Unlock()

	s.removes.Add(1)
	s.logger.Debug("effect removed", "id", ev.ID)
	return true
}

// Prune removes terminal records idle for longer than RetainTerminal and
// returns how many were removed. It does nothing when retention is disabled.
func (s *Store) Prune(now time.Time) int {
	if s.cfg.RetainTerminal <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.RetainTerminal)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	var expired []string
	for _, id := range cur.order {
		rec := cur.records[id]
		if s.isTerminal(rec.State) && rec.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	next := cur.clone()
	for _, id := range expired {
		next.removeID(id)
	}
	s.publish(next)

	s.pruned.Add(int64(len(expired)))
	s.logger.Info("pruned terminal effects", "count", len(expired), "ids", expired)
	return len(expired)
}

func (s *Store) retentionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune(s.now())
		}
	}
}

func (s *Store) isTerminal(state model.State) bool {
	for _, t := range s.cfg.TerminalStates {
		if state.Is(t) {
			return true
		}
	}
	return false
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// publish stores next and notifies subscribers. Must be called with mu held.
func (s *Store) publish(next *Snapshot) {
	s.current.Store(next)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			// Subscriber is behind: replace the pending snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}
