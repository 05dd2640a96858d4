package draftsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SaveResult describes what happened to a save attempt.
type SaveResult string

const (
	SavedRemote SaveResult = "remote"
	SavedLocal  SaveResult = "local"
	Superseded  SaveResult = "superseded"
)

// Config tunes a Synchronizer.
type Config struct {
	Debounce time.Duration
	Timeout  time.Duration
	// Now is the clock used to derive revisions.
	Now func() time.Time
}

// Synchronizer keeps a client's in-progress draft in step with the server. Edits are applied
// in memory and to the local cache at once, then saved to the server after a quiet window.
// Every observed state gets a strictly increasing revision and only the newest one may commit.
type Synchronizer struct {
	store     *TieredStore
	debouncer *Debouncer
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	state     Snapshot
	committed int64
	source    Source

	background sync.WaitGroup
}

// NewSynchronizer builds a synchronizer over store.
func NewSynchronizer(store *TieredStore, cfg Config, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Synchronizer{
		store:   store,
		logger:  logger.With(zap.String("component", "draft_synchronizer")),
		timeout: cfg.Timeout,
		now:     cfg.Now,
		state:   Snapshot{CurrentStep: 1},
	}
	s.debouncer = NewDebouncer(cfg.Debounce, func(snap Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.persist(ctx, snap)
	})
	return s
}

// OnLoad resumes the draft, preferring the server and falling back to the local cache when
// the server is unreachable. Other server errors are returned and leave the state untouched.
func (s *Synchronizer) OnLoad(ctx context.Context) (Snapshot, Source, error) {
	s.debouncer.Cancel()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	snap, source, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("draft load refused", zap.Error(err))
		return Snapshot{}, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.CurrentStep == 0 {
		snap.CurrentStep = 1
	}
	s.state = snap.clone()
	s.source = source
	if source == SourceServer {
		s.committed = snap.Revision
	}
	s.logger.Info("draft loaded", zap.String("source", string(source)), zap.Int("step", snap.CurrentStep))
	return snap, source, nil
}

// OnFieldChange records an edit and schedules a debounced server save.
func (s *Synchronizer) OnFieldChange(data json.RawMessage) Snapshot {
	s.mu.Lock()
	s.state.DraftData = append(json.RawMessage(nil), data...)
	snap := s.advanceLocked()
	s.mu.Unlock()

	s.store.SaveLocal(snap)
	s.debouncer.Schedule(snap)
	return snap
}

// OnStepChange saves immediately. A failed save is kept locally and never blocks navigation.
func (s *Synchronizer) OnStepChange(ctx context.Context, step int, data json.RawMessage) SaveResult {
	s.debouncer.Cancel()

	s.mu.Lock()
	s.state.CurrentStep = step
	s.state.DraftData = append(json.RawMessage(nil), data...)
	snap := s.advanceLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.persist(ctx, snap)
}

// OnUnload starts a final save and returns without waiting for it. The local cache is
// written before returning whatever the server outcome.
func (s *Synchronizer) OnUnload() {
	s.debouncer.Cancel()

	s.mu.Lock()
	snap := s.state.clone()
	s.mu.Unlock()

	s.store.SaveLocal(snap)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.persist(ctx, snap)
	}()
}

// Flush persists a pending debounced save now.
func (s *Synchronizer) Flush(ctx context.Context) (SaveResult, bool) {
	snap, ok := s.debouncer.Take()
	if !ok {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.persist(ctx, snap), true
}

// Restart discards the draft on the server and locally and starts again at step 1.
func (s *Synchronizer) Restart(ctx context.Context) error {
	s.debouncer.Cancel()

	s.mu.Lock()
	// bump past in-flight saves so neither their acknowledgements nor their local
	// fallback writes survive the restart
	floor := s.nextRevisionLocked()
	s.state = Snapshot{CurrentStep: 1, Revision: floor}
	s.committed = floor
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Delete(ctx, floor); err != nil {
		s.logger.Warn("restart could not delete server draft", zap.Error(err))
		return err
	}
	return nil
}

// Wait blocks until background saves started by OnUnload finish.
func (s *Synchronizer) Wait() {
	s.background.Wait()
}

// State returns the current in-memory draft.
func (s *Synchronizer) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Committed returns the newest revision acknowledged by the server.
func (s *Synchronizer) Committed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

func (s *Synchronizer) persist(ctx context.Context, snap Snapshot) SaveResult {
	if s.superseded(snap) {
		s.logger.Debug("skip superseded draft save", zap.Int64("revision", snap.Revision))
		return Superseded
	}

	stored, err := s.store.Save(ctx, snap)
	if err != nil {
		s.logger.Warn("draft save kept locally", zap.Int64("revision", snap.Revision), zap.Error(err))
		return SavedLocal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored.Revision < s.committed {
		s.logger.Debug("ignore late draft acknowledgement", zap.Int64("revision", stored.Revision), zap.Int64("committed", s.committed))
		return Superseded
	}
	s.committed = stored.Revision
	return SavedRemote
}

func (s *Synchronizer) superseded(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snap.Revision < s.state.Revision || snap.Revision < s.committed
}

func (s *Synchronizer) advanceLocked() Snapshot {
	s.state.Revision = s.nextRevisionLocked()
	s.state.UpdatedAt = s.now().UTC()
	return s.state.clone()
}

// nextRevisionLocked is strictly greater than every revision seen, and tracks wall time so
// revisions stay increasing across client restarts.
func (s *Synchronizer) nextRevisionLocked() int64 {
	next := s.state.Revision + 1
	if s.committed >= next {
		next = s.committed + 1
	}
	if now := s.now().UnixNano(); now > next {
		next = now
	}
	return next
}
