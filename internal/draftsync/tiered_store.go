package draftsync

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// TieredStore pairs the server of record with the local fallback cache.
//
// Precedence: a successful server answer always wins and overwrites the cache. The cache is
// read only when the server cannot be reached, and is refreshed after every server success.
// A server NotFound is a successful answer meaning "start fresh", never a reason to fall back.
type TieredStore struct {
	remote RemoteDraftStore
	local  *LocalCache
	logger *zap.Logger
}

// NewTieredStore combines remote and local.
func NewTieredStore(remote RemoteDraftStore, local *LocalCache, logger *zap.Logger) *TieredStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredStore{remote: remote, local: local, logger: logger}
}

// Load returns the draft to resume and where it came from. Only ErrUnavailable falls back
// to the cache; any other server error, such as an authorization failure, is returned.
func (t *TieredStore) Load(ctx context.Context) (Snapshot, Source, error) {
	snap, err := t.remote.Load(ctx)
	switch {
	case err == nil:
		t.local.Write(*snap)
		return *snap, SourceServer, nil
	case errors.Is(err, ErrNotFound):
		t.local.Clear(0)
		return Snapshot{}, SourceFresh, nil
	case !errors.Is(err, ErrUnavailable):
		return Snapshot{}, "", err
	}

	t.logger.Warn("draft server unreachable, using local copy", zap.Error(err))
	if cached, ok := t.local.Read(); ok {
		return cached, SourceLocal, nil
	}
	return Snapshot{}, SourceFresh, nil
}

// Save writes snap to the server and refreshes the cache with the stored result. On failure
// snap is kept locally and the error is returned for the caller to absorb.
func (t *TieredStore) Save(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	stored, err := t.remote.Save(ctx, snap)
	if err != nil {
		t.local.Write(snap)
		return nil, err
	}
	t.local.Write(*stored)
	return stored, nil
}

// SaveLocal writes snap to the cache only.
func (t *TieredStore) SaveLocal(snap Snapshot) {
	t.local.Write(snap)
}

// Delete removes the draft on the server and clears the cache, refusing later cache writes
// below floor. The cache is cleared even when the server call fails.
func (t *TieredStore) Delete(ctx context.Context, floor int64) error {
	t.local.Clear(floor)
	return t.remote.Delete(ctx)
}
