package draftsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

// fakeRemote mimics the draft endpoints in memory.
type fakeRemote struct {
	mu          sync.Mutex
	draft       *Snapshot
	saves       []Snapshot
	deletes     int
	fail        error
	conditional bool
	// hold blocks the next Save until released; entered is signalled once it is waiting.
	hold    chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) Load(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if f.draft == nil {
		return nil, ErrNotFound
	}
	d := f.draft.clone()
	return &d, nil
}

func (f *fakeRemote) Save(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	f.mu.Lock()
	hold, entered := f.hold, f.entered
	f.hold, f.entered = nil, nil
	f.mu.Unlock()
	if hold != nil {
		close(entered)
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.saves = append(f.saves, snap.clone())
	if f.conditional && f.draft != nil && snap.Revision != 0 && f.draft.Revision > snap.Revision {
		current := f.draft.clone()
		return &current, nil
	}
	stored := snap.clone()
	f.draft = &stored
	out := stored.clone()
	return &out, nil
}

func (f *fakeRemote) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.deletes++
	f.draft = nil
	return nil
}

func (f *fakeRemote) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeRemote) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeRemote) stored() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return nil
	}
	d := f.draft.clone()
	return &d
}

var errDown = fmt.Errorf("%w: connection refused", ErrUnavailable)

type syncFixture struct {
	remote *fakeRemote
	local  *LocalCache
	sync   *Synchronizer
}

func newSyncFixture(t *testing.T, debounce time.Duration) *syncFixture {
	t.Helper()
	remote := &fakeRemote{conditional: true}
	local := NewLocalCache(t.TempDir(), "u1", nil)
	frozen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSynchronizer(NewTieredStore(remote, local, nil), Config{
		Debounce: debounce,
		Timeout:  time.Second,
		Now:      func() time.Time { return frozen },
	}, nil)
	return &syncFixture{remote: remote, local: local, sync: s}
}

func data(s string) json.RawMessage { return json.RawMessage(s) }

func TestTieredStoreLoadPrecedence(t *testing.T) {
	remote := &fakeRemote{}
	local := NewLocalCache(t.TempDir(), "u1", nil)
	store := NewTieredStore(remote, local, nil)
	ctx := context.Background()

	local.Write(Snapshot{CurrentStep: 4, DraftData: data(`{"stale":true}`), Revision: 1})
	remote.draft = &Snapshot{CurrentStep: 2, DraftData: data(`{"fresh":true}`), Revision: 5}

	snap, source, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceServer, source)
	assert.Equal(t, 2, snap.CurrentStep)
	cached, ok := local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"fresh":true}`, string(cached.DraftData))

	remote.setFail(errDown)
	snap, source, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	assert.JSONEq(t, `{"fresh":true}`, string(snap.DraftData))

	remote.setFail(nil)
	remote.draft = nil
	snap, source, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceFresh, source)
	assert.True(t, snap.Empty())
	_, ok = local.Read()
	assert.False(t, ok)

	remote.setFail(errDown)
	_, source, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceFresh, source)
}

func TestTieredStoreLoadSurfacesRefusal(t *testing.T) {
	remote := &fakeRemote{}
	local := NewLocalCache(t.TempDir(), "u1", nil)
	store := NewTieredStore(remote, local, nil)
	local.Write(Snapshot{CurrentStep: 3, DraftData: data(`{"cached":true}`), Revision: 4})

	remote.setFail(appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another user"))
	snap, source, err := store.Load(context.Background())

	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
	assert.Empty(t, source)
	assert.True(t, snap.Empty())
	cached, ok := local.Read()
	require.True(t, ok)
	assert.Equal(t, 3, cached.CurrentStep)
}

func TestFieldChangesAreDebounced(t *testing.T) {
	f := newSyncFixture(t, 30*time.Millisecond)

	f.sync.OnFieldChange(data(`{"gender":"male"}`))
	f.sync.OnFieldChange(data(`{"gender":"male","height":"170"}`))
	last := f.sync.OnFieldChange(data(`{"gender":"male","height":"172"}`))

	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"gender":"male","height":"172"}`, string(cached.DraftData))
	assert.Equal(t, 0, f.remote.saveCount())

	require.Eventually(t, func() bool { return f.remote.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, f.remote.saveCount())
	assert.Equal(t, last.Revision, f.remote.stored().Revision)
	assert.Equal(t, last.Revision, f.sync.Committed())
}

func TestRevisionsStrictlyIncrease(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	first := f.sync.OnFieldChange(data(`{"a":1}`))
	second := f.sync.OnFieldChange(data(`{"a":2}`))
	third := f.sync.OnFieldChange(data(`{"a":3}`))

	assert.Greater(t, second.Revision, first.Revision)
	assert.Greater(t, third.Revision, second.Revision)
}

func TestStepChangeSavesImmediately(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	f.sync.OnFieldChange(data(`{"gender":"female"}`))
	result := f.sync.OnStepChange(context.Background(), 2, data(`{"gender":"female","fatherName":"Karim"}`))

	assert.Equal(t, SavedRemote, result)
	require.Equal(t, 1, f.remote.saveCount())
	stored := f.remote.stored()
	assert.Equal(t, 2, stored.CurrentStep)
	assert.JSONEq(t, `{"gender":"female","fatherName":"Karim"}`, string(stored.DraftData))

	_, pending := f.sync.Flush(context.Background())
	assert.False(t, pending)
}

func TestStepChangeFailureFallsBackToLocal(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.remote.setFail(errDown)

	result := f.sync.OnStepChange(context.Background(), 3, data(`{"occupation":"Doctor"}`))

	assert.Equal(t, SavedLocal, result)
	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.Equal(t, 3, cached.CurrentStep)
	assert.JSONEq(t, `{"occupation":"Doctor"}`, string(cached.DraftData))
	assert.Equal(t, 3, f.sync.State().CurrentStep)
}

func TestFlushPersistsPendingSave(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	snap := f.sync.OnFieldChange(data(`{"height":"160"}`))
	result, flushed := f.sync.Flush(context.Background())

	assert.True(t, flushed)
	assert.Equal(t, SavedRemote, result)
	assert.Equal(t, snap.Revision, f.remote.stored().Revision)
}

func TestLateAcknowledgementIsIgnored(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.remote.conditional = false
	hold, entered := make(chan struct{}), make(chan struct{})
	f.remote.hold, f.remote.entered = hold, entered

	older := f.sync.OnFieldChange(data(`{"height":"150"}`))
	done := make(chan SaveResult, 1)
	go func() {
		result, _ := f.sync.Flush(context.Background())
		done <- result
	}()
	<-entered

	newer := f.sync.OnStepChange(context.Background(), 2, data(`{"height":"151"}`))
	require.Equal(t, SavedRemote, newer)
	close(hold)

	assert.Equal(t, Superseded, <-done)
	assert.Greater(t, f.sync.Committed(), older.Revision)
	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"height":"151"}`, string(cached.DraftData))
}

func TestServerRejectsOutOfOrderWrite(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	hold, entered := make(chan struct{}), make(chan struct{})
	f.remote.hold, f.remote.entered = hold, entered

	f.sync.OnFieldChange(data(`{"height":"150"}`))
	done := make(chan SaveResult, 1)
	go func() {
		result, _ := f.sync.Flush(context.Background())
		done <- result
	}()
	<-entered

	f.sync.OnStepChange(context.Background(), 2, data(`{"height":"151"}`))
	close(hold)
	<-done

	stored := f.remote.stored()
	assert.Equal(t, 2, stored.CurrentStep)
	assert.JSONEq(t, `{"height":"151"}`, string(stored.DraftData))
}

func TestSupersededSnapshotIsNotSent(t *testing.T) {
	f := newSyncFixture(t, time.Hour)

	old := f.sync.OnFieldChange(data(`{"a":1}`))
	f.sync.OnFieldChange(data(`{"a":2}`))

	assert.Equal(t, Superseded, f.sync.persist(context.Background(), old))
	assert.Equal(t, 0, f.remote.saveCount())
}

func TestLoadAdoptsServerOrFallsBack(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.remote.draft = &Snapshot{CurrentStep: 3, DraftData: data(`{"server":true}`), Revision: 11}

	snap, source, err := f.sync.OnLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceServer, source)
	assert.Equal(t, 3, snap.CurrentStep)
	assert.Equal(t, int64(11), f.sync.Committed())

	f.local.Write(Snapshot{CurrentStep: 4, DraftData: data(`{"offline":true}`), Revision: 12})
	f.remote.setFail(errDown)
	snap, source, err = f.sync.OnLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	assert.Equal(t, 4, snap.CurrentStep)
	assert.JSONEq(t, `{"offline":true}`, string(f.sync.State().DraftData))
}

func TestLoadWithoutDraftStartsFresh(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.local.Write(Snapshot{CurrentStep: 2, DraftData: data(`{"leftover":true}`), Revision: 3})

	snap, source, err := f.sync.OnLoad(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceFresh, source)
	assert.Equal(t, 1, snap.CurrentStep)
	_, ok := f.local.Read()
	assert.False(t, ok)
}

func TestUnloadWritesLocalAndSavesInBackground(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.sync.OnFieldChange(data(`{"aboutMe":"hello"}`))

	f.sync.OnUnload()
	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"aboutMe":"hello"}`, string(cached.DraftData))

	f.sync.Wait()
	assert.Equal(t, 1, f.remote.saveCount())
	assert.JSONEq(t, `{"aboutMe":"hello"}`, string(f.remote.stored().DraftData))
}

func TestUnloadWhileOffline(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.remote.setFail(errDown)
	f.sync.OnFieldChange(data(`{"aboutMe":"offline"}`))

	f.sync.OnUnload()
	f.sync.Wait()

	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"aboutMe":"offline"}`, string(cached.DraftData))
}

func TestRestartClearsEverything(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	f.sync.OnStepChange(context.Background(), 2, data(`{"gender":"male"}`))
	f.sync.OnFieldChange(data(`{"gender":"male","height":"170"}`))

	require.NoError(t, f.sync.Restart(context.Background()))

	assert.Nil(t, f.remote.stored())
	_, ok := f.local.Read()
	assert.False(t, ok)
	state := f.sync.State()
	assert.Equal(t, 1, state.CurrentStep)
	assert.Empty(t, state.DraftData)
	_, pending := f.sync.Flush(context.Background())
	assert.False(t, pending)

	f.remote.setFail(errDown)
	assert.Error(t, f.sync.Restart(context.Background()))
}

func TestRestartIsNotUndoneByInFlightSave(t *testing.T) {
	f := newSyncFixture(t, time.Hour)
	hold, entered := make(chan struct{}), make(chan struct{})
	f.remote.hold, f.remote.entered = hold, entered

	done := make(chan SaveResult, 1)
	go func() {
		done <- f.sync.OnStepChange(context.Background(), 3, data(`{"old":"pre-restart"}`))
	}()
	<-entered

	require.NoError(t, f.sync.Restart(context.Background()))
	f.remote.setFail(errDown)
	close(hold)
	assert.Equal(t, SavedLocal, <-done)

	_, ok := f.local.Read()
	assert.False(t, ok)

	snap, source, err := f.sync.OnLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFresh, source)
	assert.Equal(t, 1, snap.CurrentStep)
	assert.Empty(t, snap.DraftData)

	f.sync.OnFieldChange(data(`{"gender":"female"}`))
	cached, ok := f.local.Read()
	require.True(t, ok)
	assert.JSONEq(t, `{"gender":"female"}`, string(cached.DraftData))
}
