package draftsync

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// LocalCache keeps the last known draft in a JSON file on the client. It is never
// authoritative and never returns errors: failures are logged and treated as absence.
type LocalCache struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	revision int64
}

// NewLocalCache stores the draft of ownerID under dir.
func NewLocalCache(dir, ownerID string, logger *zap.Logger) *LocalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "biodata-drafts")
	}
	return &LocalCache{
		path:   filepath.Join(dir, "draft-"+url.PathEscape(ownerID)+".json"),
		logger: logger.With(zap.String("component", "draft_local_cache")),
	}
}

// Path returns the backing file location.
func (c *LocalCache) Path() string {
	return c.path
}

// Read returns the cached snapshot, or false when nothing usable is stored.
func (c *LocalCache) Read() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("read local draft failed", zap.Error(err))
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("local draft is corrupt", zap.Error(err))
		return Snapshot{}, false
	}
	if snap.Revision > c.revision {
		c.revision = snap.Revision
	}
	return snap, true
}

// Write replaces the cached snapshot. A versioned snapshot older than the last one written
// is ignored so a late server acknowledgement cannot roll the cache back.
func (c *LocalCache) Write(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Revision != 0 && snap.Revision < c.revision {
		c.logger.Debug("skip stale local draft write", zap.Int64("revision", snap.Revision), zap.Int64("cached_revision", c.revision))
		return
	}
	if err := c.writeFile(snap); err != nil {
		c.logger.Warn("write local draft failed", zap.Error(err))
		return
	}
	if snap.Revision > c.revision {
		c.revision = snap.Revision
	}
}

// Clear removes the cached snapshot. Later versioned writes below floor are ignored, so a
// save that was in flight when the draft was discarded cannot bring it back.
func (c *LocalCache) Clear(floor int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.revision = floor
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("clear local draft failed", zap.Error(err))
	}
}

func (c *LocalCache) writeFile(snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".draft-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
