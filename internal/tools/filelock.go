package tools

import (
	"sync"
	"time"

	"raven/internal/errs"
	"raven/internal/logging"
)

// DefaultLockTTL is how long an edit lock lives before it is treated as
// abandoned and reclaimed.
const DefaultLockTTL = 30 * time.Second

type fileLock struct {
	owner    string
	acquired time.Time
}

// FileLockMap serializes edits per path. It is an expiring mutex, not a
// hardened lock: it protects against accidental double-edit from concurrent
// tool fan-out, and TTL reclamation prevents a crashed holder from wedging
// the path forever. At most one live lock exists per path.
type FileLockMap struct {
	mu    sync.Mutex
	locks map[string]fileLock
	ttl   time.Duration

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewFileLockMap creates a lock map with the given TTL. A non-positive TTL
// uses the default.
func NewFileLockMap(ttl time.Duration) *FileLockMap {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &FileLockMap{
		locks: make(map[string]fileLock),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Acquire takes the lock for path on behalf of owner. A live lock held by
// someone else fails fast with a recoverable CONCURRENT_MODIFICATION error;
// an expired lock is silently reclaimed.
func (m *FileLockMap) Acquire(path, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, held := m.locks[path]; held {
		if m.now().Sub(lock.acquired) < m.ttl {
			return errs.New(
				"another edit to this file is in progress",
				errs.CategoryRuntime, errs.CodeConcurrentModification,
				errs.Recoverable(),
				errs.WithSuggestions("retry the edit after the current one finishes"),
			)
		}
		logging.Warn("reclaiming expired file lock", "path", path, "owner", lock.owner)
	}

	m.locks[path] = fileLock{owner: owner, acquired: m.now()}
	return nil
}

// Release drops the lock for path if owner still holds it. Releasing a lock
// reclaimed by someone else is a no-op.
func (m *FileLockMap) Release(path, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, held := m.locks[path]; held && lock.owner == owner {
		delete(m.locks, path)
	}
}
