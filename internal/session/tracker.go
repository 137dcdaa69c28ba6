package session

import (
	"time"

	"github.com/xaenox/chat-sessions/internal/kvstore"
	"go.uber.org/zap"
)

const lastActiveKeyPrefix = "session-last-active-"

// Tracker records the last-active instant per session in client-local
// storage. It answers "has this client been away from the session", which is
// deliberately independent of the durable LastActiveAt field that any device
// may have touched.
type Tracker struct {
	store     kvstore.KeyValue
	threshold time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewTracker(store kvstore.KeyValue, threshold time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:     store,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Touch writes the current instant under the session's key. It never touches
// the document store or the cache.
func (t *Tracker) Touch(sessionID string) error {
	return t.store.Set(lastActiveKeyPrefix+sessionID, t.now().Format(time.RFC3339Nano))
}

// IsStale reports whether the session has been idle longer than the
// threshold. A session with no local record is not stale: before any local
// activity exists there is nothing to be away from.
func (t *Tracker) IsStale(sessionID string) bool {
	value, ok, err := t.store.Get(lastActiveKeyPrefix + sessionID)
	if err != nil {
		t.logger.Error("Failed to read last-active time",
			zap.Error(err),
			zap.String("session_id", sessionID))
		return false
	}
	if !ok {
		return false
	}

	lastActive, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t.logger.Error("Failed to parse last-active time",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.String("value", value))
		return false
	}

	return t.now().Sub(lastActive) > t.threshold
}

// Forget removes the local record for a session.
func (t *Tracker) Forget(sessionID string) error {
	return t.store.Remove(lastActiveKeyPrefix + sessionID)
}
