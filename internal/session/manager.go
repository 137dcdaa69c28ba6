package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/chat-sessions/internal/cache"
	"github.com/xaenox/chat-sessions/internal/docstore"
	"github.com/xaenox/chat-sessions/internal/models"
	"go.uber.org/zap"
)

// ErrEmptyUserID is returned when a caller asks for sessions without saying
// whose. This is a programming error on the caller's side, never retried.
var ErrEmptyUserID = errors.New("user id is required")

const sessionsCollection = "user-sessions"

// Options carries the lifecycle thresholds. Zero values are filled in from
// DefaultOptions.
type Options struct {
	DefaultTitle        string
	MaxActiveSessions   int
	ArchiveAge          time.Duration
	ActiveCompactLimit  int
	ActiveKeepFirst     int
	ActiveKeepLast      int
	ArchiveCompactLimit int
	ArchiveKeepFirst    int
	ArchiveKeepLast     int
	CacheTTL            time.Duration
	MetadataCacheTTL    time.Duration
	PageSize            int
}

// DefaultOptions are the production thresholds.
func DefaultOptions() Options {
	return Options{
		DefaultTitle:        "New Chat",
		MaxActiveSessions:   5,
		ArchiveAge:          30 * 24 * time.Hour,
		ActiveCompactLimit:  50,
		ActiveKeepFirst:     10,
		ActiveKeepLast:      40,
		ArchiveCompactLimit: 20,
		ArchiveKeepFirst:    5,
		ArchiveKeepLast:     15,
		CacheTTL:            60 * time.Second,
		MetadataCacheTTL:    30 * time.Second,
		PageSize:            20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultTitle == "" {
		o.DefaultTitle = d.DefaultTitle
	}
	if o.MaxActiveSessions == 0 {
		o.MaxActiveSessions = d.MaxActiveSessions
	}
	if o.ArchiveAge == 0 {
		o.ArchiveAge = d.ArchiveAge
	}
	if o.ActiveCompactLimit == 0 {
		o.ActiveCompactLimit = d.ActiveCompactLimit
	}
	if o.ActiveKeepFirst == 0 {
		o.ActiveKeepFirst = d.ActiveKeepFirst
	}
	if o.ActiveKeepLast == 0 {
		o.ActiveKeepLast = d.ActiveKeepLast
	}
	if o.ArchiveCompactLimit == 0 {
		o.ArchiveCompactLimit = d.ArchiveCompactLimit
	}
	if o.ArchiveKeepFirst == 0 {
		o.ArchiveKeepFirst = d.ArchiveKeepFirst
	}
	if o.ArchiveKeepLast == 0 {
		o.ArchiveKeepLast = d.ArchiveKeepLast
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = d.CacheTTL
	}
	if o.MetadataCacheTTL == 0 {
		o.MetadataCacheTTL = d.MetadataCacheTTL
	}
	if o.PageSize == 0 {
		o.PageSize = d.PageSize
	}
	return o
}

// SessionsView is the full read-path result.
type SessionsView struct {
	ActiveSessions   []models.ChatSession `json:"active_sessions"`
	ArchivedSessions []models.ChatSession `json:"archived_sessions"`
	CurrentSessionID string               `json:"current_session_id"`
}

// MetadataView is the message-body-free read-path result.
type MetadataView struct {
	ActiveSessions   []models.SessionSummary `json:"active_sessions"`
	ArchivedSessions []models.SessionSummary `json:"archived_sessions"`
	CurrentSessionID string                  `json:"current_session_id"`
}

// PageResult is one page of a session's message history.
type PageResult struct {
	Messages      []models.ChatMessage `json:"messages"`
	TotalMessages int                  `json:"total_messages"`
	TotalPages    int                  `json:"total_pages"`
	CurrentPage   int                  `json:"current_page"`
	PageSize      int                  `json:"page_size"`
}

// Manager owns a user's session collection: reads go through the cache and
// fall back to the document store, mutations write through and invalidate the
// affected cache entries. The document store stays authoritative; the cache
// is derived state only.
type Manager struct {
	store  docstore.Store
	cache  *cache.Cache
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(store docstore.Store, c *cache.Cache, opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		cache:  c,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

func sessionsCacheKey(userID string) string {
	return "user-sessions-" + userID
}

func metadataCacheKey(userID string) string {
	return "user-sessions-metadata-" + userID
}

// NewSessionID generates a time-based id unique per creation event.
func NewSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

func (m *Manager) newRecord(userID string) *models.UserSessionsRecord {
	now := m.now()
	first := models.ChatSession{
		ID:           NewSessionID(),
		Title:        m.opts.DefaultTitle,
		CreatedAt:    now,
		LastActiveAt: now,
		Messages:     []models.ChatMessage{},
	}
	return &models.UserSessionsRecord{
		UserID:           userID,
		ActiveSessions:   []models.ChatSession{first},
		ArchivedSessions: []models.ChatSession{},
		CurrentSessionID: first.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// EnsureUserRecord creates the per-user document if it does not exist yet: a
// single fresh session that is both the sole active session and the current
// one. Creation is idempotent; a concurrent initializer that loses the race
// leaves the existing record untouched.
func (m *Manager) EnsureUserRecord(ctx context.Context, userID string) (*models.UserSessionsRecord, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	doc, err := m.store.Get(ctx, sessionsCollection, userID)
	if err == nil {
		record := &models.UserSessionsRecord{}
		if err := json.Unmarshal(doc.Data, record); err != nil {
			return nil, fmt.Errorf("error decoding sessions record: %w", err)
		}
		return record, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("error reading sessions record: %w", err)
	}

	record := m.newRecord(userID)
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("error encoding sessions record: %w", err)
	}
	if err := m.store.Create(ctx, sessionsCollection, userID, data); err != nil {
		return nil, err
	}

	m.logger.Info("Initialized sessions record",
		zap.String("user_id", userID),
		zap.String("session_id", record.CurrentSessionID))

	return record, nil
}

// FetchSessions returns the user's active and archived sessions plus the
// current session id. Results are cached; within the cache TTL repeated reads
// never re-hit the document store. Storage failures degrade to an empty view.
func (m *Manager) FetchSessions(ctx context.Context, userID string) (*SessionsView, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	value, err := m.cache.GetOrSet(ctx, sessionsCacheKey(userID), m.opts.CacheTTL, func(ctx context.Context) (any, error) {
		record, err := m.EnsureUserRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &SessionsView{
			ActiveSessions:   record.ActiveSessions,
			ArchivedSessions: record.ArchivedSessions,
			CurrentSessionID: record.CurrentSessionID,
		}, nil
	})
	if err != nil {
		m.logger.Error("Failed to fetch sessions",
			zap.Error(err),
			zap.String("user_id", userID))
		return &SessionsView{
			ActiveSessions:   []models.ChatSession{},
			ArchivedSessions: []models.ChatSession{},
		}, nil
	}

	return value.(*SessionsView), nil
}

// FetchMetadata is FetchSessions with message bodies replaced by counts. It
// uses its own cache key and a shorter TTL: the session list is read far more
// often than full histories and has to reflect mutations sooner.
func (m *Manager) FetchMetadata(ctx context.Context, userID string) (*MetadataView, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	value, err := m.cache.GetOrSet(ctx, metadataCacheKey(userID), m.opts.MetadataCacheTTL, func(ctx context.Context) (any, error) {
		record, err := m.EnsureUserRecord(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &MetadataView{
			ActiveSessions:   summarize(record.ActiveSessions),
			ArchivedSessions: summarize(record.ArchivedSessions),
			CurrentSessionID: record.CurrentSessionID,
		}, nil
	})
	if err != nil {
		m.logger.Error("Failed to fetch session metadata",
			zap.Error(err),
			zap.String("user_id", userID))
		return &MetadataView{
			ActiveSessions:   []models.SessionSummary{},
			ArchivedSessions: []models.SessionSummary{},
		}, nil
	}

	return value.(*MetadataView), nil
}

func summarize(sessions []models.ChatSession) []models.SessionSummary {
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, models.SessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
			MessageCount: len(s.Messages),
		})
	}
	return summaries
}

// FindSession looks a session up by id, active sessions first, archived
// second. Ids never collide across the two sets; if a caller has built an
// inconsistent state anyway, active wins. Returns nil if the session is in
// neither set.
func (m *Manager) FindSession(ctx context.Context, userID, sessionID string) *models.ChatSession {
	view, err := m.FetchSessions(ctx, userID)
	if err != nil {
		m.logger.Error("Failed to look up session",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("session_id", sessionID))
		return nil
	}

	for i := range view.ActiveSessions {
		if view.ActiveSessions[i].ID == sessionID {
			return &view.ActiveSessions[i]
		}
	}
	for i := range view.ArchivedSessions {
		if view.ArchivedSessions[i].ID == sessionID {
			return &view.ArchivedSessions[i]
		}
	}
	return nil
}

// PaginateMessages returns one page of a session's history. Pages are
// 1-based; out-of-range pages clamp into [1, max(totalPages, 1)]. A missing
// session yields an empty page with TotalPages 0 and CurrentPage 1.
func (m *Manager) PaginateMessages(ctx context.Context, userID, sessionID string, page, pageSize int) PageResult {
	if pageSize <= 0 {
		pageSize = m.opts.PageSize
	}

	sess := m.FindSession(ctx, userID, sessionID)
	if sess == nil {
		return PageResult{
			Messages:    []models.ChatMessage{},
			TotalPages:  0,
			CurrentPage: 1,
			PageSize:    pageSize,
		}
	}

	total := len(sess.Messages)
	totalPages := (total + pageSize - 1) / pageSize

	maxPage := totalPages
	if maxPage < 1 {
		maxPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	if start > total {
		start = total
	}

	return PageResult{
		Messages:      sess.Messages[start:end],
		TotalMessages: total,
		TotalPages:    totalPages,
		CurrentPage:   page,
		PageSize:      pageSize,
	}
}

// compactMessages keeps the opening context and the recent tail, dropping the
// middle of the history.
func compactMessages(messages []models.ChatMessage, keepFirst, keepLast int) []models.ChatMessage {
	if len(messages) <= keepFirst+keepLast {
		return messages
	}
	compacted := make([]models.ChatMessage, 0, keepFirst+keepLast)
	compacted = append(compacted, messages[:keepFirst]...)
	compacted = append(compacted, messages[len(messages)-keepLast:]...)
	return compacted
}

// CompactSessions bounds message histories: active sessions over the active
// limit keep their first and last stretches, archived ones a smaller pair.
// The current session is never compacted while it is being appended to. The
// record is written back only when something actually changed, so repeated
// runs stay no-ops and do not churn the cache.
func (m *Manager) CompactSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	record, err := m.EnsureUserRecord(ctx, userID)
	if err != nil {
		return err
	}

	changed := false
	for i := range record.ActiveSessions {
		s := &record.ActiveSessions[i]
		if s.ID == record.CurrentSessionID {
			continue
		}
		if len(s.Messages) > m.opts.ActiveCompactLimit {
			s.Messages = compactMessages(s.Messages, m.opts.ActiveKeepFirst, m.opts.ActiveKeepLast)
			changed = true
		}
	}
	for i := range record.ArchivedSessions {
		s := &record.ArchivedSessions[i]
		if len(s.Messages) > m.opts.ArchiveCompactLimit {
			s.Messages = compactMessages(s.Messages, m.opts.ArchiveKeepFirst, m.opts.ArchiveKeepLast)
			changed = true
		}
	}

	if !changed {
		return nil
	}

	record.UpdatedAt = m.now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding sessions record: %w", err)
	}
	if err := m.store.Update(ctx, sessionsCollection, userID, data); err != nil {
		return err
	}

	m.logger.Info("Compacted session histories", zap.String("user_id", userID))

	// Best-effort: a missed invalidation self-heals at TTL expiry.
	m.cache.Delete(sessionsCacheKey(userID))

	return nil
}

// ArchiveOldSessions moves long-idle active sessions into the archive. It is
// a no-op while the active set is small or holds only the current session.
// The current session stays active no matter how old it is. One write covers
// all moved sessions; if nothing qualifies, nothing is written.
func (m *Manager) ArchiveOldSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	record, err := m.EnsureUserRecord(ctx, userID)
	if err != nil {
		return err
	}

	if len(record.ActiveSessions) <= m.opts.MaxActiveSessions {
		return nil
	}
	if len(record.ActiveSessions) == 1 && record.ActiveSessions[0].ID == record.CurrentSessionID {
		return nil
	}

	cutoff := m.now().Add(-m.opts.ArchiveAge)
	remaining := make([]models.ChatSession, 0, len(record.ActiveSessions))
	var moved []models.ChatSession
	for _, s := range record.ActiveSessions {
		if s.ID != record.CurrentSessionID && s.LastActiveAt.Before(cutoff) {
			moved = append(moved, s)
			continue
		}
		remaining = append(remaining, s)
	}

	if len(moved) == 0 {
		return nil
	}

	// Most recently archived first; within one sweep the batch keeps its
	// active-list insertion order.
	record.ActiveSessions = remaining
	record.ArchivedSessions = append(moved, record.ArchivedSessions...)
	record.UpdatedAt = m.now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding sessions record: %w", err)
	}
	if err := m.store.Update(ctx, sessionsCollection, userID, data); err != nil {
		return err
	}

	m.logger.Info("Archived idle sessions",
		zap.String("user_id", userID),
		zap.Int("archived", len(moved)),
		zap.Int("remaining_active", len(remaining)))

	m.invalidateUser(userID)

	return nil
}

func (m *Manager) invalidateUser(userID string) {
	m.cache.Delete(sessionsCacheKey(userID))
	m.cache.Delete(metadataCacheKey(userID))
}

// CachedUserIDs lists the users with a live full-session cache entry, i.e.
// everyone this process served within the cache TTL. The document store has
// no list operation; cache key enumeration is the maintenance scope.
func (m *Manager) CachedUserIDs() []string {
	var ids []string
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, "user-sessions-metadata-") {
			continue
		}
		userID := strings.TrimPrefix(key, "user-sessions-")
		if userID == key || userID == "" {
			continue
		}
		ids = append(ids, userID)
	}
	return ids
}

// RunMaintenance archives and compacts for every user with a live cache
// entry. Both passes recompute from current state, so repeated runs are safe.
func (m *Manager) RunMaintenance(ctx context.Context) error {
	var errs []error
	for _, userID := range m.CachedUserIDs() {
		if err := m.ArchiveOldSessions(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", userID, err))
		}
		if err := m.CompactSessions(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("compact %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// TitleSuggester produces a session title from the opening message.
type TitleSuggester interface {
	SuggestTitle(ctx context.Context, firstMessage string) string
}

// RetitleDefaultSessions replaces the default title on active sessions that
// have accumulated messages with a suggested one. It writes back only when a
// title actually changed and then invalidates both cache entries, so the
// sweep is safe to repeat.
func (m *Manager) RetitleDefaultSessions(ctx context.Context, userID string, suggester TitleSuggester) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	record, err := m.EnsureUserRecord(ctx, userID)
	if err != nil {
		return err
	}

	changed := false
	for i := range record.ActiveSessions {
		s := &record.ActiveSessions[i]
		if s.Title != m.opts.DefaultTitle || len(s.Messages) == 0 {
			continue
		}
		title := suggester.SuggestTitle(ctx, s.Messages[0].Content)
		if title == "" || title == s.Title {
			continue
		}
		s.Title = title
		changed = true
	}

	if !changed {
		return nil
	}

	record.UpdatedAt = m.now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding sessions record: %w", err)
	}
	if err := m.store.Update(ctx, sessionsCollection, userID, data); err != nil {
		return err
	}

	m.logger.Info("Retitled sessions", zap.String("user_id", userID))

	m.invalidateUser(userID)

	return nil
}
