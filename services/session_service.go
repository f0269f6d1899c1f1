package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Session ties one session ID to its workspace directory, its vector store
// and the QA engine reading from it. Operations on a session are serialised
// through mu.
type Session struct {
	ID        string
	Workspace string
	Store     VectorStore
	QA        *QAEngine

	mu   sync.Mutex
	refs int
}

// SessionManager keeps open sessions in an expiring registry. Every
// GetOrCreate or Create must be paired with a Release. A session expires only
// once it has no holders; its store is then closed while its workspace stays
// on disk, to be reopened if the same ID comes back.
type SessionManager struct {
	dataDir   string
	open      StoreOpener
	generator Generator
	topK      int
	timeout   time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	sessions *cache.Cache
	inUse    map[string]*Session
	closed   bool
}

func NewSessionManager(dataDir string, idleTTL time.Duration, open StoreOpener, generator Generator, topK int, timeout time.Duration, log *zap.Logger) *SessionManager {
	ttl := idleTTL
	cleanup := idleTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	m := &SessionManager{
		dataDir:   dataDir,
		open:      open,
		generator: generator,
		topK:      topK,
		timeout:   timeout,
		log:       log,
		sessions:  cache.New(ttl, cleanup),
		inUse:     map[string]*Session{},
	}
	m.sessions.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			m.mu.Lock()
			busy := s.refs > 0
			m.mu.Unlock()
			if busy {
				// Release puts it back in the registry.
				m.log.Debug("session expired while in use", zap.String("session_id", id))
				return
			}
			if err := s.Store.Close(); err != nil {
				m.log.Warn("failed to close evicted session store", zap.String("session_id", id), zap.Error(err))
			}
			m.log.Info("session evicted", zap.String("session_id", id))
		}
	})
	return m
}

// GetOrCreate resolves id to a session. A known or reopenable ID returns that
// session; a missing, malformed or unknown ID starts a new one.
func (m *SessionManager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
		if v, ok := m.sessions.Get(id); ok {
			m.sessions.SetDefault(id, v)
			return m.acquire(v.(*Session)), nil
		}
		if s, ok := m.inUse[id]; ok {
			m.sessions.SetDefault(id, s)
			return m.acquire(s), nil
		}
		workspace := m.workspace(id)
		if info, err := os.Stat(workspace); err == nil && info.IsDir() {
			s, err := m.bind(ctx, id, workspace)
			if err != nil {
				return nil, err
			}
			m.log.Info("session reopened", zap.String("session_id", id))
			return m.acquire(s), nil
		}
	}
	return m.create(ctx)
}

// Create always starts a new session with a fresh ID. Its workspace is
// created when the first manual is stored.
func (m *SessionManager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(ctx)
}

func (m *SessionManager) create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	workspace := m.workspace(id)
	s, err := m.bind(ctx, id, workspace)
	if err != nil {
		return nil, err
	}
	m.log.Info("session created", zap.String("session_id", id), zap.String("workspace", workspace))
	return m.acquire(s), nil
}

// acquire must be called with m.mu held.
func (m *SessionManager) acquire(s *Session) *Session {
	s.refs++
	m.inUse[s.ID] = s
	return s
}

// Release drops one hold on s and restarts its idle timer.
func (m *SessionManager) Release(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	if s.refs == 0 {
		delete(m.inUse, s.ID)
	}
	if !m.closed {
		m.sessions.SetDefault(s.ID, s)
	}
}

func (m *SessionManager) bind(ctx context.Context, id, workspace string) (*Session, error) {
	store, err := m.open(ctx, id, workspace)
	if err != nil {
		return nil, fmt.Errorf("open vector store for session %s: %w", id, err)
	}
	s := &Session{
		ID:        id,
		Workspace: workspace,
		Store:     store,
		QA:        NewQAEngine(store, m.generator, m.topK, m.timeout, m.log.Named("qa").With(zap.String("session_id", id))),
	}
	m.sessions.SetDefault(id, s)
	return s, nil
}

func (m *SessionManager) workspace(id string) string {
	return filepath.Join(m.dataDir, id)
}

// Len reports how many sessions are currently registered.
func (m *SessionManager) Len() int {
	return m.sessions.ItemCount()
}

// Close closes every open session store. Workspaces are kept.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := map[string]*Session{}
	for id, item := range m.sessions.Items() {
		if s, ok := item.Object.(*Session); ok {
			open[id] = s
		}
	}
	for id, s := range m.inUse {
		open[id] = s
	}

	var firstErr error
	for id, s := range open {
		if err := s.Store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %s: %w", id, err)
		}
	}
	m.sessions.Flush()
	m.inUse = map[string]*Session{}
	m.closed = true
	return firstErr
}
