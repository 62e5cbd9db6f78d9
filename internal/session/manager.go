package session

import (
	"sync"

	"github.com/google/uuid"

	"mockbody/internal/handler"
	"mockbody/internal/logger"
	"mockbody/pkg/model"
)

// Manager 全局会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	opts     handler.Options
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(opts handler.Options, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = l
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Session),
		opts:     opts,
		log:      l,
	}
}

// Create 创建并注册新会话；id 为空时自动分配
func (m *Manager) Create(id model.SessionID) *Session {
	if id == "" {
		id = model.SessionID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[id]; ok {
		old.Close()
	}
	s := newSession(id, m.opts, m.log.With("session", string(id)))
	m.sessions[id] = s
	m.log.Info("创建业务会话", "sessionID", string(id))
	return s
}

// Get 获取会话
func (m *Manager) Get(id model.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 销毁会话
func (m *Manager) Delete(id model.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.Close()
	delete(m.sessions, id)
	m.log.Info("销毁业务会话", "sessionID", string(id))
	return true
}

// List 返回所有活动会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// Close 销毁全部会话
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
