package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("wizard session not found")

type session struct {
	flow     *Flow
	owner    string
	lastSeen time.Time
}

// Manager 向导会话管理器
type Manager struct {
	sessions map[string]*session
	mu       sync.RWMutex
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager 创建向导会话管理器
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*session),
		logger:   logger,
		now:      time.Now,
	}
}

// Create 为用户注册一个新的向导会话
func (m *Manager) Create(owner string, flow *Flow) string {
	id := ulid.Make().String()

	m.mu.Lock()
	m.sessions[id] = &session{flow: flow, owner: owner, lastSeen: m.now()}
	m.mu.Unlock()

	m.logger.Debug("Wizard session created",
		zap.String("sessionId", id),
		zap.String("owner", owner),
		zap.String("mode", flow.opts.Mode.String()))
	return id
}

// Get 获取会话；会话属于其他用户时视为不存在
func (m *Manager) Get(id, owner string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.owner != owner {
		return nil, ErrSessionNotFound
	}
	s.lastSeen = m.now()
	return s.flow, nil
}

// Delete 删除会话
func (m *Manager) Delete(id, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.owner == owner {
		delete(m.sessions, id)
	}
}

// Prune 清理超过 idle 未访问的会话，返回清理数量
func (m *Manager) Prune(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Info("Pruned idle wizard sessions", zap.Int("count", n))
	}
	return n
}

// Count 当前会话数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
