// internal/services/session_service.go
package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/VNScriptCreator/internal/errors"
	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

// Project 一个会话独占的工作区，持有所有列表的权威副本
type Project struct {
	ID        string
	CreatedAt time.Time

	mu             sync.RWMutex
	concept        string
	characters     []models.Character
	arcs           []models.StoryArc
	milestones     []models.Milestone
	dialogueScenes []models.DialogueScene
	lastAccessed   time.Time
}

func newProject(id string, now time.Time) *Project {
	return &Project{
		ID:             id,
		CreatedAt:      now,
		characters:     []models.Character{},
		arcs:           []models.StoryArc{},
		milestones:     []models.Milestone{},
		dialogueScenes: []models.DialogueScene{},
		lastAccessed:   now,
	}
}

// Snapshot 返回当前数据的副本（不含导出时间）
func (p *Project) Snapshot() models.ExportBundle {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return models.ExportBundle{
		StoryConcept:   p.concept,
		Characters:     slices.Clone(p.characters),
		StoryArcs:      slices.Clone(p.arcs),
		Milestones:     slices.Clone(p.milestones),
		DialogueScenes: slices.Clone(p.dialogueScenes),
	}
}

// LastAccessed 最后访问时间
func (p *Project) LastAccessed() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastAccessed
}

func (p *Project) touch(now time.Time) {
	p.mu.Lock()
	p.lastAccessed = now
	p.mu.Unlock()
}

// update 在写锁下修改工作区
func (p *Project) update(fn func(p *Project)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

// removeByID 按 ID 删除记录，返回是否找到
func removeByID[T any](items []T, id string, idOf func(T) string) ([]T, bool) {
	idx := slices.IndexFunc(items, func(item T) bool { return idOf(item) == id })
	if idx < 0 {
		return items, false
	}
	return slices.Delete(items, idx, idx+1), true
}

// ------------------------------------------------

// ErrSessionLimit 会话数量达到上限且没有可回收的空闲会话
var ErrSessionLimit = errors.New("session limit reached")

// TeardownHook 会话销毁时的回调
type TeardownHook func(sessionID string)

// SessionService 管理每个会话的工作区：创建、查找、销毁与空闲回收
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Project
	hooks    []TeardownHook

	ttl           time.Duration
	sweepInterval time.Duration
	maxSessions   int
	metrics       *utils.MetricsCollector
	now           func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionService 创建会话服务；maxSessions <= 0 表示不限数量，metrics 可为 nil
func NewSessionService(ttl, sweepInterval time.Duration, maxSessions int, metrics *utils.MetricsCollector) *SessionService {
	return &SessionService{
		sessions:      make(map[string]*Project),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		maxSessions:   maxSessions,
		metrics:       metrics,
		now:           time.Now,
	}
}

// OnTeardown 注册会话销毁回调
func (s *SessionService) OnTeardown(hook TeardownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Create 创建新的会话工作区；达到上限时先回收空闲会话，仍然已满则返回 ErrSessionLimit
func (s *SessionService) Create() (*Project, error) {
	if s.full() {
		s.sweepExpired()
	}

	p := newProject(uuid.NewString(), s.now())

	s.mu.Lock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		utils.GetLogger().Warn("会话数量已达上限", map[string]interface{}{"limit": s.maxSessions})
		return nil, apperrors.NewProcessingError("会话数量已达上限", ErrSessionLimit)
	}
	s.sessions[p.ID] = p
	count := len(s.sessions)
	s.mu.Unlock()

	s.reportCount(count)
	utils.GetLogger().Debug("会话已创建", map[string]interface{}{"session_id": p.ID})
	return p, nil
}

func (s *SessionService) full() bool {
	if s.maxSessions <= 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions) >= s.maxSessions
}

// Get 查找会话并刷新访问时间
func (s *SessionService) Get(id string) (*Project, error) {
	s.mu.RLock()
	p, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}
	p.touch(s.now())
	return p, nil
}

// Destroy 销毁会话，丢弃其所有数据
func (s *SessionService) Destroy(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()

	if !ok {
		return apperrors.NewNotFoundError("会话不存在: "+id, nil)
	}

	s.reportCount(count)
	for _, hook := range hooks {
		hook(id)
	}
	utils.GetLogger().Debug("会话已销毁", map[string]interface{}{"session_id": id})
	return nil
}

// Count 当前会话数量
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start 启动空闲会话回收
func (s *SessionService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepExpired()
			}
		}
	}()
}

// Stop 停止回收并等待其退出
func (s *SessionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

// sweepExpired 销毁空闲超过 TTL 的会话
func (s *SessionService) sweepExpired() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.RLock()
	var expired []string
	for id, p := range s.sessions {
		if p.LastAccessed().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if err := s.Destroy(id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		utils.GetLogger().Info("已回收空闲会话", map[string]interface{}{"count": removed})
	}
	return removed
}

func (s *SessionService) reportCount(n int) {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(n)
	}
}
