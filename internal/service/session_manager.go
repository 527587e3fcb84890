package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fundus-go/internal/dto"
	"fundus-go/internal/intake"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("会话不存在或已过期")
	// ErrAnalysisUnavailable 分析槽位已满，等待超时
	ErrAnalysisUnavailable = errors.New("分析服务繁忙，请稍后重试")
)

// limiterKey 所有实例共享的分析槽位
const limiterKey = "analysis"

// Limiter 跨实例的分析并发限制
type Limiter interface {
	AcquireWait(ctx context.Context, key string, maxWait time.Duration) error
	Release(ctx context.Context, key string)
}

// ManagerOptions 会话管理器参数
type ManagerOptions struct {
	IdleTimeout     time.Duration
	JanitorInterval time.Duration
	Limiter         Limiter
	LimiterMaxWait  time.Duration
}

// SessionManager 会话管理器
type SessionManager struct {
	pipeline *Pipeline
	opts     ManagerOptions
	logger   *logrus.Logger

	// 内存中的会话状态
	sessions     map[string]*Session
	sessionsLock sync.RWMutex

	// 后台分析
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSessionManager 创建会话管理器
func NewSessionManager(pipeline *Pipeline, opts ManagerOptions) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		pipeline: pipeline,
		opts:     opts,
		logger:   pipeline.logger(),
		sessions: make(map[string]*Session),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Create 创建新会话
func (m *SessionManager) Create() *Session {
	s := NewSession(uuid.NewString(), m.pipeline)

	m.sessionsLock.Lock()
	m.sessions[s.ID] = s
	m.sessionsLock.Unlock()

	m.logger.WithField("session_id", s.ID).Info("创建会话")
	return s
}

// Get 获取会话
func (m *SessionManager) Get(id string) (*Session, error) {
	m.sessionsLock.RLock()
	s, ok := m.sessions[id]
	m.sessionsLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete 重置并移除会话
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.sessionsLock.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.sessionsLock.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Reset(ctx)
	m.logger.WithField("session_id", id).Info("删除会话")
	return nil
}

// List 所有会话的快照，按创建时间排序
func (m *SessionManager) List() []dto.SessionResponse {
	m.sessionsLock.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessionsLock.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	out := make([]dto.SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = s.Snapshot()
	}
	return out
}

// Len 当前会话数
func (m *SessionManager) Len() int {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	return len(m.sessions)
}

// SubmitRight 提交右眼批次，成功后在后台开始分析
func (m *SessionManager) SubmitRight(ctx context.Context, s *Session, files []intake.RawFile) ([]intake.IndexedImage, error) {
	images, err := s.SubmitRight(ctx, files)
	if err != nil {
		return nil, err
	}
	if err := m.StartAnalysis(ctx, s); err != nil {
		return images, err
	}
	return images, nil
}

// StartAnalysis 获取分析槽位后在后台运行分析
//
// 槽位等待在调用方的 ctx 内完成，超时返回 ErrAnalysisUnavailable，会话保持 Analyzing，可以重试。
func (m *SessionManager) StartAnalysis(ctx context.Context, s *Session) error {
	if err := s.reserveAnalysis(); err != nil {
		return err
	}

	release, err := m.acquire(ctx)
	if err != nil {
		s.cancelReservation()
		s.AddEvent(&dto.ProgressEvent{Type: dto.EventError, Phase: "analysis", Message: err.Error()})
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer release()

		if _, err := s.Analyze(m.baseCtx); err != nil && !errors.Is(err, ErrStaleSession) {
			m.logger.WithField("session_id", s.ID).WithError(err).Warn("分析失败")
		}
	}()
	return nil
}

func (m *SessionManager) acquire(ctx context.Context) (func(), error) {
	if m.opts.Limiter == nil {
		return func() {}, nil
	}
	if err := m.opts.Limiter.AcquireWait(ctx, limiterKey, m.opts.LimiterMaxWait); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return func() {
		m.opts.Limiter.Release(context.Background(), limiterKey)
	}, nil
}

// RunJanitor 定期清理空闲会话，直到 ctx 结束
func (m *SessionManager) RunJanitor(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 || m.opts.JanitorInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.EvictIdle(ctx, now)
		}
	}
}

// EvictIdle 移除空闲超过 IdleTimeout 的会话，返回移除数量
func (m *SessionManager) EvictIdle(ctx context.Context, now time.Time) int {
	m.sessionsLock.RLock()
	var expired []string
	for id, s := range m.sessions {
		last, busy := s.idleSince()
		if !busy && now.Sub(last) >= m.opts.IdleTimeout {
			expired = append(expired, id)
		}
	}
	m.sessionsLock.RUnlock()

	for _, id := range expired {
		if err := m.Delete(ctx, id); err == nil {
			m.logger.WithField("session_id", id).Info("清理空闲会话")
		}
	}
	return len(expired)
}

// Shutdown 取消后台分析并等待其退出
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait 等待所有后台分析结束
func (m *SessionManager) Wait() {
	m.wg.Wait()
}
