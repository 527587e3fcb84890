package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"fundus-go/internal/dataset"
	"fundus-go/internal/diagnosis"
	"fundus-go/internal/dto"
	"fundus-go/internal/intake"

	"github.com/sirupsen/logrus"
)

// State 上传状态机的状态
type State string

const (
	StateInitial         State = "initial"
	StateLeftCollecting  State = "left_collecting"
	StateRightCollecting State = "right_collecting"
	StateAnalyzing       State = "analyzing"
	StateResults         State = "results"
)

var (
	// ErrInvalidTransition 当前状态不允许该操作
	ErrInvalidTransition = errors.New("当前状态不允许该操作")
	// ErrBusy 当前阶段仍在处理中
	ErrBusy = errors.New("当前阶段正在处理中，请稍候")
	// ErrStaleSession 会话在处理期间被重置，结果已丢弃
	ErrStaleSession = errors.New("会话已重置，本次结果已丢弃")
)

// TableProvider 提供当前参考数据集
type TableProvider interface {
	Table() *dataset.Table
	Reload(ctx context.Context) *dataset.Table
}

// Pipeline 会话使用的处理组件，多个会话共享
type Pipeline struct {
	Images        *intake.Loader
	Datasets      TableProvider
	Advice        *diagnosis.AdviceGenerator
	MatchDelay    time.Duration
	ReloadOnReset bool
	Logger        *logrus.Logger
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (p *Pipeline) logger() *logrus.Logger {
	if p.Logger == nil {
		return discardLogger
	}
	return p.Logger
}

// Session 一次批量分析会话（上传 → 结果 → 重置）
//
// 所有状态由 mu 保护。解码与匹配在锁外进行，提交结果前比较 epoch，
// 重置后迟到的结果直接丢弃。
type Session struct {
	ID        string
	CreatedAt time.Time

	pipeline *Pipeline
	logger   *logrus.Entry

	mu         sync.Mutex
	state      State
	epoch      uint64
	busy       bool
	starting   bool // 已登记分析，后台尚未开始
	table      *dataset.Table
	left       []intake.IndexedImage
	right      []intake.IndexedImage
	records    []diagnosis.PatientRecord
	lastError  string
	lastActive time.Time

	// 用于广播的事件历史和订阅者管理
	eventHistory     []*dto.ProgressEvent
	eventHistoryLock sync.RWMutex
	subscribers      map[chan *dto.ProgressEvent]bool
	subscribersLock  sync.RWMutex
}

// NewSession 创建处于 Initial 状态的会话
func NewSession(id string, pipeline *Pipeline) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		pipeline:   pipeline,
		logger:     pipeline.logger().WithField("session_id", id),
		state:      StateInitial,
		lastActive: now,
	}
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch 当前代数，每次重置加一
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Start Initial → LeftEyeCollecting，并固定本次会话使用的参考数据集
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInitial {
		return s.transitionError("开始")
	}
	if s.pipeline.Datasets != nil {
		s.table = s.pipeline.Datasets.Table()
	}
	s.lastError = ""
	s.setState(StateLeftCollecting)
	return nil
}

// SubmitLeft 提交左眼批次，全部校验并解码成功后进入 RightEyeCollecting
func (s *Session) SubmitLeft(ctx context.Context, files []intake.RawFile) ([]intake.IndexedImage, error) {
	return s.collect(ctx, intake.SideLeft, files)
}

// SubmitRight 提交右眼批次，成功后进入 Analyzing
//
// 左右数量不一致时丢弃两侧图片并回到 Initial。
func (s *Session) SubmitRight(ctx context.Context, files []intake.RawFile) ([]intake.IndexedImage, error) {
	return s.collect(ctx, intake.SideRight, files)
}

// CanSubmit 当前是否可以上传该眼别的批次，在读取上传内容之前调用
func (s *Session) CanSubmit(side intake.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked(side)
}

// RejectBatch 记录在会话之外校验失败的批次，状态不变
func (s *Session) RejectBatch(side intake.Side, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(string(side), err)
}

func (s *Session) canSubmitLocked(side intake.Side) error {
	want := StateLeftCollecting
	if side == intake.SideRight {
		want = StateRightCollecting
	}
	if s.state != want {
		return s.transitionError("上传" + side.Label())
	}
	if s.busy {
		return ErrBusy
	}
	return nil
}

// collect 校验、解码并提交一个阶段的图片
func (s *Session) collect(ctx context.Context, side intake.Side, files []intake.RawFile) ([]intake.IndexedImage, error) {
	phase := string(side)

	s.mu.Lock()
	if err := s.canSubmitLocked(side); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	// 校验失败时整批拒绝，不调度任何解码
	if err := s.pipeline.Images.Check(files, side); err != nil {
		s.failLocked(phase, err)
		s.mu.Unlock()
		return nil, err
	}
	epoch := s.epoch
	s.busy = true
	s.touch()
	s.mu.Unlock()

	total := len(files)
	s.emit(epoch, progressEvent(phase, 0, total))

	// 批次一旦发出就会跑完，不随请求取消
	images, err := s.pipeline.Images.Load(context.WithoutCancel(ctx), files, side, func(done, total int) {
		s.emit(epoch, progressEvent(phase, done, total))
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.WithField("side", side).Info("会话已重置，丢弃迟到的解码结果")
		return nil, ErrStaleSession
	}
	s.busy = false
	s.touch()

	if err != nil {
		s.failLocked(phase, err)
		return nil, err
	}

	if side == intake.SideLeft {
		s.left = images
		s.right = nil
		s.setState(StateRightCollecting)
		return images, nil
	}

	if len(images) != len(s.left) {
		err := fmt.Errorf("%w: 左眼 %d 张, 右眼 %d 张", diagnosis.ErrCountMismatch, len(s.left), len(images))
		s.left, s.right = nil, nil
		s.failLocked(phase, err)
		s.setState(StateInitial)
		return nil, err
	}
	s.right = images
	s.setState(StateAnalyzing)
	return images, nil
}

// Analyze 匹配并生成建议，成功后进入 Results
//
// 失败时保持 Analyzing，可再次调用。
func (s *Session) Analyze(ctx context.Context) ([]diagnosis.PatientRecord, error) {
	s.mu.Lock()
	if s.state != StateAnalyzing {
		err := s.transitionError("分析")
		s.mu.Unlock()
		return nil, err
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	epoch := s.epoch
	left, right, table := s.left, s.right, s.table
	s.busy = true
	s.starting = false
	s.touch()
	s.mu.Unlock()

	records, err := s.analyze(ctx, epoch, left, right, table)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Info("会话已重置，丢弃迟到的分析结果")
		return nil, ErrStaleSession
	}
	s.busy = false
	s.touch()

	if err != nil {
		s.failLocked("analysis", err)
		return nil, err
	}

	s.records = records
	// 图片随记录保存，阶段缓存不再需要
	s.left, s.right = nil, nil
	s.lastError = ""
	s.setState(StateResults)
	s.addEvent(&dto.ProgressEvent{
		Type:    dto.EventFinished,
		State:   string(StateResults),
		Phase:   "analysis",
		Percent: 100,
		Message: fmt.Sprintf("分析完成，共 %d 位患者", len(records)),
		Epoch:   s.epoch,
	})
	return records, nil
}

func (s *Session) analyze(ctx context.Context, epoch uint64, left, right []intake.IndexedImage, table *dataset.Table) ([]diagnosis.PatientRecord, error) {
	matches, err := diagnosis.NewMatcher(table).Match(left, right)
	if err != nil {
		return nil, err
	}

	total := len(matches)
	advice := make([]string, total)
	s.emit(epoch, progressEvent("analysis", 0, total))

	for i, m := range matches {
		if s.Epoch() != epoch {
			return nil, ErrStaleSession
		}
		if err := sleepCtx(ctx, s.pipeline.MatchDelay); err != nil {
			return nil, err
		}
		text, err := s.pipeline.Advice.Generate(ctx, m.Disease)
		if err != nil {
			return nil, err
		}
		advice[i] = text

		s.logger.WithFields(logrus.Fields{"slot": i, "disease": m.Disease, "matched": m.Matched}).Debug("匹配完成")
		s.emit(epoch, progressEvent("analysis", i+1, total))
	}

	return diagnosis.Assemble(left, right, matches, advice)
}

// Reset 任意状态回到 Initial，释放全部图片与记录；可重复调用
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.state = StateInitial
	s.busy = false
	s.starting = false
	s.table = nil
	s.left, s.right, s.records = nil, nil, nil
	s.lastError = ""
	s.touch()
	epoch := s.epoch

	s.eventHistoryLock.Lock()
	s.eventHistory = nil
	s.eventHistoryLock.Unlock()

	s.addEvent(&dto.ProgressEvent{Type: dto.EventReset, State: string(StateInitial), Epoch: epoch})
	s.mu.Unlock()

	s.logger.WithField("epoch", epoch).Info("会话已重置")

	if s.pipeline.ReloadOnReset && s.pipeline.Datasets != nil {
		s.pipeline.Datasets.Reload(ctx)
	}
}

// Records 当前结果，仅 Results 状态可用
func (s *Session) Records() ([]diagnosis.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateResults {
		return nil, s.transitionError("获取结果")
	}
	out := make([]diagnosis.PatientRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Snapshot 会话状态快照
func (s *Session) Snapshot() dto.SessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := dto.SessionResponse{
		SessionID:   s.ID,
		State:       string(s.state),
		Epoch:       s.epoch,
		Busy:        s.busy || s.starting,
		LeftCount:   len(s.left),
		RightCount:  len(s.right),
		RecordCount: len(s.records),
		LastError:   s.lastError,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.lastActive.Format(time.RFC3339),
	}
	if s.table != nil {
		resp.DatasetSource = s.table.Source()
		resp.DatasetRows = s.table.Len()
	}
	return resp
}

// idleSince 最近一次操作时间，处理中的会话视为活跃
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.busy || s.starting
}

// reserveAnalysis 检查状态并登记一次分析，同一时刻只有一个调用方能成功
func (s *Session) reserveAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAnalyzing {
		return s.transitionError("分析")
	}
	if s.busy || s.starting {
		return ErrBusy
	}
	s.starting = true
	s.touch()
	return nil
}

// cancelReservation 未能开始分析时撤销登记
func (s *Session) cancelReservation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
}

// AddEvent 添加事件到历史并广播给所有订阅者
func (s *Session) AddEvent(event *dto.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Epoch = s.epoch
	s.addEvent(event)
}

func (s *Session) addEvent(event *dto.ProgressEvent) {
	s.eventHistoryLock.Lock()
	s.eventHistory = append(s.eventHistory, event)
	s.eventHistoryLock.Unlock()

	s.subscribersLock.RLock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// 通道满了，跳过（避免阻塞）
		}
	}
	s.subscribersLock.RUnlock()
}

// emit 只在 epoch 未变时记录事件
func (s *Session) emit(epoch uint64, event *dto.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	event.Epoch = epoch
	event.State = string(s.state)
	s.addEvent(event)
}

// Subscribe 订阅事件（返回一个接收事件的通道）
func (s *Session) Subscribe() chan *dto.ProgressEvent {
	ch := make(chan *dto.ProgressEvent, 200)

	s.subscribersLock.Lock()
	if s.subscribers == nil {
		s.subscribers = make(map[chan *dto.ProgressEvent]bool)
	}
	s.subscribers[ch] = true
	s.subscribersLock.Unlock()

	return ch
}

// Unsubscribe 取消订阅
func (s *Session) Unsubscribe(ch chan *dto.ProgressEvent) {
	s.subscribersLock.Lock()
	delete(s.subscribers, ch)
	s.subscribersLock.Unlock()
	// 不关闭通道，SSE handler 通过 context.Done() 检测断开
}

// GetEventHistory 获取事件历史的副本
func (s *Session) GetEventHistory() []*dto.ProgressEvent {
	s.eventHistoryLock.RLock()
	defer s.eventHistoryLock.RUnlock()

	history := make([]*dto.ProgressEvent, len(s.eventHistory))
	copy(history, s.eventHistory)
	return history
}

// 以下方法要求持有 mu

func (s *Session) setState(next State) {
	prev := s.state
	s.state = next
	s.logger.WithFields(logrus.Fields{"from": prev, "state": next}).Info("状态迁移")
	s.addEvent(&dto.ProgressEvent{Type: dto.EventState, State: string(next), Epoch: s.epoch})
}

func (s *Session) failLocked(phase string, err error) {
	s.lastError = err.Error()
	s.logger.WithFields(logrus.Fields{"phase": phase, "state": s.state}).WithError(err).Warn("阶段失败")
	s.addEvent(&dto.ProgressEvent{
		Type:    dto.EventError,
		State:   string(s.state),
		Phase:   phase,
		Message: err.Error(),
		Epoch:   s.epoch,
	})
}

func (s *Session) transitionError(op string) error {
	return fmt.Errorf("%w: 状态 %s 下不能%s", ErrInvalidTransition, s.state, op)
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func progressEvent(phase string, done, total int) *dto.ProgressEvent {
	d, t := done, total
	ev := &dto.ProgressEvent{Type: dto.EventProgress, Phase: phase, Done: &d, Total: &t}
	if total > 0 {
		ev.Percent = float64(done) * 100 / float64(total)
	}
	return ev
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
