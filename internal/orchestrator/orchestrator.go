// Package orchestrator 调度合成任务：串行执行、状态机约束、
// 事件上报和账本写入。
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/mytts/internal/ledger"
	"github.com/iabetor/mytts/internal/logger"
	"github.com/iabetor/mytts/internal/synth"
)

// ErrBusy 表示已有任务在运行，新提交被拒绝。
var ErrBusy = errors.New("合成任务进行中")

// Synthesizer 执行一次完整合成。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) (*synth.Result, error)
}

// Recorder 接收成功任务的账本记录。
type Recorder interface {
	Append(rec ledger.GenerationRecord) error
}

// EventType 事件类别。
type EventType int

const (
	// EventStarted 任务开始执行。
	EventStarted EventType = iota
	// EventCompleted 任务成功，Result 与 Record 有效。
	EventCompleted
	// EventFailed 任务失败，Err 有效。
	EventFailed
)

// Event 任务生命周期事件，由界面层消费。
type Event struct {
	JobID   string
	Type    EventType
	Result  *synth.Result
	Record  *ledger.GenerationRecord // 零分段任务为 nil
	Elapsed time.Duration
	Err     error
}

// job 一次提交的合成任务。
type job struct {
	id    string
	text  string
	voice string
	speed float64
}

// Config 调度器配置。
type Config struct {
	// Workers 并发执行的任务数，<=0 时取 1。
	// 合成引擎共享同一模型句柄，通常保持 1。
	Workers int
	// EventBuffer 事件 channel 缓冲大小，<=0 时取 16。
	EventBuffer int
}

// Orchestrator 合成任务调度器。
type Orchestrator struct {
	engine Synthesizer
	rec    Recorder
	sm     *StateMachine

	jobs   chan job
	events chan Event

	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建调度器。rec 可为 nil（不写账本）。
func New(engine Synthesizer, rec Recorder, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 16
	}

	return &Orchestrator{
		engine:  engine,
		rec:     rec,
		sm:      NewStateMachine(),
		jobs:    make(chan job, cfg.Workers),
		events:  make(chan Event, cfg.EventBuffer),
		workers: cfg.Workers,
	}
}

// Start 启动 worker。ctx 取消后 worker 处理完当前任务退出。
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true

	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
}

// Submit 提交一个合成任务，返回任务 ID。
// 已有任务在运行时返回 ErrBusy，不排队。
func (o *Orchestrator) Submit(text, voice string, speed float64) (string, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", errors.New("调度器已关闭")
	}
	o.mu.Unlock()

	if !o.sm.Transition(StateRunning) {
		return "", ErrBusy
	}

	j := job{id: uuid.NewString(), text: text, voice: voice, speed: speed}
	select {
	case o.jobs <- j:
		logger.Infof("[orchestrator] 任务 %s 已提交, 语音=%s speed=%.2f", j.id, voice, speed)
		return j.id, nil
	default:
		// worker 未启动或队列满，回滚状态
		o.sm.ForceIdle()
		return "", ErrBusy
	}
}

// Events 返回事件 channel。Close 后关闭。
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State 返回当前调度状态。
func (o *Orchestrator) State() State {
	return o.sm.Current()
}

// Close 停止接收新任务，等待在途任务结束后关闭事件 channel。
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	close(o.jobs)
	o.wg.Wait()
	close(o.events)
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-o.jobs:
			if !ok {
				return
			}
			o.run(ctx, j)
		}
	}
}

// run 执行单个任务。无论成败，结束时状态回到 Idle。
func (o *Orchestrator) run(ctx context.Context, j job) {
	defer o.sm.ForceIdle()

	start := time.Now()
	o.emit(Event{JobID: j.id, Type: EventStarted})

	result, err := o.engine.Synthesize(ctx, j.text, j.voice, j.speed)
	elapsed := time.Since(start)

	if err != nil {
		o.sm.Transition(StateFailed)
		logger.Errorf("[orchestrator] 任务 %s 失败 (%.2fs): %v", j.id, elapsed.Seconds(), err)
		o.emit(Event{JobID: j.id, Type: EventFailed, Elapsed: elapsed, Err: err})
		return
	}

	var record *ledger.GenerationRecord
	if len(result.Chunks) > 0 {
		record = buildRecord(result)
		if o.rec != nil {
			if err := o.rec.Append(*record); err != nil {
				// 账本写入失败视为任务失败，产物文件保留在磁盘上
				o.sm.Transition(StateFailed)
				logger.Errorf("[orchestrator] 任务 %s 账本写入失败: %v", j.id, err)
				o.emit(Event{JobID: j.id, Type: EventFailed, Result: result, Elapsed: elapsed, Err: err})
				return
			}
		}
	}

	o.sm.Transition(StateCompleted)
	logger.Infof("[orchestrator] 任务 %s 完成: %d 个分段, 耗时 %.2fs",
		j.id, len(result.Chunks), elapsed.Seconds())
	o.emit(Event{JobID: j.id, Type: EventCompleted, Result: result, Record: record, Elapsed: elapsed})
}

// emit 投递事件，缓冲满时丢弃并记日志，绝不阻塞 worker。
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		logger.Warnf("[orchestrator] 事件缓冲已满，丢弃事件 job=%s type=%d", ev.JobID, ev.Type)
	}
}

// buildRecord 由合成结果构造账本记录。
func buildRecord(r *synth.Result) *ledger.GenerationRecord {
	rec := &ledger.GenerationRecord{
		Timestamp: r.Timestamp,
		Combined:  r.CombinedPath,
	}
	for _, c := range r.Chunks {
		rec.Chunks = append(rec.Chunks, ledger.ChunkMeta{
			Graphemes: c.Graphemes,
			Phonemes:  c.Phonemes,
			Filepath:  c.Filepath,
		})
	}
	return rec
}
