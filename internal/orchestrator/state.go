package orchestrator

import (
	"sync"

	"github.com/iabetor/mytts/internal/logger"
)

// State 表示合成任务的当前运行状态。
type State int

const (
	// StateIdle — 空闲，可接受新任务。
	StateIdle State = iota
	// StateRunning — 正在合成。
	StateRunning
	// StateCompleted — 上一任务成功结束（瞬态，随即回到 Idle）。
	StateCompleted
	// StateFailed — 上一任务失败（瞬态，随即回到 Idle）。
	StateFailed
)

var stateNames = [...]string{
	"Idle",
	"Running",
	"Completed",
	"Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
	}
}

// SetOnChange 注册状态变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Idle      → Running    （任务开始）
//	Running   → Completed  （合成成功）
//	Running   → Failed     （合成失败）
//	Completed → Idle       （结果已上报）
//	Failed    → Idle       （错误已上报）
//
// 任何状态都可以转换到 Idle（用于错误恢复）。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Warnf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// ForceIdle 无条件重置状态为 Idle。
func (sm *StateMachine) ForceIdle() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.current
	sm.current = StateIdle
	if from != StateIdle {
		logger.Warnf("[state] 强制重置 %s → Idle", from)
		if sm.onChange != nil {
			sm.onChange(from, StateIdle)
		}
	}
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to State) bool {
	// 始终允许重置到 Idle（用于错误恢复）
	if to == StateIdle {
		return true
	}
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to == StateCompleted || to == StateFailed
	case StateCompleted, StateFailed:
		return false
	}
	return false
}
