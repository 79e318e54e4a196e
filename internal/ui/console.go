// Package ui 提供终端界面：状态输出和交互命令循环。
package ui

import (
	"fmt"
	"sync"

	"github.com/iabetor/mytts/internal/ledger"
)

// Console 把界面回调打印到终端，实现 app.View。
type Console struct {
	mu      sync.Mutex
	records []ledger.GenerationRecord
}

// NewConsole 创建终端视图。
func NewConsole() *Console {
	return &Console{}
}

func (c *Console) SetStatus(msg string, timeoutMs int) {
	fmt.Printf("[状态] %s\n", msg)
}

func (c *Console) SetSynthesizeEnabled(enabled bool) {
	if !enabled {
		fmt.Println("[状态] 合成入口已锁定")
	}
}

func (c *Console) ShowError(msg string) {
	fmt.Printf("[错误] %s\n", msg)
}

func (c *Console) SetGenerationTime(seconds float64) {
	fmt.Printf("[状态] 生成耗时 %.2f 秒\n", seconds)
}

func (c *Console) SetWaveform(path string) {
	fmt.Printf("[状态] 音频就绪: %s\n", path)
}

func (c *Console) RefreshResults(records []ledger.GenerationRecord) {
	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	fmt.Printf("[状态] 历史记录 %d 条\n", len(records))
}

// Records 返回最近一次刷新的记录列表。
func (c *Console) Records() []ledger.GenerationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ledger.GenerationRecord, len(c.records))
	copy(out, c.records)
	return out
}
