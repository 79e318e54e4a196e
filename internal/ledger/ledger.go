// Package ledger 维护生成历史账本：outputs/generations.json。
// 账本是一个 JSON 数组，每次变更整体重写，读写由互斥锁保护。
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iabetor/mytts/internal/logger"
)

// ChunkMeta 账本中一个分段的元数据。
type ChunkMeta struct {
	Graphemes string `json:"graphemes"`
	Phonemes  string `json:"phonemes"`
	Filepath  string `json:"filepath"`
}

// GenerationRecord 一次生成的账本记录。
type GenerationRecord struct {
	// Timestamp Unix 时间（秒，含小数）。
	Timestamp float64     `json:"timestamp"`
	Chunks    []ChunkMeta `json:"chunks"`
	// Combined 拼接音频的路径。文件已丢失的历史记录中为空串。
	Combined string `json:"combined"`
}

// Ledger 生成历史账本。
type Ledger struct {
	path string

	mu      sync.Mutex
	records []GenerationRecord
}

// New 打开 path 处的账本。文件不存在或损坏时从空账本开始，
// 不报错，只记日志。
func New(path string) *Ledger {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("[ledger] 读取账本失败，从空账本开始: %v", err)
		}
		return l
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		logger.Warnf("[ledger] 账本 %s 损坏，从空账本开始: %v", path, err)
		l.records = nil
	}
	return l
}

// Records 返回全部记录的副本，按追加顺序排列。
func (l *Ledger) Records() []GenerationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]GenerationRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Append 追加一条记录并落盘。combined 文件已不存在时清空
// 该字段再写入，记录本身保留。
func (l *Ledger) Append(rec GenerationRecord) error {
	if rec.Combined != "" {
		if _, err := os.Stat(rec.Combined); err != nil {
			logger.Warnf("[ledger] combined 文件不存在，置空: %s", rec.Combined)
			rec.Combined = ""
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	return l.flush()
}

// ClearAll 清空账本并落盘。
func (l *Ledger) ClearAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	return l.flush()
}

// PurgeChunkRefs 移除所有记录中的分段引用，保留记录本身和
// combined 引用。清理临时 chunk 文件后调用。
func (l *Ledger) PurgeChunkRefs() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		l.records[i].Chunks = nil
	}
	return l.flush()
}

// flush 整体重写账本文件。调用方必须持有 l.mu。
func (l *Ledger) flush() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("创建账本目录失败: %w", err)
	}

	records := l.records
	if records == nil {
		records = []GenerationRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化账本失败: %w", err)
	}

	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("写入账本失败: %w", err)
	}
	return nil
}
