// Package reaper 清理临时目录中过期的 chunk 音频文件。
package reaper

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iabetor/mytts/internal/logger"
)

// chunkPrefix 只有该前缀的文件会被清理，combined 等文件不动。
const chunkPrefix = "chunk_"

// Reap 删除 dir 下修改时间超过 maxAgeDays 天的 chunk 文件。
// 只扫描顶层，不递归。目录不存在视为无事可做。
// 返回删除的文件数，单个文件的失败只记日志不中断。
func Reap(dir string, maxAgeDays int) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("[reaper] 读取目录 %s 失败: %v", dir, err)
		}
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), chunkPrefix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			logger.Warnf("[reaper] 读取 %s 信息失败: %v", e.Name(), err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warnf("[reaper] 删除 %s 失败: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Infof("[reaper] 清理 %d 个过期 chunk 文件 (>%d 天)", removed, maxAgeDays)
	}
	return removed
}

// ReapAll 删除 dir 下全部 chunk 文件，不看年龄。
// 用于界面上的「清理临时文件」操作。返回删除的文件数。
func ReapAll(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("[reaper] 读取目录 %s 失败: %v", dir, err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), chunkPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warnf("[reaper] 删除 %s 失败: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
