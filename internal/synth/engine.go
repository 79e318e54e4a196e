// Package synth 将合成管线的输出落盘：分段 chunk 文件加拼接后的
// combined 文件，并为账本提供生成记录所需的元数据。
package synth

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iabetor/mytts/internal/audio"
	"github.com/iabetor/mytts/internal/logger"
	"github.com/iabetor/mytts/internal/tts"
)

// VoiceEnsurer 在合成前确保语音文件就绪。
type VoiceEnsurer interface {
	EnsureVoice(ctx context.Context, name string) (string, error)
}

// Chunk 一个分段的合成产物。
type Chunk struct {
	Graphemes string
	Phonemes  string
	Samples   []float32
	Filepath  string
}

// Result 一次完整合成的产物。
type Result struct {
	// Chunks 按文本顺序排列的分段。文本为空白时长度为 0。
	Chunks []Chunk
	// CombinedPath 拼接后的完整音频路径，无分段时为空。
	CombinedPath string
	// Timestamp Unix 时间（秒），与账本记录共用。
	Timestamp float64
	// SampleRate 产物音频的采样率。
	SampleRate int
}

// Engine 串联管线、语音文件和磁盘产物。
type Engine struct {
	pipeline tts.Pipeline
	ensurer  VoiceEnsurer // 可为 nil（云端引擎无需本地语音文件）
	tempDir  string
}

// NewEngine 创建合成引擎。chunk 与 combined 文件写入 tempDir。
func NewEngine(pipeline tts.Pipeline, ensurer VoiceEnsurer, tempDir string) *Engine {
	return &Engine{pipeline: pipeline, ensurer: ensurer, tempDir: tempDir}
}

// Synthesize 执行一次完整合成：确保语音文件、逐段生成、
// 逐段落盘、拼接 combined 文件。
// 文本全为空白时返回零分段的 Result 和 nil 错误，不写任何文件。
func (e *Engine) Synthesize(ctx context.Context, text, voice string, speed float64) (*Result, error) {
	if e.ensurer != nil {
		if _, err := e.ensurer.EnsureVoice(ctx, voice); err != nil {
			return nil, fmt.Errorf("准备语音文件失败: %w", err)
		}
	}

	now := time.Now()
	segments, err := e.pipeline.Run(ctx, text, voice, speed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Timestamp:  float64(now.UnixNano()) / float64(time.Second),
		SampleRate: e.pipeline.SampleRate(),
	}
	if len(segments) == 0 {
		logger.Infof("[synth] 无有效分段，跳过落盘")
		return result, nil
	}

	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}

	stamp := now.Format("20060102_150405")
	var combined []float32
	for i, seg := range segments {
		path := filepath.Join(e.tempDir, fmt.Sprintf("chunk_%s_%d.wav", stamp, i))
		if err := audio.SaveWAV(path, seg.Samples, result.SampleRate); err != nil {
			return nil, fmt.Errorf("写入分段 %d 失败: %w", i, err)
		}

		result.Chunks = append(result.Chunks, Chunk{
			Graphemes: seg.Graphemes,
			Phonemes:  seg.Phonemes,
			Samples:   seg.Samples,
			Filepath:  path,
		})
		combined = append(combined, seg.Samples...)
	}

	combinedPath := filepath.Join(e.tempDir, fmt.Sprintf("combined_%s.wav", stamp))
	if err := audio.SaveWAV(combinedPath, combined, result.SampleRate); err != nil {
		return nil, fmt.Errorf("写入拼接文件失败: %w", err)
	}
	result.CombinedPath = combinedPath

	logger.Infof("[synth] 合成完成: %d 个分段, combined=%s", len(result.Chunks), combinedPath)
	return result, nil
}

// Export 将 combined 音频导出到 destPath。
// 目前只支持 WAV 输出；请求其它扩展名时退回 WAV 并改写扩展名。
// 返回实际写入的路径。
func Export(srcWAV, destPath string) (string, error) {
	if ext := strings.ToLower(filepath.Ext(destPath)); ext != ".wav" {
		fallback := strings.TrimSuffix(destPath, filepath.Ext(destPath)) + ".wav"
		logger.Warnf("[synth] 不支持导出 %s 格式，退回 WAV: %s", ext, fallback)
		destPath = fallback
	}

	if err := copyFile(srcWAV, destPath); err != nil {
		return "", fmt.Errorf("导出音频失败: %w", err)
	}
	return destPath, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
