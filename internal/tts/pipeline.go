// Package tts 定义语音合成管线接口及 Kokoro、Edge 两种实现。
package tts

import (
	"context"
	"regexp"
	"strings"
)

// Segment 是一段文本的合成结果。
type Segment struct {
	// Graphemes 原始文本片段。
	Graphemes string
	// Phonemes 音素串，尽力生成，失败时为空。
	Phonemes string
	// Samples 单声道 float32 音频样本。
	Samples []float32
}

// Pipeline 定义语音合成管线接口。
type Pipeline interface {
	// Run 将文本按分段规则切分后逐段合成。
	// 返回的分段顺序与文本顺序一致，空白段被跳过。
	Run(ctx context.Context, text, voice string, speed float64) ([]Segment, error)
	// SampleRate 返回输出音频的采样率（Hz）。
	SampleRate() int
	// Close 释放底层资源。
	Close()
}

// SplitText 按正则切分文本，丢弃空白段。
// re 为 nil 时整段文本作为单一分段。
func SplitText(re *regexp.Regexp, text string) []string {
	var parts []string
	if re == nil {
		parts = []string{text}
	} else {
		parts = re.Split(text, -1)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
