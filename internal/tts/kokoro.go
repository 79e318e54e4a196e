package tts

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/mytts/internal/logger"
)

// kokoroSampleRate Kokoro 模型的固定输出采样率。
const kokoroSampleRate = 24000

// KokoroConfig Kokoro 管线的构造配置。
type KokoroConfig struct {
	// ModelDir 包含 model.onnx、voices.bin、tokens.txt 的目录。
	ModelDir string
	// Lang 多语言模型的语言代码，如 "en-us"、"zh"。
	Lang string
	// NumThreads 推理线程数，<=0 时取 2。
	NumThreads int
	// SplitRe 文本分段正则，nil 时不分段。
	SplitRe *regexp.Regexp
}

// KokoroPipeline 基于 sherpa-onnx 的本地 Kokoro 合成管线。
// 模型在首次 Run 时加载，加载后常驻直到 Close。
type KokoroPipeline struct {
	cfg KokoroConfig

	mu     sync.Mutex
	tts    *sherpa.OfflineTts
	closed bool
}

// NewKokoroPipeline 创建 Kokoro 管线，不立即加载模型。
func NewKokoroPipeline(cfg KokoroConfig) *KokoroPipeline {
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	return &KokoroPipeline{cfg: cfg}
}

// Run 逐段合成文本。未知语音名或模型加载失败时返回错误。
func (k *KokoroPipeline) Run(ctx context.Context, text, voice string, speed float64) ([]Segment, error) {
	sid, ok := SpeakerID(voice)
	if !ok {
		return nil, fmt.Errorf("未知语音: %s", voice)
	}

	handle, err := k.engine()
	if err != nil {
		return nil, err
	}

	parts := SplitText(k.cfg.SplitRe, text)
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		audio := handle.Generate(part, sid, float32(speed))
		if len(audio.Samples) == 0 {
			logger.Warnf("[tts] kokoro: 分段未产生音频: %q", part)
			continue
		}

		segments = append(segments, Segment{
			Graphemes: part,
			Phonemes:  Phonemize(ctx, part),
			Samples:   audio.Samples,
		})
	}

	logger.Infof("[tts] kokoro: 合成 %d 个分段，语音=%s speed=%.2f", len(segments), voice, speed)
	return segments, nil
}

// SampleRate 返回 Kokoro 的输出采样率。
func (k *KokoroPipeline) SampleRate() int {
	return kokoroSampleRate
}

// Close 释放模型句柄。之后再调用 Run 会重新加载。
func (k *KokoroPipeline) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.tts != nil {
		sherpa.DeleteOfflineTts(k.tts)
		k.tts = nil
	}
	k.closed = true
}

// engine 返回已加载的模型句柄，必要时加载。
func (k *KokoroPipeline) engine() (*sherpa.OfflineTts, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, fmt.Errorf("管线已关闭")
	}
	if k.tts != nil {
		return k.tts, nil
	}

	cfg := &sherpa.OfflineTtsConfig{}
	cfg.Model.Kokoro.Model = filepath.Join(k.cfg.ModelDir, "model.onnx")
	cfg.Model.Kokoro.Voices = filepath.Join(k.cfg.ModelDir, "voices.bin")
	cfg.Model.Kokoro.Tokens = filepath.Join(k.cfg.ModelDir, "tokens.txt")
	cfg.Model.Kokoro.DataDir = filepath.Join(k.cfg.ModelDir, "espeak-ng-data")
	cfg.Model.Kokoro.Lang = k.cfg.Lang
	cfg.Model.Kokoro.LengthScale = 1.0
	cfg.Model.NumThreads = k.cfg.NumThreads
	cfg.Model.Provider = "cpu"
	cfg.MaxNumSentences = 1 // Kokoro 只支持逐句

	logger.Infof("[tts] kokoro: 加载模型 %s (threads=%d)", k.cfg.ModelDir, k.cfg.NumThreads)
	tts := sherpa.NewOfflineTts(cfg)
	if tts == nil {
		return nil, fmt.Errorf("加载 Kokoro 模型失败: %s", k.cfg.ModelDir)
	}

	k.tts = tts
	return k.tts, nil
}
