package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/mytts/internal/audio"
	"github.com/iabetor/mytts/internal/logger"
)

// EdgePipeline 使用微软 Edge TTS 云端服务的合成管线，
// 通过 edge-tts-go 获取 MP3 音频，再用 go-mp3 解码为 PCM。
// 作为无本地模型时的备用引擎。
type EdgePipeline struct {
	splitRe *regexp.Regexp

	mu         sync.Mutex
	sampleRate int
}

// NewEdgePipeline 创建 Edge TTS 管线。
func NewEdgePipeline(splitRe *regexp.Regexp) *EdgePipeline {
	return &EdgePipeline{splitRe: splitRe, sampleRate: 24000}
}

// Run 逐段合成文本。voice 为 Edge TTS 的语音名，
// 如 "en-US-AriaNeural"。Edge 不支持调速，speed 被忽略。
func (e *EdgePipeline) Run(ctx context.Context, text, voice string, speed float64) ([]Segment, error) {
	parts := SplitText(e.splitRe, text)
	segments := make([]Segment, 0, len(parts))

	for _, part := range parts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		samples, rate, err := e.synthesize(ctx, part, voice)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			continue
		}

		e.mu.Lock()
		e.sampleRate = rate
		e.mu.Unlock()

		segments = append(segments, Segment{
			Graphemes: part,
			Phonemes:  Phonemize(ctx, part),
			Samples:   samples,
		})
	}

	logger.Infof("[tts] edge-tts: 合成 %d 个分段，语音=%s", len(segments), voice)
	return segments, nil
}

// SampleRate 返回最近一次合成的输出采样率。
func (e *EdgePipeline) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// Close Edge 管线无常驻资源。
func (e *EdgePipeline) Close() {}

// synthesize 合成单段文本，返回单声道样本和采样率。
func (e *EdgePipeline) synthesize(ctx context.Context, text, voice string) ([]float32, int, error) {
	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, 0, fmt.Errorf("edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, 0, fmt.Errorf("edge-tts 开始流式合成失败: %w", err)
	}

	// 从 channel 收集所有音频数据
	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		// Stream() 返回的 map 中，type=="audio" 的条目包含音频数据
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	mp3Data := mp3Buf.Bytes()
	if len(mp3Data) == 0 {
		return nil, 0, fmt.Errorf("edge-tts: 未收到音频数据")
	}

	// 解码 MP3 为原始 PCM。go-mp3 输出固定为立体声 16-bit LE。
	decoder, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return nil, 0, fmt.Errorf("MP3 解码失败: %w", err)
	}

	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("读取 PCM 数据失败: %w", err)
	}

	logger.Debugf("[tts] edge-tts: %d 字节 MP3 -> %d 字节 PCM，采样率 %d Hz",
		len(mp3Data), len(pcmData), decoder.SampleRate())

	return audio.StereoBytesToMonoFloat32(pcmData), decoder.SampleRate(), nil
}
