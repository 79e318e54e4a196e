package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavAudioFormat 是 RIFF header 中 PCM 编码的格式码。
const wavAudioFormat = 1

// SaveWAV 将 float32 样本写为 16-bit PCM 单声道 WAV 文件。
func SaveWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 WAV 文件失败: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavAudioFormat)

	pcm := Float32ToInt16(samples)
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("写入 WAV 数据失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("关闭 WAV 编码器失败: %w", err)
	}
	return f.Close()
}

// LoadWAV 读取 WAV 文件，返回 float32 样本和采样率。
// 多声道文件取各声道平均合并为单声道。
func LoadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("打开 WAV 文件失败: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("解码 WAV 文件失败: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("WAV 文件 %s 无音频数据", path)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	numFrames := len(buf.Data) / channels
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float32(sum/channels) / 32768.0
	}

	return samples, buf.Format.SampleRate, nil
}

// WAVInfo 描述一个 WAV 文件的基本属性。
type WAVInfo struct {
	SampleRate  int
	BitDepth    int
	NumChannels int
}

// ProbeWAV 读取 WAV 文件头信息，不解码数据。
func ProbeWAV(path string) (*WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 WAV 文件失败: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.Err() != nil {
		return nil, fmt.Errorf("读取 WAV header 失败: %w", dec.Err())
	}

	return &WAVInfo{
		SampleRate:  int(dec.SampleRate),
		BitDepth:    int(dec.BitDepth),
		NumChannels: int(dec.NumChans),
	}, nil
}
