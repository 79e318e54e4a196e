package audio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestSaveLoadWAV_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wav")

	// 一段 100ms 的正弦波
	const sampleRate = 24000
	samples := make([]float32, sampleRate/10)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
	}

	if err := SaveWAV(path, samples, sampleRate); err != nil {
		t.Fatalf("SaveWAV failed: %v", err)
	}

	got, rate, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV failed: %v", err)
	}
	if rate != sampleRate {
		t.Errorf("sample rate: got %d, want %d", rate, sampleRate)
	}
	if len(got) != len(samples) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(samples))
	}
	// int16 量化误差应小于 1/32767
	for i := range samples {
		diff := float64(got[i] - samples[i])
		if math.Abs(diff) > 1.0/32000 {
			t.Fatalf("sample %d: got %f, want %f (diff %f)", i, got[i], samples[i], diff)
		}
	}
}

func TestSaveWAV_HeaderProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.wav")
	if err := SaveWAV(path, []float32{0, 0.1, -0.1}, 24000); err != nil {
		t.Fatalf("SaveWAV failed: %v", err)
	}

	info, err := ProbeWAV(path)
	if err != nil {
		t.Fatalf("ProbeWAV failed: %v", err)
	}
	if info.SampleRate != 24000 {
		t.Errorf("SampleRate: got %d, want 24000", info.SampleRate)
	}
	if info.BitDepth != 16 {
		t.Errorf("BitDepth: got %d, want 16", info.BitDepth)
	}
	if info.NumChannels != 1 {
		t.Errorf("NumChannels: got %d, want 1", info.NumChannels)
	}
}

func TestLoadWAV_MissingFile(t *testing.T) {
	if _, _, err := LoadWAV(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
