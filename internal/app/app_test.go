package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/mytts/internal/ledger"
	"github.com/iabetor/mytts/internal/orchestrator"
	"github.com/iabetor/mytts/internal/synth"
)

// fakeView 记录界面回调，事件循环单线程调用但测试线程会读取。
type fakeView struct {
	mu          sync.Mutex
	statuses    []string
	errors      []string
	waveform    string
	genTime     float64
	enabled     []bool
	lastRecords []ledger.GenerationRecord
}

func (v *fakeView) SetStatus(msg string, timeoutMs int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, msg)
}
func (v *fakeView) SetSynthesizeEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = append(v.enabled, enabled)
}
func (v *fakeView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, msg)
}
func (v *fakeView) SetGenerationTime(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.genTime = seconds
}
func (v *fakeView) SetWaveform(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.waveform = path
}
func (v *fakeView) RefreshResults(records []ledger.GenerationRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastRecords = records
}

func (v *fakeView) waitWaveform(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		v.mu.Lock()
		w := v.waveform
		v.mu.Unlock()
		if w != "" {
			return w
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for waveform update")
	return ""
}

func (v *fakeView) waitStatus(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		v.mu.Lock()
		for _, s := range v.statuses {
			if s == want {
				v.mu.Unlock()
				return
			}
		}
		v.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q", want)
}

// fakeSynth 写真实文件，模拟完整合成。
type fakeSynth struct {
	tempDir string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string, speed float64) (*synth.Result, error) {
	chunk := filepath.Join(f.tempDir, "chunk_20250829_100000_0.wav")
	combined := filepath.Join(f.tempDir, "combined_20250829_100000.wav")
	for _, p := range []string{chunk, combined} {
		if err := os.WriteFile(p, []byte("riff"), 0644); err != nil {
			return nil, err
		}
	}
	return &synth.Result{
		Chunks:       []synth.Chunk{{Graphemes: text, Phonemes: "p", Filepath: chunk}},
		CombinedPath: combined,
		Timestamp:    1756400000,
		SampleRate:   24000,
	}, nil
}

func newTestApp(t *testing.T) (*App, *fakeView, *ledger.Ledger, string, context.CancelFunc) {
	t.Helper()
	tempDir := t.TempDir()
	view := &fakeView{}
	led := ledger.New(filepath.Join(tempDir, "generations.json"))

	orch := orchestrator.New(&fakeSynth{tempDir: tempDir}, led, orchestrator.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)

	a := New(view, orch, led, nil, Config{TempDir: tempDir, RetentionDays: 7})
	go a.Run(ctx)

	t.Cleanup(cancel)
	return a, view, led, tempDir, cancel
}

func TestApp_SynthesizeFlow(t *testing.T) {
	a, view, led, _, _ := newTestApp(t)

	a.Synthesize("hello world", "af_bella", 1.0)

	waveform := view.waitWaveform(t)
	if filepath.Base(waveform) != "combined_20250829_100000.wav" {
		t.Errorf("waveform path: got %s", waveform)
	}

	if got := led.Records(); len(got) != 1 {
		t.Fatalf("ledger records: got %d, want 1", len(got))
	}

	view.mu.Lock()
	defer view.mu.Unlock()
	if len(view.lastRecords) != 1 {
		t.Errorf("view records: got %d, want 1", len(view.lastRecords))
	}
	if view.genTime < 0 {
		t.Errorf("generation time not set")
	}
	// 任务开始时禁用按钮，结束后恢复
	sawDisable := false
	for _, e := range view.enabled {
		if !e {
			sawDisable = true
		}
	}
	if !sawDisable {
		t.Error("synthesize button never disabled during run")
	}
	if !view.enabled[len(view.enabled)-1] {
		t.Error("synthesize button left disabled")
	}
}

// failingSynth 总是失败。
type failingSynth struct{}

func (f *failingSynth) Synthesize(ctx context.Context, text, voice string, speed float64) (*synth.Result, error) {
	return nil, os.ErrPermission
}

func TestApp_SynthesizeFailureReenables(t *testing.T) {
	tempDir := t.TempDir()
	view := &fakeView{}
	led := ledger.New(filepath.Join(tempDir, "generations.json"))

	orch := orchestrator.New(&failingSynth{}, led, orchestrator.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	orch.Start(ctx)

	a := New(view, orch, led, nil, Config{TempDir: tempDir, RetentionDays: 7})
	go a.Run(ctx)

	a.Synthesize("hello", "af_bella", 1.0)
	view.waitStatus(t, "合成失败")

	view.mu.Lock()
	defer view.mu.Unlock()
	if len(view.errors) == 0 {
		t.Error("no error shown for failed synthesis")
	}
	if len(view.enabled) == 0 || !view.enabled[len(view.enabled)-1] {
		t.Error("synthesize button left disabled after failure")
	}
	if got := led.Records(); len(got) != 0 {
		t.Errorf("ledger written for failed synthesis: %d records", len(got))
	}
}

func TestApp_ClearResults(t *testing.T) {
	a, view, led, _, _ := newTestApp(t)

	a.Synthesize("hello", "af_bella", 1.0)
	view.waitWaveform(t)

	a.ClearResults()
	view.waitStatus(t, "历史已清空")

	if got := led.Records(); len(got) != 0 {
		t.Fatalf("ledger not cleared: %d records", len(got))
	}
}

func TestApp_ClearTempFiles(t *testing.T) {
	a, view, led, tempDir, _ := newTestApp(t)

	a.Synthesize("hello", "af_bella", 1.0)
	view.waitWaveform(t)

	a.ClearTempFiles()
	view.waitStatus(t, "已删除 1 个临时文件")

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" && len(e.Name()) > 6 && e.Name()[:6] == "chunk_" {
			t.Errorf("chunk file survived: %s", e.Name())
		}
	}

	got := led.Records()
	if len(got) != 1 {
		t.Fatalf("record dropped by temp cleanup: %d records", len(got))
	}
	if len(got[0].Chunks) != 0 {
		t.Errorf("chunk refs not purged: %+v", got[0].Chunks)
	}
}

func TestApp_PlayWithoutDevice(t *testing.T) {
	a, view, _, _, _ := newTestApp(t)

	a.Play(context.Background(), "/tmp/whatever.wav")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view.mu.Lock()
		n := len(view.errors)
		view.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected error for playback without device")
}
