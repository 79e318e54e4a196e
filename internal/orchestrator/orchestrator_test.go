package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/mytts/internal/ledger"
	"github.com/iabetor/mytts/internal/synth"
)

// fakeEngine 可控的合成引擎：阻塞直到 release 被关闭。
type fakeEngine struct {
	result  *synth.Result
	err     error
	release chan struct{} // nil 时立即返回
}

func (f *fakeEngine) Synthesize(ctx context.Context, text, voice string, speed float64) (*synth.Result, error) {
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []ledger.GenerationRecord
	err     error
}

func (f *fakeRecorder) Append(rec ledger.GenerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func okResult() *synth.Result {
	return &synth.Result{
		Chunks: []synth.Chunk{
			{Graphemes: "hello", Phonemes: "h", Filepath: "/tmp/chunk_x_0.wav"},
		},
		CombinedPath: "/tmp/combined_x.wav",
		Timestamp:    1756400000,
		SampleRate:   24000,
	}
}

// collect 读取事件直到拿到终态事件或超时。
func collect(t *testing.T, o *Orchestrator) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-o.Events():
			events = append(events, ev)
			if ev.Type == EventCompleted || ev.Type == EventFailed {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event, got %d events", len(events))
		}
	}
}

func TestOrchestrator_SuccessfulJob(t *testing.T) {
	rec := &fakeRecorder{}
	o := New(&fakeEngine{result: okResult()}, rec, Config{})
	o.Start(context.Background())
	defer o.Close()

	id, err := o.Submit("hello", "af_bella", 1.0)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	events := collect(t, o)
	if events[0].Type != EventStarted || events[0].JobID != id {
		t.Errorf("first event: %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != EventCompleted {
		t.Fatalf("terminal event: got %v, err=%v", last.Type, last.Err)
	}
	if last.Record == nil || len(last.Record.Chunks) != 1 {
		t.Errorf("record: %+v", last.Record)
	}
	if rec.count() != 1 {
		t.Errorf("ledger appends: got %d, want 1", rec.count())
	}

	waitIdle(t, o)
}

func TestOrchestrator_FailedJobNoLedgerWrite(t *testing.T) {
	rec := &fakeRecorder{}
	o := New(&fakeEngine{err: errors.New("model exploded")}, rec, Config{})
	o.Start(context.Background())
	defer o.Close()

	if _, err := o.Submit("hello", "af_bella", 1.0); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	events := collect(t, o)
	last := events[len(events)-1]
	if last.Type != EventFailed || last.Err == nil {
		t.Fatalf("terminal event: %+v", last)
	}
	if rec.count() != 0 {
		t.Errorf("ledger written for failed job: %d appends", rec.count())
	}

	waitIdle(t, o)
}

func TestOrchestrator_EmptyResultNoRecord(t *testing.T) {
	rec := &fakeRecorder{}
	empty := &synth.Result{Timestamp: 1, SampleRate: 24000}
	o := New(&fakeEngine{result: empty}, rec, Config{})
	o.Start(context.Background())
	defer o.Close()

	if _, err := o.Submit("   ", "af_bella", 1.0); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	events := collect(t, o)
	last := events[len(events)-1]
	if last.Type != EventCompleted {
		t.Fatalf("terminal event: %+v", last)
	}
	if last.Record != nil {
		t.Errorf("expected no record for empty result, got %+v", last.Record)
	}
	if rec.count() != 0 {
		t.Errorf("ledger written for empty result: %d appends", rec.count())
	}
}

func TestOrchestrator_BusyRejectsSecondSubmit(t *testing.T) {
	release := make(chan struct{})
	o := New(&fakeEngine{result: okResult(), release: release}, nil, Config{})
	o.Start(context.Background())
	defer o.Close()

	if _, err := o.Submit("first", "af_bella", 1.0); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	if _, err := o.Submit("second", "af_bella", 1.0); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit: expected ErrBusy, got %v", err)
	}

	close(release)
	collect(t, o)
	waitIdle(t, o)

	// 任务结束后可再次提交
	if _, err := o.Submit("third", "af_bella", 1.0); err != nil {
		t.Fatalf("Submit after completion failed: %v", err)
	}
	collect(t, o)
}

func TestOrchestrator_LedgerFailureFailsJob(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	o := New(&fakeEngine{result: okResult()}, rec, Config{})
	o.Start(context.Background())
	defer o.Close()

	if _, err := o.Submit("hello", "af_bella", 1.0); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	events := collect(t, o)
	last := events[len(events)-1]
	if last.Type != EventFailed {
		t.Fatalf("expected EventFailed on ledger error, got %v", last.Type)
	}
}

// waitIdle 等待状态机回到 Idle。
func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state did not return to Idle: %s", o.State())
}
