package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeStrategy struct {
	started chan struct{}
	result  chan error
	ctx     context.Context
}

func newFakeStrategy() *fakeStrategy {
	return &fakeStrategy{
		started: make(chan struct{}),
		result:  make(chan error, 1),
	}
}

func (s *fakeStrategy) name() string { return "fake" }

func (s *fakeStrategy) run(ctx context.Context) error {
	s.ctx = ctx
	close(s.started)
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.result:
		return err
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, strat *fakeStrategy) *Engine {
	t.Helper()
	engine := NewEngine(testLogger(), testLogger(), Options{
		OutputDir: t.TempDir(),
		StreamURL: "http://127.0.0.1:1/stream",
		Probe:     func(string) bool { return true },
	})
	engine.buildStrat = func(output, codec string) strategy { return strat }
	return engine
}

func TestStartStopCycle(t *testing.T) {
	strat := newFakeStrategy()
	engine := newTestEngine(t, strat)

	if got := engine.Status().State; got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}

	output, err := engine.Start("clip.mp4")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-strat.started

	status := engine.Status()
	if status.State != StateActive {
		t.Errorf("state = %v, want active", status.State)
	}
	if status.OutputPath != output {
		t.Errorf("output = %q, want %q", status.OutputPath, output)
	}

	stopped, err := engine.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped != output {
		t.Errorf("Stop returned %q, want %q", stopped, output)
	}
	if got := engine.Status().State; got != StateIdle {
		t.Errorf("state after stop = %v, want idle", got)
	}
}

func TestStartWhileActive(t *testing.T) {
	strat := newFakeStrategy()
	engine := newTestEngine(t, strat)

	if _, err := engine.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-strat.started

	if _, err := engine.Start("second.mp4"); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start = %v, want ErrAlreadyActive", err)
	}
	engine.Stop()
}

func TestStopWithoutRecording(t *testing.T) {
	engine := newTestEngine(t, newFakeStrategy())
	if _, err := engine.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop = %v, want ErrNotRecording", err)
	}
}

func TestStaleSessionReplaced(t *testing.T) {
	dead := newFakeStrategy()
	engine := newTestEngine(t, dead)

	if _, err := engine.Start("first.mp4"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-dead.started
	// Worker dies without Stop being called.
	dead.result <- errors.New("encoder crashed")
	time.Sleep(20 * time.Millisecond)

	replacement := newFakeStrategy()
	engine.buildStrat = func(output, codec string) strategy { return replacement }
	if _, err := engine.Start("second.mp4"); err != nil {
		t.Fatalf("Start after stale session: %v", err)
	}
	<-replacement.started
	engine.Stop()
}

func TestStatusFoldsDeadWorker(t *testing.T) {
	strat := newFakeStrategy()
	engine := newTestEngine(t, strat)

	if _, err := engine.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-strat.started
	strat.result <- errors.New("gone")
	time.Sleep(20 * time.Millisecond)

	if got := engine.Status().State; got != StateIdle {
		t.Errorf("state = %v, want idle after worker death", got)
	}
}

func TestReclaimCancelsSessionContext(t *testing.T) {
	strat := newFakeStrategy()
	engine := newTestEngine(t, strat)

	if _, err := engine.Start(""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-strat.started
	strat.result <- errors.New("encoder crashed")
	time.Sleep(20 * time.Millisecond)

	if got := engine.Status().State; got != StateIdle {
		t.Fatalf("state = %v, want idle after worker death", got)
	}
	// The stream reader goroutine hangs off this context; reclaiming
	// the slot must tear it down too.
	if strat.ctx.Err() == nil {
		t.Error("session context still live after the slot was reclaimed")
	}
}

func TestDefaultFilename(t *testing.T) {
	strat := newFakeStrategy()
	engine := newTestEngine(t, strat)

	output, err := engine.Start("")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	status := engine.Status()
	if status.OutputPath != output {
		t.Errorf("status output %q != returned %q", status.OutputPath, output)
	}
	if ext := output[len(output)-4:]; ext != ".mp4" {
		t.Errorf("default filename %q missing .mp4 extension", output)
	}
}

func TestCodecSelection(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		working map[string]bool
		want    string
	}{
		{"mp4 with x264", "out.mp4", map[string]bool{"libx264": true}, "libx264"},
		{"mp4 without x264", "out.mp4", map[string]bool{"mpeg4": true}, "mpeg4"},
		{"webm", "out.webm", map[string]bool{"libvpx": true}, "libvpx"},
		{"webm without vpx", "out.webm", nil, "mpeg4"},
		{"avi", "out.avi", map[string]bool{"mpeg4": true}, "mpeg4"},
		{"uppercase extension", "OUT.MP4", map[string]bool{"libx264": true}, "libx264"},
		{"nothing probes", "out.mp4", nil, "mpeg4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := func(codec string) bool { return tt.working[codec] }
			if got := selectCodec(tt.output, probe); got != tt.want {
				t.Errorf("selectCodec(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}
