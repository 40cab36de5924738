package audio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/camkit/camnode/internal/devices"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRelay() *Relay {
	return NewRelay(testLogger(), testLogger(), nil, "")
}

func TestStreamWithoutRelay(t *testing.T) {
	relay := newTestRelay()
	err := relay.Stream(context.Background(), io.Discard)
	if err != ErrNotRunning {
		t.Errorf("Stream on stopped relay = %v, want ErrNotRunning", err)
	}
}

func TestBroadcastFanout(t *testing.T) {
	relay := newTestRelay()
	relay.running = true

	type result struct {
		data []byte
	}
	collect := func(ctx context.Context) chan result {
		out := make(chan result, 1)
		ready := make(chan struct{})
		go func() {
			var got []byte
			w := writerFunc(func(p []byte) (int, error) {
				got = append(got, p...)
				return len(p), nil
			})
			close(ready)
			relay.Stream(ctx, w)
			out <- result{data: got}
		}()
		<-ready
		return out
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := collect(ctx)
	b := collect(ctx)

	// Wait for both listeners to register.
	deadline := time.Now().Add(time.Second)
	for {
		relay.clientsMu.Lock()
		n := len(relay.clients)
		relay.clientsMu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("listeners never registered")
		}
		time.Sleep(time.Millisecond)
	}

	relay.broadcast([]byte("adts-chunk"))
	time.Sleep(50 * time.Millisecond)
	cancel()

	for _, ch := range []chan result{a, b} {
		select {
		case res := <-ch:
			if string(res.data) != "adts-chunk" {
				t.Errorf("listener got %q, want %q", res.data, "adts-chunk")
			}
		case <-time.After(time.Second):
			t.Fatal("listener did not finish")
		}
	}
}

func TestBroadcastDropsOnFullQueue(t *testing.T) {
	relay := newTestRelay()
	ch := make(chan []byte, 1)
	relay.clients[ch] = struct{}{}

	relay.broadcast([]byte("one"))
	relay.broadcast([]byte("two")) // dropped, queue full

	if got := string(<-ch); got != "one" {
		t.Errorf("first chunk = %q, want %q", got, "one")
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra chunk %q", extra)
	default:
	}
}

func TestStopReturnsPromptly(t *testing.T) {
	relay := newTestRelay()
	relay.buildCommand = func(kind, source, bitrate string) string {
		return "sleep 60"
	}

	if err := relay.Start(0, devices.AudioDevice{Source: "default", Kind: devices.AudioKindDefault}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The subprocess dies on SIGINT right away; Stop must not sit
	// out the shutdown timeout waiting for the exit signal.
	start := time.Now()
	relay.Stop()
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Stop took %v, want prompt return", elapsed)
	}
	if _, _, running := relay.Active(); running {
		t.Error("relay reports running after Stop")
	}
}

func TestStartReplacesRunningRelay(t *testing.T) {
	relay := newTestRelay()
	relay.buildCommand = func(kind, source, bitrate string) string {
		return "sleep 60"
	}

	if err := relay.Start(0, devices.AudioDevice{Source: "default", Kind: devices.AudioKindDefault}); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	start := time.Now()
	if err := relay.Start(1, devices.AudioDevice{Source: "hw:1,0", Kind: devices.AudioKindALSA}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("switching sources took %v, want prompt replacement", elapsed)
	}

	idx, dev, running := relay.Active()
	if !running || idx != 1 || dev.Source != "hw:1,0" {
		t.Errorf("Active = (%d, %+v, %v), want index 1 running", idx, dev, running)
	}
	relay.Stop()
}

func TestActiveReportsSource(t *testing.T) {
	relay := newTestRelay()
	if _, _, running := relay.Active(); running {
		t.Error("new relay reports running")
	}
	relay.active = devices.AudioDevice{Index: 2, Source: "hw:1,0", Kind: devices.AudioKindALSA}
	relay.activeIx = 2
	relay.running = true
	idx, dev, running := relay.Active()
	if !running || idx != 2 || dev.Source != "hw:1,0" {
		t.Errorf("Active = (%d, %+v, %v)", idx, dev, running)
	}
	if relay.Describe() == "stopped" {
		t.Error("Describe reports stopped while running")
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
