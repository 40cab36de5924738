package devices

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/camkit/camnode/internal/events"
)

// DefaultTTL is how long a snapshot stays fresh before the next read
// triggers a re-probe.
const DefaultTTL = 60 * time.Second

// Registry caches probed devices and serves consistent snapshots.
type Registry struct {
	prober    Prober
	ttl       time.Duration
	cachePath string
	bus       *events.Bus
	log       *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// Options configures a Registry.
type Options struct {
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
	// CachePath, when set, persists each snapshot to a TOML file so a
	// restart can serve devices before the first probe completes.
	CachePath string
	// Bus receives a DeviceDiscoveryEvent after each refresh.
	Bus *events.Bus
}

// NewRegistry creates a registry around the given prober. A cached
// snapshot from a previous run is loaded when available, but its age
// still counts against the TTL.
func NewRegistry(prober Prober, log *slog.Logger, opts Options) *Registry {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		prober:    prober,
		ttl:       ttl,
		cachePath: opts.CachePath,
		bus:       opts.Bus,
		log:       log.With("component", "devices"),
	}
	if r.cachePath != "" {
		if snap, err := loadCache(r.cachePath); err == nil {
			r.snap = snap
			r.log.Info("Loaded device cache",
				"path", r.cachePath,
				"video", len(snap.Video),
				"audio", len(snap.Audio),
				"age", time.Since(snap.RefreshedAt).Round(time.Second))
		}
	}
	return r
}

// Snapshot returns the current snapshot without probing, refreshing
// first when the cached one has expired. An empty video list is never
// treated as fresh: a camera plugged in after a failed probe should
// show up on the next read, not after the TTL.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	snap := r.snap
	fresh := len(snap.Video) > 0 && time.Since(snap.RefreshedAt) < r.ttl
	r.mu.RUnlock()
	if fresh {
		return snap
	}
	refreshed, err := r.Refresh(false)
	if err != nil {
		// Serve stale data over nothing.
		return snap
	}
	return refreshed
}

// Refresh probes the hardware and swaps in a new snapshot. forced
// marks the refresh as client-initiated in the published event.
func (r *Registry) Refresh(forced bool) (Snapshot, error) {
	video, err := r.prober.ProbeVideo()
	if err != nil {
		return Snapshot{}, fmt.Errorf("probe video devices: %w", err)
	}
	audio, err := r.prober.ProbeAudio()
	if err != nil {
		return Snapshot{}, fmt.Errorf("probe audio devices: %w", err)
	}

	snap := Snapshot{Video: video, Audio: audio, RefreshedAt: time.Now()}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	r.log.Info("Device snapshot refreshed",
		"video", len(video), "audio", len(audio), "forced", forced)

	if r.cachePath != "" {
		if err := saveCache(r.cachePath, snap); err != nil {
			r.log.Warn("Failed to persist device cache", "path", r.cachePath, "error", err)
		}
	}
	if r.bus != nil {
		r.bus.Publish(events.DeviceDiscoveryEvent{
			VideoCount: len(video),
			AudioCount: len(audio),
			Forced:     forced,
			Timestamp:  snap.RefreshedAt.UTC().Format(time.RFC3339),
		})
	}
	return snap, nil
}

func loadCache(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := toml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse device cache: %w", err)
	}
	return snap, nil
}

func saveCache(path string, snap Snapshot) error {
	data, err := toml.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// Write-then-rename keeps a concurrent reader off a torn file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
