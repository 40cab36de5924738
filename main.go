package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/camkit/camnode/cmd"
	"github.com/camkit/camnode/internal/api"
	"github.com/camkit/camnode/internal/audio"
	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/config"
	"github.com/camkit/camnode/internal/devices"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/ffmpeg"
	"github.com/camkit/camnode/internal/logging"
	"github.com/camkit/camnode/internal/metrics"
	"github.com/camkit/camnode/internal/recorder"
	"github.com/camkit/camnode/internal/settings"
	"github.com/camkit/camnode/internal/streaming"
	"github.com/camkit/camnode/internal/timelapse"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Host      string `help:"Address to bind" default:"0.0.0.0" toml:"server.host" env:"SERVER_HOST"`
	Port      int    `help:"Port to listen on" short:"p" default:"8090" toml:"server.port" env:"SERVER_PORT"`
	APIPrefix string `help:"Path prefix for all API routes" default:"/api" toml:"server.api_prefix" env:"SERVER_API_PREFIX"`

	// Auth settings; auth is disabled while either value is empty
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Device registry settings
	DevicesTTLSeconds int    `help:"Device probe cache TTL in seconds" default:"60" toml:"devices.ttl_seconds" env:"DEVICES_TTL_SECONDS"`
	DevicesCachePath  string `help:"Device snapshot cache file" default:"devices_cache.toml" toml:"devices.cache_path" env:"DEVICES_CACHE_PATH"`
	VideoSources      string `help:"Comma-separated capture device paths probed ahead of system enumeration" default:"" toml:"video.sources" env:"VIDEO_SOURCES"`
	AudioSources      string `help:"Comma-separated audio source addresses probed ahead of system enumeration" default:"" toml:"audio.sources" env:"AUDIO_SOURCES"`

	// Camera settings
	SettingsPath string `help:"Camera settings file" default:"camera_settings.toml" toml:"camera.settings_path" env:"CAMERA_SETTINGS_PATH"`

	// Streaming settings
	FallbackImage    string `help:"JPEG served while the camera is unavailable" default:"" toml:"streaming.fallback_image" env:"STREAMING_FALLBACK_IMAGE"`
	ReconnectDelayMs int    `help:"Delay between camera reopen attempts in milliseconds" default:"2000" toml:"streaming.reconnect_delay_ms" env:"STREAMING_RECONNECT_DELAY_MS"`

	// Audio settings
	AudioBitrate string `help:"AAC bitrate for the audio relay" default:"128k" toml:"audio.bitrate" env:"AUDIO_BITRATE"`

	// Recording settings
	RecordDir      string `help:"Directory for recording output" default:"recordings" toml:"recording.dir" env:"RECORD_DIR"`
	RecordStrategy string `help:"Recording strategy (frame-writer, mux)" default:"frame-writer" toml:"recording.strategy" env:"RECORD_STRATEGY"`

	// Photo settings
	PhotoDir string `help:"Directory for still captures" default:"photos" toml:"photo.dir" env:"PHOTO_DIR"`

	// Timelapse settings
	TimelapseEnabled     bool   `help:"Enable periodic timelapse capture" default:"false" toml:"timelapse.enabled" env:"TIMELAPSE_ENABLED"`
	TimelapseIntervalSec int    `help:"Seconds between timelapse frames" default:"60" toml:"timelapse.interval_seconds" env:"TIMELAPSE_INTERVAL_SECONDS"`
	TimelapseDir         string `help:"Directory for timelapse frames" default:"timelapse" toml:"timelapse.dir" env:"TIMELAPSE_DIR"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture   string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingDevices   string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingStreaming string `help:"Streaming logging level" default:"info" toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingAudio     string `help:"Audio relay logging level" default:"info" toml:"logging.audio" env:"LOGGING_AUDIO"`
	LoggingRecorder  string `help:"Recorder logging level" default:"info" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingFFmpeg    string `help:"FFmpeg subprocess logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

// splitList splits a comma-separated option value, dropping empty
// entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"capture":   opts.LoggingCapture,
				"devices":   opts.LoggingDevices,
				"streaming": opts.LoggingStreaming,
				"audio":     opts.LoggingAudio,
				"recorder":  opts.LoggingRecorder,
				"ffmpeg":    opts.LoggingFFmpeg,
				"api":       opts.LoggingAPI,
				"http":      opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Bridge log entries onto the bus so the SSE log endpoint can
		// stream them live.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		prober := devices.NewProber(logging.GetLogger("devices"), devices.ProbeConfig{
			VideoSources: splitList(opts.VideoSources),
			AudioSources: splitList(opts.AudioSources),
		})
		registry := devices.NewRegistry(prober, logging.GetLogger("devices"), devices.Options{
			TTL:       time.Duration(opts.DevicesTTLSeconds) * time.Second,
			CachePath: opts.DevicesCachePath,
			Bus:       eventBus,
		})

		store, err := settings.NewStore(opts.SettingsPath, logging.GetLogger("capture"))
		if err != nil {
			logger.Error("Failed to open settings store", "error", err)
			os.Exit(1)
		}

		session := capture.NewSession(capture.NewBackend(), logging.GetLogger("capture"))

		pipeline := streaming.NewPipeline(session, logging.GetLogger("streaming"), streaming.Config{
			FallbackImagePath: opts.FallbackImage,
			ReconnectDelay:    time.Duration(opts.ReconnectDelayMs) * time.Millisecond,
			Bus:               eventBus,
		})

		relay := audio.NewRelay(logging.GetLogger("audio"), logging.GetLogger("ffmpeg"), eventBus, opts.AudioBitrate)

		// The recorder dials the node's own stream endpoints.
		prefix := "/" + strings.Trim(opts.APIPrefix, "/")
		if prefix == "/" {
			prefix = ""
		}
		streamURL := fmt.Sprintf("http://127.0.0.1:%d%s/stream", opts.Port, prefix)
		audioURL := fmt.Sprintf("http://127.0.0.1:%d%s/stream/audio", opts.Port, prefix)
		if opts.AuthUsername != "" && opts.AuthPassword != "" {
			token := base64.StdEncoding.EncodeToString([]byte(opts.AuthUsername + ":" + opts.AuthPassword))
			streamURL += "?auth=" + token
			audioURL += "?auth=" + token
		}
		engine := recorder.NewEngine(logging.GetLogger("recorder"), logging.GetLogger("ffmpeg"), recorder.Options{
			OutputDir: opts.RecordDir,
			StreamURL: streamURL,
			AudioURL:  audioURL,
			Strategy:  opts.RecordStrategy,
			FPS:       func() int { return session.Settings().FPS },
			Probe:     ffmpeg.ProbeEncoder,
			Bus:       eventBus,
		})

		var tl *timelapse.Worker
		if opts.TimelapseEnabled {
			tl = timelapse.NewWorker(pipeline, logging.GetLogger("streaming"), timelapse.Options{
				Dir:          opts.TimelapseDir,
				Interval:     time.Duration(opts.TimelapseIntervalSec) * time.Second,
				SkipFallback: true,
			})
		}

		server := api.NewServer(&api.Options{
			Prefix:            opts.APIPrefix,
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Registry:          registry,
			Session:           session,
			Pipeline:          pipeline,
			Relay:             relay,
			Recorder:          engine,
			Settings:          store,
			Bus:               eventBus,
			PhotoDir:          opts.PhotoDir,
			PrometheusHandler: metrics.Handler(),
			Restart: func() {
				logger.Info("Restart requested, exiting for supervisor respawn")
				time.Sleep(200 * time.Millisecond)
				os.Exit(0)
			},
		})

		hooks.OnStart(func() {
			state := store.Get()
			snap := registry.Snapshot()

			if dev, ok := snap.VideoByIndex(state.ActiveCamera); ok {
				if openErr := session.Open(dev.Path, state.Camera); openErr != nil {
					logger.Warn("Failed to open camera, stream will serve fallback", "path", dev.Path, "error", openErr)
				}
			} else {
				logger.Warn("No video source at saved index, stream will serve fallback", "index", state.ActiveCamera)
			}

			if dev, ok := snap.AudioByIndex(state.ActiveAudio); ok {
				if relayErr := relay.Start(state.ActiveAudio, dev); relayErr != nil {
					logger.Warn("Failed to start audio relay", "source", dev.Source, "error", relayErr)
				}
			}

			// Follow external edits to the settings file.
			if watchErr := store.Watch(func(st settings.State) {
				if _, applyErr := session.Update(st.Camera); applyErr != nil {
					logger.Warn("Failed to apply reloaded settings", "error", applyErr)
				}
			}); watchErr != nil {
				logger.Warn("Settings file watcher unavailable", "error", watchErr)
			}

			if tl != nil {
				if tlErr := tl.Start(); tlErr != nil {
					logger.Warn("Failed to start timelapse", "error", tlErr)
				}
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			logger.Info("Starting HTTP server", "addr", addr)
			if startErr := server.Start(addr); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if tl != nil {
				tl.Stop()
			}
			if _, stopErr := engine.Stop(); stopErr != nil && !errors.Is(stopErr, recorder.ErrNotRecording) {
				logger.Error("Error stopping recorder", "error", stopErr)
			}
			relay.Stop()
			_ = store.Close()
			if closeErr := session.Close(); closeErr != nil {
				logger.Error("Error closing capture session", "error", closeErr)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateRecordCmd())

	cli.Run()
}
