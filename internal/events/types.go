package events

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeCameraSwitched
	TypeSettingChanged
	TypeStreamFallback
	TypeRecordingStarted
	TypeRecordingStopped
	TypeAudioRelayStarted
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent is published after a registry probe replaces the
// device snapshot.
type DeviceDiscoveryEvent struct {
	VideoCount int    `json:"video_count" example:"2" doc:"Number of video sources discovered"`
	AudioCount int    `json:"audio_count" example:"3" doc:"Number of audio sources discovered"`
	Forced     bool   `json:"forced" example:"false" doc:"Whether the probe was an explicit refresh"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// CameraSwitchedEvent is published when the active capture source changes.
type CameraSwitchedEvent struct {
	ActiveIndex int    `json:"active_idx" example:"1" doc:"New active source index"`
	SourcePath  string `json:"source_path" example:"/dev/video1" doc:"Device path of the new source"`
	Open        bool   `json:"open" example:"true" doc:"Whether the new source opened successfully"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraSwitchedEvent.
func (e CameraSwitchedEvent) Type() uint32 { return TypeCameraSwitched }

// SettingChangedEvent is published for every accepted property write.
type SettingChangedEvent struct {
	Name      string `json:"name" example:"brightness" doc:"Property name"`
	Value     int    `json:"value" example:"128" doc:"Applied value"`
	Applied   bool   `json:"applied" example:"true" doc:"Whether the live handle accepted the value"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingChangedEvent.
func (e SettingChangedEvent) Type() uint32 { return TypeSettingChanged }

// StreamFallbackEvent is published when the streaming pipeline transitions
// between live frames and the fallback image.
type StreamFallbackEvent struct {
	UsingFallback bool   `json:"using_fallback" example:"true" doc:"Whether the fallback image is being served"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamFallbackEvent.
func (e StreamFallbackEvent) Type() uint32 { return TypeStreamFallback }

// RecordingStartedEvent is published when a recording session becomes active.
type RecordingStartedEvent struct {
	OutputPath string `json:"output_path" example:"/media/videos/stream_20250127_103000.mp4" doc:"Recording output file"`
	Strategy   string `json:"strategy" example:"frame-writer" doc:"Recording strategy in use"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingStoppedEvent is published when a recording session reaches a
// terminal state.
type RecordingStoppedEvent struct {
	OutputPath string `json:"output_path" example:"/media/videos/stream_20250127_103000.mp4" doc:"Recording output file"`
	Aborted    bool   `json:"aborted" example:"false" doc:"Whether the session was aborted rather than completed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }

// AudioRelayStartedEvent is published when a new audio relay subprocess is up.
type AudioRelayStartedEvent struct {
	ActiveIndex int    `json:"active_idx" example:"0" doc:"Active audio source index"`
	Backend     string `json:"backend" example:"alsa" doc:"Audio backend feeding the relay"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AudioRelayStartedEvent.
func (e AudioRelayStartedEvent) Type() uint32 { return TypeAudioRelayStarted }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
