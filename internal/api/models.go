package api

import (
	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/devices"
	"github.com/camkit/camnode/internal/recorder"
)

// HealthData reports overall service state.
type HealthData struct {
	Status        string           `json:"status" example:"ok" doc:"Service status"`
	UptimeSeconds float64          `json:"uptime_secs" example:"3612.4" doc:"Seconds since the server started"`
	CameraOpen    bool             `json:"camera_open" example:"true" doc:"Whether a capture device is open"`
	CurrentIndex  int              `json:"current_idx" example:"0" doc:"Registry index of the open capture device, -1 when none"`
	CurrentSource string           `json:"current_src,omitempty" example:"/dev/video0" doc:"Path of the open capture device"`
	UsingFallback bool             `json:"using_fallback" example:"false" doc:"Whether the stream is serving the fallback image"`
	StreamClients int              `json:"stream_clients" example:"2" doc:"Connected MJPEG clients"`
	Settings      capture.Settings `json:"settings" doc:"Camera settings in effect"`
	ActiveAudio   int              `json:"active_audio_idx" example:"0" doc:"Registry index of the relay's audio source, -1 when stopped"`
	AudioRelay    string           `json:"audio_relay" example:"relaying hw:1,0 (index 1)" doc:"Audio relay description, or 'stopped'"`
	RecordingOn   bool             `json:"recording" example:"false" doc:"Whether a recording is active"`
	RecordState   string           `json:"record_state" example:"idle" doc:"Recording slot state"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running build.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// CamerasResponse lists enumerated video sources.
type CamerasResponse struct {
	Body struct {
		Cameras []devices.VideoDevice `json:"cameras" doc:"Video sources in registry order"`
		Active  int                   `json:"active" example:"0" doc:"Index of the currently open source, -1 when none"`
	}
}

// AudioSourcesResponse lists enumerated audio sources.
type AudioSourcesResponse struct {
	Body struct {
		Sources []devices.AudioDevice `json:"sources" doc:"Audio sources in registry order"`
		Active  int                   `json:"active" example:"0" doc:"Index of the source feeding the relay, -1 when stopped"`
	}
}

// SwitchInput selects a registry entry by index.
type SwitchInput struct {
	Index int `path:"index" minimum:"0" example:"1" doc:"Registry index of the source to activate"`
}

// SwitchResponse reports the outcome of a source switch.
type SwitchResponse struct {
	Body struct {
		Index  int    `json:"index" example:"1" doc:"Activated registry index"`
		Source string `json:"source" example:"/dev/video1" doc:"Backend address of the activated source"`
		Name   string `json:"name" example:"HD Pro Webcam C920" doc:"Source name"`
	}
}

// SettingsResponse returns the persisted camera settings.
type SettingsResponse struct {
	Body capture.Settings
}

// UpdateSettingsInput carries a full replacement settings document.
type UpdateSettingsInput struct {
	Body capture.Settings
}

// UpdateSettingsResponse reports the applied settings plus any
// controls the device refused. Partial application is allowed; the
// rejected list tells power users which knobs their camera lacks.
type UpdateSettingsResponse struct {
	Body struct {
		Settings capture.Settings `json:"settings" doc:"Settings now in effect"`
		Rejected []string         `json:"rejected,omitempty" example:"[\"hue\"]" doc:"Controls the device did not accept"`
	}
}

// PropertyInput names a single camera property.
type PropertyInput struct {
	Name string `path:"name" example:"brightness" doc:"Camera property name"`
}

// SetPropertyInput carries a single property write.
type SetPropertyInput struct {
	Name string `path:"name" example:"brightness" doc:"Camera property name"`
	Body struct {
		Value int `json:"value" example:"128" doc:"Value to apply"`
	}
}

// PropertyResponse returns one property value.
type PropertyResponse struct {
	Body struct {
		Name    string `json:"name" example:"brightness" doc:"Camera property name"`
		Value   int    `json:"value" example:"128" doc:"Current value"`
		Applied bool   `json:"applied" example:"true" doc:"Whether the open device accepted the value"`
	}
}

// RefreshResponse reports a forced device re-probe.
type RefreshResponse struct {
	Body struct {
		VideoCount int `json:"video_count" example:"2" doc:"Video sources found"`
		AudioCount int `json:"audio_count" example:"3" doc:"Audio sources found"`
	}
}

// RecordStartInput optionally names the output file.
type RecordStartInput struct {
	Body struct {
		Filename string `json:"filename,omitempty" example:"clip.mp4" doc:"Output filename; a timestamped name is generated when empty"`
	}
}

// RecordStartResponse reports the newly active recording.
type RecordStartResponse struct {
	Body struct {
		OutputPath string `json:"output_path" example:"/media/videos/clip.mp4" doc:"Recording output file"`
	}
}

// RecordStopResponse reports the finalized recording.
type RecordStopResponse struct {
	Body struct {
		OutputPath string `json:"output_path" example:"/media/videos/clip.mp4" doc:"Finalized output file"`
	}
}

// RecordStatusResponse wraps the recording slot status.
type RecordStatusResponse struct {
	Body recorder.Status
}

// PhotoResponse reports a saved still capture.
type PhotoResponse struct {
	Body struct {
		Path string `json:"path" example:"/media/photos/photo_20250127_103000.jpg" doc:"Saved photo path"`
		Size int    `json:"size" example:"48213" doc:"JPEG size in bytes"`
	}
}

// FrameResponse carries one JPEG frame, base64-encoded in JSON.
type FrameResponse struct {
	Body struct {
		Frame []byte `json:"frame" doc:"JPEG image data, base64-encoded"`
	}
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Body struct {
		Message string `json:"message" example:"ok" doc:"Human-readable result"`
	}
}
