package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/metrics"
	"github.com/camkit/camnode/internal/settings"
)

// registerDeviceRoutes sets up device enumeration and switching.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        s.path("/cameras"),
		Summary:     "List Cameras",
		Description: "Enumerate video sources from the device registry",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*CamerasResponse, error) {
		snap := s.opts.Registry.Snapshot()
		resp := &CamerasResponse{}
		resp.Body.Cameras = snap.Video
		resp.Body.Active = s.activeCameraIndex()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-audio-sources",
		Method:      http.MethodGet,
		Path:        s.path("/audio-sources"),
		Summary:     "List Audio Sources",
		Description: "Enumerate audio sources from the device registry",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*AudioSourcesResponse, error) {
		snap := s.opts.Registry.Snapshot()
		resp := &AudioSourcesResponse{}
		resp.Body.Sources = snap.Audio
		resp.Body.Active = -1
		if idx, _, ok := s.opts.Relay.Active(); ok {
			resp.Body.Active = idx
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-devices",
		Method:      http.MethodPost,
		Path:        s.path("/refresh-devices"),
		Summary:     "Refresh Devices",
		Description: "Force a device re-probe, bypassing the registry cache",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*RefreshResponse, error) {
		snap, err := s.opts.Registry.Refresh(true)
		if err != nil {
			return nil, huma.Error500InternalServerError("device probe failed", err)
		}
		resp := &RefreshResponse{}
		resp.Body.VideoCount = len(snap.Video)
		resp.Body.AudioCount = len(snap.Audio)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "switch-camera",
		Method:      http.MethodPost,
		Path:        s.path("/switch/{index}"),
		Summary:     "Switch Camera",
		Description: "Open the video source at the given registry index and route the stream to it",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 502},
	}, func(ctx context.Context, input *SwitchInput) (*SwitchResponse, error) {
		snap := s.opts.Registry.Snapshot()
		dev, ok := snap.VideoByIndex(input.Index)
		if !ok {
			metrics.DeviceSwitches.WithLabelValues("invalid").Inc()
			return nil, huma.Error404NotFound("no video source at that index")
		}

		err := s.opts.Session.SwitchTo(dev.Path)
		if s.opts.Bus != nil {
			s.opts.Bus.Publish(events.CameraSwitchedEvent{
				ActiveIndex: input.Index,
				SourcePath:  dev.Path,
				Open:        err == nil,
				Timestamp:   time.Now().Format(time.RFC3339),
			})
		}
		if err != nil {
			metrics.DeviceSwitches.WithLabelValues("error").Inc()
			return nil, huma.Error502BadGateway("failed to open video source", err)
		}
		metrics.DeviceSwitches.WithLabelValues("ok").Inc()

		if s.opts.Settings != nil {
			if _, err := s.opts.Settings.Update(func(st *settings.State) {
				st.ActiveCamera = input.Index
			}); err != nil {
				s.logger.Warn("Failed to persist active camera", "error", err)
			}
		}

		resp := &SwitchResponse{}
		resp.Body.Index = input.Index
		resp.Body.Source = dev.Path
		resp.Body.Name = dev.Name
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "switch-audio",
		Method:      http.MethodPost,
		Path:        s.path("/switch-audio/{index}"),
		Summary:     "Switch Audio Source",
		Description: "Restart the audio relay against the source at the given registry index",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 502},
	}, func(ctx context.Context, input *SwitchInput) (*SwitchResponse, error) {
		snap := s.opts.Registry.Snapshot()
		dev, ok := snap.AudioByIndex(input.Index)
		if !ok {
			return nil, huma.Error404NotFound("no audio source at that index")
		}

		if err := s.opts.Relay.Start(input.Index, dev); err != nil {
			return nil, huma.Error502BadGateway("failed to start audio relay", err)
		}

		if s.opts.Settings != nil {
			if _, err := s.opts.Settings.Update(func(st *settings.State) {
				st.ActiveAudio = input.Index
			}); err != nil {
				s.logger.Warn("Failed to persist active audio source", "error", err)
			}
		}

		resp := &SwitchResponse{}
		resp.Body.Index = input.Index
		resp.Body.Source = dev.Source
		resp.Body.Name = dev.Name
		return resp, nil
	})
}

// activeCameraIndex maps the session's device path back to a registry
// index, -1 when no device was ever opened or the path is not in the
// current snapshot. The path survives a dead handle, so a camera that
// has failed still reports as the active selection while camera_open
// says false.
func (s *Server) activeCameraIndex() int {
	if s.opts.Session == nil {
		return -1
	}
	path := s.opts.Session.Path()
	if path == "" {
		return -1
	}
	for _, dev := range s.opts.Registry.Snapshot().Video {
		if dev.Path == path {
			return dev.Index
		}
	}
	return -1
}
