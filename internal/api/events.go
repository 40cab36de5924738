package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/camkit/camnode/internal/events"
)

// registerEventRoutes sets up the SSE event stream.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        s.path("/events"),
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device, camera, recording and relay events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-discovery":    events.DeviceDiscoveryEvent{},
		"camera-switched":     events.CameraSwitchedEvent{},
		"setting-changed":     events.SettingChangedEvent{},
		"stream-fallback":     events.StreamFallbackEvent{},
		"recording-started":   events.RecordingStartedEvent{},
		"recording-stopped":   events.RecordingStoppedEvent{},
		"audio-relay-started": events.AudioRelayStartedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.CameraSwitchedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.SettingChangedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.StreamFallbackEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.RecordingStartedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.RecordingStoppedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.AudioRelayStartedEvent](s.opts.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Confirm the connection so clients can tell an idle stream
		// from a dead one.
		if err := send.Data(events.StreamFallbackEvent{
			UsingFallback: s.opts.Pipeline != nil && s.opts.Pipeline.UsingFallback(),
			Timestamp:     time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
