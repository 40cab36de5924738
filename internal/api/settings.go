package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/settings"
)

// registerSettingsRoutes sets up camera settings management.
func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        s.path("/settings"),
		Summary:     "Get Settings",
		Description: "Return the persisted camera settings",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*SettingsResponse, error) {
		return &SettingsResponse{Body: s.opts.Settings.Get().Camera}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPost,
		Path:        s.path("/settings"),
		Summary:     "Update Settings",
		Description: "Replace the camera settings, apply them to the open device and persist them",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 502},
	}, func(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsResponse, error) {
		incoming := input.Body
		if incoming.Width <= 0 || incoming.Height <= 0 || incoming.FPS <= 0 {
			return nil, huma.Error422UnprocessableEntity("width, height and fps must be positive")
		}

		rejected, err := s.opts.Session.Update(incoming)
		if err != nil {
			// Persisting anyway would desync the file from the device
			// on the next restart, so reject the write.
			return nil, huma.Error502BadGateway("failed to apply settings to device", err)
		}

		state, err := s.opts.Settings.Update(func(st *settings.State) {
			st.Camera = incoming
		})
		if err != nil {
			return nil, huma.Error502BadGateway("failed to persist settings", err)
		}

		s.publishSettingChanges(incoming, rejected)
		resp := &UpdateSettingsResponse{}
		resp.Body.Settings = state.Camera
		resp.Body.Rejected = rejected
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-setting",
		Method:      http.MethodGet,
		Path:        s.path("/settings/{name}"),
		Summary:     "Get Setting",
		Description: "Return one camera property value",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *PropertyInput) (*PropertyResponse, error) {
		value, ok := s.opts.Settings.Get().Camera.Property(input.Name)
		if !ok {
			return nil, huma.Error404NotFound("unknown or unset camera property")
		}
		resp := &PropertyResponse{}
		resp.Body.Name = input.Name
		resp.Body.Value = value
		resp.Body.Applied = true
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-setting",
		Method:      http.MethodPost,
		Path:        s.path("/settings/{name}"),
		Summary:     "Set Setting",
		Description: "Apply one camera property to the open device and persist it",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 502},
	}, func(ctx context.Context, input *SetPropertyInput) (*PropertyResponse, error) {
		updated := s.opts.Settings.Get().Camera
		if err := updated.SetProperty(input.Name, input.Body.Value); err != nil {
			return nil, huma.Error404NotFound("unknown camera property", err)
		}

		rejected, err := s.opts.Session.Update(updated)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to apply setting to device", err)
		}
		if _, err := s.opts.Settings.Update(func(st *settings.State) {
			st.Camera = updated
		}); err != nil {
			return nil, huma.Error502BadGateway("failed to persist setting", err)
		}

		applied := true
		for _, name := range rejected {
			if name == input.Name {
				applied = false
			}
		}
		if s.opts.Bus != nil {
			s.opts.Bus.Publish(events.SettingChangedEvent{
				Name:      input.Name,
				Value:     input.Body.Value,
				Applied:   applied,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}

		resp := &PropertyResponse{}
		resp.Body.Name = input.Name
		resp.Body.Value = input.Body.Value
		resp.Body.Applied = applied
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reload-settings",
		Method:      http.MethodPost,
		Path:        s.path("/reload_settings"),
		Summary:     "Reload Settings",
		Description: "Re-read the settings file from disk and apply it to the open device",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 502},
	}, func(ctx context.Context, input *struct{}) (*UpdateSettingsResponse, error) {
		state, err := s.opts.Settings.Reload()
		if err != nil {
			return nil, huma.Error502BadGateway("failed to reload settings file", err)
		}
		rejected, err := s.opts.Session.Update(state.Camera)
		if err != nil {
			return nil, huma.Error502BadGateway("failed to apply reloaded settings", err)
		}
		resp := &UpdateSettingsResponse{}
		resp.Body.Settings = state.Camera
		resp.Body.Rejected = rejected
		return resp, nil
	})
}

// publishSettingChanges reports each control value carried by the
// settings document, marking the ones the device refused.
func (s *Server) publishSettingChanges(cam capture.Settings, rejected []string) {
	if s.opts.Bus == nil {
		return
	}
	refused := make(map[string]bool, len(rejected))
	for _, name := range rejected {
		refused[name] = true
	}
	now := time.Now().Format(time.RFC3339)
	for name, value := range cam.Controls() {
		s.opts.Bus.Publish(events.SettingChangedEvent{
			Name:      name,
			Value:     value,
			Applied:   !refused[name],
			Timestamp: now,
		})
	}
}
