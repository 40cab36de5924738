// Package api exposes the HTTP surface: the MJPEG and AAC streams,
// device and settings management, recording control, and SSE feeds.
package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/camkit/camnode/internal/audio"
	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/devices"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/logging"
	"github.com/camkit/camnode/internal/recorder"
	"github.com/camkit/camnode/internal/settings"
	"github.com/camkit/camnode/internal/streaming"
	"github.com/camkit/camnode/internal/version"
)

// Options wires the server to the rest of the node.
type Options struct {
	// Prefix is prepended to every API path. Defaults to /api.
	Prefix string

	AuthUsername string
	AuthPassword string

	Registry *devices.Registry
	Session  *capture.Session
	Pipeline *streaming.Pipeline
	Relay    *audio.Relay
	Recorder *recorder.Engine
	Settings *settings.Store
	Bus      *events.Bus

	// PhotoDir receives still captures from the photo endpoint.
	PhotoDir string

	// PrometheusHandler is mounted at /metrics when set.
	PrometheusHandler http.Handler

	// Restart is invoked by the restart endpoint after the response
	// is written.
	Restart func()
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	opts       *Options
	prefix     string
	started    time.Time
	logger     *slog.Logger
}

// NewServer builds the server and registers all routes.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/api"
	}
	prefix = "/" + strings.Trim(prefix, "/")

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("CamNode API", "1.0.0")
	config.Info.Description = "Live camera streaming, recording and device control"
	// Empty servers list keeps OpenAPI paths relative, so docs work
	// behind any host or proxy.
	config.Servers = []*huma.Server{}

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		opts:    opts,
		prefix:  prefix,
		started: time.Now(),
		logger:  logging.GetLogger("api"),
	}

	// CORS first, then request logging, then auth.
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	server.registerMediaRoutes()

	return server
}

// Mux returns the underlying ServeMux.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// API returns the Huma API instance.
func (s *Server) API() huma.API { return s.api }

// Start serves HTTP on addr, blocking until the listener fails or the
// server is stopped.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the server without waiting for streaming clients; those
// connections can stay open for hours.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// basicAuthMiddleware enforces HTTP basic auth on operations that
// declare a security requirement. EventSource and media elements
// cannot set headers, so a base64 "auth" query parameter is accepted
// as a fallback.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string

		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="CamNode API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="CamNode API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="CamNode API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="CamNode API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="CamNode API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// registerRoutes sets up all JSON API endpoints.
func (s *Server) registerRoutes() {
	// Health endpoint, no auth so load balancers can poll it.
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        s.path("/health"),
		Summary:     "Health",
		Description: "Check service health and streaming state",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: s.healthData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        s.path("/version"),
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{
			Body: VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart",
		Method:      http.MethodPost,
		Path:        s.path("/restart"),
		Summary:     "Restart",
		Description: "Restart the service. The process exits after responding; the supervisor brings it back.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*MessageResponse, error) {
		resp := &MessageResponse{}
		resp.Body.Message = "restarting"
		if s.opts.Restart != nil {
			go s.opts.Restart()
		}
		return resp, nil
	})

	s.registerDeviceRoutes()
	s.registerSettingsRoutes()
	s.registerRecordRoutes()
	s.registerEventRoutes()
	s.registerLogRoutes()
}

func (s *Server) healthData() HealthData {
	data := HealthData{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		CurrentIndex:  -1,
		ActiveAudio:   -1,
		AudioRelay:    "stopped",
		RecordState:   string(recorder.StateIdle),
	}
	if s.opts.Session != nil {
		data.CameraOpen = s.opts.Session.IsOpen()
		data.CurrentSource = s.opts.Session.Path()
		data.Settings = s.opts.Session.Settings()
		data.CurrentIndex = s.activeCameraIndex()
	}
	if s.opts.Pipeline != nil {
		data.UsingFallback = s.opts.Pipeline.UsingFallback()
		data.StreamClients = s.opts.Pipeline.ClientCount()
	}
	if s.opts.Relay != nil {
		data.AudioRelay = s.opts.Relay.Describe()
		if idx, _, ok := s.opts.Relay.Active(); ok {
			data.ActiveAudio = idx
		}
	}
	if s.opts.Recorder != nil {
		st := s.opts.Recorder.Status()
		data.RecordState = string(st.State)
		data.RecordingOn = st.State == recorder.StateActive || st.State == recorder.StateStarting
	}
	return data
}

// path joins the configured prefix with a route path.
func (s *Server) path(p string) string {
	return s.prefix + p
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
