package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// registerMediaRoutes mounts the raw streaming endpoints directly on
// the mux. MJPEG and ADTS responses never terminate, which does not
// fit Huma's request/response model, so these bypass it the same way
// the metrics endpoint does.
func (s *Server) registerMediaRoutes() {
	s.mux.HandleFunc("GET "+s.path("/stream"), s.rawAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", s.opts.Pipeline.ContentType())
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "close")
		// Serve blocks for the lifetime of the connection.
		_ = s.opts.Pipeline.Serve(r.Context(), &flushWriter{w: w})
	}))

	s.mux.HandleFunc("GET "+s.path("/stream/audio"), s.rawAuth(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", s.opts.Relay.ContentType())
		w.Header().Set("Cache-Control", "no-cache")
		if err := s.opts.Relay.Stream(r.Context(), w); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
	}))

	huma.Register(s.api, huma.Operation{
		OperationID: "camera-frame",
		Method:      http.MethodGet,
		Path:        s.path("/frame"),
		Summary:     "Camera Frame",
		Description: "Capture a single frame as base64-encoded JPEG",
		Tags:        []string{"media"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *struct{}) (*FrameResponse, error) {
		jpeg, err := s.opts.Pipeline.Still()
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("no frame available", err)
		}
		resp := &FrameResponse{}
		resp.Body.Frame = jpeg
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "take-photo",
		Method:      http.MethodPost,
		Path:        s.path("/photo"),
		Summary:     "Take Photo",
		Description: "Capture a still frame and save it to the photo directory",
		Tags:        []string{"media"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, input *struct{}) (*PhotoResponse, error) {
		jpeg, err := s.opts.Pipeline.Still()
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("no frame available", err)
		}

		dir := s.opts.PhotoDir
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, huma.Error500InternalServerError("failed to create photo directory", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("photo_%s.jpg", time.Now().Format("20060102_150405")))
		if err := os.WriteFile(path, jpeg, 0644); err != nil {
			return nil, huma.Error500InternalServerError("failed to save photo", err)
		}

		s.logger.Info("Photo saved", "path", path, "bytes", len(jpeg))
		resp := &PhotoResponse{}
		resp.Body.Path = path
		resp.Body.Size = len(jpeg)
		return resp, nil
	})
}

// rawAuth applies basic auth to a plain http handler, honoring the
// same base64 "auth" query fallback as the Huma middleware. Media
// endpoints are consumed by img/audio tags that cannot set headers.
func (s *Server) rawAuth(next http.HandlerFunc) http.HandlerFunc {
	username, password := s.opts.AuthUsername, s.opts.AuthPassword
	if username == "" || password == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); ok && u == username && p == password {
			next(w, r)
			return
		}
		if queryAuth := r.URL.Query().Get("auth"); queryAuth != "" {
			if decoded, err := base64.StdEncoding.DecodeString(queryAuth); err == nil {
				parts := strings.SplitN(string(decoded), ":", 2)
				if len(parts) == 2 && parts[0] == username && parts[1] == password {
					next(w, r)
					return
				}
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="CamNode API"`)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	}
}

// flushWriter flushes after every write so MJPEG parts reach the
// client immediately instead of sitting in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return n, err
}
