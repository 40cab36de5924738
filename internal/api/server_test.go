package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/camkit/camnode/internal/audio"
	"github.com/camkit/camnode/internal/capture"
	"github.com/camkit/camnode/internal/devices"
	"github.com/camkit/camnode/internal/events"
	"github.com/camkit/camnode/internal/recorder"
	"github.com/camkit/camnode/internal/settings"
	"github.com/camkit/camnode/internal/streaming"
)

type fakeHandle struct {
	open    atomic.Bool
	rejects map[capture.Property]bool
}

func (h *fakeHandle) Set(prop capture.Property, value int) bool { return !h.rejects[prop] }
func (h *fakeHandle) ReadFrame() (capture.Frame, error) {
	return capture.Frame{JPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Width: 640, Height: 480}, nil
}
func (h *fakeHandle) IsOpened() bool { return h.open.Load() }
func (h *fakeHandle) Close() error   { h.open.Store(false); return nil }

type fakeBackend struct {
	mu   sync.Mutex
	fail bool
	last *fakeHandle
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Open(path string, width, height, fps int) (capture.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errors.New("device gone")
	}
	h := &fakeHandle{}
	h.open.Store(true)
	b.last = h
	return h, nil
}

func (b *fakeBackend) setFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *fakeBackend) lastHandle() *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

type fakeProber struct {
	video []devices.VideoDevice
	audio []devices.AudioDevice
}

func (p *fakeProber) ProbeVideo() ([]devices.VideoDevice, error) { return p.video, nil }
func (p *fakeProber) ProbeAudio() ([]devices.AudioDevice, error) { return p.audio, nil }

type testEnv struct {
	server   *Server
	http     *httptest.Server
	session  *capture.Session
	settings *settings.Store
	backend  *fakeBackend
}

func newTestEnv(t *testing.T, user, pass string) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	prober := &fakeProber{
		video: []devices.VideoDevice{
			{Index: 0, Path: "/dev/video0", Name: "Cam A"},
			{Index: 1, Path: "/dev/video2", Name: "Cam B"},
		},
		audio: []devices.AudioDevice{
			{Index: 0, Name: "System default", Source: "default", Kind: devices.AudioKindDefault},
		},
	}
	registry := devices.NewRegistry(prober, log, devices.Options{})

	backend := &fakeBackend{}
	session := capture.NewSession(backend, log)
	if err := session.Open("/dev/video0", capture.DefaultSettings()); err != nil {
		t.Fatalf("open session: %v", err)
	}

	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.toml"), log)
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}

	bus := events.New()
	pipeline := streaming.NewPipeline(session, log, streaming.Config{Bus: bus})
	relay := audio.NewRelay(log, log, bus, "128k")
	engine := recorder.NewEngine(log, log, recorder.Options{
		OutputDir: t.TempDir(),
		StreamURL: "http://127.0.0.1:0/stream",
	})

	server := NewServer(&Options{
		AuthUsername: user,
		AuthPassword: pass,
		Registry:     registry,
		Session:      session,
		Pipeline:     pipeline,
		Relay:        relay,
		Recorder:     engine,
		Settings:     store,
		Bus:          bus,
		PhotoDir:     t.TempDir(),
	})

	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)
	return &testEnv{server: server, http: ts, session: session, settings: store, backend: backend}
}

func (e *testEnv) request(t *testing.T, method, path string, body io.Reader, user, pass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t, "admin", "secret")

	resp := env.request(t, http.MethodGet, "/api/health", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status      string  `json:"status"`
		UptimeSecs  float64 `json:"uptime_secs"`
		CameraOpen  bool    `json:"camera_open"`
		CurrentIdx  int     `json:"current_idx"`
		AudioRelay  string  `json:"audio_relay"`
		Recording   bool    `json:"recording"`
		RecordState string  `json:"record_state"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != "ok" || !body.CameraOpen {
		t.Errorf("unexpected health body: %+v", body)
	}
	if body.CurrentIdx != 0 {
		t.Errorf("CurrentIdx = %d, want 0", body.CurrentIdx)
	}
	if body.AudioRelay != "stopped" {
		t.Errorf("AudioRelay = %q, want stopped", body.AudioRelay)
	}
	if body.Recording || body.RecordState != "idle" {
		t.Errorf("recording = %v state = %q, want idle", body.Recording, body.RecordState)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, "admin", "secret")

	resp := env.request(t, http.MethodGet, "/api/cameras", nil, "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header")
	}

	resp = env.request(t, http.MethodGet, "/api/cameras", nil, "admin", "secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

func TestQueryAuthFallback(t *testing.T) {
	env := newTestEnv(t, "admin", "secret")

	token := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	resp := env.request(t, http.MethodGet, "/api/cameras?auth="+token, nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListCameras(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodGet, "/api/cameras", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Cameras []devices.VideoDevice `json:"cameras"`
		Active  int                   `json:"active"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Cameras) != 2 {
		t.Fatalf("got %d cameras, want 2", len(body.Cameras))
	}
	if body.Active != 0 {
		t.Errorf("Active = %d, want 0", body.Active)
	}
}

func TestSwitchCamera(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodPost, "/api/switch/1", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := env.session.Path(); got != "/dev/video2" {
		t.Errorf("session path = %q, want /dev/video2", got)
	}
	if got := env.settings.Get().ActiveCamera; got != 1 {
		t.Errorf("persisted active camera = %d, want 1", got)
	}
}

func TestSwitchCameraInvalidIndex(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodPost, "/api/switch/9", nil, "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestActiveIndexSurvivesDeadCamera(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodPost, "/api/switch/1", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch status = %d, want 200", resp.StatusCode)
	}

	// The device dies and refuses to reopen.
	env.backend.lastHandle().Close()
	env.backend.setFail(true)
	if err := env.session.Reopen(); err == nil {
		t.Fatal("Reopen succeeded, want failure")
	}

	var health struct {
		CameraOpen bool `json:"camera_open"`
		CurrentIdx int  `json:"current_idx"`
	}
	resp = env.request(t, http.MethodGet, "/api/health", nil, "", "")
	decodeJSON(t, resp, &health)
	if health.CameraOpen {
		t.Error("camera_open = true after failed reopen")
	}
	// The selection stays on the last device that opened; only the
	// open flag reports the failure.
	if health.CurrentIdx != 1 {
		t.Errorf("current_idx = %d, want 1", health.CurrentIdx)
	}

	var cams struct {
		Active int `json:"active"`
	}
	resp = env.request(t, http.MethodGet, "/api/cameras", nil, "", "")
	decodeJSON(t, resp, &cams)
	if cams.Active != 1 {
		t.Errorf("active = %d, want 1", cams.Active)
	}
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t, "", "")

	payload := map[string]any{"width": 640, "height": 480, "fps": 15, "brightness": 100}
	data, _ := json.Marshal(payload)
	resp := env.request(t, http.MethodPost, "/api/settings", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}

	got := env.session.Settings()
	if got.Width != 640 || got.FPS != 15 {
		t.Errorf("session settings = %+v", got)
	}
	persisted := env.settings.Get().Camera
	if persisted.Brightness == nil || *persisted.Brightness != 100 {
		t.Errorf("persisted brightness = %v, want 100", persisted.Brightness)
	}
}

func TestUpdateSettingsReportsRejectedControls(t *testing.T) {
	env := newTestEnv(t, "", "")
	env.backend.lastHandle().rejects = map[capture.Property]bool{capture.PropHue: true}

	data, _ := json.Marshal(map[string]any{
		"width": 1280, "height": 720, "fps": 30, "hue": 5, "brightness": 60,
	})
	resp := env.request(t, http.MethodPost, "/api/settings", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}
	var body struct {
		Rejected []string `json:"rejected"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Rejected) != 1 || body.Rejected[0] != "hue" {
		t.Errorf("rejected = %v, want [hue]", body.Rejected)
	}
	// Partial application: the accepted control is still persisted.
	persisted := env.settings.Get().Camera
	if persisted.Brightness == nil || *persisted.Brightness != 60 {
		t.Errorf("persisted brightness = %v, want 60", persisted.Brightness)
	}
}

func TestSetSettingReportsRejection(t *testing.T) {
	env := newTestEnv(t, "", "")
	env.backend.lastHandle().rejects = map[capture.Property]bool{capture.PropHue: true}

	data, _ := json.Marshal(map[string]int{"value": 7})
	resp := env.request(t, http.MethodPost, "/api/settings/hue", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}
	var body struct {
		Applied bool `json:"applied"`
		Value   int  `json:"value"`
	}
	decodeJSON(t, resp, &body)
	if body.Applied {
		t.Error("applied = true for a control the device refused")
	}
	if got := env.settings.Get().Camera.Hue; got == nil || *got != 7 {
		t.Errorf("persisted hue = %v, want 7", got)
	}
}

func TestUpdateSettingsRejectsInvalidGeometry(t *testing.T) {
	env := newTestEnv(t, "", "")

	data, _ := json.Marshal(map[string]any{"width": 0, "height": 480, "fps": 30})
	resp := env.request(t, http.MethodPost, "/api/settings", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRecordStatusIdle(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodGet, "/api/record/status", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body recorder.Status
	decodeJSON(t, resp, &body)
	if body.State != recorder.StateIdle {
		t.Errorf("state = %q, want idle", body.State)
	}
}

func TestRecordStopWithoutActive(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodPost, "/api/record/stop", nil, "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestFrameEndpoint(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodGet, "/api/frame", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Frame string `json:"frame"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(body.Frame)
	if err != nil {
		t.Fatalf("frame is not valid base64: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("decoded frame is not a JPEG")
	}
}

func TestFrameRequiresAuth(t *testing.T) {
	env := newTestEnv(t, "admin", "secret")

	resp := env.request(t, http.MethodGet, "/api/frame", nil, "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	token := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	resp = env.request(t, http.MethodGet, "/api/frame?auth="+token, nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query-auth status = %d, want 200", resp.StatusCode)
	}
}

func TestTakePhoto(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodPost, "/api/photo", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}
	var body struct {
		Path string `json:"path"`
		Size int    `json:"size"`
	}
	decodeJSON(t, resp, &body)
	if body.Path == "" || body.Size == 0 {
		t.Fatalf("unexpected photo body: %+v", body)
	}
	if _, err := os.Stat(body.Path); err != nil {
		t.Errorf("photo file missing: %v", err)
	}
}

func TestGetSingleSetting(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodGet, "/api/settings/width", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}
	var body struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	decodeJSON(t, resp, &body)
	if body.Name != "width" || body.Value != 1280 {
		t.Errorf("got %s=%d, want width=1280", body.Name, body.Value)
	}

	// Brightness starts unset.
	resp = env.request(t, http.MethodGet, "/api/settings/brightness", nil, "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unset property status = %d, want 404", resp.StatusCode)
	}
}

func TestSetSingleSetting(t *testing.T) {
	env := newTestEnv(t, "", "")

	data, _ := json.Marshal(map[string]int{"value": 42})
	resp := env.request(t, http.MethodPost, "/api/settings/brightness", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readAll(t, resp))
	}

	persisted := env.settings.Get().Camera
	if persisted.Brightness == nil || *persisted.Brightness != 42 {
		t.Errorf("persisted brightness = %v, want 42", persisted.Brightness)
	}

	resp = env.request(t, http.MethodGet, "/api/settings/brightness", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read-back status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Value int `json:"value"`
	}
	decodeJSON(t, resp, &body)
	if body.Value != 42 {
		t.Errorf("read-back value = %d, want 42", body.Value)
	}

	data, _ = json.Marshal(map[string]int{"value": 1})
	resp = env.request(t, http.MethodPost, "/api/settings/nonsense", bytes.NewReader(data), "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown property status = %d, want 404", resp.StatusCode)
	}
}

func TestLogsHistory(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp := env.request(t, http.MethodGet, "/api/logs", nil, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Entries []map[string]any `json:"entries"`
	}
	decodeJSON(t, resp, &body)
	if body.Entries == nil {
		t.Error("entries should decode to an empty slice, not null")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "admin", "secret")

	resp := env.request(t, http.MethodOptions, "/api/cameras", nil, "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("%s", data)
}
