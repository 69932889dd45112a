package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobarin/storyteller/internal/services"
	"github.com/google/uuid"
)

type fakeScripts struct {
	err   error
	calls int
}

func (f *fakeScripts) GenerateScript(ctx context.Context, prompt, genre, style string, targetSeconds float64) (*services.Script, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &services.Script{Title: "t", Scenes: []services.ScriptScene{{Dialogue: "d", VisualPrompt: "v"}}}, nil
}

func newTestRouter(scripts ScriptGenerator, apiKey string) http.Handler {
	h := NewHandler(nil, nil, nil, scripts, nil)
	return NewRouter(h, RouterConfig{BackendAPIKey: apiKey})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body["error"]
}

func TestAPIKeyAuth(t *testing.T) {
	router := newTestRouter(&fakeScripts{}, "secret")

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"header", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, "GET", "/v1/backgrounds", "", tt.headers)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	rec := do(t, newTestRouter(&fakeScripts{}, "secret"), "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListBackgrounds(t *testing.T) {
	rec := do(t, newTestRouter(&fakeScripts{}, ""), "GET", "/v1/backgrounds", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string][]string
	json.NewDecoder(rec.Body).Decode(&body)
	got := strings.Join(body["backgrounds"], ",")
	if got != "abstract,minecraft,subway" {
		t.Errorf("backgrounds = %q", got)
	}
}

func TestGenerateScriptValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "Invalid request body"},
		{"no prompt", `{"prompt":"  "}`, "Prompt is required"},
		{"zero duration", `{"prompt":"a fox","duration_seconds":0}`, "duration_seconds must be between 0 and 300"},
		{"long duration", `{"prompt":"a fox","duration_seconds":301}`, "duration_seconds must be between 0 and 300"},
		{"background", `{"prompt":"a fox","background_style":"lava"}`, "Unknown background style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scripts := &fakeScripts{}
			rec := do(t, newTestRouter(scripts, ""), "POST", "/v1/generate-script", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.want {
				t.Errorf("error = %q, want %q", msg, tt.want)
			}
			if scripts.calls != 0 {
				t.Error("script generator should not be called on invalid input")
			}
		})
	}
}

func TestGenerateScriptUpstreamFailure(t *testing.T) {
	scripts := &fakeScripts{err: errors.New("rate limited")}
	rec := do(t, newTestRouter(scripts, ""), "POST", "/v1/generate-script", `{"prompt":"a fox","background_style":"Subway"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if scripts.calls != 1 {
		t.Errorf("expected one script call, got %d", scripts.calls)
	}
}

func TestInvalidIDs(t *testing.T) {
	router := newTestRouter(&fakeScripts{}, "")
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/v1/projects/nope", "Invalid project ID"},
		{"PUT", "/v1/projects/nope", "Invalid project ID"},
		{"POST", "/v1/projects/nope/render", "Invalid project ID"},
		{"PUT", "/v1/scenes/nope", "Invalid scene ID"},
		{"POST", "/v1/scenes/nope/regenerate", "Invalid scene ID"},
	}
	for _, tt := range tests {
		rec := do(t, router, tt.method, tt.path, `{}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d", tt.method, tt.path, rec.Code)
			continue
		}
		if msg := errorMessage(t, rec); msg != tt.want {
			t.Errorf("%s %s: error = %q", tt.method, tt.path, msg)
		}
	}
}

func TestRenderRejectsBadOverrides(t *testing.T) {
	router := newTestRouter(&fakeScripts{}, "")
	path := "/v1/projects/" + uuid.NewString() + "/render"

	rec := do(t, router, "POST", path, `{"background_style":"lava"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown background: status = %d", rec.Code)
	}

	rec = do(t, router, "POST", path, `{"subtitles":"1\nnot a timing line\nhello"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad subtitles: status = %d", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.HasPrefix(msg, "Subtitles contain no valid cues") {
		t.Errorf("error = %q", msg)
	}

	for _, audio := range []string{"/etc/passwd", "file:///etc/passwd", "ftp://host/a.mp3"} {
		rec = do(t, router, "POST", path, `{"audio_url":"`+audio+`"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("audio_url %q: status = %d", audio, rec.Code)
			continue
		}
		if msg := errorMessage(t, rec); msg != "audio_url must be an http(s) URL" {
			t.Errorf("audio_url %q: error = %q", audio, msg)
		}
	}
}

func TestUpdateSceneRequiresFields(t *testing.T) {
	rec := do(t, newTestRouter(&fakeScripts{}, ""), "PUT", "/v1/scenes/"+uuid.NewString(), `{"unknown":"x"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestScenesFromScript(t *testing.T) {
	projectID := uuid.New()
	script := &services.Script{Scenes: []services.ScriptScene{
		{SceneNumber: 4, Dialogue: "a", VisualPrompt: "x"},
		{SceneNumber: 9, VoiceOver: "b", VisualPrompt: "y"},
	}}

	scenes := ScenesFromScript(projectID, script)
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes", len(scenes))
	}
	for i, s := range scenes {
		if s.ProjectID != projectID || s.SceneNumber != i+1 || s.ID == uuid.Nil {
			t.Errorf("scene %d: %+v", i, s)
		}
	}
	if scenes[1].VoiceOver != "b" || scenes[1].VisualPrompt != "y" {
		t.Errorf("fields not copied: %+v", scenes[1])
	}
}

func TestToJSONB(t *testing.T) {
	if toJSONB(nil) != nil {
		t.Error("nil options should stay nil")
	}
	bg := "subway"
	got := toJSONB(struct {
		BackgroundStyle *string `json:"background_style"`
	}{&bg})
	if got["background_style"] != "subway" {
		t.Errorf("unexpected JSONB %v", got)
	}
}
