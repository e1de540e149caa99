package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcoder/internal/build"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/project"
	"github.com/conneroisu/bbcoder/internal/websocket"
)

const testManifest = `<project>
  <targets>
    <target name="main" src="index.bbxml"/>
    <target name="broken" src="broken.bbxml"/>
  </targets>
</project>`

// setupProject writes a project with a working and a failing target.
func setupProject(t *testing.T) (dir string, manifest string) {
	t.Helper()
	dir = t.TempDir()
	files := map[string]string{
		"project.xml":  testManifest,
		"index.bbxml":  `<bbxml><body>Hello <b>world</b> &amp; <i>friends</i>!</body></bbxml>`,
		"broken.bbxml": `<bbxml><body><include template="missing"/></body></bbxml>`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir, filepath.Join(dir, "project.xml")
}

func newOrchestrator(t *testing.T, manifest string, ws *websocket.Manager) *Orchestrator {
	t.Helper()
	proj, err := project.Load(manifest)
	require.NoError(t, err)

	pipeline := build.NewPipeline(proj, build.Options{OutputDir: filepath.Join(t.TempDir(), "target")}, logging.NewNop())
	o, err := NewOrchestrator(Dependencies{
		ManifestPath: manifest,
		Pipeline:     pipeline,
		WSManager:    ws,
		Debounce:     20 * time.Millisecond,
		Extensions:   []string{".bbxml", ".xml"},
		OutputDir:    filepath.Join(proj.Directory, "target"),
	}, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Stop() })
	return o
}

func get(t *testing.T, handler http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestPreviewServerRoutes(t *testing.T) {
	_, manifest := setupProject(t)
	o := newOrchestrator(t, manifest, nil)
	handler := New(Options{Host: "localhost"}, o, nil, nil).Handler()

	// before the first build
	resp, _ := get(t, handler, "/targets/main")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	o.Rebuild(context.Background(), o.Targets())

	t.Run("index lists targets", func(t *testing.T) {
		resp, body := get(t, handler, "/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, `<a href="/preview/main">main</a>`)
		assert.Contains(t, body, `<span class="error">failed</span>`)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")
	})

	t.Run("raw output", func(t *testing.T) {
		resp, body := get(t, handler, "/targets/main")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, "Hello [B]world[/B] & [I]friends[/I]!", body)
	})

	t.Run("failed target", func(t *testing.T) {
		resp, body := get(t, handler, "/targets/broken")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body, "Template 'missing' not found")
	})

	t.Run("unknown target", func(t *testing.T) {
		resp, _ := get(t, handler, "/targets/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = get(t, handler, "/preview/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("preview escapes output", func(t *testing.T) {
		resp, body := get(t, handler, "/preview/main")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<pre>Hello [B]world[/B] &amp; [I]friends[/I]!</pre>")
		assert.NotContains(t, body, "new WebSocket")
	})

	t.Run("preview of failed target", func(t *testing.T) {
		_, body := get(t, handler, "/preview/broken")
		assert.Contains(t, body, `<pre class="error">`)
		assert.Contains(t, body, "Template &#39;missing&#39; not found")
	})

	t.Run("status", func(t *testing.T) {
		resp, body := get(t, handler, "/api/status")
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var status struct {
			Targets []targetStatus         `json:"targets"`
			Metrics map[string]interface{} `json:"metrics"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &status))
		require.Len(t, status.Targets, 2)
		assert.Equal(t, "broken", status.Targets[0].Name)
		assert.False(t, status.Targets[0].Built)
		assert.NotEmpty(t, status.Targets[0].Error)
		assert.True(t, status.Targets[1].Built)
		assert.EqualValues(t, 2, status.Metrics["total_builds"])
	})

	t.Run("health", func(t *testing.T) {
		resp, body := get(t, handler, "/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `"status":"healthy"`)
	})

	t.Run("no websocket route without manager", func(t *testing.T) {
		resp, _ := get(t, handler, "/ws")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestPreviewIncludesReloadScript(t *testing.T) {
	_, manifest := setupProject(t)
	ws := websocket.NewManager(websocket.Options{}, nil)
	defer ws.Shutdown(context.Background())

	o := newOrchestrator(t, manifest, ws)
	o.Rebuild(context.Background(), []string{"main"})

	_, body := get(t, New(Options{}, o, ws, nil).Handler(), "/preview/main")
	assert.Contains(t, body, `data-target="main"`)
	assert.Contains(t, body, `new WebSocket`)
}

func TestListenServeShutdown(t *testing.T) {
	_, manifest := setupProject(t)
	ws := websocket.NewManager(websocket.Options{}, nil)
	o := newOrchestrator(t, manifest, ws)
	o.Rebuild(context.Background(), o.Targets())

	srv := New(Options{Host: "127.0.0.1", Port: 0}, o, ws, nil)
	addr, err := srv.Listen()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get("http://" + addr.String() + "/targets/main")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestOptionsAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", Options{Host: "localhost", Port: 8080}.Addr())
	assert.Equal(t, "[::1]:0", Options{Host: "::1"}.Addr())
}
