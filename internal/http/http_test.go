package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/drmpack/internal/config"
)

func newServer(t *testing.T, pprof bool) (*HttpManagerCtx, string) {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"master.m3u8":    "#EXTM3U\n",
		"manifest.mpd":   "<MPD type='static'></MPD>",
		"README.md":      "# readme",
		"sample-code.js": "const manifestUri = 'master.m3u8';",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	return New(&config.Server{Bind: "127.0.0.1:0", Dir: dir, PProf: pprof}), dir
}

func get(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServeManifests(t *testing.T) {
	server, _ := newServer(t, false)

	tests := []struct {
		target      string
		contentType string
		body        string
	}{
		{"/master.m3u8", "application/vnd.apple.mpegurl", "#EXTM3U\n"},
		{"/manifest.mpd", "application/dash+xml", "<MPD type='static'></MPD>"},
		{"/sample-code.js", "text/javascript; charset=utf-8", "const manifestUri = 'master.m3u8';"},
		{"/README.md", "text/markdown; charset=utf-8", "# readme"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, server.Handler(), http.MethodGet, tt.target)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestServePreflight(t *testing.T) {
	server, _ := newServer(t, false)

	rec := get(t, server.Handler(), http.MethodOptions, "/master.m3u8")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Range")
}

func TestServeMissingFile(t *testing.T) {
	server, _ := newServer(t, false)

	rec := get(t, server.Handler(), http.MethodGet, "/stream_9.m3u8")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServePProf(t *testing.T) {
	server, _ := newServer(t, true)
	rec := get(t, server.Handler(), http.MethodGet, "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusOK, rec.Code)

	server, _ = newServer(t, false)
	rec = get(t, server.Handler(), http.MethodGet, "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
