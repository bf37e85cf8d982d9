package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/germanamz/chaichat/pkg/modeladapter"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/gemini"
	"github.com/germanamz/chaichat/pkg/providers/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_Upload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o600))

	var polls atomic.Int32

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
			assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
			assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
			assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
			assert.Equal(t, "11", r.Header.Get("X-Goog-Upload-Header-Content-Length"))
			assert.Equal(t, "video/mp4", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
			w.Header().Set("X-Goog-Upload-URL", srv.URL+"/resumable/1")
			_, _ = io.WriteString(w, "{}")
		case r.Method == http.MethodPost && r.URL.Path == "/resumable/1":
			assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "video-bytes", string(body))
			_ = json.NewEncoder(w).Encode(map[string]any{"file": map[string]any{
				"name": "files/abc", "uri": "https://files.example/abc", "mimeType": "video/mp4", "state": "PROCESSING",
			}})
		case r.Method == http.MethodGet && r.URL.Path == "/v1beta/files/abc":
			state := gemini.StateProcessing
			if polls.Add(1) >= 2 {
				state = gemini.StateActive
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name": "files/abc", "uri": "https://files.example/abc", "mimeType": "video/mp4", "state": state,
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ma := modeladapter.New(srv.URL, modeladapter.Auth{Key: "k", Header: "x-goog-api-key"}, nil)
	fs := &gemini.FileService{ModelAdapter: &ma, PollInterval: time.Millisecond}

	f, err := fs.Upload(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, gemini.StateActive, f.State)
	assert.Equal(t, "https://files.example/abc", f.URI)
	assert.Equal(t, "video/mp4", f.MimeType)
	assert.Equal(t, int32(2), polls.Load())
}

func TestFileService_FailedState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.wav")
	require.NoError(t, os.WriteFile(path, []byte("wav"), 0o600))

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload/v1beta/files" {
			w.Header().Set("X-Goog-Upload-URL", srv.URL+"/resumable/2")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"file": map[string]any{"name": "files/x", "state": "FAILED"}})
	}))
	t.Cleanup(srv.Close)

	ma := modeladapter.New(srv.URL, modeladapter.Auth{Key: "k", Header: "x-goog-api-key"}, nil)
	fs := &gemini.FileService{ModelAdapter: &ma, PollInterval: time.Millisecond}

	_, err := fs.Upload(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed processing")

	var cf *provider.CallFailedError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, family.Google, cf.Provider)
}

func TestFileService_MissingFile(t *testing.T) {
	ma := modeladapter.New("http://unused", modeladapter.Auth{}, nil)
	fs := &gemini.FileService{ModelAdapter: &ma}

	_, err := fs.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	require.ErrorIs(t, err, os.ErrNotExist)

	var cf *provider.CallFailedError
	assert.False(t, errors.As(err, &cf))
}
