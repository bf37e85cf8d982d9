package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/germanamz/chaichat/pkg/attachment"
	"github.com/germanamz/chaichat/pkg/modeladapter"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/provider"
)

// File states reported by the Files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

// File is an uploaded media file.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

// FileService uploads media through the resumable Files API protocol and
// waits until the file can be referenced from a prompt.
type FileService struct {
	*modeladapter.ModelAdapter

	// PollInterval is the delay between state checks. Zero means one second.
	PollInterval time.Duration
	// MaxPolls bounds the number of state checks. Zero means 120.
	MaxPolls int
}

// Upload sends the file at path and returns it once it is ACTIVE. Failures
// after the file has been read are *provider.CallFailedError.
func (s *FileService) Upload(ctx context.Context, path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an attachment picked by the user.
	if err != nil {
		return File{}, fmt.Errorf("gemini: read upload: %w", err)
	}

	f, err := s.send(ctx, filepath.Base(path), attachment.MediaTypeForPath(path), data)
	if err != nil {
		return File{}, &provider.CallFailedError{Provider: family.Google, Cause: err}
	}

	return f, nil
}

func (s *FileService) send(ctx context.Context, name, mime string, data []byte) (File, error) {
	uploadURL, err := s.start(ctx, name, mime, len(data))
	if err != nil {
		return File{}, fmt.Errorf("gemini: start upload: %w", err)
	}

	f, err := s.finalize(ctx, uploadURL, data)
	if err != nil {
		return File{}, fmt.Errorf("gemini: finalize upload: %w", err)
	}

	if f.MimeType == "" {
		f.MimeType = mime
	}

	return s.waitActive(ctx, f)
}

func (s *FileService) start(ctx context.Context, name, mime string, size int) (string, error) {
	meta, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": name}})
	if err != nil {
		return "", err
	}

	req, err := s.NewRequest(ctx, http.MethodPost, "/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(size))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mime)

	resp, err := s.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	u := resp.Header.Get("X-Goog-Upload-URL")
	if u == "" {
		return "", errors.New("missing upload url")
	}

	return u, nil
}

func (s *FileService) finalize(ctx context.Context, uploadURL string, data []byte) (File, error) {
	req, err := s.NewRequest(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return File{}, err
	}

	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var out struct {
		File File `json:"file"`
	}
	if err := s.doJSON(req, &out); err != nil {
		return File{}, err
	}

	return out.File, nil
}

func (s *FileService) waitActive(ctx context.Context, f File) (File, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	maxPolls := s.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 120
	}

	for range maxPolls {
		switch f.State {
		case "", StateActive:
			return f, nil
		case StateFailed:
			return File{}, fmt.Errorf("gemini: file %s failed processing", f.Name)
		}

		select {
		case <-ctx.Done():
			return File{}, ctx.Err()
		case <-time.After(interval):
		}

		req, err := s.NewRequest(ctx, http.MethodGet, "/v1beta/"+f.Name, nil)
		if err != nil {
			return File{}, err
		}

		mime := f.MimeType
		if err := s.doJSON(req, &f); err != nil {
			return File{}, fmt.Errorf("gemini: poll file: %w", err)
		}
		if f.MimeType == "" {
			f.MimeType = mime
		}
	}

	return File{}, fmt.Errorf("gemini: file %s not active after %d checks", f.Name, maxPolls)
}

func (s *FileService) doJSON(req *http.Request, dest any) error {
	resp, err := s.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
