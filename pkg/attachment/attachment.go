// Package attachment converts raw media to and from the transport encodings
// used inside transcript turns: base64 data URIs for images and base64 file
// payloads for provider upload APIs.
package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformedAttachment is returned when an encoded attachment cannot be
// parsed. The caller must re-supply the attachment.
var ErrMalformedAttachment = errors.New("attachment: malformed attachment")

// DataURI is a parsed "data:<mime>;base64,<payload>" string.
type DataURI struct {
	MediaType string
	Payload   string // Still base64-encoded.
}

// String renders the URI back to its textual form.
func (d DataURI) String() string {
	return "data:" + d.MediaType + ";base64," + d.Payload
}

// Bytes decodes the payload.
func (d DataURI) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrMalformedAttachment, err)
	}
	return raw, nil
}

var formatMediaTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
}

// ImageMediaType resolves an image format name ("png", "JPEG") or a full
// media type ("image/png") to a media type. An empty format is sniffed from
// raw.
func ImageMediaType(format string, raw []byte) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if strings.Contains(f, "/") {
		return f
	}
	if mt, ok := formatMediaTypes[f]; ok {
		return mt
	}
	return http.DetectContentType(raw)
}

// EncodeImage returns raw as a data URI. The bytes are embedded as-is, so
// the original image encoding is preserved.
func EncodeImage(raw []byte, format string) string {
	return DataURI{
		MediaType: ImageMediaType(format, raw),
		Payload:   base64.StdEncoding.EncodeToString(raw),
	}.String()
}

// ParseDataURI splits uri at its media-type and comma delimiters.
func ParseDataURI(uri string) (DataURI, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || payload == "" {
		return DataURI{}, fmt.Errorf("%w: missing base64 payload", ErrMalformedAttachment)
	}

	rest, ok := strings.CutPrefix(header, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrMalformedAttachment)
	}

	mediaType, _, _ := strings.Cut(rest, ";")

	return DataURI{MediaType: mediaType, Payload: payload}, nil
}

// DecodeImage is the inverse of EncodeImage.
func DecodeImage(uri string) ([]byte, error) {
	d, err := ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	return d.Bytes()
}

// EncodeFile reads r fully and returns its base64 encoding.
func EncodeFile(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer

	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, r); err != nil {
		return nil, fmt.Errorf("attachment: encode file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("attachment: encode file: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeFileHandle reads the file at path fully and returns its base64
// encoding.
func EncodeFileHandle(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the session's own attachment store
	if err != nil {
		return nil, fmt.Errorf("attachment: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return EncodeFile(f)
}

var extMediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".webm": "video/webm",
}

// MediaTypeForPath guesses the media type of a file from its extension,
// falling back to application/octet-stream.
func MediaTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extMediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		mt, _, _ = strings.Cut(mt, ";")
		return mt
	}
	return "application/octet-stream"
}
