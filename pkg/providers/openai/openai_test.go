package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/openai"
	"github.com/germanamz/chaichat/pkg/providers/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *openai.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return openai.New(family.Handle{Family: family.OpenAI, APIKey: "test-key", BaseURL: srv.URL + "/v1"})
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}

	return req
}

func writeChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		b, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": c}}},
		})
		_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
	}
	_, _ = io.WriteString(w, "data: [DONE]\n\n")
}

func collect(t *testing.T, s provider.Stream) []string {
	t.Helper()

	var out []string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk)
	}
}

func TestTranslate_CoalescesUserTurns(t *testing.T) {
	a := openai.New(family.Handle{Family: family.OpenAI, APIKey: "k"})

	msgs, err := a.Translate(context.Background(), []message.Message{
		message.NewText(role.User, "a"),
		message.NewText(role.User, "b"),
		message.NewText(role.Assistant, "c"),
	})

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	require.Len(t, msgs[0].MultiContent, 2)
	assert.Equal(t, "a", msgs[0].MultiContent[0].Text)
	assert.Equal(t, "b", msgs[0].MultiContent[1].Text)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Empty(t, msgs[0].Content)
}

func TestTranslate_ImagePassesDataURI(t *testing.T) {
	a := openai.New(family.Handle{Family: family.OpenAI, APIKey: "k"})

	msgs, err := a.Translate(context.Background(), []message.Message{
		message.New(role.User, content.Image{URL: "data:image/png;base64,QUJD"}),
	})

	require.NoError(t, err)
	part := msgs[0].MultiContent[0]
	assert.Equal(t, "image_url", string(part.Type))
	require.NotNil(t, part.ImageURL)
	assert.Equal(t, "data:image/png;base64,QUJD", part.ImageURL.URL)
}

func TestTranslate_RejectsVideo(t *testing.T) {
	a := openai.New(family.Handle{Family: family.OpenAI, APIKey: "k"})

	_, err := a.Translate(context.Background(), []message.Message{
		message.New(role.User, content.VideoFile{Path: "video_1.mp4"}),
	})

	require.ErrorIs(t, err, provider.ErrUnsupportedContentKind)
}

func TestStream_Text(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		req := readBody(t, r)
		assert.Equal(t, "gpt-4o", req["model"])
		assert.Equal(t, true, req["stream"])
		assert.InDelta(t, 4096, req["max_tokens"], 0)
		assert.InDelta(t, 0.7, req["temperature"], 1e-6)

		msgs := req["messages"].([]any)
		assert.Len(t, msgs, 1)

		writeChunks(w, "He", "", "llo")
	})

	s, err := a.Stream(context.Background(),
		[]message.Message{message.NewText(role.User, "hi")},
		provider.Request{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 4096},
	)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Equal(t, []string{"He", "", "llo"}, collect(t, s))
}

func TestStream_NoChoices(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"id\":\"x\",\"choices\":[]}\n\ndata: [DONE]\n\n")
	})

	s, err := a.Stream(context.Background(),
		[]message.Message{message.NewText(role.User, "hi")},
		provider.Request{Model: "gpt-4o", MaxTokens: 16},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{""}, collect(t, s))
}

func TestStream_AuthError(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	})

	_, err := a.Stream(context.Background(),
		[]message.Message{message.NewText(role.User, "hi")},
		provider.Request{Model: "gpt-4o", MaxTokens: 16},
	)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestTranscribe(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"what is go?"}`)
	})

	text, err := a.Transcribe(context.Background(), []byte("RIFF"))

	require.NoError(t, err)
	assert.Equal(t, "what is go?", text)
}

func TestSpeak(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		req := readBody(t, r)
		assert.Equal(t, "tts-1", req["model"])
		assert.Equal(t, "nova", req["voice"])
		assert.Equal(t, "Hello", req["input"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3-audio")
	})

	audio, err := a.Speak(context.Background(), "Hello", openai.SpeechOptions{Model: "tts-1", Voice: "nova"})

	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(audio))
}

func TestEmbed(t *testing.T) {
	a := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		req := readBody(t, r)
		assert.Equal(t, "text-embedding-3-large", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25]}],"model":"text-embedding-3-large"}`)
	})

	vec, err := a.Embed(context.Background(), "", "golang backend")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
}

func TestFactory_RequiresKey(t *testing.T) {
	_, err := openai.Factory(family.Handle{Family: family.OpenAI})
	require.Error(t, err)

	a, err := openai.Factory(family.Handle{Family: family.OpenAI, APIKey: "sk-x"})
	require.NoError(t, err)
	assert.Equal(t, family.OpenAI, a.Family())
	assert.True(t, strings.HasPrefix(string(a.Family()), "open"))
}
