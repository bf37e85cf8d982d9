package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/germanamz/chaichat/pkg/engine"
	"github.com/germanamz/chaichat/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestREPL(input string) (*repl, *bytes.Buffer) {
	var out bytes.Buffer
	return newREPL(nil, nil, strings.NewReader(input), &out, false), &out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		arg   string
	}{
		{"/help", "help", ""},
		{"/model gpt-4o", "model", "gpt-4o"},
		{"/MODEL  gemini-1.5-pro ", "model", "gemini-1.5-pro"},
		{"/attach my photo.png", "attach", "my photo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, arg := parseCommand(strings.TrimSpace(tt.input))
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestLineReader_OneLinePerRead(t *testing.T) {
	lr := newLineReader(strings.NewReader("first\nsecond\nlast"))
	buf := make([]byte, 64)

	n, err := lr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(buf[:n]))

	// A scanner on top only ever sees one line, so the next reader
	// still gets the rest of the input.
	s := bufio.NewScanner(lr)
	require.True(t, s.Scan())
	assert.Equal(t, "second", s.Text())

	rest, err := io.ReadAll(lr)
	require.NoError(t, err)
	assert.Equal(t, "last", string(rest))
}

func TestLineReader_SmallBuffer(t *testing.T) {
	lr := newLineReader(strings.NewReader("abcdef\n"))
	buf := make([]byte, 4)

	n, err := lr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	n, err = lr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef\n", string(buf[:n]))

	_, err = lr.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestValidators(t *testing.T) {
	require.Error(t, validateRequired("  "))
	require.NoError(t, validateRequired("x"))

	limit := validateMaxLen(3)
	require.NoError(t, limit("héé"))
	require.Error(t, limit("abcd"))

	v := all(validateRequired, limit)
	require.Error(t, v(""))
	require.Error(t, v("abcd"))
	require.NoError(t, v("ab"))
}

func TestWorkflowForm_Proposal(t *testing.T) {
	r, _ := newTestREPL("Build an API\n\n")

	w, err := r.workflowForm(context.Background(), "proposal")
	require.NoError(t, err)

	p, ok := w.(*workflows.UpworkProposal)
	require.True(t, ok)
	assert.Equal(t, "Build an API", p.JobDescription)
	assert.Empty(t, p.ScreeningQuestions)
}

func TestWorkflowForm_UpworkProfile(t *testing.T) {
	r, _ := newTestREPL("Backend Engineer\nGo, SQL\nI build services.\n")

	w, err := r.workflowForm(context.Background(), "upwork-profile")
	require.NoError(t, err)

	p, ok := w.(*workflows.UpworkProfile)
	require.True(t, ok)
	assert.Equal(t, "Backend Engineer", p.Title)
	assert.Equal(t, "Go, SQL", p.Skills)
	assert.Equal(t, "I build services.", p.ExampleOverview)
}

func TestWorkflowForm_Reply(t *testing.T) {
	r, _ := newTestREPL("job\nletter\nclient: hi\n")

	w, err := r.workflowForm(context.Background(), "reply")
	require.NoError(t, err)

	p, ok := w.(*workflows.ConversationResponse)
	require.True(t, ok)
	assert.Equal(t, "job", p.JobDescription)
	assert.Equal(t, "letter", p.CoverLetter)
	assert.Equal(t, "client: hi", p.Conversation)
}

func TestWorkflowForm_Unknown(t *testing.T) {
	r, _ := newTestREPL("")

	_, err := r.workflowForm(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nope")
}

func newOpenAIServer(t *testing.T, chunks ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
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
	}))
	t.Cleanup(srv.Close)

	return srv, &requests
}

func newTestEngine(t *testing.T, chunks ...string) (*engine.Engine, *engine.Session, *atomic.Int32) {
	t.Helper()

	srv, requests := newOpenAIServer(t, chunks...)

	eng, err := engine.New(engine.Config{
		Providers: []engine.ProviderConfig{{Name: "main", Kind: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1"}},
		Model:     "gpt-4o",
	})
	require.NoError(t, err)

	sess, err := eng.NewSession()
	require.NoError(t, err)

	return eng, sess, requests
}

func TestLoop_ChatAndCommands(t *testing.T) {
	eng, sess, _ := newTestEngine(t, "Hi ", "there")

	var out bytes.Buffer
	input := "hello\n/temp 0.3\n/model no-such-model\n/reset\n/quit\nignored\n"
	r := newREPL(eng, sess, strings.NewReader(input), &out, false)
	t.Cleanup(r.close)

	require.NoError(t, r.loop(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Hi there")
	assert.Contains(t, text, "2 chunks")
	assert.Contains(t, text, "temperature set to 0.30")
	assert.Contains(t, text, "error:")
	assert.Contains(t, text, "conversation cleared")
	assert.Contains(t, text, "Goodbye!")
	assert.Empty(t, sess.Transcript())
	assert.InDelta(t, 0.3, sess.Temperature(), 1e-9)
}

func TestLoop_WorkflowFormSharesInput(t *testing.T) {
	eng, sess, requests := newTestEngine(t, "Dear client")

	var out bytes.Buffer
	input := "/cover-letter\nNeed a Go developer\nthanks\n/quit\n"
	r := newREPL(eng, sess, strings.NewReader(input), &out, false)
	t.Cleanup(r.close)

	require.NoError(t, r.loop(context.Background()))

	msgs := sess.Transcript()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].TextContent(), "Need a Go developer")
	assert.Equal(t, "thanks", msgs[2].TextContent())
	assert.Equal(t, int32(2), requests.Load())
}

func TestLoop_VerbosePrintsEvents(t *testing.T) {
	eng, sess, _ := newTestEngine(t, "ok")

	var out bytes.Buffer
	r := newREPL(eng, sess, strings.NewReader("hi\n"), &out, true)
	t.Cleanup(r.close)

	require.NoError(t, r.loop(context.Background()))

	text := out.String()
	assert.Contains(t, text, "[turn_added] gpt-4o")
	assert.Contains(t, text, "[stream_end] gpt-4o chunks=1")
}

func TestLoop_SessionsAndClose(t *testing.T) {
	eng, sess, _ := newTestEngine(t, "ok")
	first := sess.ID()

	var out bytes.Buffer
	r := newREPL(eng, sess, strings.NewReader("hi\n/new\n/sessions\n/switch "+first+"\n/switch nope\n"), &out, false)

	require.NoError(t, r.loop(context.Background()))

	assert.Equal(t, first, r.sess.ID())
	assert.Len(t, eng.SessionIDs(), 2)
	assert.Contains(t, out.String(), "switched to session "+first+" (2 turns)")
	assert.Contains(t, out.String(), `no session "nope"`)

	r.close()
	assert.Empty(t, eng.SessionIDs())
}

func TestLoop_EOFExits(t *testing.T) {
	eng, sess, _ := newTestEngine(t)

	r := newREPL(eng, sess, strings.NewReader(""), io.Discard, false)
	t.Cleanup(r.close)

	require.NoError(t, r.loop(context.Background()))
}
