package workflows_test

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/profile"
	"github.com/germanamz/chaichat/pkg/prompts"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/retrieval"
	"github.com/germanamz/chaichat/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSession struct {
	turns   []string
	replies []string
	err     error
}

func (s *recordingSession) AppendUserTurn(parts ...content.Part) error {
	s.turns = append(s.turns, parts[0].(content.Text).Text)
	return nil
}

func (s *recordingSession) Stream(context.Context, model.Params, family.Handle) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.err != nil {
			yield("", s.err)
			return
		}
		reply := s.replies[0]
		s.replies = s.replies[1:]
		for _, w := range strings.SplitAfter(reply, " ") {
			if !yield(w, nil) {
				return
			}
		}
	}
}

type failingRetriever struct{}

func (failingRetriever) Query(context.Context, string) (string, error) {
	return "", errors.New("index down")
}

func env() workflows.Env {
	return workflows.Env{
		Prompts: prompts.NewLoader(""),
		Profile: profile.Profile{
			Name:          "Ada",
			UpworkProfile: "Go engineer",
			JobProfile:    "Backend developer",
		},
		Retriever: retrieval.Static("Built payment systems."),
	}
}

func run(t *testing.T, r *workflows.Runner, w workflows.Workflow) ([]workflows.Chunk, error) {
	t.Helper()

	var out []workflows.Chunk
	for c, err := range r.Run(context.Background(), w, model.Params{}, family.Handle{Family: family.OpenAI}) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func joined(chunks []workflows.Chunk, step int) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.Step == step {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func TestUpworkProposal_TwoExchanges(t *testing.T) {
	s := &recordingSession{replies: []string{"Dear client", "Yes I can"}}
	r := &workflows.Runner{Session: s, Env: env()}

	chunks, err := run(t, r, workflows.UpworkProposal{
		JobDescription:     "Build a Go API",
		ScreeningQuestions: "Have you used gRPC?",
	})
	require.NoError(t, err)

	require.Len(t, s.turns, 2)
	assert.Contains(t, s.turns[0], "Ada")
	assert.Contains(t, s.turns[0], "Go engineer")
	assert.Contains(t, s.turns[0], "Built payment systems.")
	assert.Contains(t, s.turns[0], "Build a Go API")
	assert.Contains(t, s.turns[1], "Have you used gRPC?")

	assert.Equal(t, "Dear client", joined(chunks, 0))
	assert.Equal(t, "Yes I can", joined(chunks, 1))
}

func TestUpworkProposal_NoScreeningQuestions(t *testing.T) {
	s := &recordingSession{replies: []string{"Hi"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.UpworkProposal{JobDescription: "Build a Go API"})
	require.NoError(t, err)
	assert.Len(t, s.turns, 1)
}

func TestUpworkProposal_RetrievalFailure(t *testing.T) {
	s := &recordingSession{}
	e := env()
	e.Retriever = failingRetriever{}
	r := &workflows.Runner{Session: s, Env: e}

	_, err := run(t, r, workflows.UpworkProposal{JobDescription: "x"})
	require.Error(t, err)
	assert.Empty(t, s.turns)
}

func TestWorkflows_MissingFields(t *testing.T) {
	tests := []workflows.Workflow{
		workflows.UpworkProposal{},
		workflows.UpworkProfile{Title: "Dev"},
		workflows.UpworkProfile{Skills: "Go"},
		workflows.CoverLetter{JobDescription: "   "},
		workflows.JobQuestion{},
		workflows.Proposal{Conversation: "hello"},
		workflows.ConversationResponse{JobDescription: "a", CoverLetter: "b"},
	}

	for _, w := range tests {
		t.Run(w.Name(), func(t *testing.T) {
			s := &recordingSession{}
			r := &workflows.Runner{Session: s, Env: env()}

			_, err := run(t, r, w)
			require.ErrorIs(t, err, workflows.ErrMissingField)
			assert.Empty(t, s.turns)
		})
	}
}

func TestUpworkProfile_Limits(t *testing.T) {
	s := &recordingSession{}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.UpworkProfile{Title: strings.Repeat("x", 71), Skills: "Go"})
	require.ErrorIs(t, err, workflows.ErrFieldTooLong)

	_, err = run(t, r, workflows.UpworkProfile{Title: "Dev", Skills: "Go", ExampleOverview: strings.Repeat("x", 5001)})
	require.ErrorIs(t, err, workflows.ErrFieldTooLong)
}

func TestUpworkProfile_Renders(t *testing.T) {
	s := &recordingSession{replies: []string{"Overview"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.UpworkProfile{Title: "Go Developer", Skills: "Go\nSQL"})
	require.NoError(t, err)

	require.Len(t, s.turns, 1)
	assert.Contains(t, s.turns[0], "Go Developer")
	assert.Contains(t, s.turns[0], "Go\nSQL")
}

func TestCoverLetter_UsesJobProfile(t *testing.T) {
	s := &recordingSession{replies: []string{"Letter"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.CoverLetter{JobDescription: "Backend role"})
	require.NoError(t, err)

	assert.Contains(t, s.turns[0], "Backend developer")
	assert.Contains(t, s.turns[0], "Backend role")
}

func TestJobQuestion(t *testing.T) {
	s := &recordingSession{replies: []string{"Answer"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.JobQuestion{Question: "Rate?"})
	require.NoError(t, err)
	assert.Contains(t, s.turns[0], "Rate?")
}

func TestProposal_DefaultsConversation(t *testing.T) {
	s := &recordingSession{replies: []string{"Plan"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.Proposal{ProjectDescription: "A scheduler"})
	require.NoError(t, err)

	assert.Contains(t, s.turns[0], "N/A")
	assert.Contains(t, s.turns[0], "A scheduler")
}

func TestConversationResponse(t *testing.T) {
	s := &recordingSession{replies: []string{"Reply"}}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.ConversationResponse{
		JobDescription: "Job",
		CoverLetter:    "Letter",
		Conversation:   "Client: when can you start?",
	})
	require.NoError(t, err)
	assert.Contains(t, s.turns[0], "when can you start?")
}

func TestRunner_StreamFailureStops(t *testing.T) {
	boom := errors.New("provider down")
	s := &recordingSession{err: boom}
	r := &workflows.Runner{Session: s, Env: env()}

	_, err := run(t, r, workflows.UpworkProposal{JobDescription: "x", ScreeningQuestions: "y"})
	require.ErrorIs(t, err, boom)
	assert.Len(t, s.turns, 1)
}
