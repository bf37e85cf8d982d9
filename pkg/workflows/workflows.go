// Package workflows implements the freelance writing flows: each one checks
// its form input, renders one or more prompt templates and streams the
// model's answers through a session.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/profile"
	"github.com/germanamz/chaichat/pkg/prompts"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/retrieval"
)

var (
	// ErrMissingField is returned when a required input is empty.
	ErrMissingField = errors.New("workflows: missing required field")
	// ErrFieldTooLong is returned when an input exceeds its length limit.
	ErrFieldTooLong = errors.New("workflows: field too long")
)

// Env holds the collaborators workflows render prompts with.
type Env struct {
	Prompts   *prompts.Loader
	Profile   profile.Profile
	Retriever retrieval.Retriever // Optional.
}

// Workflow turns validated input into the prompts to send, in order. Each
// prompt becomes one user turn followed by one streamed response.
type Workflow interface {
	Name() string
	Build(ctx context.Context, env Env) ([]string, error)
}

// Session is the part of session.Session a Runner needs.
type Session interface {
	AppendUserTurn(parts ...content.Part) error
	Stream(ctx context.Context, params model.Params, h family.Handle) iter.Seq2[string, error]
}

// Chunk is a response fragment tagged with the zero-based prompt it answers.
type Chunk struct {
	Step int
	Text string
}

// Runner executes workflows against a session.
type Runner struct {
	Session Session
	Env     Env
}

// Run builds w's prompts and streams a response to each. Nothing is appended
// to the session when building fails. A failed step stops the run.
func (r *Runner) Run(ctx context.Context, w Workflow, params model.Params, h family.Handle) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		steps, err := w.Build(ctx, r.Env)
		if err != nil {
			yield(Chunk{}, fmt.Errorf("workflow %s: %w", w.Name(), err))
			return
		}

		for i, p := range steps {
			if err := r.Session.AppendUserTurn(content.Text{Text: p}); err != nil {
				yield(Chunk{Step: i}, fmt.Errorf("workflow %s: %w", w.Name(), err))
				return
			}

			for text, err := range r.Session.Stream(ctx, params, h) {
				if err != nil {
					yield(Chunk{Step: i}, fmt.Errorf("workflow %s: %w", w.Name(), err))
					return
				}
				if !yield(Chunk{Step: i, Text: text}, nil) {
					return
				}
			}
		}
	}
}

type field struct {
	name  string
	value string
}

func required(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}

func maxLen(field, v string, limit int) error {
	if n := utf8.RuneCountInString(v); n > limit {
		return fmt.Errorf("%w: %s has %d characters, limit is %d", ErrFieldTooLong, field, n, limit)
	}
	return nil
}

// UpworkProposal writes an Upwork proposal backed by retrieved experience,
// then answers the screening questions in a second exchange when given.
type UpworkProposal struct {
	JobDescription     string
	ScreeningQuestions string
}

func (UpworkProposal) Name() string { return "upwork-proposal" }

func (w UpworkProposal) Build(ctx context.Context, env Env) ([]string, error) {
	if err := required(field{"job description", w.JobDescription}); err != nil {
		return nil, err
	}

	var experience string
	if env.Retriever != nil {
		var err error
		experience, err = env.Retriever.Query(ctx, w.JobDescription)
		if err != nil {
			return nil, err
		}
	}

	first, err := env.Prompts.Render(prompts.Generate, map[string]string{
		"name":            env.Profile.Name,
		"upwork_profile":  env.Profile.UpworkProfile,
		"experience":      experience,
		"job_description": w.JobDescription,
	})
	if err != nil {
		return nil, err
	}

	steps := []string{first}

	if strings.TrimSpace(w.ScreeningQuestions) != "" {
		second, err := env.Prompts.Render(prompts.UpworkScreeningQuestions, map[string]string{
			"screening_questions": w.ScreeningQuestions,
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, second)
	}

	return steps, nil
}

// Upwork profile limits.
const (
	MaxTitleLength    = 70
	MaxOverviewLength = 5000
)

// UpworkProfile writes an Upwork profile overview.
type UpworkProfile struct {
	Title           string
	Skills          string
	ExampleOverview string
}

func (UpworkProfile) Name() string { return "upwork-profile" }

func (w UpworkProfile) Build(_ context.Context, env Env) ([]string, error) {
	if err := required(
		field{"title", w.Title},
		field{"skills", w.Skills},
	); err != nil {
		return nil, err
	}
	if err := maxLen("title", w.Title, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := maxLen("example overview", w.ExampleOverview, MaxOverviewLength); err != nil {
		return nil, err
	}

	p, err := env.Prompts.Render(prompts.UpworkProfile, map[string]string{
		"profile_title":    w.Title,
		"skills":           w.Skills,
		"example_overview": w.ExampleOverview,
	})
	if err != nil {
		return nil, err
	}

	return []string{p}, nil
}

// CoverLetter writes a job cover letter from the job profile.
type CoverLetter struct {
	JobDescription string
}

func (CoverLetter) Name() string { return "cover-letter" }

func (w CoverLetter) Build(_ context.Context, env Env) ([]string, error) {
	if err := required(field{"job description", w.JobDescription}); err != nil {
		return nil, err
	}

	p, err := env.Prompts.Render(prompts.JobCoverLetter, map[string]string{
		"name":            env.Profile.Name,
		"job_profile":     env.Profile.JobProfile,
		"job_description": w.JobDescription,
	})
	if err != nil {
		return nil, err
	}

	return []string{p}, nil
}

// JobQuestion answers a question about the current job.
type JobQuestion struct {
	Question string
}

func (JobQuestion) Name() string { return "job-question" }

func (w JobQuestion) Build(_ context.Context, env Env) ([]string, error) {
	if err := required(field{"question", w.Question}); err != nil {
		return nil, err
	}

	p, err := env.Prompts.Render(prompts.JobScreeningQuestions, map[string]string{
		"screening_questions": w.Question,
	})
	if err != nil {
		return nil, err
	}

	return []string{p}, nil
}

// Proposal writes a general project proposal. An empty conversation is
// rendered as "N/A".
type Proposal struct {
	ProjectDescription string
	Conversation       string
}

func (Proposal) Name() string { return "proposal" }

func (w Proposal) Build(_ context.Context, env Env) ([]string, error) {
	if err := required(field{"project description", w.ProjectDescription}); err != nil {
		return nil, err
	}

	conversation := w.Conversation
	if strings.TrimSpace(conversation) == "" {
		conversation = "N/A"
	}

	p, err := env.Prompts.Render(prompts.Proposal, map[string]string{
		"conversation":        conversation,
		"project_description": w.ProjectDescription,
	})
	if err != nil {
		return nil, err
	}

	return []string{p}, nil
}

// ConversationResponse writes the next reply in a client conversation.
type ConversationResponse struct {
	JobDescription string
	CoverLetter    string
	Conversation   string
}

func (ConversationResponse) Name() string { return "conversation-response" }

func (w ConversationResponse) Build(_ context.Context, env Env) ([]string, error) {
	if err := required(
		field{"job description", w.JobDescription},
		field{"cover letter", w.CoverLetter},
		field{"conversation", w.Conversation},
	); err != nil {
		return nil, err
	}

	p, err := env.Prompts.Render(prompts.ConversationResponse, map[string]string{
		"job_description": w.JobDescription,
		"cover_letter":    w.CoverLetter,
		"conversation":    w.Conversation,
	})
	if err != nil {
		return nil, err
	}

	return []string{p}, nil
}
