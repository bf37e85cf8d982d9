package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/chaichat/pkg/workflows"
)

// runForm runs a form on the REPL's terminal. Without a terminal the form
// falls back to huh's accessible mode, which prompts one line per field.
func (r *repl) runForm(ctx context.Context, groups ...*huh.Group) error {
	form := huh.NewForm(groups...).
		WithAccessible(r.accessible).
		WithShowHelp(!r.accessible).
		WithOutput(r.out)
	if r.accessible {
		form = form.WithInput(r.in)
	}

	return form.RunWithContext(ctx)
}

// workflowForm asks for the inputs of the named workflow.
func (r *repl) workflowForm(ctx context.Context, name string) (workflows.Workflow, error) {
	var (
		w     workflows.Workflow
		group *huh.Group
	)

	switch name {
	case "proposal":
		p := &workflows.UpworkProposal{}
		w, group = p, huh.NewGroup(
			huh.NewText().Title("Job description").Value(&p.JobDescription).Validate(validateRequired),
			huh.NewText().Title("Screening questions (optional)").Value(&p.ScreeningQuestions),
		).Title("Upwork proposal")
	case "upwork-profile":
		p := &workflows.UpworkProfile{}
		w, group = p, huh.NewGroup(
			huh.NewInput().Title("Title").Value(&p.Title).
				Validate(all(validateRequired, validateMaxLen(workflows.MaxTitleLength))),
			huh.NewInput().Title("Skills").Value(&p.Skills).Validate(validateRequired),
			huh.NewText().Title("Example overview (optional)").Value(&p.ExampleOverview).
				Validate(validateMaxLen(workflows.MaxOverviewLength)),
		).Title("Upwork profile")
	case "cover-letter":
		p := &workflows.CoverLetter{}
		w, group = p, huh.NewGroup(
			huh.NewText().Title("Job description").Value(&p.JobDescription).Validate(validateRequired),
		).Title("Cover letter")
	case "job-question":
		p := &workflows.JobQuestion{}
		w, group = p, huh.NewGroup(
			huh.NewText().Title("Question").Value(&p.Question).Validate(validateRequired),
		).Title("Job question")
	case "general-proposal":
		p := &workflows.Proposal{}
		w, group = p, huh.NewGroup(
			huh.NewText().Title("Project description").Value(&p.ProjectDescription).Validate(validateRequired),
			huh.NewText().Title("Conversation (optional)").Value(&p.Conversation),
		).Title("Proposal")
	case "reply":
		p := &workflows.ConversationResponse{}
		w, group = p, huh.NewGroup(
			huh.NewText().Title("Job description").Value(&p.JobDescription).Validate(validateRequired),
			huh.NewText().Title("Cover letter").Value(&p.CoverLetter).Validate(validateRequired),
			huh.NewText().Title("Conversation").Value(&p.Conversation).Validate(validateRequired),
		).Title("Conversation reply")
	default:
		return nil, fmt.Errorf("unknown command /%s (try /help)", name)
	}

	if err := r.runForm(ctx, group); err != nil {
		return nil, err
	}

	return w, nil
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateMaxLen(limit int) func(string) error {
	return func(s string) error {
		if n := utf8.RuneCountInString(s); n > limit {
			return fmt.Errorf("%d characters, limit is %d", n, limit)
		}
		return nil
	}
}

func all(validators ...func(string) error) func(string) error {
	return func(s string) error {
		for _, v := range validators {
			if err := v(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// lineReader hands out at most one line per Read, so the REPL scanner and
// the forms can take turns on the same input without reading ahead of each
// other.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
	err     error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) Read(p []byte) (int, error) {
	if len(l.pending) == 0 {
		if l.err != nil {
			return 0, l.err
		}
		l.pending, l.err = l.r.ReadBytes('\n')
		if len(l.pending) == 0 {
			return 0, l.err
		}
	}

	n := copy(p, l.pending)
	l.pending = l.pending[n:]

	return n, nil
}
