package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/engine"
)

type repl struct {
	eng  *engine.Engine
	sess *engine.Session

	in         io.Reader
	lines      *bufio.Scanner
	out        io.Writer
	accessible bool // Forms read plain lines from in instead of drawing a TUI.
	verbose    bool

	events *engine.Subscription
	opened []string
}

func newREPL(eng *engine.Engine, sess *engine.Session, in io.Reader, out io.Writer, verbose bool) *repl {
	lr := newLineReader(in)

	r := &repl{
		eng:        eng,
		sess:       sess,
		in:         lr,
		lines:      bufio.NewScanner(lr),
		out:        out,
		accessible: !isTerminal(in),
		verbose:    verbose,
	}
	r.lines.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if eng != nil {
		kinds := []engine.EventKind{engine.EventStreamEnd}
		if verbose {
			kinds = nil
		}
		r.events = eng.Events().Subscribe(64, kinds...)
	}
	if sess != nil {
		r.opened = append(r.opened, sess.ID())
	}

	return r
}

// close unsubscribes from the engine and forgets the sessions opened here.
func (r *repl) close() {
	if r.eng == nil {
		return
	}

	r.eng.Events().Unsubscribe(r.events)
	for _, id := range r.opened {
		r.eng.RemoveSession(id)
	}
	r.opened = nil
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func (r *repl) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *repl) banner() {
	r.printf("%s interactive chat (session %s, model %s)\n",
		titleStyle.Render("chaichat"), r.sess.ID(), r.sess.Model().Name)
	r.printf("Type %s for commands, %s to exit.\n\n", dimStyle.Render("/help"), dimStyle.Render("/quit"))
}

// readLine prints prompt and returns the next input line.
func (r *repl) readLine(prompt string) (string, error) {
	r.printf("%s", prompt)
	if !r.lines.Scan() {
		if err := r.lines.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.lines.Text(), nil
}

func (r *repl) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.readLine(userPrefixStyle.Render("you> "))
		if err != nil {
			r.printf("\n")
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			r.stream(ctx, r.sess.Send(ctx, content.Text{Text: input}))
			continue
		}

		name, arg := parseCommand(input)
		if name == "quit" || name == "exit" {
			r.printf("Goodbye!\n")
			return nil
		}

		if err := r.dispatch(ctx, name, arg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			r.printError(err)
		}
	}
}

// parseCommand splits "/name rest of line" into its parts.
func parseCommand(input string) (name, arg string) {
	input = strings.TrimPrefix(input, "/")
	name, arg, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (r *repl) dispatch(ctx context.Context, name, arg string) error {
	switch name {
	case "help":
		r.printHelp()
	case "models":
		r.printModels()
	case "model":
		if arg == "" {
			return errors.New("usage: /model <name>")
		}
		if err := r.sess.SelectModel(arg); err != nil {
			return err
		}
		r.printf("model set to %s\n", selectedStyle.Render(arg))
	case "temp":
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("usage: /temp <0.0-2.0>: %w", err)
		}
		if err := r.sess.SetTemperature(t); err != nil {
			return err
		}
		r.printf("temperature set to %.2f\n", r.sess.Temperature())
	case "reset":
		if err := r.sess.Reset(); err != nil {
			return err
		}
		r.printf("%s\n", dimStyle.Render("conversation cleared"))
	case "attach":
		if arg == "" {
			return errors.New("usage: /attach <file>")
		}
		if err := r.sess.AppendAttachment(arg); err != nil {
			return err
		}
		r.printf("%s\n", dimStyle.Render("attached "+arg+"; type a message or /send"))
	case "send":
		r.stream(ctx, r.sess.Stream(ctx))
	case "voice":
		if arg == "" {
			return errors.New("usage: /voice <recording.wav>")
		}
		if err := r.sess.AppendSpeech(ctx, arg); err != nil {
			return err
		}
		r.stream(ctx, r.sess.Stream(ctx))
	case "speak":
		return r.speak(ctx, arg)
	case "profiles":
		return r.printProfiles()
	case "profile":
		p, err := r.eng.LoadProfile(arg)
		if err != nil {
			return err
		}
		r.sess.SetProfile(p)
		r.printf("profile set to %s\n", selectedStyle.Render(p.Name))
	case "new":
		return r.newSession()
	case "sessions":
		r.printSessions()
	case "switch":
		return r.switchSession(arg)
	case "usage":
		r.printUsage()
	default:
		w, err := r.workflowForm(ctx, name)
		if err != nil {
			return err
		}

		step := -1
		r.printf("%s", assistantPrefixStyle.Render("ai> "))
		r.finish(ctx, func(yield func(string, error) bool) {
			for c, err := range r.sess.Run(ctx, w) {
				if err == nil && c.Step != step {
					if step >= 0 {
						r.printf("\n%s\n%s", stepRuleStyle.Render(strings.Repeat("─", 40)), assistantPrefixStyle.Render("ai> "))
					}
					step = c.Step
				}
				if !yield(c.Text, err) {
					return
				}
			}
		})
	}

	return nil
}

// stream prints a response as it arrives.
func (r *repl) stream(ctx context.Context, seq iter.Seq2[string, error]) {
	r.printf("%s", assistantPrefixStyle.Render("ai> "))
	r.finish(ctx, seq)
}

func (r *repl) finish(ctx context.Context, seq iter.Seq2[string, error]) {
	for chunk, err := range seq {
		if err != nil {
			r.printf("\n")
			r.drainEvents()
			if ctx.Err() != nil {
				r.printf("%s\n", dimStyle.Render("interrupted"))
				return
			}
			r.printError(err)
			return
		}
		r.printf("%s", chunk)
	}

	r.printf("\n%s\n\n", dimStyle.Render(r.footer(r.drainEvents())))
}

// drainEvents consumes the events published by the command that just ran
// and returns the stream statistics among them.
func (r *repl) drainEvents() []engine.StreamStats {
	if r.events == nil {
		return nil
	}

	var stats []engine.StreamStats
	for {
		select {
		case ev, ok := <-r.events.C:
			if !ok {
				return stats
			}
			if ev.SessionID != r.sess.ID() {
				continue
			}
			if st, ok := ev.Data.(engine.StreamStats); ok && ev.Kind == engine.EventStreamEnd {
				stats = append(stats, st)
			}
			if r.verbose {
				r.printEvent(ev)
			}
		default:
			return stats
		}
	}
}

func (r *repl) printEvent(ev engine.Event) {
	detail := ""
	switch d := ev.Data.(type) {
	case engine.StreamStats:
		detail = fmt.Sprintf(" chunks=%d duration=%s aborted=%t", d.Chunks, d.Duration.Round(time.Millisecond), d.Aborted)
	case error:
		detail = " " + d.Error()
	}
	r.printf("%s\n", dimStyle.Render(fmt.Sprintf("[%s] %s%s", ev.Kind, ev.Model, detail)))
}

func (r *repl) footer(stats []engine.StreamStats) string {
	var (
		chunks   int
		duration time.Duration
	)
	for _, st := range stats {
		chunks += st.Chunks
		duration += st.Duration
	}

	if len(stats) == 0 {
		return "(" + r.usageLine() + ")"
	}
	return fmt.Sprintf("(%d chunks, %s, %s)", chunks, duration.Round(time.Millisecond), r.usageLine())
}

func (r *repl) newSession() error {
	sess, err := r.eng.NewSession()
	if err != nil {
		return err
	}

	r.sess = sess
	r.opened = append(r.opened, sess.ID())
	r.printf("started session %s\n", selectedStyle.Render(sess.ID()))

	return nil
}

func (r *repl) switchSession(id string) error {
	if id == "" {
		return errors.New("usage: /switch <session id>")
	}

	sess, ok := r.eng.Session(id)
	if !ok {
		return fmt.Errorf("no session %q (see /sessions)", id)
	}

	r.sess = sess
	r.printf("switched to session %s (%d turns)\n", selectedStyle.Render(id), len(sess.Transcript()))

	return nil
}

func (r *repl) printSessions() {
	for _, id := range r.eng.SessionIDs() {
		line := "  " + id
		if id == r.sess.ID() {
			line = selectedStyle.Render("* " + id)
		}
		r.printf("%s\n", line)
	}
}

func (r *repl) speak(ctx context.Context, path string) error {
	if path == "" {
		path = fmt.Sprintf("audio_%d.mp3", time.Now().Unix())
	}

	audio, err := r.sess.Speak(ctx)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return err
	}

	r.printf("%s\n", dimStyle.Render("saved speech to "+path))

	return nil
}

func (r *repl) printModels() {
	current := r.sess.Model().Name
	for _, m := range r.eng.Models() {
		line := fmt.Sprintf("  %-28s %s", m.Name, m.Family)
		if m.Vision {
			line += " vision"
		}
		if m.Name == current {
			line = selectedStyle.Render("* " + strings.TrimPrefix(line, "  "))
		}
		r.printf("%s\n", line)
	}
}

func (r *repl) printProfiles() error {
	ids, err := r.eng.Profiles()
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.printf("  %s\n", id)
	}
	return nil
}

func (r *repl) usageLine() string {
	total := r.sess.Usage().Total()
	return fmt.Sprintf("%d tokens used", total.Total())
}

func (r *repl) printUsage() {
	byProvider := r.sess.Usage().ByProvider()
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		tc := byProvider[name]
		r.printf("  %-10s in=%d out=%d\n", name, tc.InputTokens, tc.OutputTokens)
	}
	r.printf("  %s\n", r.usageLine())
}

func (r *repl) printError(err error) {
	if errors.Is(err, huh.ErrUserAborted) {
		r.printf("%s\n", dimStyle.Render("cancelled"))
		return
	}
	_, _ = fmt.Fprintln(r.out, errorStyle.Render("error: "+err.Error()))
}

func (r *repl) printHelp() {
	r.printf(`Commands:
  /models                 list available models
  /model <name>           switch model
  /temp <value>           set temperature (0.0-2.0)
  /attach <file>          attach an image, video or audio file
  /send                   stream a response without typing a message
  /voice <file.wav>       send a voice recording
  /speak [file.mp3]       save the last response as speech
  /profiles               list freelancer profiles
  /profile <id>           switch freelancer profile
  /new                    start another session
  /sessions               list open sessions
  /switch <id>            switch to an open session
  /usage                  show token usage
  /reset                  clear the conversation
  /quit                   exit

Workflows:
  /proposal               Upwork proposal
  /upwork-profile         Upwork profile overview
  /cover-letter           job cover letter
  /job-question           question about a job
  /general-proposal       general project proposal
  /reply                  reply in a client conversation
`)
}
