// Package prompts loads the text templates behind the freelance workflows and
// fills their {name} placeholders.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed templates/*.txt
var defaultFS embed.FS

// ID names a prompt template. The file backing it is "<id>.txt".
type ID string

// Known templates.
const (
	UpworkProfile            ID = "upwork_profile"
	UpworkScreeningQuestions ID = "upwork_screening_questions"
	JobScreeningQuestions    ID = "job_screening_questions"
	Generate                 ID = "generate"
	JobCoverLetter           ID = "job_cover_letter"
	Proposal                 ID = "proposal"
	ConversationResponse     ID = "conversation_response"
	SavedReply               ID = "saved_reply"
)

// IDs lists every known template.
var IDs = []ID{
	UpworkProfile,
	UpworkScreeningQuestions,
	JobScreeningQuestions,
	Generate,
	JobCoverLetter,
	Proposal,
	ConversationResponse,
	SavedReply,
}

var (
	// ErrUnknownTemplate is returned when no file backs a template ID.
	ErrUnknownTemplate = errors.New("prompts: unknown template")
	// ErrMissingPlaceholder is returned by Format when a template references
	// a name that has no value.
	ErrMissingPlaceholder = errors.New("prompts: missing placeholder value")
	// ErrMalformedTemplate is returned by Format for unbalanced braces.
	ErrMalformedTemplate = errors.New("prompts: malformed template")
)

// Loader reads templates from a directory, falling back to the built-in
// copies for files the directory does not have.
type Loader struct {
	dir fs.FS
}

// NewLoader creates a Loader over dir. An empty dir uses only the built-in
// templates.
func NewLoader(dir string) *Loader {
	l := &Loader{}
	if dir != "" {
		l.dir = os.DirFS(dir)
	}
	return l
}

// Load returns the raw text of template id.
func (l *Loader) Load(id ID) (string, error) {
	name := string(id) + ".txt"

	if l.dir != nil {
		data, err := fs.ReadFile(l.dir, name)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("prompts: read %s: %w", name, err)
		}
	}

	data, err := defaultFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}

	return string(data), nil
}

// Render loads template id and formats it with vars.
func (l *Loader) Render(id ID, vars map[string]string) (string, error) {
	tmpl, err := l.Load(id)
	if err != nil {
		return "", err
	}

	out, err := Format(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", id, err)
	}

	return out, nil
}

// Format replaces every {name} in tmpl with vars[name]. "{{" and "}}" stand
// for literal braces. Values are inserted verbatim and never re-scanned.
func Format(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]

		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}

			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrMalformedTemplate, i)
			}

			name := tmpl[i+1 : i+1+end]
			if name == "" || strings.ContainsRune(name, '{') {
				return "", fmt.Errorf("%w: bad placeholder at offset %d", ErrMalformedTemplate, i)
			}

			v, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrMissingPlaceholder, name)
			}

			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrMalformedTemplate, i)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}
