package modeladapter

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const maxEventSize = 4 << 20

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

// EventReader reads server-sent events from a response body.
// It is not safe for concurrent use.
type EventReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewEventReader wraps body. Closing the reader closes body.
func NewEventReader(body io.ReadCloser) *EventReader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	return &EventReader{body: body, scanner: s}
}

// Next returns the next event carrying data. It returns io.EOF when the body
// ends or when the provider sends the "[DONE]" marker.
func (r *EventReader) Next() (Event, error) {
	var (
		ev   Event
		data [][]byte
	)

	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		if len(line) == 0 {
			if len(data) == 0 {
				ev = Event{}
				continue
			}
			ev.Data = bytes.Join(data, []byte("\n"))
			if string(ev.Data) == "[DONE]" {
				return Event{}, io.EOF
			}
			return ev, nil
		}

		field, value, _ := strings.Cut(string(line), ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, []byte(value))
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}

	// Flush an event that was not followed by a blank line.
	if len(data) > 0 {
		ev.Data = bytes.Join(data, []byte("\n"))
		if string(ev.Data) != "[DONE]" {
			return ev, nil
		}
	}

	return Event{}, io.EOF
}

// Close closes the underlying body.
func (r *EventReader) Close() error {
	return r.body.Close()
}
