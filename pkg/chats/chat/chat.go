// Package chat provides the mutable transcript of a conversation.
package chat

import (
	"errors"
	"fmt"

	"github.com/germanamz/chaichat/pkg/chats/message"
)

var (
	// ErrEmptyTurn is returned when appending a message without content parts.
	ErrEmptyTurn = errors.New("chat: turn has no content")
	// ErrInvalidRole is returned when appending a message with an unknown role.
	ErrInvalidRole = errors.New("chat: invalid role")
)

// Chat is an ordered, append-only transcript that can only be cleared as a
// whole. The zero value is ready to use.
// Chat is not safe for concurrent use; callers must synchronize externally.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages. Messages are not
// validated; use Append for untrusted input.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// Append adds one or more messages to the conversation. Either all messages
// are appended or, if any of them is invalid, none are.
func (c *Chat) Append(msgs ...message.Message) error {
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidRole, i, m.Role)
		}
		if len(m.Parts) == 0 {
			return fmt.Errorf("%w: message %d", ErrEmptyTurn, i)
		}
	}

	c.messages = append(c.messages, msgs...)

	return nil
}

// Reset removes every message from the conversation.
func (c *Chat) Reset() {
	c.messages = nil
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	return len(c.messages)
}

// At returns the message at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	return c.messages[index]
}

// Last returns the most recent message and true, or a zero Message and false
// if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a snapshot of all messages in the conversation. The slice
// and each message's parts are copied, so callers may not mutate the
// transcript through it.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	for i, m := range c.messages {
		cp[i] = message.New(m.Role, append(m.Parts[:0:0], m.Parts...)...)
	}
	return cp
}

// Each iterates over messages, calling fn for each one. If fn returns false,
// iteration stops early.
func (c *Chat) Each(fn func(int, message.Message) bool) {
	for i, m := range c.messages {
		if !fn(i, m) {
			return
		}
	}
}
