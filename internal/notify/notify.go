// Package notify is the outbound operator-notification boundary. Services
// emit events here; the concrete emitter decides where they land (a chat
// channel in production, the log when chat is not configured).
package notify

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Topic routes an event to one of the operator channels.
type Topic string

const (
	TopicGeneral Topic = "GENERAL"
	TopicIssues  Topic = "ISSUES"
	TopicEmails  Topic = "EMAILS"
)

// Action is an inline choice attached to a notification. Command is the
// callback payload the chat layer posts back when the operator picks it.
type Action struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Event is one outbound notification.
type Event struct {
	Topic   Topic    `json:"topic"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// Emitter delivers events. Send returns an opaque delivery handle that can
// be passed to Edit to rewrite the delivered message in place.
type Emitter interface {
	Send(ctx context.Context, event Event) (int64, error)
	Edit(ctx context.Context, handle int64, text string) error
}

// LogEmitter writes every event to the structured log. It is the default
// emitter when no chat transport is configured, so the service degrades to
// observable-but-silent rather than failing. Send is called concurrently
// from handlers, scheduler jobs and the pipeline consumer, so the handle
// counter is atomic.
type LogEmitter struct {
	next atomic.Int64
}

// NewLogEmitter creates a log-backed emitter.
func NewLogEmitter() *LogEmitter {
	return &LogEmitter{}
}

func (e *LogEmitter) Send(ctx context.Context, event Event) (int64, error) {
	handle := e.next.Add(1)
	evt := log.Info().
		Str("topic", string(event.Topic)).
		Int64("handle", handle)
	if len(event.Actions) > 0 {
		labels := make([]string, 0, len(event.Actions))
		for _, action := range event.Actions {
			labels = append(labels, action.Label)
		}
		evt = evt.Strs("actions", labels)
	}
	evt.Msg(event.Text)
	return handle, nil
}

func (e *LogEmitter) Edit(ctx context.Context, handle int64, text string) error {
	log.Info().Int64("handle", handle).Msg(text)
	return nil
}

var _ Emitter = (*LogEmitter)(nil)
