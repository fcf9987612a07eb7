// Package notifier delivers alert notifications to user devices.
package notifier

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Message is a device notification.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sink delivers a message to a set of device tokens.
type Sink interface {
	Name() string
	SendToDevices(ctx context.Context, tokens []string, msg Message) error
}

// LogSink only logs messages.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink writing to log.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "notifier").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) SendToDevices(_ context.Context, tokens []string, msg Message) error {
	s.log.Info().
		Strs("tokens", tokens).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Interface("data", msg.Data).
		Msg("notification")
	return nil
}

// Multi fans a message out to several sinks.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

// SendToDevices sends through every sink and joins their errors.
func (m Multi) SendToDevices(ctx context.Context, tokens []string, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.SendToDevices(ctx, tokens, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
