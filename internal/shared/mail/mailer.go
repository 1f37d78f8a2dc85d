package mail

import (
	"context"
	"errors"
	"strings"
	"sync"

	"docrequests-backend/internal/shared/telemetry"
)

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations report transport failures to the caller.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var errNoRecipients = errors.New("mail: no recipients")

func validate(msg Message) error {
	for _, to := range msg.To {
		if strings.TrimSpace(to) != "" {
			return nil
		}
	}
	return errNoRecipients
}

// LogMailer writes messages to the structured log instead of delivering them.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(msg); err != nil {
		return err
	}
	telemetry.Info("mail.logged", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	return nil
}

// Recorder keeps sent messages in memory. Setting Err makes every Send fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// Send records the message or returns r.Err.
func (r *Recorder) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if err := validate(msg); err != nil {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
