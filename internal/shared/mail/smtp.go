package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPMailer delivers messages through an SMTP relay. STARTTLS is used when
// the relay offers it.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration

	send func(ctx context.Context, msg *gomail.Msg) error
}

// NewSMTPMailer builds an SMTPMailer. Auth is only used when a username is set.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	m := &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		Timeout:  defaultSMTPTimeout,
	}
	m.send = m.dialAndSend
	return m
}

// Send builds msg and delivers it. Cancelling ctx aborts the SMTP dialogue.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(msg); err != nil {
		return err
	}
	out, err := m.build(msg)
	if err != nil {
		return err
	}
	send := m.send
	if send == nil {
		send = m.dialAndSend
	}
	if err := send(ctx, out); err != nil {
		return fmt.Errorf("smtp send to=%s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*gomail.Msg, error) {
	out := gomail.NewMsg(gomail.WithEncoding(gomail.NoEncoding), gomail.WithCharset(gomail.CharsetUTF8))
	if err := out.From(m.From); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", m.From, err)
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if err := out.To(to...); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	opts := []gomail.Option{
		gomail.WithPort(m.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(timeout),
	}
	if m.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.Username),
			gomail.WithPassword(m.Password),
		)
	}
	client, err := gomail.NewClient(m.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
