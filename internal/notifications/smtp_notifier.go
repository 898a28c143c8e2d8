package notifications

import (
	"context"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier opens a new SMTP connection for every email.
type SMTPNotifier struct {
	cfg   SMTPConfig
	links Links
	send  func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPNotifier(cfg SMTPConfig, links Links) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:   cfg,
		links: links,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (n *SMTPNotifier) SendAccountConfirmation(ctx context.Context, input AccountEmail) error {
	return n.deliver(ctx, KindConfirmation, input)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, input AccountEmail) error {
	return n.deliver(ctx, KindPasswordReset, input)
}

func (n *SMTPNotifier) deliver(ctx context.Context, kind Kind, input AccountEmail) error {
	msg, err := Compose(kind, input, n.links)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	e.HTML = []byte(msg.HTML)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)

	// net/smtp has no context support; stop waiting when ctx ends
	done := make(chan error, 1)
	go func() { done <- n.send(e, addr, auth) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
