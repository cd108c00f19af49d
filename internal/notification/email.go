package notification

import (
    "context"
    "fmt"
    "log/slog"
    "net"
    "net/smtp"

    "github.com/jordan-wright/email"
)

// SMTPConfig holds the outgoing mail settings.
type SMTPConfig struct {
    Addr     string // host:port
    From     string
    Username string
    Password string
}

// EmailNotifier mails notifications to the destination address.
type EmailNotifier struct {
    cfg    SMTPConfig
    auth   smtp.Auth
    logger *slog.Logger
    send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewEmailNotifier builds an SMTP notifier. Auth is skipped when no username is set.
func NewEmailNotifier(cfg SMTPConfig, logger *slog.Logger) *EmailNotifier {
    var auth smtp.Auth
    if cfg.Username != "" {
        host, _, err := net.SplitHostPort(cfg.Addr)
        if err != nil {
            host = cfg.Addr
        }
        auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
    }
    return &EmailNotifier{
        cfg:    cfg,
        auth:   auth,
        logger: logger,
        send:   func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
    }
}

// Send delivers the message. Messages without a destination are ignored.
func (n *EmailNotifier) Send(_ context.Context, message Message) error {
    if message.Destination == "" {
        return nil
    }
    e := email.NewEmail()
    e.From = n.cfg.From
    e.To = []string{message.Destination}
    e.Subject = message.Subject
    if e.Subject == "" {
        e.Subject = message.Kind
    }
    e.Text = []byte(message.Body)

    if err := n.send(e, n.cfg.Addr, n.auth); err != nil {
        n.logger.Error("email delivery failed", "kind", message.Kind, "destination", message.Destination, "error", err)
        return fmt.Errorf("send %s email: %w", message.Kind, err)
    }
    n.logger.Info("email sent", "kind", message.Kind, "destination", message.Destination)
    return nil
}
