package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/internradar/internal/config"
	"github.com/amishk599/internradar/internal/model"
)

// Ensure EmailNotifier implements model.Notifier.
var _ model.Notifier = (*EmailNotifier)(nil)

// implicitTLSPort is the SMTP submission port that expects TLS from the first byte.
const implicitTLSPort = 465

// EmailNotifier sends one plain-text digest per batch over SMTP. Port 465 uses
// implicit TLS; any other port upgrades with STARTTLS when the server offers it.
type EmailNotifier struct {
	cfg       config.SMTPConfig
	tlsConfig *tls.Config
	dialer    *net.Dialer
	now       func() time.Time
	logger    *slog.Logger
}

// NewEmailNotifier returns a notifier delivering through the given relay.
func NewEmailNotifier(cfg config.SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		dialer:    &net.Dialer{Timeout: 30 * time.Second},
		now:       time.Now,
		logger:    logger,
	}
}

// Notify renders the digest and hands it to the relay. A nil error means the
// relay accepted the message for every recipient.
func (e *EmailNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	body, err := renderDigest(jobs)
	if err != nil {
		return fmt.Errorf("render email digest: %w", err)
	}
	if err := e.send(ctx, e.message(body)); err != nil {
		return fmt.Errorf("send email digest: %w", err)
	}

	e.logger.Info("email digest sent", "batch", len(jobs), "recipients", len(e.cfg.To))
	return nil
}

func (e *EmailNotifier) message(body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.cfg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func (e *EmailNotifier) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))

	var conn net.Conn
	var err error
	if e.cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: e.dialer, Config: e.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = e.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if e.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(e.tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if e.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, to := range e.cfg.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	// The relay has accepted the message; a failed QUIT does not undo delivery.
	if err := c.Quit(); err != nil {
		e.logger.Warn("smtp quit failed after message was accepted", "error", err)
	}
	return nil
}
