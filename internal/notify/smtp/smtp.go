// Package smtp is the live Emailer adapter: RFC 5321 delivery over
// stdlib net/smtp (PLAIN auth, STARTTLS or implicit TLS), with the
// message itself composed as RFC 5322 MIME via emersion/go-message so
// an HTML body still carries a text/plain alternative.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nugget/pulse/internal/notify"
	"github.com/nugget/pulse/internal/pulseerr"
)

// dialTimeout is the fallback SMTP connection timeout when the
// caller's context carries no deadline.
const dialTimeout = 30 * time.Second

// sessionTimeout bounds the whole SMTP conversation after dial, as a
// connection deadline. Per-message timeouts are this adapter's job,
// not the Broadcaster's.
const sessionTimeout = 60 * time.Second

// Config describes how to reach the mail relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS selects STARTTLS upgrade (port 587 style) rather than
	// implicit TLS from connect (port 465 style).
	StartTLS bool
}

// Emailer sends mail through a configured SMTP relay. Each Send opens
// and closes its own connection; there is no session pooling.
type Emailer struct {
	cfg Config
}

// New constructs a live Emailer. UnconfiguredEmail is returned (not
// a later send-time failure) when the relay host or the From address
// is blank, matching the fatal-at-startup policy.
func New(cfg Config) (*Emailer, error) {
	if cfg.Host == "" {
		return nil, pulseerr.New(pulseerr.UnconfiguredEmail, "smtp host is not configured")
	}
	if cfg.From == "" {
		return nil, pulseerr.New(pulseerr.UnconfiguredEmail, "smtp from address is not configured")
	}
	return &Emailer{cfg: cfg}, nil
}

// Send composes and delivers msg to recipients.
func (e *Emailer) Send(ctx context.Context, recipients []string, msg notify.Message) error {
	if len(recipients) == 0 {
		return pulseerr.New(pulseerr.EmailError, "no recipients configured")
	}

	raw, err := compose(e.cfg.From, recipients, msg)
	if err != nil {
		return pulseerr.Wrap(pulseerr.EmailError, "compose message", err)
	}

	if err := sendMail(ctx, e.cfg, recipients, raw); err != nil {
		return pulseerr.Wrap(pulseerr.EmailError, "send message", err)
	}
	return nil
}

// compose builds an RFC 5322 message. HTML bodies get a multipart
// alternative with a stripped-tag plaintext twin; plain bodies are
// sent as a single text/plain part.
func compose(from string, recipients []string, msg notify.Message) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(msg.Subject)

	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", from, err)
	}
	h.SetAddressList("From", []*mail.Address{fromAddr})

	toAddrs := make([]*mail.Address, 0, len(recipients))
	for _, r := range recipients {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", r, err)
		}
		toAddrs = append(toAddrs, addr)
	}
	h.SetAddressList("To", toAddrs)

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}
	if msg.HTML {
		if err := writePart(tw, "text/plain; charset=utf-8", stripTags(msg.Body)); err != nil {
			return nil, err
		}
		if err := writePart(tw, "text/html; charset=utf-8", msg.Body); err != nil {
			return nil, err
		}
	} else {
		if err := writePart(tw, "text/plain; charset=utf-8", msg.Body); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.Set("Content-Type", contentType)
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create part %s: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("write part %s: %w", contentType, err)
	}
	return pw.Close()
}

// stripTags gives a crude plaintext alternative for an HTML body.
// Newscast bodies are the only HTML source here, and they are simple
// <h2>/<ul>/<li>/<a> markup.
func stripTags(s string) string {
	var out bytes.Buffer
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// sendMail performs the SMTP conversation: dial (implicit TLS or
// cleartext-then-STARTTLS), EHLO, AUTH PLAIN, then MAIL/RCPT/DATA.
func sendMail(ctx context.Context, cfg Config, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	envelopeFrom := cfg.From
	if parsed, err := mail.ParseAddress(cfg.From); err == nil {
		envelopeFrom = parsed.Address
	}

	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: timeout}

	sessionDeadline := time.Now().Add(sessionTimeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(sessionDeadline) {
		sessionDeadline = deadline
	}

	var client *smtp.Client
	var err error

	if !cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: cfg.Host}
		conn, dialErr := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if dialErr != nil {
			return fmt.Errorf("dial smtps %s: %w", addr, dialErr)
		}
		conn.SetDeadline(sessionDeadline)
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create smtp client on %s: %w", addr, err)
		}
	} else {
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("dial smtp %s: %w", addr, dialErr)
		}
		conn.SetDeadline(sessionDeadline)
		client, err = smtp.NewClient(conn, cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create smtp client on %s: %w", addr, err)
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}

	if cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: cfg.Host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(envelopeFrom); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}

	return client.Quit()
}
