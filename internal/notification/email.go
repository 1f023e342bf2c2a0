package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"os"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
)

const (
	SubjectSignin = "Sign In Verification Code"
	SubjectSignup = "Welcome to NoteTaker - Verification Code"

	defaultAppName     = "NoteTaker"
	defaultSendTimeout = 30 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var codeTemplate = template.Must(template.ParseFS(templateFS, "templates/code.html"))

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	AppName  string
	// Timeout bounds a send when the caller's context has no deadline.
	Timeout time.Duration
}

// sendFunc is smtp.SendMail with a context.
type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailService struct {
	config EmailConfig
	send   sendFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	if config.AppName == "" {
		config.AppName = defaultAppName
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultSendTimeout
	}
	s := &EmailService{config: config}
	s.send = s.sendMail
	return s
}

type codeData struct {
	Name    string
	Code    string
	Minutes int
	AppName string
}

// SendCode emails a one-time code using the signin or signup subject.
func (s *EmailService) SendCode(ctx context.Context, msg domain.CodeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := RenderCodeEmail(msg, s.config.AppName)
	if err != nil {
		return err
	}

	subject := SubjectSignup
	if msg.Signin {
		subject = SubjectSignin
	}
	return s.sendEmail(ctx, msg.To, subject, body)
}

// RenderCodeEmail renders the HTML body of a code email.
func RenderCodeEmail(msg domain.CodeMessage, appName string) (string, error) {
	var buf bytes.Buffer
	err := codeTemplate.Execute(&buf, codeData{
		Name:    msg.Name,
		Code:    msg.Code,
		Minutes: int(msg.TTL.Minutes()),
		AppName: appName,
	})
	if err != nil {
		return "", fmt.Errorf("render code email: %w", err)
	}
	return buf.String(), nil
}

func (s *EmailService) sendEmail(ctx context.Context, to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return s.send(ctx, addr, auth, s.config.From, []string{to}, []byte(msg))
}

// sendMail does what smtp.SendMail does, but the whole exchange is bounded
// by ctx: the dial honours it and cancellation closes the connection.
func (s *EmailService) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return sendError(ctx, "dial smtp", err)
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := exchange(conn, addr, a, from, to, msg); err != nil {
		return sendError(ctx, "send mail", err)
	}
	return nil
}

// sendError makes an expired or cancelled send match the context error.
func sendError(ctx context.Context, op string, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil && errors.Is(err, os.ErrDeadlineExceeded) {
		ctxErr = context.DeadlineExceeded
	}
	if ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func exchange(conn net.Conn, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		_ = conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
