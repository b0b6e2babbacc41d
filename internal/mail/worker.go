package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/TaichKarna/levlelup/internal/mq"
)

// SMTPConfig holds the delivery endpoint for the worker.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Worker consumes mail jobs from the broker and delivers them over
// SMTP. The standard library client is used directly; nothing in our
// stack wraps SMTP.
type Worker struct {
	mq        *mq.MQ
	smtp      SMTPConfig
	clientURL string
	send      func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewWorker constructs a Worker. clientURL is the frontend base used
// to build verification and reset links.
func NewWorker(broker *mq.MQ, cfg SMTPConfig, clientURL string) *Worker {
	return &Worker{
		mq:        broker,
		smtp:      cfg,
		clientURL: strings.TrimRight(clientURL, "/"),
		send:      smtp.SendMail,
	}
}

// Run consumes the mail channel until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	return w.mq.Subscribe(ctx, Channel, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// A malformed job will never parse; drop it instead of
		// requeueing forever.
		log.Printf("mail: dropping malformed job %s: %v", msg.ID, err)
		return nil
	}

	subject, body, err := w.compose(job)
	if err != nil {
		log.Printf("mail: dropping job %s: %v", msg.ID, err)
		return nil
	}
	return w.deliver(job.To, subject, body)
}

func (w *Worker) compose(job Job) (subject, body string, err error) {
	switch job.Kind {
	case KindVerification:
		url := fmt.Sprintf("%s/verify-email/%s", w.clientURL, job.Token)
		return "Verify Your Email", fmt.Sprintf(
			"<h1>Email Verification</h1>"+
				"<p>Thank you for registering! Please verify your email by clicking the link below:</p>"+
				`<a href="%s">Verify Email</a>`+
				"<p>This link will expire in 24 hours.</p>", url), nil
	case KindPasswordReset:
		url := fmt.Sprintf("%s/reset-password/%s", w.clientURL, job.Token)
		return "Password Reset", fmt.Sprintf(
			"<h1>Password Reset</h1>"+
				"<p>You requested a password reset. Click the link below to reset your password:</p>"+
				`<a href="%s">Reset Password</a>`+
				"<p>This link will expire in 1 hour.</p>"+
				"<p>If you didn't request this, please ignore this email.</p>", url), nil
	default:
		return "", "", fmt.Errorf("unknown mail kind %q", job.Kind)
	}
}

func (w *Worker) deliver(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", w.smtp.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", w.smtp.Host, w.smtp.Port)
	var auth smtp.Auth
	if w.smtp.Username != "" {
		auth = smtp.PlainAuth("", w.smtp.Username, w.smtp.Password, w.smtp.Host)
	}
	return w.send(addr, auth, w.smtp.From, []string{to}, []byte(msg.String()))
}
