// Package mail queues outgoing email through the message broker and
// delivers it from the worker process. API handlers publish and move
// on; delivery failures never surface to the requesting user.
package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TaichKarna/levlelup/internal/mq"
)

// Channel is the broker channel carrying mail jobs.
const Channel = "outgoing-mail"

// Message kinds understood by the worker.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password-reset"
)

// Job is one queued email.
type Job struct {
	Kind  string `json:"kind"`
	To    string `json:"to"`
	Token string `json:"token"`
}

// Mailer publishes mail jobs to the broker.
type Mailer struct {
	mq *mq.MQ
}

func NewMailer(broker *mq.MQ) *Mailer {
	return &Mailer{mq: broker}
}

// SendVerification queues the email-verification message for a new
// account.
func (m *Mailer) SendVerification(ctx context.Context, to, verificationToken string) error {
	return m.publish(ctx, Job{Kind: KindVerification, To: to, Token: verificationToken})
}

// SendPasswordReset queues the reset-link message.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, resetToken string) error {
	return m.publish(ctx, Job{Kind: KindPasswordReset, To: to, Token: resetToken})
}

func (m *Mailer) publish(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := m.mq.Publish(ctx, Channel, data, map[string]string{"kind": job.Kind}); err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}
