package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

type ResetEmailArgs struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (ResetEmailArgs) Kind() string { return "password_reset_email" }

// CodeMailer is the delivery contract the worker needs.
type CodeMailer interface {
	SendResetCode(ctx context.Context, to, code string) error
}

type ResetEmailWorker struct {
	river.WorkerDefaults[ResetEmailArgs]
	mailer CodeMailer
	log    *slog.Logger
}

func NewResetEmailWorker(mailer CodeMailer, log *slog.Logger) *ResetEmailWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ResetEmailWorker{mailer: mailer, log: log}
}

// Work sends the reset code email. Errors bubble up so river retries; the
// code stays valid for its whole TTL regardless of delivery attempts.
func (w *ResetEmailWorker) Work(ctx context.Context, job *river.Job[ResetEmailArgs]) error {
	if err := w.mailer.SendResetCode(ctx, job.Args.Email, job.Args.Code); err != nil {
		return fmt.Errorf("send reset code email: %w", err)
	}
	w.log.InfoContext(ctx, "reset code email sent", "email", job.Args.Email)
	return nil
}
