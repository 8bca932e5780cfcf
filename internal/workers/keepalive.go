package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

type KeepAliveArgs struct{}

func (KeepAliveArgs) Kind() string { return "db_keep_alive" }

// Toucher performs the keep-alive write.
type Toucher interface {
	Touch(ctx context.Context) error
}

type KeepAliveWorker struct {
	river.WorkerDefaults[KeepAliveArgs]
	db  Toucher
	log *slog.Logger
}

func NewKeepAliveWorker(db Toucher, log *slog.Logger) *KeepAliveWorker {
	if log == nil {
		log = slog.Default()
	}
	return &KeepAliveWorker{db: db, log: log}
}

func (w *KeepAliveWorker) Work(ctx context.Context, job *river.Job[KeepAliveArgs]) error {
	if err := w.db.Touch(ctx); err != nil {
		return fmt.Errorf("keep-alive touch: %w", err)
	}
	w.log.DebugContext(ctx, "database keep-alive ping")
	return nil
}
