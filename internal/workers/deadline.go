// Package workers holds the river job workers that run alongside the API:
// bet deadline sweeps, reset code emails, and the database keep-alive.
package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/reedzbet/backend/internal/metrics"
)

type CloseExpiredArgs struct{}

func (CloseExpiredArgs) Kind() string { return "close_expired_bets" }

// BetCloser is the slice of the betting service the deadline sweep needs.
type BetCloser interface {
	CloseExpired(ctx context.Context) (int64, error)
}

type CloseExpiredWorker struct {
	river.WorkerDefaults[CloseExpiredArgs]
	bets BetCloser
	log  *slog.Logger
}

func NewCloseExpiredWorker(bets BetCloser, log *slog.Logger) *CloseExpiredWorker {
	if log == nil {
		log = slog.Default()
	}
	return &CloseExpiredWorker{bets: bets, log: log}
}

func (w *CloseExpiredWorker) Work(ctx context.Context, job *river.Job[CloseExpiredArgs]) error {
	n, err := w.bets.CloseExpired(ctx)
	if err != nil {
		return fmt.Errorf("close expired bets: %w", err)
	}
	if n > 0 {
		metrics.BetsClosed.Add(float64(n))
		w.log.InfoContext(ctx, "closed expired bets", "count", n)
	}
	return nil
}
