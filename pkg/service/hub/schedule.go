package hub

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ValidateSchedule reports whether expr is a cron expression the scheduler accepts
func ValidateSchedule(expr string) error {
	if !gronx.IsValid(expr) {
		return goerr.New("invalid cron expression", goerr.V("expr", expr))
	}
	return nil
}

// RunSchedule runs a match-and-dispatch round at every tick of the cron expression
// and publishes what it produced. It blocks until ctx is cancelled.
func (h *Hub) RunSchedule(ctx context.Context, expr string, runner *logistics.Runner) error {
	if err := ValidateSchedule(expr); err != nil {
		return err
	}
	logger := logging.From(ctx).With("cron", expr)
	logger.Info("match schedule started")

	for {
		next, err := gronx.NextTickAfter(expr, time.Now(), false)
		if err != nil {
			return goerr.Wrap(err, "failed to compute next tick", goerr.V("expr", expr))
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("match schedule stopped")
			return nil
		case <-timer.C:
		}

		h.runRound(ctx, runner)
	}
}

func (h *Hub) runRound(ctx context.Context, runner *logistics.Runner) {
	logger := logging.From(ctx)

	outcome, err := runner.Run(ctx)
	if err != nil {
		logger.Error("scheduled match failed", "error", err)
		return
	}
	if len(outcome.Assignments()) == 0 {
		return
	}

	h.Publish(ctx, outcome.Assignments(), outcome.Notifications)
	if err := h.PublishDatabase(ctx); err != nil {
		logger.Warn("failed to publish database", "error", err)
	}
}
