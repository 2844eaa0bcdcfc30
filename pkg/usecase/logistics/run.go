package logistics

import (
	"context"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Outcome is what one match-and-dispatch round produced
type Outcome struct {
	Result        *Result
	Notifications []*model.Notification
}

// Assignments returns the committed transfers of the round
func (o *Outcome) Assignments() []*model.Assignment {
	if o == nil || o.Result == nil {
		return nil
	}
	return o.Result.Assignments
}

// Runner matches the stored database, commits the transfers and dispatches
// notifications for them
type Runner struct {
	repo       repository.Repository
	filter     Filter
	dispatcher *Dispatcher
	sink       adapter.AssignmentSink
}

// RunnerOption is a functional option for Runner
type RunnerOption func(*Runner)

// WithFilter sets the transfer filter, usually a *Policy
func WithFilter(filter Filter) RunnerOption {
	return func(r *Runner) {
		r.filter = filter
	}
}

// WithDispatcher replaces the default template dispatcher
func WithDispatcher(d *Dispatcher) RunnerOption {
	return func(r *Runner) {
		r.dispatcher = d
	}
}

// WithSink records every committed transfer
func WithSink(sink adapter.AssignmentSink) RunnerOption {
	return func(r *Runner) {
		r.sink = sink
	}
}

// NewRunner creates a Runner over repo
func NewRunner(repo repository.Repository, opts ...RunnerOption) *Runner {
	r := &Runner{
		repo:       repo,
		dispatcher: NewDispatcher(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one round. The match and the commit happen in a single repository
// update, so concurrent rounds never hand out the same items twice.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	var result *Result
	db, err := repository.Update(ctx, r.repo, func(db *model.Database) error {
		res, err := Match(ctx, db, r.filter)
		if err != nil {
			return err
		}
		Apply(db, res.Assignments)
		result = res
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to match locations")
	}

	outcome := &Outcome{Result: result}
	if len(result.Assignments) == 0 {
		logging.From(ctx).Debug("no transfers found")
		return outcome, nil
	}

	logging.From(ctx).Info("transfers committed", "count", len(result.Assignments))

	notifications, err := r.dispatcher.Dispatch(ctx, db, result.Assignments)
	if err != nil {
		return nil, err
	}
	outcome.Notifications = notifications

	if r.sink != nil {
		if err := r.sink.PutAssignments(ctx, time.Now(), result.Assignments); err != nil {
			logging.From(ctx).Error("failed to record transfers", "error", err)
		}
	}

	return outcome, nil
}
