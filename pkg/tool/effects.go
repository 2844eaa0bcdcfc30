package tool

import (
	"context"
	"sync"

	"github.com/foodlink/foodlink/pkg/model"
)

type effectsKey struct{}

// Effects collects the transfers and notifications that tool calls produced while
// answering one request
type Effects struct {
	mu            sync.Mutex
	assignments   []*model.Assignment
	notifications []*model.Notification
}

// WithEffects attaches a fresh Effects collector to ctx
func WithEffects(ctx context.Context) (context.Context, *Effects) {
	e := &Effects{}
	return context.WithValue(ctx, effectsKey{}, e), e
}

// EffectsFrom returns the collector attached to ctx, or nil
func EffectsFrom(ctx context.Context) *Effects {
	e, _ := ctx.Value(effectsKey{}).(*Effects)
	return e
}

// Add records produced transfers and notifications. It is a no-op on a nil receiver.
func (e *Effects) Add(assignments []*model.Assignment, notifications []*model.Notification) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assignments = append(e.assignments, assignments...)
	e.notifications = append(e.notifications, notifications...)
}

func (e *Effects) Assignments() []*model.Assignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*model.Assignment(nil), e.assignments...)
}

func (e *Effects) Notifications() []*model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*model.Notification(nil), e.notifications...)
}
