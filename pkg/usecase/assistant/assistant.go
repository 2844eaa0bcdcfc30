package assistant

import (
	"context"

	"github.com/foodlink/foodlink/pkg/model"
)

// Emit receives reply text as it is produced
type Emit func(text string) error

// Responder answers a conversation, streaming its reply through emit. A failed reply
// may still return an Outcome holding the effects committed before the failure.
type Responder interface {
	Respond(ctx context.Context, messages []*model.Message, emit Emit) (*Outcome, error)
}

// Outcome carries the side effects of a reply: transfers committed and notifications
// written while answering
type Outcome struct {
	Assignments   []*model.Assignment
	Notifications []*model.Notification
}
