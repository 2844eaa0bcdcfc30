package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/foodlink/foodlink/pkg/model"
)

const demoReply = "I'm a demo bot. I can't actually process your message, but I can pretend to respond!"

// Demo streams a fixed reply word by word. It is used when no model is configured.
type Demo struct {
	delay time.Duration
}

// DemoOption is a functional option for Demo
type DemoOption func(*Demo)

// WithDelay sets the pause between streamed words
func WithDelay(d time.Duration) DemoOption {
	return func(x *Demo) {
		x.delay = d
	}
}

// NewDemo creates a Demo responder
func NewDemo(opts ...DemoOption) *Demo {
	d := &Demo{delay: 50 * time.Millisecond}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Demo) Respond(ctx context.Context, messages []*model.Message, emit Emit) (*Outcome, error) {
	words := strings.Fields(demoReply)
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		if err := emit(w); err != nil {
			return nil, err
		}

		if d.delay > 0 && i < len(words)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.delay):
			}
		}
	}
	return &Outcome{}, nil
}
