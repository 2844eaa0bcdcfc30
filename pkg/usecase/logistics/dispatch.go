package logistics

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var (
	//go:embed template/origin.md
	originTemplateRaw string
	//go:embed template/destination.md
	destinationTemplateRaw string
	//go:embed template/compose.md
	composeTemplateRaw string
)

var templateFuncs = template.FuncMap{
	"items": func(items []string) string { return strings.Join(items, ", ") },
}

var (
	originTemplate      = template.Must(template.New("origin").Funcs(templateFuncs).Parse(originTemplateRaw))
	destinationTemplate = template.Must(template.New("destination").Funcs(templateFuncs).Parse(destinationTemplateRaw))
	composeTemplate     = template.Must(template.New("compose").Funcs(templateFuncs).Parse(composeTemplateRaw))
)

// messageData is the data passed to notification templates
type messageData struct {
	Recipient   string
	Origin      string
	Destination string
	Category    string
	Items       []string
	Address     string
}

// Dispatcher turns assignments into notifications, two per transfer: one for the
// origin and one for the destination
type Dispatcher struct {
	gemini adapter.Gemini
	now    func() time.Time
}

// DispatchOption is a functional option for Dispatcher
type DispatchOption func(*Dispatcher)

// WithGemini lets the model write the notification text. Fixed templates are used
// when generation fails.
func WithGemini(gemini adapter.Gemini) DispatchOption {
	return func(d *Dispatcher) {
		d.gemini = gemini
	}
}

// WithClock replaces the notification timestamp source
func WithClock(now func() time.Time) DispatchOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch builds the notifications for assignments. db supplies the origin address
// shown to the destination and may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, db *model.Database, assignments []*model.Assignment) ([]*model.Notification, error) {
	var notifications []*model.Notification

	for _, a := range assignments {
		if a == nil {
			continue
		}
		data := messageData{
			Origin:      a.Origin,
			Destination: a.Destination,
			Category:    a.Category,
			Items:       a.Items,
		}
		if db != nil {
			if origin, ok := db.Locations.Get(a.Origin); ok {
				data.Address = origin.Data.Address
			}
		}

		for _, target := range []struct {
			recipient string
			tmpl      *template.Template
		}{
			{a.Origin, originTemplate},
			{a.Destination, destinationTemplate},
		} {
			data.Recipient = target.recipient
			text, err := d.compose(ctx, target.tmpl, data)
			if err != nil {
				return nil, err
			}
			notifications = append(notifications, &model.Notification{
				Recipient: target.recipient,
				Message:   text,
				Timestamp: d.now(),
			})
		}
	}

	return notifications, nil
}

func (d *Dispatcher) compose(ctx context.Context, tmpl *template.Template, data messageData) (string, error) {
	if d.gemini != nil {
		text, err := d.generate(ctx, data)
		if err == nil {
			return text, nil
		}
		logging.From(ctx).Warn("failed to generate notification, using template", "error", err, "recipient", data.Recipient)
	}
	return render(tmpl, data)
}

func (d *Dispatcher) generate(ctx context.Context, data messageData) (string, error) {
	prompt, err := render(composeTemplate, data)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	temperature := float32(0.8)
	resp, err := d.gemini.GenerateContent(ctx, contents, &genai.GenerateContentConfig{Temperature: &temperature})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate notification")
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", goerr.New("empty notification from model", goerr.V("recipient", data.Recipient))
	}
	return text, nil
}

func render(tmpl *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render notification", goerr.V("template", tmpl.Name()))
	}
	return strings.TrimSpace(buf.String()), nil
}
