package dispatch

import (
	"context"
	"fmt"

	"github.com/foodlink/foodlink/pkg/tool"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"google.golang.org/genai"
)

const prompt = `### Matching and dispatch

After saving supply or demand, call ` + "`match_and_dispatch`" + ` to pair surplus with demand.
Explain the resulting transfers in a friendly and engaging manner. If there are no
transfers, tell the user that no matching surplus or demand was found and that their
report has been added to the database.`

// Tool runs a logistics round on request of the model
type Tool struct {
	runner *logistics.Runner
}

var _ tool.Tool = (*Tool)(nil)

// New creates the match_and_dispatch tool
func New(runner *logistics.Runner) *Tool {
	return &Tool{runner: runner}
}

func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "match_and_dispatch",
				Description: "Match suppliers to demanders by category and proximity, commit the transfers and notify both sides of each transfer",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}
}

func (t *Tool) Prompt(ctx context.Context) string { return prompt }

// Execute runs one round and records its transfers and notifications on the request's
// tool.Effects so the caller can deliver them
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	outcome, err := t.runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	assignments := outcome.Assignments()
	tool.EffectsFrom(ctx).Add(assignments, outcome.Notifications)

	if len(assignments) == 0 {
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"result": "No assignments found."},
		}, nil
	}

	transfers := make([]string, len(assignments))
	for i, a := range assignments {
		transfers[i] = fmt.Sprintf("%s -> %s: %s %v", a.Origin, a.Destination, a.Category, a.Items)
	}

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"assignments":        transfers,
			"remaining_supplies": outcome.Result.RemainingSupplies,
			"remaining_demands":  outcome.Result.RemainingDemands,
			"notifications_sent": len(outcome.Notifications),
		},
	}, nil
}
