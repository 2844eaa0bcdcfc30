package logistics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const policyQuery = "data.dispatch.deny"

// regoPrintHook forwards Rego print() statements to the logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Policy is a Filter backed by Rego modules. A transfer is denied when the
// dispatch.deny set is not empty for it.
type Policy struct {
	query *rego.PreparedEvalQuery
}

type policyInput struct {
	Assignment  *model.Assignment `json:"assignment"`
	Origin      *model.Location   `json:"origin"`
	Destination *model.Location   `json:"destination"`
	Distance    float64           `json:"distance"`
}

// LoadPolicy loads all .rego files in dir. It returns nil without error when the
// directory has none.
func LoadPolicy(ctx context.Context, dir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules[file] = string(data)
	}
	return NewPolicy(ctx, modules)
}

// NewPolicy prepares a policy from module sources keyed by file name
func NewPolicy(ctx context.Context, modules map[string]string) (*Policy, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(policyQuery))
	for name, src := range modules {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy query", goerr.V("query", policyQuery))
	}
	return &Policy{query: &prepared}, nil
}

// Allow evaluates the policy for one proposed transfer
func (p *Policy) Allow(ctx context.Context, proposal *Proposal) (bool, error) {
	input := policyInput{
		Assignment:  proposal.Assignment,
		Origin:      proposal.Origin,
		Destination: proposal.Destination,
		Distance:    proposal.Distance,
	}

	// rego.EvalInput needs plain JSON values, not Go structs with custom marshalers
	raw, err := toJSONValue(input)
	if err != nil {
		return false, err
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(raw), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate dispatch policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return true, nil
	}

	reasons, ok := rs[0].Expressions[0].Value.([]any)
	if !ok || len(reasons) == 0 {
		return true, nil
	}

	logging.From(ctx).Info("transfer denied by policy",
		"origin", proposal.Assignment.Origin,
		"destination", proposal.Assignment.Destination,
		"category", proposal.Assignment.Category,
		"reasons", reasons,
	)
	return false, nil
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal policy input")
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal policy input")
	}
	return out, nil
}
