package assistant

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/tool"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

const defaultMaxIterations = 8

// Gemini answers with a Gemini model, running tool calls until the model stops
// asking for them
type Gemini struct {
	gemini        adapter.Gemini
	registry      *tool.Registry
	repo          repository.Repository
	maxIterations int
}

// GeminiOption is a functional option for Gemini
type GeminiOption func(*Gemini)

// WithMaxIterations caps the number of model calls per reply
func WithMaxIterations(n int) GeminiOption {
	return func(g *Gemini) {
		if n > 0 {
			g.maxIterations = n
		}
	}
}

// WithRepository lists the known locations in the system prompt
func WithRepository(repo repository.Repository) GeminiOption {
	return func(g *Gemini) {
		g.repo = repo
	}
}

// NewGemini creates a Gemini responder. registry may be nil.
func NewGemini(gemini adapter.Gemini, registry *tool.Registry, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		gemini:        gemini,
		registry:      registry,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gemini) systemPrompt(ctx context.Context) (string, error) {
	data := map[string]any{"ToolPrompts": ""}
	if g.registry != nil {
		data["ToolPrompts"] = g.registry.Prompts(ctx)
	}
	if g.repo != nil {
		db, err := g.repo.GetDatabase(ctx)
		if err != nil {
			return "", goerr.Wrap(err, "failed to load locations for prompt")
		}
		data["Locations"] = db.Locations.All()
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render system prompt")
	}
	return buf.String(), nil
}

func toContents(messages []*model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case model.RoleAssistant:
			if m.Content != "" {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
			}
		}
	}
	return contents
}

// Respond streams the model reply. Tool calls are executed between model calls and
// their transfers and notifications are returned in the Outcome.
func (g *Gemini) Respond(ctx context.Context, messages []*model.Message, emit Emit) (*Outcome, error) {
	prompt, err := g.systemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt, ""),
	}
	if g.registry != nil {
		config.Tools = g.registry.Specs()
	}

	ctx, effects := tool.WithEffects(ctx)
	contents := toContents(messages)
	logger := logging.From(ctx)
	outcome := func() *Outcome {
		return &Outcome{
			Assignments:   effects.Assignments(),
			Notifications: effects.Notifications(),
		}
	}

	compressed := false
	for i := 0; i < g.maxIterations; i++ {
		reply, calls, err := g.stream(ctx, contents, config, emit)
		if err != nil && !compressed && len(reply.Parts) == 0 && isTokenLimitError(err) {
			logger.Warn("history exceeds the token limit, compressing", "contents", len(contents))
			contents, err = compressHistory(ctx, g.gemini, contents)
			if err != nil {
				return outcome(), goerr.Wrap(err, "failed to compress history")
			}
			compressed = true
			reply, calls, err = g.stream(ctx, contents, config, emit)
		}
		if err != nil {
			return outcome(), goerr.Wrap(err, "failed to generate reply", goerr.V("iteration", i))
		}

		if len(reply.Parts) > 0 {
			contents = append(contents, reply)
		}
		if len(calls) == 0 {
			return outcome(), nil
		}

		responses := make([]*genai.Part, 0, len(calls))
		for _, fc := range calls {
			logger.Info("tool call", "name", fc.Name, "args", fc.Args)
			funcResp, err := g.execute(ctx, *fc)
			if err != nil {
				logger.Warn("tool call failed", "name", fc.Name, "error", err)
				funcResp = &genai.FunctionResponse{
					Name:     fc.Name,
					Response: map[string]any{"error": err.Error()},
				}
			}
			funcResp.ID = fc.ID
			responses = append(responses, &genai.Part{FunctionResponse: funcResp})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	logger.Warn("tool call iterations exhausted", "max", g.maxIterations)
	return outcome(), nil
}

// stream runs one model call, emitting text as it arrives and collecting the parts
// and function calls of the reply
func (g *Gemini) stream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, emit Emit) (*genai.Content, []*genai.FunctionCall, error) {
	reply := &genai.Content{Role: genai.RoleModel}
	var calls []*genai.FunctionCall

	for resp, err := range g.gemini.GenerateContentStream(ctx, contents, config) {
		if err != nil {
			return reply, nil, err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				if err := emit(part.Text); err != nil {
					return reply, nil, err
				}
			}
			if part.FunctionCall != nil {
				calls = append(calls, part.FunctionCall)
			}
			reply.Parts = append(reply.Parts, part)
		}
	}
	return reply, calls, nil
}

func (g *Gemini) execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if g.registry == nil {
		return nil, goerr.New("tool registry not available", goerr.V("name", fc.Name))
	}
	resp, err := g.registry.Execute(ctx, fc)
	if err != nil {
		return nil, goerr.Wrap(err, "tool execution failed", goerr.V("name", fc.Name))
	}
	return resp, nil
}
