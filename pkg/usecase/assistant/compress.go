package assistant

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Share of the history, by encoded size, folded into the summary
const compressionRatio = 0.7

//go:embed prompt/summarize.md
var summarizePrompt string

// isTokenLimitError reports whether Gemini rejected the request for its input size.
// Example: "The input token count (2500030) exceeds the maximum number of tokens allowed (1048576)."
func isTokenLimitError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 400 &&
		apiErr.Status == "INVALID_ARGUMENT" &&
		strings.HasPrefix(apiErr.Message, "The input token count (") &&
		strings.Contains(apiErr.Message, ") exceeds the maximum number of tokens allowed (")
}

func contentSize(content *genai.Content) int {
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return len(data)
}

// compressHistory replaces the oldest part of the history with a model-written
// summary and keeps the rest verbatim
func compressHistory(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) ([]*genai.Content, error) {
	if len(contents) < 2 {
		return nil, goerr.New("insufficient history to compress", goerr.V("length", len(contents)))
	}

	sizes := make([]int, len(contents))
	total := 0
	for i, c := range contents {
		sizes[i] = contentSize(c)
		total += sizes[i]
	}

	threshold := int(float64(total) * compressionRatio)
	cut, cumulative := 0, 0
	for i, size := range sizes {
		cumulative += size
		if cumulative >= threshold {
			cut = i + 1
			break
		}
	}
	// The latest user message always stays.
	cut = min(cut, len(contents)-1)
	if cut == 0 {
		return nil, goerr.New("insufficient history to compress", goerr.V("length", len(contents)))
	}

	summary, err := summarize(ctx, gemini, contents[:cut])
	if err != nil {
		return nil, err
	}

	compressed := make([]*genai.Content, 0, len(contents)-cut+1)
	compressed = append(compressed, genai.NewContentFromText("=== Earlier conversation (summary) ===\n\n"+summary, genai.RoleUser))
	compressed = append(compressed, contents[cut:]...)
	return compressed, nil
}

func summarize(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) (string, error) {
	request := append(append([]*genai.Content{}, contents...), genai.NewContentFromText(summarizePrompt, genai.RoleUser))

	thinkingBudget := int32(0)
	resp, err := gemini.GenerateContent(ctx, request, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You keep records for a food surplus redistribution service.", ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no summary generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", goerr.New("empty summary generated")
	}
	return b.String(), nil
}
