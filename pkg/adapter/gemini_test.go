package adapter_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestGenerateContentStream(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	contents := []*genai.Content{
		genai.NewContentFromText("Name one fruit that food banks often receive.", genai.RoleUser),
	}

	var b strings.Builder
	for resp, err := range client.GenerateContentStream(ctx, contents, nil) {
		gt.NoError(t, err)
		b.WriteString(resp.Text())
	}

	if b.Len() == 0 {
		t.Fatal("empty streamed response")
	}
	t.Log("response:", b.String())
}
