package logistics_test

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.prompts = append(m.prompts, contents[0].Parts[0].Text)
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(m.reply, genai.RoleModel)}},
	}, nil
}

func (m *mockGemini) GenerateContentStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {}
}

type mockSink struct {
	mu      sync.Mutex
	batches [][]*model.Assignment
}

func (m *mockSink) PutAssignments(ctx context.Context, dispatchedAt time.Time, assignments []*model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, assignments)
	return nil
}

var fixedNow = time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC)

func seedDatabase() *model.Database {
	return &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", model.Coordinates{Lat: 0, Lon: 0, Address: "15255 Michigan Ave"},
			map[string][]string{"dairy": {"milk", "cheese"}}, "dairy"),
		model.NewDemander("Helping Hand", model.Coordinates{Lat: 1, Lon: 0}, "dairy"),
	)}
}

func TestDispatchTemplates(t *testing.T) {
	d := logistics.NewDispatcher(logistics.WithClock(func() time.Time { return fixedNow }))

	notifications, err := d.Dispatch(context.Background(), seedDatabase(), []*model.Assignment{
		{Origin: "Kroger", Destination: "Helping Hand", Category: "dairy", Items: []string{"milk", "cheese"}},
	})
	gt.NoError(t, err)
	gt.A(t, notifications).Length(2)

	gt.Equal(t, notifications[0].Recipient, "Kroger")
	gt.S(t, notifications[0].Message).Contains("Helping Hand will be coming to pick up milk, cheese")
	gt.Equal(t, notifications[0].Timestamp, fixedNow)

	gt.Equal(t, notifications[1].Recipient, "Helping Hand")
	gt.S(t, notifications[1].Message).Contains("15255 Michigan Ave")
}

func TestDispatchWithGemini(t *testing.T) {
	gemini := &mockGemini{reply: "  Your milk is on its way!  "}
	d := logistics.NewDispatcher(logistics.WithGemini(gemini))

	notifications, err := d.Dispatch(context.Background(), seedDatabase(), []*model.Assignment{
		{Origin: "Kroger", Destination: "Helping Hand", Category: "dairy", Items: []string{"milk"}},
	})
	gt.NoError(t, err)
	gt.A(t, notifications).Length(2)
	gt.Equal(t, notifications[0].Message, "Your milk is on its way!")
	gt.A(t, gemini.prompts).Length(2)
	gt.S(t, gemini.prompts[0]).Contains("Helping Hand will be coming to pick up milk")
	gt.S(t, gemini.prompts[1]).Contains("Origin location: 15255 Michigan Ave")
}

func TestDispatchGeminiFailureFallsBack(t *testing.T) {
	gemini := &mockGemini{err: goerr.New("quota exceeded")}
	d := logistics.NewDispatcher(logistics.WithGemini(gemini))

	notifications, err := d.Dispatch(context.Background(), nil, []*model.Assignment{
		{Origin: "Kroger", Destination: "Helping Hand", Category: "dairy", Items: []string{"milk"}},
	})
	gt.NoError(t, err)
	gt.A(t, notifications).Length(2)
	gt.S(t, notifications[1].Message).Contains("Kroger has extra dairy")
}

func TestRunnerRun(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory(seedDatabase())
	sink := &mockSink{}
	runner := logistics.NewRunner(repo, logistics.WithSink(sink))

	outcome, err := runner.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, outcome.Assignments(), []*model.Assignment{
		{Origin: "Kroger", Destination: "Helping Hand", Category: "dairy", Items: []string{"milk"}},
	})
	gt.A(t, outcome.Notifications).Length(2)
	gt.A(t, sink.batches).Length(1)

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	kroger, _ := db.Locations.Get("Kroger")
	gt.Equal(t, kroger.SurplusMapping["dairy"], []string{"cheese"})

	// demand is satisfied, a second round finds nothing
	outcome, err = runner.Run(ctx)
	gt.NoError(t, err)
	gt.A(t, outcome.Assignments()).Length(0)
	gt.A(t, sink.batches).Length(1)
}
