package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/m-mizutani/gt"
)

func TestStateStreamAppendAfterUser(t *testing.T) {
	state := dashboard.NewState()
	state.AppendUser("hello")
	state.StreamAppend("A")
	state.StreamAppend("B")

	msgs := state.Messages()
	gt.A(t, msgs).Length(2)
	gt.Equal(t, msgs[1].Content, "AB")
	gt.Equal(t, msgs[1].Role, model.RoleAssistant)
}

func TestStateReadsAreCopies(t *testing.T) {
	state := dashboard.NewState()
	state.AppendAssistant("original")
	state.AppendAssignments([]*model.Assignment{{Origin: "a", Destination: "b", Items: []string{"x"}}})

	state.Messages()[0].Content = "mutated"
	state.Assignments()[0].Items[0] = "mutated"

	gt.Equal(t, state.Messages()[0].Content, "original")
	gt.Equal(t, state.Assignments()[0].Items[0], "x")
}

func TestStateNotificationMirror(t *testing.T) {
	state := dashboard.NewState(dashboard.WithNotificationMirror())
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	state.AppendNotification(&model.Notification{Recipient: "Kroger", Message: "pickup at 5", Timestamp: ts})
	state.AppendUser("thanks")

	msgs := state.Messages()
	gt.A(t, msgs).Length(2)
	gt.Equal(t, msgs[0].Role, model.RoleNotification)
	gt.Equal(t, msgs[0].Recipient, "Kroger")

	history := state.History()
	gt.A(t, history).Length(1)
	gt.Equal(t, history[0].Content, "thanks")
}

func TestStateUpdatesCoalesce(t *testing.T) {
	state := dashboard.NewState()
	for range 10 {
		state.StreamAppend("x")
	}

	select {
	case <-state.Updates():
	default:
		t.Fatal("expected pending update")
	}
	select {
	case <-state.Updates():
		t.Fatal("updates should coalesce into one signal")
	default:
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)

	state := dashboard.NewState()
	state.AppendUser("hello")
	state.AppendAssistant("hi there")
	state.AppendNotification(&model.Notification{Recipient: "Kroger", Message: "pickup"})
	state.AppendAssignments([]*model.Assignment{{Origin: "Kroger", Destination: "Helping Hand", Category: "dairy", Items: []string{"milk"}}})

	saved, err := dashboard.SaveTranscript(ctx, storage, "client-1", state)
	gt.NoError(t, err)

	loaded, err := dashboard.LoadTranscript(ctx, storage, saved.ID)
	gt.NoError(t, err)
	gt.Equal(t, loaded.ClientID, model.ClientID("client-1"))
	gt.A(t, loaded.Messages).Length(2)
	gt.A(t, loaded.Notifications).Length(1)
	gt.A(t, loaded.Assignments).Length(1)
	gt.Equal(t, loaded.Assignments[0].Items, []string{"milk"})
}

func TestLoadTranscriptMissing(t *testing.T) {
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)

	_, err = dashboard.LoadTranscript(context.Background(), storage, "nope")
	gt.Error(t, err)
}

func TestListTranscripts(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewFileStorage(t.TempDir())
	gt.NoError(t, err)

	var ids []model.TranscriptID
	for _, text := range []string{"first", "second", "third"} {
		state := dashboard.NewState()
		state.AppendUser(text)
		saved, err := dashboard.SaveTranscript(ctx, storage, "client-1", state)
		gt.NoError(t, err)
		ids = append(ids, saved.ID)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := dashboard.ListTranscripts(ctx, storage, 0, 0)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)
	gt.Equal(t, all[0].ID, ids[2])
	gt.Equal(t, all[2].ID, ids[0])

	page, err := dashboard.ListTranscripts(ctx, storage, 1, 1)
	gt.NoError(t, err)
	gt.A(t, page).Length(1)
	gt.Equal(t, page[0].Messages[0].Content, "second")

	empty, err := dashboard.ListTranscripts(ctx, storage, 5, 10)
	gt.NoError(t, err)
	gt.A(t, empty).Length(0)
}

func TestResolveRoute(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", model.Coordinates{Lat: 40.0, Lon: -75.0}, map[string][]string{"dairy": {"milk"}}, "dairy"),
		model.NewDemander("Helping Hand", model.Coordinates{Lat: 41.0, Lon: -75.0}, "dairy"),
	)}

	route, err := dashboard.ResolveRoute(db, &model.Assignment{Origin: "Kroger", Destination: "Helping Hand"})
	gt.NoError(t, err)
	gt.Equal(t, route.Origin.Name, "Kroger")
	gt.Equal(t, route.Destination.Name, "Helping Hand")
	// one degree of latitude is about 111 km
	gt.True(t, route.DistanceKm > 110 && route.DistanceKm < 112)

	_, err = dashboard.ResolveRoute(db, &model.Assignment{Origin: "Kroger", Destination: "Nowhere"})
	gt.Error(t, err)
}
