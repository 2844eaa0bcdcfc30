package dispatch_test

import (
	"context"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/tool"
	"github.com/foodlink/foodlink/pkg/tool/dispatch"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestMatchAndDispatch(t *testing.T) {
	repo := repository.NewMemory(&model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", model.Coordinates{Lat: 0, Lon: 0}, map[string][]string{"dairy": {"milk"}}, "dairy"),
		model.NewDemander("Shelter", model.Coordinates{Lat: 1, Lon: 0}, "dairy"),
	)})
	tl := dispatch.New(logistics.NewRunner(repo))
	gt.Equal(t, tl.Spec().FunctionDeclarations[0].Name, "match_and_dispatch")

	ctx, effects := tool.WithEffects(context.Background())
	resp, err := tl.Execute(ctx, genai.FunctionCall{Name: "match_and_dispatch"})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["notifications_sent"], any(2))

	gt.Equal(t, effects.Assignments(), []*model.Assignment{
		{Origin: "Kroger", Destination: "Shelter", Category: "dairy", Items: []string{"milk"}},
	})
	gt.A(t, effects.Notifications()).Length(2)

	resp, err = tl.Execute(ctx, genai.FunctionCall{Name: "match_and_dispatch"})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["result"], any("No assignments found."))
	gt.A(t, effects.Assignments()).Length(1)
}
