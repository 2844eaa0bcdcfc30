package inventory_test

import (
	"context"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/tool/inventory"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func newTool(t *testing.T, db *model.Database) (*inventory.Tool, repository.Repository) {
	t.Helper()
	repo := repository.NewMemory(db)
	tl, err := inventory.New(repo)
	gt.NoError(t, err)
	return tl, repo
}

func call(args map[string]any) genai.FunctionCall {
	return genai.FunctionCall{Name: "save_items", Args: args}
}

func TestSpec(t *testing.T) {
	tl, _ := newTool(t, nil)
	spec := tl.Spec()
	gt.A(t, spec.FunctionDeclarations).Length(1)

	params := spec.FunctionDeclarations[0].Parameters
	gt.Equal(t, params.Properties["type"].Enum, []string{"supply", "demand"})
	gt.A(t, params.Properties["groups"].Items.Enum).Length(len(model.Categories))
	gt.S(t, tl.Prompt(context.Background())).Contains("baked goods")
}

func TestSaveSupplyCreatesSupplier(t *testing.T) {
	ctx := context.Background()
	tl, repo := newTool(t, nil)

	resp, err := tl.Execute(ctx, call(map[string]any{
		"location_name": "Corner Bakery",
		"type":          "supply",
		"groups":        []any{"baked goods"},
		"food_mapping":  map[string]any{"baked goods": []any{"bread", "bagel"}},
		"lat":           42.3,
		"lon":           -83.2,
	}))
	gt.NoError(t, err)
	gt.S(t, resp.Response["result"].(string)).Contains("Parsed supply data for Location Corner Bakery")

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	loc, ok := db.Locations.Get("Corner Bakery")
	gt.True(t, ok)
	gt.True(t, loc.IsSupplier())
	gt.Equal(t, loc.Surplus, []string{"baked goods"})
	gt.Equal(t, loc.SurplusMapping["baked goods"], []string{"bread", "bagel"})
	gt.Equal(t, loc.Data.Lat, 42.3)
}

func TestSaveDemandExtends(t *testing.T) {
	ctx := context.Background()
	tl, repo := newTool(t, &model.Database{Locations: *model.NewLocationSet(
		model.NewDemander("Shelter", model.Coordinates{}, "dairy"),
	)})

	_, err := tl.Execute(ctx, call(map[string]any{
		"location_name": "Shelter",
		"type":          "demand",
		"groups":        []any{"dairy", "meat"},
	}))
	gt.NoError(t, err)

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	loc, _ := db.Locations.Get("Shelter")
	gt.Equal(t, loc.Demand, []string{"dairy", "dairy", "meat"})
}

func TestSaveItemsValidation(t *testing.T) {
	testCases := map[string]struct {
		args map[string]any
		want string
	}{
		"invalid type": {
			args: map[string]any{"location_name": "A", "type": "gift", "groups": []any{"dairy"}},
			want: "Invalid type provided",
		},
		"supply without mapping": {
			args: map[string]any{"location_name": "A", "type": "supply", "groups": []any{"dairy"}},
			want: "food_mapping must be provided",
		},
		"demand with mapping": {
			args: map[string]any{"location_name": "A", "type": "demand", "groups": []any{"dairy"},
				"food_mapping": map[string]any{"dairy": []any{"milk"}}},
			want: "food_mapping should be empty",
		},
		"unknown category": {
			args: map[string]any{"location_name": "A", "type": "demand", "groups": []any{"candy"}},
			want: "allowed category",
		},
		"missing name": {
			args: map[string]any{"type": "demand", "groups": []any{"dairy"}},
			want: "location_name is required",
		},
		"bad mapping key": {
			args: map[string]any{"location_name": "A", "type": "supply", "groups": []any{"dairy"},
				"food_mapping": map[string]any{"snacks": []any{"chips"}}},
			want: "not an allowed category",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			tl, repo := newTool(t, nil)
			resp, err := tl.Execute(context.Background(), call(tc.args))
			gt.NoError(t, err)
			msg, ok := resp.Response["error"].(string)
			gt.True(t, ok)
			gt.S(t, msg).Contains(tc.want)

			db, err := repo.GetDatabase(context.Background())
			gt.NoError(t, err)
			gt.Equal(t, db.Locations.Len(), 0)
		})
	}
}

func TestSaveItemsKindConflict(t *testing.T) {
	ctx := context.Background()
	tl, repo := newTool(t, &model.Database{Locations: *model.NewLocationSet(
		model.NewDemander("Shelter", model.Coordinates{}, "dairy"),
	)})

	resp, err := tl.Execute(ctx, call(map[string]any{
		"location_name": "Shelter",
		"type":          "supply",
		"groups":        []any{"dairy"},
		"food_mapping":  map[string]any{"dairy": []any{"milk"}},
	}))
	gt.NoError(t, err)
	gt.S(t, resp.Response["error"].(string)).Contains("registered as a demand location")

	db, err := repo.GetDatabase(ctx)
	gt.NoError(t, err)
	loc, _ := db.Locations.Get("Shelter")
	gt.True(t, loc.IsDemander())
}
