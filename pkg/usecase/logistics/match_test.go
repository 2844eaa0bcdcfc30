package logistics_test

import (
	"context"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/m-mizutani/gt"
)

func at(lat, lon float64) model.Coordinates {
	return model.Coordinates{Lat: lat, Lon: lon}
}

func TestMatchNearestSupplierFirst(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Far Farm", at(10, 10), map[string][]string{"fruits": {"apple", "pear"}}, "fruits"),
		model.NewSupplier("Near Market", at(0.5, 0), map[string][]string{"fruits": {"banana"}}, "fruits"),
		model.NewDemander("Shelter", at(0, 0), "fruits", "fruits"),
	)}

	result, err := logistics.Match(context.Background(), db, nil)
	gt.NoError(t, err)
	gt.Equal(t, result.Assignments, []*model.Assignment{
		{Origin: "Near Market", Destination: "Shelter", Category: "fruits", Items: []string{"banana"}},
		{Origin: "Far Farm", Destination: "Shelter", Category: "fruits", Items: []string{"apple"}},
	})
	gt.Equal(t, result.RemainingSupplies, map[string]map[string][]string{
		"Far Farm": {"fruits": {"pear"}},
	})
	gt.Equal(t, len(result.RemainingDemands), 0)

	// Match does not modify its input
	loc, _ := db.Locations.Get("Near Market")
	gt.Equal(t, loc.SurplusMapping["fruits"], []string{"banana"})
}

func TestMatchNearestDemanderFirst(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", at(0, 0), map[string][]string{"dairy": {"milk"}}, "dairy"),
		model.NewDemander("Far Pantry", at(3, 3), "dairy"),
		model.NewDemander("Near Pantry", at(1, 0), "dairy"),
	)}

	result, err := logistics.Match(context.Background(), db, nil)
	gt.NoError(t, err)
	gt.A(t, result.Assignments).Length(1)
	gt.Equal(t, result.Assignments[0].Destination, "Near Pantry")
	gt.Equal(t, result.RemainingDemands, map[string][]string{"Far Pantry": {"dairy"}})
}

func TestMatchTieBreakByName(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", at(0, 0), map[string][]string{"dairy": {"milk"}}, "dairy"),
		model.NewDemander("Beta", at(1, 0), "dairy"),
		model.NewDemander("Alpha", at(-1, 0), "dairy"),
	)}

	result, err := logistics.Match(context.Background(), db, nil)
	gt.NoError(t, err)
	gt.A(t, result.Assignments).Length(1)
	gt.Equal(t, result.Assignments[0].Destination, "Alpha")
}

func TestMatchNoOverlap(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", at(0, 0), map[string][]string{"dairy": {"milk"}}, "dairy"),
		model.NewDemander("Shelter", at(1, 0), "meat"),
		&model.Location{Name: "Town Hall", Kind: model.LocationKindUnknown},
	)}

	result, err := logistics.Match(context.Background(), db, nil)
	gt.NoError(t, err)
	gt.A(t, result.Assignments).Length(0)
	gt.Equal(t, result.RemainingDemands, map[string][]string{"Shelter": {"meat"}})
	gt.Equal(t, result.RemainingSupplies, map[string]map[string][]string{"Kroger": {"dairy": {"milk"}}})
}

func TestApply(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", at(0, 0), map[string][]string{
			"dairy":  {"milk", "cheese"},
			"fruits": {"apple"},
		}, "dairy", "fruits"),
		model.NewDemander("Shelter", at(1, 0), "fruits", "dairy", "dairy", "dairy"),
	)}

	logistics.Apply(db, []*model.Assignment{
		{Origin: "Kroger", Destination: "Shelter", Category: "dairy", Items: []string{"milk", "cheese"}},
		{Origin: "Kroger", Destination: "Shelter", Category: "fruits", Items: []string{"apple"}},
	})

	kroger, _ := db.Locations.Get("Kroger")
	gt.Equal(t, len(kroger.SurplusMapping), 0)
	gt.Equal(t, len(kroger.Surplus), 0)
	gt.True(t, kroger.IsSupplier())

	shelter, _ := db.Locations.Get("Shelter")
	gt.Equal(t, shelter.Demand, []string{"dairy"})
}

func TestApplyPartial(t *testing.T) {
	db := &model.Database{Locations: *model.NewLocationSet(
		model.NewSupplier("Kroger", at(0, 0), map[string][]string{"dairy": {"milk", "cheese"}}, "dairy"),
		model.NewDemander("Shelter", at(1, 0), "dairy"),
	)}

	result, err := logistics.Match(context.Background(), db, nil)
	gt.NoError(t, err)
	logistics.Apply(db, result.Assignments)

	kroger, _ := db.Locations.Get("Kroger")
	gt.Equal(t, kroger.Surplus, []string{"dairy"})
	gt.Equal(t, kroger.SurplusMapping["dairy"], []string{"cheese"})

	shelter, _ := db.Locations.Get("Shelter")
	gt.Equal(t, len(shelter.Demand), 0)
}

func TestDistance(t *testing.T) {
	gt.Equal(t, logistics.Distance(at(0, 0), at(3, 4)), 5.0)
}
