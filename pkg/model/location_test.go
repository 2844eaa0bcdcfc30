package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/gt"
	"gopkg.in/yaml.v3"
)

const dbJSON = `{
  "locations": {
    "Kroger": {
      "surplus": ["fruits", "dairy"],
      "surplus_mapping": {"fruits": ["strawberry", "apple"], "dairy": ["milk", "cheese"]},
      "data": {"lat": 42.315701, "lon": -83.192711, "address": "15255 Michigan Ave, Dearborn, MI 48126"}
    },
    "Helping Hand - Food Pantry": {
      "demand": [],
      "data": {"lat": 42.31295, "lon": -83.273697, "address": "24110 Cherry Hill St, Dearborn, MI 48128"}
    },
    "Cinnabon": {
      "surplus_mapping": {"grains": ["bread"]},
      "data": {"lat": 42.3167159, "lon": -83.2228552, "address": "18900 Michigan Ave G118, Dearborn, MI 48126"}
    },
    "Bakery B": {
      "data": {"lat": 42.65258, "lon": -73.756232, "address": "456 Country Rd, Albany, NY 12207"}
    }
  }
}`

func TestDatabaseUnmarshalJSON(t *testing.T) {
	var db model.Database
	gt.NoError(t, json.Unmarshal([]byte(dbJSON), &db))

	gt.Equal(t, db.Locations.Names(), []string{"Kroger", "Helping Hand - Food Pantry", "Cinnabon", "Bakery B"})

	kroger, ok := db.Locations.Get("Kroger")
	gt.True(t, ok)
	gt.Equal(t, kroger.Kind, model.LocationKindSupplier)
	gt.Equal(t, kroger.SurplusItems(), []string{"strawberry", "apple", "milk", "cheese"})
	gt.Equal(t, kroger.Data.Lat, 42.315701)

	pantry, _ := db.Locations.Get("Helping Hand - Food Pantry")
	gt.Equal(t, pantry.Kind, model.LocationKindDemander)
	gt.A(t, pantry.Demand).Length(0)

	cinnabon, _ := db.Locations.Get("Cinnabon")
	gt.Equal(t, cinnabon.Kind, model.LocationKindSupplier)
	gt.Equal(t, cinnabon.Surplus, []string{"grains"})

	bakery, _ := db.Locations.Get("Bakery B")
	gt.Equal(t, bakery.Kind, model.LocationKindUnknown)

	gt.A(t, db.Suppliers()).Length(2)
	gt.A(t, db.Demanders()).Length(1)
}

func TestDatabaseJSONKeepsOrder(t *testing.T) {
	var db model.Database
	gt.NoError(t, json.Unmarshal([]byte(dbJSON), &db))

	data, err := json.Marshal(&db)
	gt.NoError(t, err)

	var again model.Database
	gt.NoError(t, json.Unmarshal(data, &again))
	gt.Equal(t, again.Locations.Names(), db.Locations.Names())

	pantry, _ := again.Locations.Get("Helping Hand - Food Pantry")
	gt.Equal(t, pantry.Kind, model.LocationKindDemander)
}

func TestLocationAmbiguous(t *testing.T) {
	var db model.Database
	err := json.Unmarshal([]byte(`{"locations":{"X":{"surplus":["dairy"],"demand":["dairy"],"data":{"lat":0,"lon":0,"address":""}}}}`), &db)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrAmbiguousLocation))
}

func TestDatabaseUnmarshalYAML(t *testing.T) {
	src := `
locations:
  Zaman International:
    demand: [canned goods, dairy]
    data: {lat: 42.2922, lon: -83.2838, address: "26091 Trowbridge St, Inkster, MI 48141"}
  Kroger:
    surplus: [fruits]
    surplus_mapping:
      fruits: [bananas, apples]
    data: {lat: 42.3228, lon: -83.1785, address: "15255 Michigan Ave, Dearborn, MI 48126"}
`
	var db model.Database
	gt.NoError(t, yaml.Unmarshal([]byte(src), &db))
	gt.Equal(t, db.Locations.Names(), []string{"Zaman International", "Kroger"})

	zaman, _ := db.Locations.Get("Zaman International")
	gt.Equal(t, zaman.Demand, []string{"canned goods", "dairy"})

	out, err := yaml.Marshal(&db)
	gt.NoError(t, err)

	var again model.Database
	gt.NoError(t, yaml.Unmarshal(out, &again))
	gt.Equal(t, again.Locations.Names(), db.Locations.Names())
}

func TestLocationSetPutReplacesInPlace(t *testing.T) {
	set := model.NewLocationSet(
		model.NewDemander("A", model.Coordinates{}),
		model.NewDemander("B", model.Coordinates{}),
	)
	set.Put(model.NewSupplier("A", model.Coordinates{}, map[string][]string{"dairy": {"milk"}}))

	gt.Equal(t, set.Names(), []string{"A", "B"})
	a, _ := set.Get("A")
	gt.True(t, a.IsSupplier())
}

func TestDatabaseCloneIsDeep(t *testing.T) {
	var db model.Database
	gt.NoError(t, json.Unmarshal([]byte(dbJSON), &db))

	c := db.Clone()
	kroger, _ := c.Locations.Get("Kroger")
	kroger.SurplusMapping["fruits"][0] = "mango"

	orig, _ := db.Locations.Get("Kroger")
	gt.Equal(t, orig.SurplusMapping["fruits"][0], "strawberry")
}

func TestCategoryValidate(t *testing.T) {
	gt.NoError(t, model.CategoryBakedGoods.Validate())
	gt.True(t, errors.Is(model.Category("poultry").Validate(), model.ErrInvalidCategory))
}

func TestAssignmentUnmarshal(t *testing.T) {
	var items []*model.Assignment
	gt.NoError(t, json.Unmarshal([]byte(`[
		["Kroger", "Journey To Housing", "fruits", ["apple"]],
		{"origin": "A", "destination": "B", "category": "c", "items": ["x", "y"]}
	]`), &items))

	gt.A(t, items).Length(2)
	gt.Equal(t, items[0].Origin, "Kroger")
	gt.Equal(t, items[0].Destination, "Journey To Housing")
	gt.Equal(t, items[0].Items, []string{"apple"})
	gt.Equal(t, items[1].Category, "c")
	gt.Equal(t, items[1].Items, []string{"x", "y"})

	var bad model.Assignment
	gt.Error(t, json.Unmarshal([]byte(`["A", "B", "c"]`), &bad))
}

func TestSurplusCategoriesDeduplicatesAndAppendsMappingKeys(t *testing.T) {
	deli := model.NewSupplier("Deli", model.Coordinates{}, map[string][]string{
		"meat":   {"ham"},
		"dairy":  {"milk"},
		"grains": {"rice"},
	}, "dairy", "meat", "dairy")

	gt.Equal(t, deli.SurplusCategories(), []string{"dairy", "meat", "grains"})
	gt.Equal(t, deli.SurplusItems(), []string{"milk", "ham", "rice"})

	shelter := model.NewDemander("Shelter", model.Coordinates{}, "dairy")
	gt.A(t, shelter.SurplusCategories()).Length(0)
}
