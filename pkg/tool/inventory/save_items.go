package inventory

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/tool"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt.md
var promptRaw string

const (
	typeSupply = "supply"
	typeDemand = "demand"
)

type saveItemsInput struct {
	LocationName string              `json:"location_name" jsonschema:"The name of the location sending the surplus or demand"`
	Type         string              `json:"type" jsonschema:"Either supply for surplus or demand for a shortage"`
	Groups       []string            `json:"groups" jsonschema:"Item categories, not item names"`
	FoodMapping  map[string][]string `json:"food_mapping,omitempty" jsonschema:"Category to item names. Required for supply and empty for demand"`
	Address      string              `json:"address,omitempty" jsonschema:"Street address of a new location"`
	Lat          float64             `json:"lat,omitempty" jsonschema:"Latitude of a new location"`
	Lon          float64             `json:"lon,omitempty" jsonschema:"Longitude of a new location"`
}

// Tool records surplus and demand reported in conversation
type Tool struct {
	repo repository.Repository
	spec *genai.Tool
}

var _ tool.Tool = (*Tool)(nil)

// New creates the save_items tool
func New(repo repository.Repository) (*Tool, error) {
	params, err := tool.InferSchema[saveItemsInput]()
	if err != nil {
		return nil, err
	}
	if p, ok := params.Properties["type"]; ok {
		p.Enum = []string{typeSupply, typeDemand}
	}
	if p, ok := params.Properties["groups"]; ok && p.Items != nil {
		p.Items.Enum = categoryNames()
	}

	return &Tool{
		repo: repo,
		spec: &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        "save_items",
					Description: "Save surplus or demand data for a location in the food sharing network",
					Parameters:  params,
				},
			},
		},
	}, nil
}

func categoryNames() []string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return names
}

// Spec returns the Gemini function declaration of the tool
func (t *Tool) Spec() *genai.Tool { return t.spec }

// Prompt explains how to categorize reported items
func (t *Tool) Prompt(ctx context.Context) string {
	tmpl, err := template.New("inventory").Parse(promptRaw)
	if err != nil {
		return promptRaw
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"Categories": strings.Join(categoryNames(), ", ")}); err != nil {
		return promptRaw
	}
	return buf.String()
}

// Execute validates the reported items and merges them into the location database.
// Validation problems are returned to the model as an error message so it can retry.
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	var input saveItemsInput
	raw, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal arguments")
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return errorResponse(fc.Name, "arguments do not match the schema: "+err.Error()), nil
	}

	if msg := input.validate(); msg != "" {
		return errorResponse(fc.Name, msg), nil
	}

	var conflict string
	_, err = repository.Update(ctx, t.repo, func(db *model.Database) error {
		conflict = input.merge(db)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save items", goerr.V("location", input.LocationName))
	}
	if conflict != "" {
		return errorResponse(fc.Name, conflict), nil
	}

	logging.From(ctx).Info("items saved",
		"location", input.LocationName,
		"type", input.Type,
		"groups", input.Groups,
	)

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"result": fmt.Sprintf("Parsed %s data for Location %s: %s", input.Type, input.LocationName, strings.Join(input.Groups, ", ")),
		},
	}, nil
}

func errorResponse(name, msg string) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		Name:     name,
		Response: map[string]any{"error": msg},
	}
}

func (x *saveItemsInput) validate() string {
	if strings.TrimSpace(x.LocationName) == "" {
		return "location_name is required."
	}

	switch x.Type {
	case typeSupply:
		if len(x.FoodMapping) == 0 {
			return "food_mapping must be provided for type 'supply'."
		}
	case typeDemand:
		if len(x.FoodMapping) > 0 {
			return "food_mapping should be empty for type 'demand'."
		}
	default:
		return "Invalid type provided. Must be either 'supply' or 'demand'."
	}

	if len(x.Groups) == 0 {
		return "Groups must be a list of allowed category strings."
	}
	for _, g := range x.Groups {
		if err := model.Category(g).Validate(); err != nil {
			return "Groups must be a list of allowed category strings."
		}
	}
	for c := range x.FoodMapping {
		if err := model.Category(c).Validate(); err != nil {
			return fmt.Sprintf("food_mapping key %q is not an allowed category.", c)
		}
	}
	return ""
}

// merge applies the input to db and returns a message when the location already
// exists with the other kind
func (x *saveItemsInput) merge(db *model.Database) string {
	loc, ok := db.Locations.Get(x.LocationName)
	if !ok {
		data := model.Coordinates{Lat: x.Lat, Lon: x.Lon, Address: x.Address}
		if x.Type == typeSupply {
			loc = model.NewSupplier(x.LocationName, data, nil)
		} else {
			loc = model.NewDemander(x.LocationName, data)
		}
		db.Locations.Put(loc)
	}

	switch x.Type {
	case typeSupply:
		switch loc.Kind {
		case model.LocationKindDemander:
			return fmt.Sprintf("%s is registered as a demand location and cannot report surplus.", x.LocationName)
		case model.LocationKindUnknown:
			loc.Kind = model.LocationKindSupplier
		}
		if loc.SurplusMapping == nil {
			loc.SurplusMapping = map[string][]string{}
		}
		for _, g := range x.Groups {
			if !slices.Contains(loc.Surplus, g) {
				loc.Surplus = append(loc.Surplus, g)
			}
		}
		for c, items := range x.FoodMapping {
			loc.SurplusMapping[c] = slices.Clone(items)
			if !slices.Contains(loc.Surplus, c) {
				loc.Surplus = append(loc.Surplus, c)
			}
		}

	case typeDemand:
		switch loc.Kind {
		case model.LocationKindSupplier:
			return fmt.Sprintf("%s is registered as a surplus location and cannot report demand.", x.LocationName)
		case model.LocationKindUnknown:
			loc.Kind = model.LocationKindDemander
		}
		loc.Demand = append(loc.Demand, x.Groups...)
	}
	return ""
}
