package model

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// Assignment is a transfer of items in one category from a supplier (Origin) to a
// demander (Destination)
type Assignment struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Category    string   `json:"category"`
	Items       []string `json:"items"`
}

type assignmentObject Assignment

// UnmarshalJSON accepts both the object form and the tuple form
// [origin, destination, category, items].
func (a *Assignment) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return goerr.Wrap(err, "failed to decode assignment tuple")
		}
		if len(tuple) != 4 {
			return goerr.New("assignment tuple must have 4 elements", goerr.V("length", len(tuple)))
		}

		var out Assignment
		for i, dst := range []any{&out.Origin, &out.Destination, &out.Category, &out.Items} {
			if err := json.Unmarshal(tuple[i], dst); err != nil {
				return goerr.Wrap(err, "failed to decode assignment tuple element", goerr.V("index", i))
			}
		}
		*a = out
		return nil
	}

	var obj assignmentObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return goerr.Wrap(err, "failed to decode assignment")
	}
	*a = Assignment(obj)
	return nil
}

// Clone returns a deep copy of the assignment
func (a *Assignment) Clone() *Assignment {
	c := *a
	c.Items = slices.Clone(a.Items)
	return &c
}
