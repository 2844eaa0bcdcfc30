package stats

import (
	"github.com/foodlink/foodlink/pkg/model"
)

// Derive computes the headline figures of a location database. Each figure is the
// arg-max of a frequency table; ties go to the key seen first in document order, and
// an empty table yields "".
func Derive(db *model.Database) *model.Stats {
	var (
		missing = newTally()
		extra   = newTally()
		donors  = newTally()
	)
	if db == nil {
		return &model.Stats{}
	}

	for _, loc := range db.Locations.All() {
		switch loc.Kind {
		case model.LocationKindDemander:
			for _, category := range loc.Demand {
				missing.add(category, 1)
			}
		case model.LocationKindSupplier:
			items := loc.SurplusItems()
			for _, item := range items {
				extra.add(item, 1)
			}
			donors.add(loc.Name, len(items))
		}
	}

	return &model.Stats{
		MostCommonMissing: missing.max(),
		MostCommonExtra:   extra.max(),
		TopDonor:          donors.max(),
	}
}

// Impact summarises transfer records: how many transfers, how many items moved and
// the item count per category in order of first appearance
func Impact(assignments []*model.Assignment) *model.Impact {
	categories := newTally()
	impact := &model.Impact{}

	for _, a := range assignments {
		if a == nil {
			continue
		}
		impact.Transfers++
		impact.ItemsRedistributed += len(a.Items)

		name := a.Category
		if name == "" {
			name = "uncategorized"
		}
		categories.add(name, len(a.Items))
	}

	impact.Categories = make([]model.CategoryShare, 0, len(categories.keys))
	for _, k := range categories.keys {
		impact.Categories = append(impact.Categories, model.CategoryShare{Name: k, Value: categories.counts[k]})
	}
	return impact
}

// tally counts keys and remembers the order they first appeared in
type tally struct {
	keys   []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.counts[key] += n
}

func (t *tally) max() string {
	var (
		best  string
		count int
	)
	for i, k := range t.keys {
		if i == 0 || t.counts[k] > count {
			best, count = k, t.counts[k]
		}
	}
	return best
}
