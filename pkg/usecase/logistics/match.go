package logistics

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Proposal is a candidate transfer presented to a Filter before it is committed
type Proposal struct {
	Assignment  *model.Assignment
	Origin      *model.Location
	Destination *model.Location
	Distance    float64
}

// Filter decides whether a proposed transfer may be made
type Filter interface {
	Allow(ctx context.Context, p *Proposal) (bool, error)
}

// Result is the outcome of a matching run
type Result struct {
	Assignments []*model.Assignment
	// RemainingSupplies maps supplier name to the items left per category
	RemainingSupplies map[string]map[string][]string
	// RemainingDemands maps demander name to the categories still needed
	RemainingDemands map[string][]string
}

type candidate struct {
	distance float64
	demander string
	supplier string
	category string
}

func compareCandidates(a, b candidate) int {
	return cmp.Or(
		cmp.Compare(a.distance, b.distance),
		cmp.Compare(a.demander, b.demander),
		cmp.Compare(a.supplier, b.supplier),
		cmp.Compare(a.category, b.category),
	)
}

type supply struct {
	loc     *model.Location
	mapping map[string][]string
}

type demand struct {
	loc        *model.Location
	categories []string
	counts     map[string]int
}

// Match pairs demanders with suppliers by category, nearest first. Candidates are
// processed in ascending (distance, demander, supplier, category) order and each
// takes as many items as are both available and needed from the front of the
// supplier's list. db is not modified; use Apply to commit the result.
func Match(ctx context.Context, db *model.Database, filter Filter) (*Result, error) {
	if db == nil {
		return nil, goerr.New("database is required")
	}

	suppliers := make(map[string]*supply)
	var supplierNames []string
	for _, loc := range db.Suppliers() {
		mapping := make(map[string][]string, len(loc.SurplusMapping))
		for c, items := range loc.SurplusMapping {
			mapping[c] = slices.Clone(items)
		}
		suppliers[loc.Name] = &supply{loc: loc, mapping: mapping}
		supplierNames = append(supplierNames, loc.Name)
	}

	demanders := make(map[string]*demand)
	var demanderNames []string
	for _, loc := range db.Demanders() {
		d := &demand{loc: loc, counts: make(map[string]int)}
		for _, c := range loc.Demand {
			if d.counts[c] == 0 {
				d.categories = append(d.categories, c)
			}
			d.counts[c]++
		}
		demanders[loc.Name] = d
		demanderNames = append(demanderNames, loc.Name)
	}

	var candidates []candidate
	for _, dn := range demanderNames {
		d := demanders[dn]
		for _, c := range d.categories {
			for _, sn := range supplierNames {
				s := suppliers[sn]
				if _, ok := s.mapping[c]; !ok {
					continue
				}
				candidates = append(candidates, candidate{
					distance: Distance(d.loc.Data, s.loc.Data),
					demander: dn,
					supplier: sn,
					category: c,
				})
			}
		}
	}
	slices.SortFunc(candidates, compareCandidates)

	result := &Result{
		RemainingSupplies: make(map[string]map[string][]string),
		RemainingDemands:  make(map[string][]string),
	}

	for _, cand := range candidates {
		s, d := suppliers[cand.supplier], demanders[cand.demander]

		available := s.mapping[cand.category]
		needed := d.counts[cand.category]
		if len(available) == 0 || needed <= 0 {
			continue
		}

		n := min(len(available), needed)
		a := &model.Assignment{
			Origin:      cand.supplier,
			Destination: cand.demander,
			Category:    cand.category,
			Items:       slices.Clone(available[:n]),
		}

		if filter != nil {
			ok, err := filter.Allow(ctx, &Proposal{
				Assignment:  a,
				Origin:      s.loc,
				Destination: d.loc,
				Distance:    cand.distance,
			})
			if err != nil {
				return nil, goerr.Wrap(err, "failed to evaluate transfer filter",
					goerr.V("origin", a.Origin), goerr.V("destination", a.Destination))
			}
			if !ok {
				continue
			}
		}

		result.Assignments = append(result.Assignments, a)

		if rest := available[n:]; len(rest) > 0 {
			s.mapping[cand.category] = rest
		} else {
			delete(s.mapping, cand.category)
		}
		d.counts[cand.category] -= n
	}

	for _, sn := range supplierNames {
		if m := suppliers[sn].mapping; len(m) > 0 {
			result.RemainingSupplies[sn] = m
		}
	}
	for _, dn := range demanderNames {
		d := demanders[dn]
		var left []string
		for _, c := range d.categories {
			if d.counts[c] > 0 {
				left = append(left, c)
			}
		}
		if len(left) > 0 {
			result.RemainingDemands[dn] = left
		}
	}

	return result, nil
}

// Distance is the straight-line distance between two points in coordinate degrees.
// It is used only to rank candidates.
func Distance(a, b model.Coordinates) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// Apply commits assignments to db: assigned items leave the supplier's mapping, a
// category emptied of items leaves its surplus list, and each assigned item removes
// one unit of the category from the demander.
func Apply(db *model.Database, assignments []*model.Assignment) {
	for _, a := range assignments {
		if a == nil {
			continue
		}

		if origin, ok := db.Locations.Get(a.Origin); ok && origin.IsSupplier() {
			items := origin.SurplusMapping[a.Category]
			for _, item := range a.Items {
				if i := slices.Index(items, item); i >= 0 {
					items = slices.Delete(items, i, i+1)
				}
			}
			if len(items) > 0 {
				origin.SurplusMapping[a.Category] = items
			} else {
				delete(origin.SurplusMapping, a.Category)
				origin.Surplus = slices.DeleteFunc(origin.Surplus, func(c string) bool { return c == a.Category })
			}
		}

		if dest, ok := db.Locations.Get(a.Destination); ok && dest.IsDemander() {
			for range a.Items {
				i := slices.Index(dest.Demand, a.Category)
				if i < 0 {
					break
				}
				dest.Demand = slices.Delete(dest.Demand, i, i+1)
			}
		}
	}
}
