package model

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrAmbiguousLocation = goerr.New("location has both surplus and demand")
	ErrInvalidCategory   = goerr.New("invalid category")
)

type LocationKind string

const (
	LocationKindUnknown  LocationKind = "unknown"
	LocationKindSupplier LocationKind = "supplier"
	LocationKindDemander LocationKind = "demander"
)

type Category string

const (
	CategoryFruits     Category = "fruits"
	CategoryVegetables Category = "vegetables"
	CategoryGrains     Category = "grains"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategorySeafood    Category = "seafood"
	CategoryBakedGoods Category = "baked goods"
)

// Categories is the list of categories accepted by supply and demand intake
var Categories = []Category{
	CategoryFruits,
	CategoryVegetables,
	CategoryGrains,
	CategoryDairy,
	CategoryMeat,
	CategorySeafood,
	CategoryBakedGoods,
}

// Validate checks if the category is accepted by intake
func (c Category) Validate() error {
	if slices.Contains(Categories, c) {
		return nil
	}
	return goerr.Wrap(ErrInvalidCategory, "unknown category", goerr.V("category", c))
}

type Coordinates struct {
	Lat     float64 `json:"lat" yaml:"lat" firestore:"lat"`
	Lon     float64 `json:"lon" yaml:"lon" firestore:"lon"`
	Address string  `json:"address" yaml:"address" firestore:"address"`
}

// Location is a supplier, a demander or an unclassified place. Kind is decided once
// when the location is decoded or built and is never inferred again.
type Location struct {
	Name string
	Kind LocationKind
	Data Coordinates

	// Supplier only
	Surplus        []string
	SurplusMapping map[string][]string

	// Demander only. A category may appear several times, one entry per unit.
	Demand []string
}

// NewSupplier builds a supplier location
func NewSupplier(name string, data Coordinates, mapping map[string][]string, surplus ...string) *Location {
	if mapping == nil {
		mapping = map[string][]string{}
	}
	if len(surplus) == 0 {
		surplus = sortedKeys(mapping)
	}
	return &Location{
		Name:           name,
		Kind:           LocationKindSupplier,
		Data:           data,
		Surplus:        surplus,
		SurplusMapping: mapping,
	}
}

// NewDemander builds a demander location
func NewDemander(name string, data Coordinates, demand ...string) *Location {
	if demand == nil {
		demand = []string{}
	}
	return &Location{
		Name:   name,
		Kind:   LocationKindDemander,
		Data:   data,
		Demand: demand,
	}
}

func (l *Location) IsSupplier() bool { return l.Kind == LocationKindSupplier }
func (l *Location) IsDemander() bool { return l.Kind == LocationKindDemander }

// SurplusCategories returns the categories of a supplier in display order: the Surplus
// list first, then mapping keys that are not listed, sorted.
func (l *Location) SurplusCategories() []string {
	if !l.IsSupplier() {
		return nil
	}
	out := make([]string, 0, len(l.SurplusMapping))
	seen := make(map[string]bool, len(l.Surplus))
	for _, c := range l.Surplus {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, c := range sortedKeys(l.SurplusMapping) {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

// SurplusItems returns all surplus items of a supplier in category order
func (l *Location) SurplusItems() []string {
	var items []string
	for _, c := range l.SurplusCategories() {
		items = append(items, l.SurplusMapping[c]...)
	}
	return items
}

// Clone returns a deep copy of the location
func (l *Location) Clone() *Location {
	c := *l
	c.Surplus = slices.Clone(l.Surplus)
	c.Demand = slices.Clone(l.Demand)
	if l.SurplusMapping != nil {
		c.SurplusMapping = make(map[string][]string, len(l.SurplusMapping))
		for k, v := range l.SurplusMapping {
			c.SurplusMapping[k] = slices.Clone(v)
		}
	}
	return &c
}

// locationEntry is the wire form of a location. Pointers keep "present but empty"
// apart from "absent", which decides the kind.
type locationEntry struct {
	Surplus        *[]string            `json:"surplus,omitempty" yaml:"surplus,omitempty"`
	SurplusMapping *map[string][]string `json:"surplus_mapping,omitempty" yaml:"surplus_mapping,omitempty"`
	Demand         *[]string            `json:"demand,omitempty" yaml:"demand,omitempty"`
	Data           Coordinates          `json:"data" yaml:"data"`
}

func (e *locationEntry) toLocation(name string) (*Location, error) {
	hasSupply := e.Surplus != nil || e.SurplusMapping != nil
	hasDemand := e.Demand != nil

	switch {
	case hasSupply && hasDemand:
		return nil, goerr.Wrap(ErrAmbiguousLocation, "cannot classify location", goerr.V("name", name))

	case hasSupply:
		var mapping map[string][]string
		if e.SurplusMapping != nil {
			mapping = *e.SurplusMapping
		}
		var surplus []string
		if e.Surplus != nil {
			surplus = *e.Surplus
		}
		if mapping == nil {
			mapping = map[string][]string{}
		}
		if surplus == nil {
			surplus = sortedKeys(mapping)
		}
		return &Location{
			Name:           name,
			Kind:           LocationKindSupplier,
			Data:           e.Data,
			Surplus:        surplus,
			SurplusMapping: mapping,
		}, nil

	case hasDemand:
		return NewDemander(name, e.Data, *e.Demand...), nil

	default:
		return &Location{Name: name, Kind: LocationKindUnknown, Data: e.Data}, nil
	}
}

func newLocationEntry(l *Location) *locationEntry {
	e := &locationEntry{Data: l.Data}
	switch l.Kind {
	case LocationKindSupplier:
		surplus := l.Surplus
		if surplus == nil {
			surplus = []string{}
		}
		mapping := l.SurplusMapping
		if mapping == nil {
			mapping = map[string][]string{}
		}
		e.Surplus = &surplus
		e.SurplusMapping = &mapping
	case LocationKindDemander:
		demand := l.Demand
		if demand == nil {
			demand = []string{}
		}
		e.Demand = &demand
	}
	return e
}

// MarshalJSON encodes the location without its name, which is the key in LocationSet
func (l *Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(newLocationEntry(l))
}

// LocationSet is an insertion-ordered collection of locations keyed by name
type LocationSet struct {
	items []*Location
	index map[string]int
}

// NewLocationSet builds a set from locations in the given order. A later location with
// the same name replaces the earlier one in place.
func NewLocationSet(locations ...*Location) *LocationSet {
	s := &LocationSet{}
	for _, loc := range locations {
		s.Put(loc)
	}
	return s
}

func (s *LocationSet) Len() int { return len(s.items) }

// All returns the locations in insertion order
func (s *LocationSet) All() []*Location {
	return slices.Clone(s.items)
}

// Names returns the location names in insertion order
func (s *LocationSet) Names() []string {
	names := make([]string, len(s.items))
	for i, l := range s.items {
		names[i] = l.Name
	}
	return names
}

func (s *LocationSet) Get(name string) (*Location, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.items[i], true
}

// Put appends a location or replaces the one with the same name, keeping its position
func (s *LocationSet) Put(loc *Location) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[loc.Name]; ok {
		s.items[i] = loc
		return
	}
	s.index[loc.Name] = len(s.items)
	s.items = append(s.items, loc)
}

// Clone returns a deep copy of the set
func (s *LocationSet) Clone() *LocationSet {
	out := &LocationSet{}
	for _, l := range s.items {
		out.Put(l.Clone())
	}
	return out
}

func (s LocationSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range s.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(l.Name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode location name")
		}
		value, err := json.Marshal(newLocationEntry(l))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode location", goerr.V("name", l.Name))
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *LocationSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return goerr.Wrap(err, "failed to read locations")
	}
	if tok == nil {
		*s = LocationSet{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return goerr.New("locations must be an object", goerr.V("token", tok))
	}

	out := LocationSet{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return goerr.Wrap(err, "failed to read location name")
		}
		name, ok := keyTok.(string)
		if !ok {
			return goerr.New("location name must be a string", goerr.V("token", keyTok))
		}

		var entry locationEntry
		if err := dec.Decode(&entry); err != nil {
			return goerr.Wrap(err, "failed to decode location", goerr.V("name", name))
		}
		loc, err := entry.toLocation(name)
		if err != nil {
			return err
		}
		out.Put(loc)
	}
	if _, err := dec.Token(); err != nil {
		return goerr.Wrap(err, "failed to read end of locations")
	}

	*s = out
	return nil
}

func (s *LocationSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*s = LocationSet{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return goerr.New("locations must be a mapping", goerr.V("line", node.Line))
	}

	out := LocationSet{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var entry locationEntry
		if err := node.Content[i+1].Decode(&entry); err != nil {
			return goerr.Wrap(err, "failed to decode location", goerr.V("name", name))
		}
		loc, err := entry.toLocation(name)
		if err != nil {
			return err
		}
		out.Put(loc)
	}

	*s = out
	return nil
}

func (s LocationSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, l := range s.items {
		var value yaml.Node
		if err := value.Encode(newLocationEntry(l)); err != nil {
			return nil, goerr.Wrap(err, "failed to encode location", goerr.V("name", l.Name))
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: l.Name},
			&value,
		)
	}
	return node, nil
}

// Database is the full location document exchanged by get_db / db_response
type Database struct {
	Locations LocationSet `json:"locations" yaml:"locations"`
}

// Clone returns a deep copy of the database
func (db *Database) Clone() *Database {
	if db == nil {
		return &Database{}
	}
	return &Database{Locations: *db.Locations.Clone()}
}

// Suppliers returns supplier locations in document order
func (db *Database) Suppliers() []*Location {
	return db.filter(LocationKindSupplier)
}

// Demanders returns demander locations in document order
func (db *Database) Demanders() []*Location {
	return db.filter(LocationKindDemander)
}

func (db *Database) filter(kind LocationKind) []*Location {
	var out []*Location
	for _, l := range db.Locations.items {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := slices.Collect(maps.Keys(m))
	sort.Strings(keys)
	return keys
}
