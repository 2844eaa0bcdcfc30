package dashboard

import (
	"math"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var ErrUnknownLocation = goerr.New("location not found")

const earthRadiusKm = 6371.0

// Route is an assignment resolved against the location database
type Route struct {
	Assignment  *model.Assignment
	Origin      *model.Location
	Destination *model.Location
	DistanceKm  float64
}

// ResolveRoute looks up both ends of an assignment and computes the great-circle
// distance between them
func ResolveRoute(db *model.Database, a *model.Assignment) (*Route, error) {
	if db == nil || a == nil {
		return nil, goerr.New("database and assignment are required")
	}

	origin, ok := db.Locations.Get(a.Origin)
	if !ok {
		return nil, goerr.Wrap(ErrUnknownLocation, "origin is not in database", goerr.V("name", a.Origin))
	}
	destination, ok := db.Locations.Get(a.Destination)
	if !ok {
		return nil, goerr.Wrap(ErrUnknownLocation, "destination is not in database", goerr.V("name", a.Destination))
	}

	return &Route{
		Assignment:  a.Clone(),
		Origin:      origin,
		Destination: destination,
		DistanceKm:  haversine(origin.Data, destination.Data),
	}, nil
}

func haversine(a, b model.Coordinates) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(b.Lat - a.Lat)
	dLon := rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
