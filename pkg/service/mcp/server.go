package mcp

import (
	"context"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/foodlink/foodlink/pkg/usecase/stats"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "foodlink"
	serverVersion = "0.1.0"
)

// Server exposes the location database to MCP clients
type Server struct {
	repo   repository.Repository
	server *mcp.Server
}

type listLocationsInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"Optional filter: supplier, demander or unknown"`
}

type locationSummary struct {
	Name    string              `json:"name"`
	Kind    string              `json:"kind"`
	Lat     float64             `json:"lat"`
	Lon     float64             `json:"lon"`
	Address string              `json:"address"`
	Surplus map[string][]string `json:"surplus"`
	Demand  []string            `json:"demand"`
}

type listLocationsOutput struct {
	Locations []locationSummary `json:"locations"`
}

type getStatsInput struct{}

type getStatsOutput struct {
	MostCommonMissing string `json:"most_common_missing"`
	MostCommonExtra   string `json:"most_common_extra"`
	TopDonor          string `json:"top_donor"`
	Suppliers         int    `json:"suppliers"`
	Demanders         int    `json:"demanders"`
}

type previewMatchesInput struct{}

type transfer struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Category    string   `json:"category"`
	Items       []string `json:"items"`
}

type previewMatchesOutput struct {
	Transfers        []transfer          `json:"transfers"`
	RemainingDemands map[string][]string `json:"remaining_demands"`
}

// New creates an MCP server with the read-only location tools registered
func New(repo repository.Repository, filter logistics.Filter) *Server {
	s := &Server{
		repo: repo,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_locations",
		Description: "List known suppliers and demanders with their coordinates, surplus and demand",
	}, s.listLocations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Get the most common missing category, the most common extra item and the top donor",
	}, s.getStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "preview_matches",
		Description: "Show the transfers the matcher would assign now without committing them",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in previewMatchesInput) (*mcp.CallToolResult, previewMatchesOutput, error) {
		return s.previewMatches(ctx, filter)
	})

	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	logging.From(ctx).Info("starting MCP server", "name", serverName)
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

// Connect attaches the server to an arbitrary transport
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	ss, err := s.server.Connect(ctx, t, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect MCP server")
	}
	return ss, nil
}

func (s *Server) listLocations(ctx context.Context, req *mcp.CallToolRequest, in listLocationsInput) (*mcp.CallToolResult, listLocationsOutput, error) {
	out := listLocationsOutput{Locations: []locationSummary{}}

	switch model.LocationKind(in.Kind) {
	case "", model.LocationKindSupplier, model.LocationKindDemander, model.LocationKindUnknown:
	default:
		return nil, out, goerr.New("invalid location kind", goerr.V("kind", in.Kind))
	}

	db, err := s.repo.GetDatabase(ctx)
	if err != nil {
		return nil, out, goerr.Wrap(err, "failed to get database")
	}

	for _, l := range db.Locations.All() {
		if in.Kind != "" && string(l.Kind) != in.Kind {
			continue
		}
		out.Locations = append(out.Locations, summarize(l))
	}

	return nil, out, nil
}

func summarize(l *model.Location) locationSummary {
	summary := locationSummary{
		Name:    l.Name,
		Kind:    string(l.Kind),
		Lat:     l.Data.Lat,
		Lon:     l.Data.Lon,
		Address: l.Data.Address,
		Surplus: map[string][]string{},
		Demand:  []string{},
	}
	for _, category := range l.SurplusCategories() {
		items := l.SurplusMapping[category]
		if items == nil {
			items = []string{}
		}
		summary.Surplus[category] = items
	}
	summary.Demand = append(summary.Demand, l.Demand...)
	return summary
}

func (s *Server) getStats(ctx context.Context, req *mcp.CallToolRequest, in getStatsInput) (*mcp.CallToolResult, getStatsOutput, error) {
	db, err := s.repo.GetDatabase(ctx)
	if err != nil {
		return nil, getStatsOutput{}, goerr.Wrap(err, "failed to get database")
	}

	st := stats.Derive(db)
	return nil, getStatsOutput{
		MostCommonMissing: st.MostCommonMissing,
		MostCommonExtra:   st.MostCommonExtra,
		TopDonor:          st.TopDonor,
		Suppliers:         len(db.Suppliers()),
		Demanders:         len(db.Demanders()),
	}, nil
}

func (s *Server) previewMatches(ctx context.Context, filter logistics.Filter) (*mcp.CallToolResult, previewMatchesOutput, error) {
	out := previewMatchesOutput{
		Transfers:        []transfer{},
		RemainingDemands: map[string][]string{},
	}

	db, err := s.repo.GetDatabase(ctx)
	if err != nil {
		return nil, out, goerr.Wrap(err, "failed to get database")
	}

	result, err := logistics.Match(ctx, db, filter)
	if err != nil {
		return nil, out, goerr.Wrap(err, "failed to match locations")
	}

	for _, a := range result.Assignments {
		items := append([]string{}, a.Items...)
		out.Transfers = append(out.Transfers, transfer{
			Origin:      a.Origin,
			Destination: a.Destination,
			Category:    a.Category,
			Items:       items,
		})
	}
	for name, demand := range result.RemainingDemands {
		out.RemainingDemands[name] = append([]string{}, demand...)
	}

	return nil, out, nil
}
