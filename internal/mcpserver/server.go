// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes flare and known place tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flare/internal/flareservice"
	"github.com/starford/flare/internal/geo"
	"github.com/starford/flare/internal/models"
)

// MatchingRulesURI is the resource describing how flares are matched.
const MatchingRulesURI = "flare://matching-rules"

// Server wraps the MCP server with flare tools.
type Server struct {
	mcp *server.MCPServer
	svc *flareservice.Service
}

// New creates a new MCP server with all flare tools registered.
func New(svc *flareservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Flare",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_known_place",
		mcp.WithDescription("Find the known place a flare posted at the given coordinates would be associated with. "+
			"Read "+MatchingRulesURI+" for the matching rules."),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Latitude in degrees, -90..90")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Longitude in degrees, -180..180")),
	), s.findKnownPlace)

	s.mcp.AddTool(mcp.NewTool("nearby_known_places",
		mcp.WithDescription("List known places within a radius of a point, nearest first, "+
			"with the number of flares around each place."),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Latitude in degrees, -90..90")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Longitude in degrees, -180..180")),
		mcp.WithNumber("radius", mcp.Description("Radius in meters (defaults to the server setting)")),
	), s.nearbyKnownPlaces)

	s.mcp.AddTool(mcp.NewTool("list_known_places",
		mcp.WithDescription("List all registered known places."),
	), s.listKnownPlaces)

	s.mcp.AddTool(mcp.NewTool("list_flares",
		mcp.WithDescription("List flares, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of flares to return (0 for all)")),
	), s.listFlares)

	s.mcp.AddTool(mcp.NewTool("attach_flare_photo",
		mcp.WithDescription("Download an image (http/https URL or base64 data URI) and attach it to a flare, "+
			"replacing any previous photo. Supported types: png, jpeg, gif, webp; max 5 MiB."),
		mcp.WithString("flare_id", mcp.Required(), mcp.Description("ID of the flare")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data:image/...;base64,... URI")),
	), s.attachPhoto)

	s.mcp.AddResource(
		mcp.NewResource(MatchingRulesURI, "Matching Rules",
			mcp.WithResourceDescription("How flares are associated with known places and how nearby queries rank them."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMatchingRules,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type knownPlaceOut struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type nearbyOut struct {
	knownPlaceOut
	Distance   int64 `json:"distance"`
	FlareCount int   `json:"flare_count"`
}

func toKnownPlaceOut(kp models.KnownPlace) knownPlaceOut {
	return knownPlaceOut{ID: kp.ID, Name: kp.Name, Lat: kp.Location.Latitude, Lon: kp.Location.Longitude}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func requirePoint(req mcp.CallToolRequest) (geo.Point, error) {
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return geo.Point{}, err
	}
	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Latitude: lat, Longitude: lon}, nil
}

func (s *Server) findKnownPlace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	point, err := requirePoint(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kp, err := s.svc.FindKnownPlace(ctx, point)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if kp == nil {
		return mcp.NewToolResultText(fmt.Sprintf("no known place within %.0f m of %s",
			s.svc.Settings().MatchThreshold, point)), nil
	}
	return jsonResult(toKnownPlaceOut(*kp))
}

func (s *Server) nearbyKnownPlaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	point, err := requirePoint(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var radius *float64
	if _, ok := req.GetArguments()["radius"]; ok {
		r, err := req.RequireFloat("radius")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		radius = &r
	}

	results, err := s.svc.NearbyKnownPlaces(ctx, point, radius)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]nearbyOut, len(results))
	for i, r := range results {
		out[i] = nearbyOut{
			knownPlaceOut: toKnownPlaceOut(r.Place),
			Distance:      r.RoundedDistance(),
			FlareCount:    r.FlareCount,
		}
	}
	return jsonResult(out)
}

func (s *Server) listKnownPlaces(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	places, err := s.svc.ListKnownPlaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]knownPlaceOut, len(places))
	for i, kp := range places {
		out[i] = toKnownPlaceOut(kp)
	}
	return jsonResult(out)
}

func (s *Server) listFlares(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 0))
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}
	flares, err := s.svc.ListFlares(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit > 0 && len(flares) > limit {
		flares = flares[:limit]
	}
	return jsonResult(flares)
}

func (s *Server) readMatchingRules(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MatchingRulesURI,
			MIMEType: "text/markdown",
			Text:     MatchingRules(s.svc.Settings()),
		},
	}, nil
}
