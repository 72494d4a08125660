package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusURI is the resource URI of the JSON status report.
const StatusURI = "offsearch://status"

func (s *Server) registerStatusResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         StatusURI,
			Description: "Offline mode, loaded indices and lane activity as JSON",
			MIMEType:    "application/json",
		},
		s.readStatusResource,
	)
}

func (s *Server) readStatusResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.indexStatus(IndexStatusInput{})
	if err != nil {
		return nil, MapError(err)
	}
	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      StatusURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
