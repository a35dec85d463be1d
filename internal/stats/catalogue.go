package stats

import (
	"net/http"

	"statshub/internal/config"
	"statshub/internal/model"
)

// Source names, also reported in StatsSummary.Source
const (
	SourceClientSummary    = "client_summary"
	SourceClientJobs       = "client_jobs"
	SourceClientRequests   = "client_requests"
	SourceInspectorSummary = "inspector_summary"
	SourceInspectorJobs    = "inspector_jobs"
	SourceInspectorBids    = "inspector_bids"
)

// Catalogue holds the prioritized source lists for both roles
type Catalogue struct {
	client    []Source
	inspector []Source
}

// NewCatalogue builds the source lists from configured endpoints
func NewCatalogue(e config.Endpoints) *Catalogue {
	inspectorBids := Source{
		Name:     SourceInspectorBids,
		Method:   http.MethodPost,
		Endpoint: e.InspectorBids,
		Adapt:    BidsAdapter("bids", "data"),
	}

	return &Catalogue{
		client: []Source{
			{
				Name:     SourceClientSummary,
				Method:   http.MethodGet,
				Endpoint: e.ClientSummary,
				Adapt:    PrecomputedAdapter,
			},
			{
				Name:     SourceClientJobs,
				Method:   http.MethodPost,
				Endpoint: e.ClientJobs,
				Adapt:    ListingAdapter([]string{"jobs", "data"}, []string{"applications", "bids"}),
			},
			{
				Name:     SourceClientRequests,
				Method:   http.MethodPost,
				Endpoint: e.ClientRequests,
				Adapt:    ListingAdapter([]string{"requests", "inspectionRequests", "data"}, nil),
			},
		},
		inspector: []Source{
			{
				Name:     SourceInspectorSummary,
				Method:   http.MethodGet,
				Endpoint: e.InspectorSummary,
				Adapt:    PrecomputedAdapter,
			},
			// bids placed live on their own endpoint
			{
				Name:             SourceInspectorJobs,
				Method:           http.MethodPost,
				Endpoint:         e.InspectorJobs,
				Adapt:            ListingAdapter([]string{"jobs", "data"}, []string{"bids", "applications"}),
				ApplicationsFrom: &inspectorBids,
			},
			inspectorBids,
		},
	}
}

// For returns the source list for a role
func (c *Catalogue) For(role model.Role) ([]Source, error) {
	switch role {
	case model.RoleClient:
		return c.client, nil
	case model.RoleInspector:
		return c.inspector, nil
	}
	return nil, model.ErrInvalidRole
}
