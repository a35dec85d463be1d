package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"statshub/internal/config"
	"statshub/internal/model"
	"statshub/pkg/marketplace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoints() config.Endpoints {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	return cfg.Marketplace.Endpoints
}

func TestCatalogueOrder(t *testing.T) {
	c := NewCatalogue(testEndpoints())

	client, err := c.For(model.RoleClient)
	require.NoError(t, err)
	require.Len(t, client, 3)
	assert.Equal(t, SourceClientSummary, client[0].Name)
	assert.Equal(t, SourceClientJobs, client[1].Name)
	assert.Equal(t, SourceClientRequests, client[2].Name)

	inspector, err := c.For(model.RoleInspector)
	require.NoError(t, err)
	require.Len(t, inspector, 3)
	assert.Equal(t, SourceInspectorSummary, inspector[0].Name)
	assert.Equal(t, SourceInspectorBids, inspector[2].Name)

	_, err = c.For(model.Role("admin"))
	assert.ErrorIs(t, err, model.ErrInvalidRole)
}

func TestCatalogueAgainstBackend(t *testing.T) {
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/inspector/me/summary", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/inspector/jobs", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Write([]byte(`{"success": false, "message": "not allowed"}`))
	})
	mux.HandleFunc("/inspector/bids", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer inspector-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success": true, "data": {"bids": [{"_id": "b1", "status": "rejected"}, {"_id": "b2", "status": 2}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources, err := NewCatalogue(testEndpoints()).For(model.RoleInspector)
	require.NoError(t, err)

	fetcher := NewFetcher(marketplace.New(srv.URL, 5*time.Second), NewAggregator(nil), time.Second)
	summary := fetcher.Resolve(context.Background(), model.Session{Token: "inspector-token", Role: model.RoleInspector}, sources)

	assert.Equal(t, []string{"/inspector/me/summary", "/inspector/jobs", "/inspector/bids"}, seen)
	assert.Equal(t, model.Available, summary.Availability)
	assert.Equal(t, SourceInspectorBids, summary.Source)
	assert.Equal(t, 2, summary.WorkInProgress)
	assert.Equal(t, 2, summary.Applications)
	assert.Zero(t, summary.Rejected)
}

func TestClientJobsDataArrayHasNoApplications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/client/me/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/client/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": [
			{"id": "j1", "status": "completed"},
			{"id": "j2", "status": "completed"},
			{"id": "j3", "status": "rejected"},
			{"id": "j4", "status": 2},
			{"id": "j5", "status": "open"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources, err := NewCatalogue(testEndpoints()).For(model.RoleClient)
	require.NoError(t, err)

	fetcher := NewFetcher(marketplace.New(srv.URL, 5*time.Second), NewAggregator(nil), time.Second)
	summary := fetcher.Resolve(context.Background(), model.Session{Token: "client-token", UserID: "c1", Role: model.RoleClient}, sources)

	assert.Equal(t, SourceClientJobs, summary.Source)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Completed)
	assert.Zero(t, summary.Applications)
}

func TestInspectorJobsCountApplicationsFromBids(t *testing.T) {
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/inspector/me/summary", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Write([]byte(`{"success": true, "user": {"name": "x"}}`))
	})
	mux.HandleFunc("/inspector/jobs", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Write([]byte(`{"success": true, "data": [{"id": "j1", "status": "completed"}, {"id": "j2", "status": 6}]}`))
	})
	mux.HandleFunc("/inspector/bids", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Write([]byte(`{"success": true, "bids": [{"_id": "b1"}, {"_id": "b2"}, {"_id": "b3"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources, err := NewCatalogue(testEndpoints()).For(model.RoleInspector)
	require.NoError(t, err)

	fetcher := NewFetcher(marketplace.New(srv.URL, 5*time.Second), NewAggregator(nil), time.Second)
	summary := fetcher.Resolve(context.Background(), model.Session{Token: "inspector-token", Role: model.RoleInspector}, sources)

	assert.Equal(t, []string{"/inspector/me/summary", "/inspector/jobs", "/inspector/bids"}, seen)
	assert.Equal(t, SourceInspectorJobs, summary.Source)
	assert.Equal(t, model.BasisStatus, summary.WorkInProgressBasis)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.WorkInProgress)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 3, summary.Applications)
}
