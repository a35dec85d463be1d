package stats

import (
	"encoding/json"
	"testing"

	"statshub/internal/model"
	"statshub/pkg/marketplace"

	"github.com/stretchr/testify/assert"
)

func TestAggregateEmpty(t *testing.T) {
	summary := NewAggregator(nil).Aggregate(nil, 0)

	assert.Zero(t, summary.Completed)
	assert.Zero(t, summary.Rejected)
	assert.Zero(t, summary.WorkInProgress)
	assert.Zero(t, summary.Pending)
	assert.Zero(t, summary.Unclassified)
	assert.Zero(t, summary.Total)
}

func TestAggregateMixed(t *testing.T) {
	records := []model.Record{
		{ID: "1", Status: "completed"},
		{ID: "2", Status: "rejected"},
		{ID: "3", Status: json.Number("0")},
	}

	summary := NewAggregator(nil).Aggregate(records, 0)

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.WorkInProgress)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, model.BasisStatus, summary.WorkInProgressBasis)
}

func TestAggregateUnclassifiedOnlyCountsTowardsTotal(t *testing.T) {
	records := []model.Record{
		{ID: "1", Status: "xyz"},
		{ID: "2", Status: nil},
		{ID: "3", Status: "finished"},
	}

	summary := NewAggregator(nil).Aggregate(records, 4)

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.Unclassified)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 4, summary.Applications)
	assert.LessOrEqual(t, summary.Classified(), summary.Total)
}

func TestAggregateSeparatePending(t *testing.T) {
	records := []model.Record{
		{Status: "pending"},
		{Status: "active"},
		{Status: 1},
	}

	summary := NewAggregator(StatusClassifier{SeparatePending: true}).Aggregate(records, 0)

	assert.Equal(t, 2, summary.Pending)
	assert.Equal(t, 1, summary.WorkInProgress)
}

func TestAggregateIsIdempotent(t *testing.T) {
	records := []model.Record{
		{Status: "completed"}, {Status: 3}, {Status: "open"}, {Status: "?"},
	}
	a := NewAggregator(nil)

	assert.Equal(t, a.Aggregate(records, 2), a.Aggregate(records, 2))
}

func TestAggregateNegativeApplications(t *testing.T) {
	assert.Zero(t, NewAggregator(nil).Aggregate(nil, -3).Applications)
}

func TestAggregateBids(t *testing.T) {
	bids := []model.Record{{Status: "rejected"}, {Status: "completed"}, {Status: "xyz"}}

	summary := NewAggregator(nil).AggregateBids(bids)

	assert.Equal(t, 3, summary.WorkInProgress)
	assert.Equal(t, 3, summary.Applications)
	assert.Zero(t, summary.Rejected)
	assert.Zero(t, summary.Completed)
	assert.Equal(t, model.BasisBids, summary.WorkInProgressBasis)
}

func TestFromCounts(t *testing.T) {
	summary := FromCounts(marketplace.Counts{Completed: 5, Accepted: 2, Rejected: 1, Applied: 7})

	assert.Equal(t, 5, summary.Completed)
	assert.Equal(t, 2, summary.WorkInProgress)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 7, summary.Applications)
	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, model.BasisPrecomputed, summary.WorkInProgressBasis)
}
