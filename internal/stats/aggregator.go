package stats

import (
	"statshub/internal/model"
	"statshub/pkg/marketplace"

	"github.com/rs/zerolog/log"
)

// Aggregator folds classified records into a StatsSummary
type Aggregator struct {
	classifier Classifier
}

// NewAggregator creates an aggregator backed by the given classifier
func NewAggregator(classifier Classifier) *Aggregator {
	if classifier == nil {
		classifier = StatusClassifier{}
	}
	return &Aggregator{classifier: classifier}
}

// Aggregate classifies every record and counts it into its bucket.
// Unclassified records only count towards Total and Unclassified.
// applications is reported as-is; it usually comes from a separate bids listing.
func (a *Aggregator) Aggregate(records []model.Record, applications int) model.StatsSummary {
	summary := model.StatsSummary{
		Applications:        max(applications, 0),
		Total:               len(records),
		WorkInProgressBasis: model.BasisStatus,
	}

	for _, record := range records {
		switch a.classifier.Classify(record.Status) {
		case model.CategoryCompleted:
			summary.Completed++
		case model.CategoryRejected:
			summary.Rejected++
		case model.CategoryWorkInProgress:
			summary.WorkInProgress++
		case model.CategoryPending:
			summary.Pending++
		default:
			summary.Unclassified++
			log.Debug().
				Str("record_id", record.ID).
				Interface("status", record.Status).
				Msg("Unclassified record status")
		}
	}

	return summary
}

// AggregateBids handles the bids-only path: every bid counts as work in
// progress and as an application, without looking at its status.
func (a *Aggregator) AggregateBids(bids []model.Record) model.StatsSummary {
	return model.StatsSummary{
		WorkInProgress:      len(bids),
		Applications:        len(bids),
		Total:               len(bids),
		WorkInProgressBasis: model.BasisBids,
	}
}

// FromCounts turns precomputed backend counts into a summary.
// Accepted jobs are the ones being worked on.
func FromCounts(c marketplace.Counts) model.StatsSummary {
	return model.StatsSummary{
		Completed:           c.Completed,
		Rejected:            c.Rejected,
		WorkInProgress:      c.Accepted,
		Applications:        c.Applied,
		Total:               c.Completed + c.Rejected + c.Accepted,
		WorkInProgressBasis: model.BasisPrecomputed,
	}
}
