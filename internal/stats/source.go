package stats

import (
	"encoding/json"
	"fmt"
	"net/http"

	"statshub/internal/model"
	"statshub/pkg/marketplace"
)

// OutcomeKind tells the fetcher how to turn an Outcome into a summary
type OutcomeKind int

const (
	OutcomePrecomputed OutcomeKind = iota
	OutcomeListing
	OutcomeBids
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePrecomputed:
		return "precomputed"
	case OutcomeListing:
		return "listing"
	case OutcomeBids:
		return "bids"
	}
	return "unknown"
}

// Outcome is what an adapter extracted from one response
type Outcome struct {
	Kind              OutcomeKind
	Counts            marketplace.Counts
	Records           []model.Record
	Applications      int
	ApplicationsFound bool
}

// Adapter understands the response shape of one endpoint
type Adapter func(env *marketplace.Envelope) (Outcome, error)

// Source describes one candidate endpoint in a prioritized list.
// ApplicationsFrom, when set, is queried after a successful listing that
// carried no applications array of its own; its record count becomes
// Applications.
type Source struct {
	Name             string
	Method           string
	Endpoint         string
	Adapt            Adapter
	ApplicationsFrom *Source
}

// PrecomputedAdapter reads count fields from a per-user summary response
func PrecomputedAdapter(env *marketplace.Envelope) (Outcome, error) {
	counts, ok := env.Counts()
	if !ok {
		return Outcome{}, fmt.Errorf("response has no precomputed counts")
	}
	return Outcome{Kind: OutcomePrecomputed, Counts: counts}, nil
}

// ListingAdapter reads a status-bearing record array under one of keys.
// applicationKeys optionally name a second array whose length is reported
// as the applications count. That lookup never falls back to a bare "data"
// array, which holds the listing itself.
func ListingAdapter(keys []string, applicationKeys []string) Adapter {
	return func(env *marketplace.Envelope) (Outcome, error) {
		records, err := decodeRecords(env, keys)
		if err != nil {
			return Outcome{}, err
		}

		outcome := Outcome{Kind: OutcomeListing, Records: records}
		if len(applicationKeys) > 0 {
			if raw, _, ok := env.StrictArray(applicationKeys...); ok {
				var apps []json.RawMessage
				if json.Unmarshal(raw, &apps) == nil {
					outcome.Applications = len(apps)
					outcome.ApplicationsFound = true
				}
			}
		}

		return outcome, nil
	}
}

// BidsAdapter reads a bids array; bids are counted, not classified
func BidsAdapter(keys ...string) Adapter {
	return func(env *marketplace.Envelope) (Outcome, error) {
		records, err := decodeRecords(env, keys)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeBids, Records: records}, nil
	}
}

func decodeRecords(env *marketplace.Envelope, keys []string) ([]model.Record, error) {
	raw, key, ok := env.Array(keys...)
	if !ok {
		return nil, fmt.Errorf("response has no array under %v", keys)
	}

	var records []model.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", key, err)
	}
	return records, nil
}

// method defaults to GET
func (s Source) method() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return s.Method
}
