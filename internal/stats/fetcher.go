package stats

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"statshub/internal/model"
	"statshub/pkg/marketplace"

	"github.com/rs/zerolog/log"
)

// Requester is the slice of the marketplace client the fetcher needs
type Requester interface {
	Get(ctx context.Context, token, endpoint string) ([]byte, error)
	Post(ctx context.Context, token, endpoint string, payload any) ([]byte, error)
}

// Fetcher walks a prioritized source list and resolves a summary.
// Sources are tried one at a time; the first success wins.
type Fetcher struct {
	requester     Requester
	aggregator    *Aggregator
	sourceTimeout time.Duration
	now           func() time.Time
}

// NewFetcher creates a fetcher. A zero sourceTimeout leaves timing to the
// caller's context and the HTTP client.
func NewFetcher(requester Requester, aggregator *Aggregator, sourceTimeout time.Duration) *Fetcher {
	if aggregator == nil {
		aggregator = NewAggregator(nil)
	}
	return &Fetcher{
		requester:     requester,
		aggregator:    aggregator,
		sourceTimeout: sourceTimeout,
		now:           time.Now,
	}
}

type fallback struct {
	source  string
	outcome Outcome
}

// Resolve never returns an error. Failed sources are logged and skipped.
// When every source fails the summary is computed from the first raw
// listing recovered along the way (Degraded), or zeroed (Unavailable).
func (f *Fetcher) Resolve(ctx context.Context, session model.Session, sources []Source) model.StatsSummary {
	start := time.Now()
	var recovered *fallback

	for i, src := range sources {
		if ctx.Err() != nil {
			log.Warn().
				Err(ctx.Err()).
				Str("role", string(session.Role)).
				Int("remaining_sources", len(sources)-i).
				Msg("Stats resolution abandoned")
			break
		}

		env, err := f.call(ctx, session, src)
		if err != nil {
			log.Warn().
				Err(err).
				Str("source", src.Name).
				Str("endpoint", src.Endpoint).
				Msg("Stats source failed, trying next")
			continue
		}

		outcome, adaptErr := src.Adapt(env)

		if !env.Success {
			if adaptErr == nil && outcome.Kind != OutcomePrecomputed && recovered == nil {
				recovered = &fallback{source: src.Name, outcome: outcome}
			}
			log.Warn().
				Str("source", src.Name).
				Str("message", env.Message).
				Bool("kept_listing", recovered != nil && recovered.source == src.Name).
				Msg("Stats source reported failure, trying next")
			continue
		}

		if adaptErr != nil {
			log.Warn().
				Err(adaptErr).
				Str("source", src.Name).
				Msg("Stats source response not usable, trying next")
			continue
		}

		if outcome.Kind == OutcomeListing && !outcome.ApplicationsFound && src.ApplicationsFrom != nil {
			outcome.Applications = f.countApplications(ctx, session, *src.ApplicationsFrom)
		}

		summary := f.summarize(outcome)
		summary.Availability = model.Available
		summary.Source = src.Name
		summary.ComputedAt = f.now()

		log.Info().
			Str("source", src.Name).
			Str("kind", outcome.Kind.String()).
			Str("role", string(session.Role)).
			Int("attempt", i+1).
			Int("total", summary.Total).
			Dur("duration", time.Since(start)).
			Msg("Stats resolved")

		return summary
	}

	if recovered != nil {
		summary := f.summarize(recovered.outcome)
		summary.Availability = model.Degraded
		summary.Source = recovered.source
		summary.ComputedAt = f.now()

		log.Warn().
			Str("source", recovered.source).
			Str("role", string(session.Role)).
			Int("total", summary.Total).
			Msg("All stats sources failed, computed from recovered listing")

		return summary
	}

	log.Error().
		Str("role", string(session.Role)).
		Int("sources", len(sources)).
		Dur("duration", time.Since(start)).
		Msg("All stats sources failed, returning empty summary")

	summary := model.EmptySummary()
	summary.ComputedAt = f.now()
	return summary
}

// countApplications is best effort: any failure counts as zero applications
func (f *Fetcher) countApplications(ctx context.Context, session model.Session, src Source) int {
	env, err := f.call(ctx, session, src)
	if err == nil && !env.Success {
		err = fmt.Errorf("unsuccessful response: %s", env.Message)
	}
	var outcome Outcome
	if err == nil {
		outcome, err = src.Adapt(env)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("source", src.Name).
			Msg("Applications count unavailable")
		return 0
	}
	return len(outcome.Records)
}

func (f *Fetcher) summarize(outcome Outcome) model.StatsSummary {
	switch outcome.Kind {
	case OutcomePrecomputed:
		return FromCounts(outcome.Counts)
	case OutcomeBids:
		return f.aggregator.AggregateBids(outcome.Records)
	default:
		return f.aggregator.Aggregate(outcome.Records, outcome.Applications)
	}
}

func (f *Fetcher) call(ctx context.Context, session model.Session, src Source) (*marketplace.Envelope, error) {
	if src.Adapt == nil {
		return nil, fmt.Errorf("source %s has no adapter", src.Name)
	}

	if f.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.sourceTimeout)
		defer cancel()
	}

	var (
		body []byte
		err  error
	)
	switch src.method() {
	case http.MethodPost:
		var payload any
		if session.UserID != "" {
			payload = map[string]string{"userId": session.UserID}
		}
		body, err = f.requester.Post(ctx, session.Token, src.Endpoint, payload)
	default:
		body, err = f.requester.Get(ctx, session.Token, src.Endpoint)
	}
	if err != nil {
		return nil, err
	}

	return marketplace.DecodeEnvelope(body)
}
