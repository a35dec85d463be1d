package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"statshub/internal/aws"
	"statshub/internal/cache"
	"statshub/internal/model"
	"statshub/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrExportsDisabled is returned by Export when no file service is configured
var ErrExportsDisabled = errors.New("exports are disabled")

// StatsController resolves dashboard summaries for sessions
type StatsController interface {
	// GetSummary returns a cached or freshly resolved summary. Errors are an
	// invalid role or the caller's own context ending; backend failures show
	// up as Availability.
	GetSummary(ctx context.Context, session model.Session) (model.StatsSummary, error)

	// Invalidate drops cached summaries. An empty role covers both roles,
	// an empty subject covers every user of the role.
	Invalidate(ctx context.Context, role model.Role, subject string) error

	// Export uploads the current summary as JSON and returns its URL
	Export(ctx context.Context, session model.Session) (string, error)
}

// Resolver walks a source list into a summary
type Resolver interface {
	Resolve(ctx context.Context, session model.Session, sources []stats.Source) model.StatsSummary
}

type statsController struct {
	resolver  Resolver
	catalogue *stats.Catalogue
	cache     cache.Cache
	publisher EventPublisher
	files     aws.FileService
	ttl       time.Duration
	group     singleflight.Group
	now       func() time.Time
}

// NewStatsController wires the stats flow. files may be nil to disable exports.
func NewStatsController(resolver Resolver, catalogue *stats.Catalogue, c cache.Cache, publisher EventPublisher, files aws.FileService, ttl time.Duration) StatsController {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &statsController{
		resolver:  resolver,
		catalogue: catalogue,
		cache:     c,
		publisher: publisher,
		files:     files,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Subject identifies whose summary is cached: the user id when known,
// otherwise a digest of the session token.
func Subject(session model.Session) string {
	if session.UserID != "" {
		return session.UserID
	}
	return "t-" + HashToken(session.Token)[:16]
}

// cacheKey scopes a summary to the subject and the session token that
// fetched it, so a user id header alone never reads someone else's entry.
func cacheKey(session model.Session) string {
	return fmt.Sprintf("stats:%s:%s:%s", session.Role, Subject(session), HashToken(session.Token)[:16])
}

func invalidationPattern(role model.Role, subject string) string {
	if subject == "" {
		return fmt.Sprintf("stats:%s:*", role)
	}
	return fmt.Sprintf("stats:%s:%s:*", role, escapePattern(subject))
}

// escapePattern backslash-escapes glob metacharacters
func escapePattern(s string) string {
	if !strings.ContainsAny(s, `\*?[]{}`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\*?[]{}`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *statsController) GetSummary(ctx context.Context, session model.Session) (model.StatsSummary, error) {
	sources, err := c.catalogue.For(session.Role)
	if err != nil {
		return model.StatsSummary{}, err
	}

	key := cacheKey(session)

	if cached, ok := c.fromCache(ctx, key); ok {
		return cached, nil
	}

	// The shared resolution outlives any one caller; each caller only
	// stops waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		summary := c.resolver.Resolve(detached, session, sources)

		// Unavailable results are not cached so a recovered backend shows up on the next call
		if summary.Availability != model.Unavailable {
			c.toCache(detached, key, summary)
		}

		event := NewStatsEvent(session, summary)
		if err := c.publisher.PublishComputed(detached, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to publish stats event")
		}

		return summary, nil
	})

	select {
	case <-ctx.Done():
		return model.EmptySummary(), ctx.Err()
	case res := <-ch:
		return res.Val.(model.StatsSummary), nil
	}
}

func (c *statsController) fromCache(ctx context.Context, key string) (model.StatsSummary, bool) {
	if c.cache == nil {
		return model.StatsSummary{}, false
	}

	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		}
		return model.StatsSummary{}, false
	}

	var summary model.StatsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached summary")
		return model.StatsSummary{}, false
	}

	return summary, true
}

func (c *statsController) toCache(ctx context.Context, key string, summary model.StatsSummary) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode summary for cache")
		return
	}

	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
}

func (c *statsController) Invalidate(ctx context.Context, role model.Role, subject string) error {
	if c.cache == nil {
		return nil
	}

	roles := []model.Role{role}
	if role == "" {
		roles = []model.Role{model.RoleClient, model.RoleInspector}
	}

	for _, r := range roles {
		if _, err := model.ParseRole(string(r)); err != nil {
			return err
		}

		if err := c.cache.DeleteByPattern(ctx, invalidationPattern(r, subject)); err != nil {
			return fmt.Errorf("failed to invalidate %s stats: %w", r, err)
		}
	}

	log.Info().
		Str("role", string(role)).
		Str("subject", subject).
		Msg("Invalidated cached stats")

	return nil
}

// exportDocument is the JSON written to object storage
type exportDocument struct {
	Role       model.Role         `json:"role"`
	Subject    string             `json:"subject"`
	ExportedAt time.Time          `json:"exportedAt"`
	Summary    model.StatsSummary `json:"summary"`
}

func (c *statsController) Export(ctx context.Context, session model.Session) (string, error) {
	if c.files == nil {
		return "", ErrExportsDisabled
	}

	summary, err := c.GetSummary(ctx, session)
	if err != nil {
		return "", err
	}

	subject := Subject(session)
	now := c.now().UTC()
	doc := exportDocument{
		Role:       session.Role,
		Subject:    subject,
		ExportedAt: now,
		Summary:    summary,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s/%s.json", session.Role, subject, now.Format("20060102T150405Z"))
	url, err := c.files.UploadFile(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	log.Info().
		Str("role", string(session.Role)).
		Str("subject", subject).
		Str("key", key).
		Msg("Exported stats summary")

	return url, nil
}
