package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/config"
	"github.com/sentinelx/sentinelx/pkg/store"
	"github.com/sentinelx/sentinelx/pkg/telemetry"
)

// RuleCommitter writes rule bodies to the corpus directory and
// rebuilds the matcher, as one serialized region.
type RuleCommitter interface {
	Commit(bodies map[string]string) error
}

// Aggregator fans out to the configured sources, merges the candidate
// rules and persists the ones not yet known.
type Aggregator struct {
	sources map[string]Source
	order   []string
	store   store.Store
	repo    RuleCommitter
}

func NewAggregator(cfg *config.Config, pulseKey string, st store.Store, repo RuleCommitter) *Aggregator {
	a := &Aggregator{
		sources: make(map[string]Source),
		store:   st,
		repo:    repo,
	}
	for _, src := range []Source{
		NewCommunitySource(cfg.CommunityRuleURLs),
		NewPulseSource(cfg.PulseAPIURL, pulseKey, cfg.PulseMaxItems),
		NewHashSource(cfg.HashFeedURL, cfg.HashBatchLimit),
	} {
		a.sources[src.Name()] = src
		a.order = append(a.order, src.Name())
	}
	return a
}

// SourceNames returns every known source name, in adapter order.
func (a *Aggregator) SourceNames() []string {
	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// FetchAll invokes each requested source adapter. Adapter failures are
// recorded in the outcome for that source and never abort siblings.
// Ordering within a source matches fetch order.
func (a *Aggregator) FetchAll(ctx context.Context, names []string) ([]Candidate, []SyncOutcome) {
	var candidates []Candidate
	var outcomes []SyncOutcome

	for _, name := range names {
		outcome := SyncOutcome{Source: name, Timestamp: time.Now().UTC()}

		src, ok := a.sources[name]
		if !ok {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("unknown source %q", name))
			outcomes = append(outcomes, outcome)
			continue
		}

		fetched, err := src.Fetch(ctx)
		if err != nil {
			log.Error().Err(err).Str("source", name).Msg("feed fetch failed")
			outcome.Errors = append(outcome.Errors, err.Error())
		}
		candidates = append(candidates, fetched...)
		outcomes = append(outcomes, outcome)
	}

	return candidates, outcomes
}

// SyncCycle runs one full fetch-merge-persist cycle: candidates are
// deduplicated by name against the store (and within the cycle),
// accepted ones are written to the store and to disk, and the matcher
// is rebuilt once at the end rather than once per rule.
//
// Name-based dedup will not catch content-identical rules arriving
// under two names, nor renamed duplicates. Deliberate: the name is the
// corpus identity users see, and a content hash would still miss
// semantic duplicates.
func (a *Aggregator) SyncCycle(ctx context.Context, names []string) ([]SyncOutcome, error) {
	if len(names) == 0 {
		names = a.SourceNames()
	}
	log.Info().Strs("sources", names).Msg("starting feed sync cycle")

	candidates, outcomes := a.FetchAll(ctx, names)

	accepted := make(map[string]int)
	seen := make(map[string]bool)
	bodies := make(map[string]string)

	for _, c := range candidates {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		exists, err := a.store.RuleExistsByName(c.Name)
		if err != nil {
			return outcomes, fmt.Errorf("rule lookup: %w", err)
		}
		if exists {
			continue
		}

		rule := &store.Rule{
			ID:        uuid.NewString(),
			RuleID:    c.RuleID,
			Name:      c.Name,
			Family:    c.Family,
			Severity:  c.Severity,
			Content:   c.Content,
			Source:    c.Source,
			DateAdded: time.Now().UTC(),
		}
		if err := a.store.InsertRule(rule); err != nil {
			return outcomes, fmt.Errorf("persist rule %s: %w", c.Name, err)
		}

		bodies[c.RuleID+".yar"] = c.Content
		accepted[c.Source]++
		telemetry.RulesAdded.WithLabelValues(c.Source).Inc()
	}

	if len(bodies) > 0 {
		if err := a.repo.Commit(bodies); err != nil {
			return outcomes, fmt.Errorf("commit rule corpus: %w", err)
		}
	}

	total := 0
	for i := range outcomes {
		outcomes[i].Accepted = acceptedForSource(accepted, outcomes[i].Source)
		total += outcomes[i].Accepted
	}
	log.Info().Int("accepted", total).Msg("feed sync cycle complete")
	return outcomes, nil
}

// source names and provenance tags differ; map back for the outcome
func acceptedForSource(accepted map[string]int, sourceName string) int {
	switch sourceName {
	case "community":
		return accepted[store.SourceCommunity]
	case "pulse":
		return accepted[store.SourcePulse]
	case "hashfeed":
		return accepted[store.SourceHash]
	}
	return 0
}
