package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VirusTotal/gyp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/intel"
	"github.com/sentinelx/sentinelx/pkg/store"
	"github.com/sentinelx/sentinelx/pkg/telemetry"
)

// Matcher is the compiled-rule capability the pipeline consumes:
// match bytes against the active corpus, and commit new bodies to it.
type Matcher interface {
	Match(data []byte) ([]string, error)
	Commit(bodies map[string]string) error
}

// Pipeline orchestrates one detection request: deterministic match
// first, probabilistic fallback second, rule-synthesis feedback third.
type Pipeline struct {
	matcher Matcher
	store   store.Store
	ai      intel.Client
}

func New(matcher Matcher, st store.Store, ai intel.Client) *Pipeline {
	return &Pipeline{matcher: matcher, store: st, ai: ai}
}

// Scan classifies the uploaded bytes and persists the resulting record
// regardless of outcome branch. The returned error is non-nil only
// when persisting the record itself failed; every other failure
// degrades into a terminal record.
func (p *Pipeline) Scan(ctx context.Context, filename, declaredType string, data []byte) (*store.ScanRecord, error) {
	if declaredType == "" {
		declaredType = mimetype.Detect(data).String()
	}

	record := &store.ScanRecord{
		ID:            uuid.NewString(),
		Filename:      filename,
		Filesize:      int64(len(data)),
		Filetype:      declaredType,
		DetectedRules: []string{},
		Timestamp:     time.Now().UTC(),
	}

	p.classify(ctx, record, data)

	telemetry.ScansTotal.Inc()
	telemetry.ScansByStatus.WithLabelValues(record.Status).Inc()

	if err := p.store.InsertScan(record); err != nil {
		return record, fmt.Errorf("persist scan record: %w", err)
	}
	return record, nil
}

func (p *Pipeline) classify(ctx context.Context, record *store.ScanRecord, data []byte) {
	matches, err := p.matcher.Match(data)
	if err != nil {
		record.Status = store.StatusError
		record.Insight = fmt.Sprintf("Scan failed: %v", err)
		return
	}

	if len(matches) > 0 {
		record.Status = store.StatusMalicious
		record.Confidence = 100
		record.DetectedRules = matches
		record.Insight = "Detected by rules: " + strings.Join(matches, ", ")
		return
	}

	if p.ai == nil {
		record.Status = store.StatusSafe
		record.Confidence = 0
		record.Insight = "Clean file. No rule matches found; AI analysis unavailable (no completion endpoint configured)."
		return
	}

	fc := intel.FileContext{
		Filename:  record.Filename,
		MediaType: record.Filetype,
		Size:      record.Filesize,
		Preview:   intel.ExtractStrings(data, 4000),
	}

	verdict, err := p.ai.Analyze(ctx, fc)
	if errors.Is(err, intel.ErrUnavailable) {
		record.Status = store.StatusSafe
		record.Confidence = 0
		record.Insight = "Clean file. No rule matches found; AI analysis unavailable."
		return
	}
	if err != nil {
		record.Status = store.StatusError
		record.Insight = fmt.Sprintf("Analysis failed: %v", err)
		return
	}

	if !verdict.Malicious {
		record.Status = store.StatusSafe
		record.Confidence = verdict.Confidence
		record.Insight = "AI Insight (SAFE): " + verdict.Reason
		return
	}

	record.Status = store.StatusMalicious
	record.Confidence = verdict.Confidence
	record.Insight = "AI Insight: " + verdict.Reason

	if p.synthesizeRule(ctx, fc, verdict.Reason) {
		record.Insight += " [new detection rule generated]"
	}
}

// synthesizeRule asks the capability for a rule covering the sample
// that slipped past the corpus, and feeds it back in. Every failure
// here is non-fatal: the scan verdict already stands.
func (p *Pipeline) synthesizeRule(ctx context.Context, fc intel.FileContext, rationale string) bool {
	body, err := p.ai.SynthesizeRule(ctx, fc, rationale)
	if err != nil || body == "" {
		log.Warn().Err(err).Str("filename", fc.Filename).Msg("rule synthesis yielded nothing")
		return false
	}

	if _, err := gyp.ParseString(body); err != nil {
		log.Warn().Err(err).Msg("synthesized rule does not parse, discarding")
		return false
	}

	ruleID := "auto_gen_" + strings.Split(uuid.NewString(), "-")[0]
	rule := &store.Rule{
		ID:        uuid.NewString(),
		RuleID:    ruleID,
		Name:      "Auto-Generated: " + fc.Filename,
		Family:    "AI-Detected",
		Severity:  store.SeverityHigh,
		Content:   body,
		Source:    store.SourceAIGenerated,
		DateAdded: time.Now().UTC(),
	}
	if err := p.store.InsertRule(rule); err != nil {
		log.Error().Err(err).Msg("failed to persist synthesized rule")
		return false
	}

	if err := p.matcher.Commit(map[string]string{ruleID + ".yar": body}); err != nil {
		log.Error().Err(err).Msg("failed to commit synthesized rule")
		return false
	}

	telemetry.RulesAdded.WithLabelValues(store.SourceAIGenerated).Inc()
	log.Info().Str("rule_id", ruleID).Msg("synthesized new detection rule")
	return true
}
