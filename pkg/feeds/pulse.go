package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/store"
)

// PulseSource converts subscribed threat-intel pulses into metadata
// rules. The generated bodies carry `condition: false` on purpose:
// pulses catalogue campaigns rather than match content, so the rule
// exists for provenance and listing, never for detection.
type PulseSource struct {
	BaseURL  string
	APIKey   string
	MaxItems int
	hc       *retryablehttp.Client
}

func NewPulseSource(baseURL, apiKey string, maxItems int) *PulseSource {
	return &PulseSource{BaseURL: baseURL, APIKey: apiKey, MaxItems: maxItems, hc: newFeedClient()}
}

func (s *PulseSource) Name() string { return "pulse" }

type pulseListing struct {
	Results []pulseEntry `json:"results"`
}

type pulseEntry struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Modified string      `json:"modified"`
}

func (s *PulseSource) Fetch(ctx context.Context) ([]Candidate, error) {
	if s.APIKey == "" {
		log.Debug().Msg("pulse feed has no API key, skipping")
		return nil, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/pulses/subscribed", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-OTX-API-KEY", s.APIKey)

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%d invalid response code", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var listing pulseListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode pulse listing: %w", err)
	}

	entries := listing.Results
	if len(entries) > s.MaxItems {
		entries = entries[:s.MaxItems]
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, pulse := range entries {
		id := pulse.ID.String()
		candidates = append(candidates, Candidate{
			RuleID:   "OTX_" + id,
			Name:     pulse.Name,
			Content:  pulseRuleBody(id, pulse.Name, pulse.Modified),
			Source:   store.SourcePulse,
			Family:   "Threat-Pulse",
			Severity: store.SeverityMedium,
		})
	}
	return candidates, nil
}

func pulseRuleBody(id, name, modified string) string {
	// quotes in a pulse name would break the meta string
	name = strings.ReplaceAll(name, `"`, `'`)
	return fmt.Sprintf(`rule OTX_%s {
    meta:
        description = "OTX Pulse: %s"
        author = "SentinelX OTX Sync"
        date = "%s"
    condition:
        false
}
`, id, name, modified)
}
