package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/VirusTotal/gyp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/sentinelx/sentinelx/pkg/store"
)

var ruleNameRe = regexp.MustCompile(`rule\s+(\w+)`)

// CommunitySource fetches raw rule-language files from community
// repositories and normalizes each file into one candidate.
type CommunitySource struct {
	URLs []string
	hc   *retryablehttp.Client
}

func NewCommunitySource(urls []string) *CommunitySource {
	return &CommunitySource{URLs: urls, hc: newFeedClient()}
}

func (s *CommunitySource) Name() string { return "community" }

func (s *CommunitySource) Fetch(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	var errs []error

	for _, url := range s.URLs {
		content, err := s.fetchOne(ctx, url)
		if err != nil {
			log.Error().Err(err).Str("url", url).Msg("failed to fetch community rule")
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		name := extractRuleName(content, url)
		candidates = append(candidates, Candidate{
			RuleID:   name,
			Name:     name,
			Content:  content,
			Source:   store.SourceCommunity,
			Family:   "General",
			Severity: store.SeverityHigh,
		})
	}

	return candidates, errors.Join(errs...)
}

func (s *CommunitySource) fetchOne(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%d invalid response code", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractRuleName prefers a real parse of the rule text over pattern
// guessing; parse failure falls back to the first identifier after the
// rule keyword, then to a name derived from the file name.
func extractRuleName(content, url string) string {
	if rs, err := gyp.ParseString(content); err == nil && len(rs.Rules) > 0 {
		return rs.Rules[0].Identifier
	}

	if m := ruleNameRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}

	return strings.ReplaceAll(path.Base(url), ".", "_")
}
