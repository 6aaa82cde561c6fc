package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sentinelx/sentinelx/pkg/store"
)

// HashSource batches recently reported malicious content hashes into a
// single generated rule whose condition is an OR over sha256 equality
// checks. The batch is capped to bound the rule-body size.
type HashSource struct {
	URL        string
	BatchLimit int
	hc         *retryablehttp.Client
}

func NewHashSource(feedURL string, batchLimit int) *HashSource {
	return &HashSource{URL: feedURL, BatchLimit: batchLimit, hc: newFeedClient()}
}

func (s *HashSource) Name() string { return "hashfeed" }

type hashFeedResponse struct {
	QueryStatus string `json:"query_status"`
	Data        []struct {
		SHA256Hash string `json:"sha256_hash"`
	} `json:"data"`
}

func (s *HashSource) Fetch(ctx context.Context) ([]Candidate, error) {
	form := url.Values{"query": {"get_recent"}, "selector": {"time"}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.URL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

	var feed hashFeedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode hash feed: %w", err)
	}
	if feed.QueryStatus != "ok" {
		return nil, fmt.Errorf("hash feed query status %q", feed.QueryStatus)
	}

	hashes := make([]string, 0, s.BatchLimit)
	for _, sample := range feed.Data {
		if sample.SHA256Hash == "" {
			continue
		}
		hashes = append(hashes, sample.SHA256Hash)
		if len(hashes) == s.BatchLimit {
			break
		}
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	ruleID := fmt.Sprintf("MalwareBazaar_Recent_%d", len(hashes))
	return []Candidate{{
		RuleID:   ruleID,
		Name:     "MalwareBazaar Recent Hashes",
		Content:  hashRuleBody(ruleID, hashes),
		Source:   store.SourceHash,
		Family:   "Various",
		Severity: store.SeverityCritical,
	}}, nil
}

func hashRuleBody(ruleID string, hashes []string) string {
	conditions := make([]string, 0, len(hashes))
	for _, h := range hashes {
		conditions = append(conditions, fmt.Sprintf(`hash.sha256(0, filesize) == "%s"`, h))
	}
	return fmt.Sprintf(`import "hash"

rule %s {
    meta:
        description = "Detects recent malware hashes from MalwareBazaar"
        author = "SentinelX Feed"
        source = "MalwareBazaar"
    condition:
        %s
}
`, ruleID, strings.Join(conditions, " or\n        "))
}
