package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when no completion endpoint is
// configured. Callers treat it as a degraded mode, not a failure.
var ErrUnavailable = errors.New("completion capability unavailable")

const (
	callTimeout         = 30 * time.Second
	analyzePreviewCap   = 4000
	synthesisPreviewCap = 3000
)

// FileContext is the prompt-shaped payload describing one upload.
type FileContext struct {
	Filename  string
	MediaType string
	Size      int64
	Preview   string
}

// Client is the capability boundary for fallback analysis and rule
// synthesis: a single opaque text-completion call underneath both.
type Client interface {
	Analyze(ctx context.Context, fc FileContext) (Verdict, error)
	SynthesizeRule(ctx context.Context, fc FileContext, rationale string) (string, error)
}

// HTTPClient talks to a Gemini-style generateContent endpoint.
type HTTPClient struct {
	endpoint string
	apiKey   string
	hc       *retryablehttp.Client
}

// NewHTTPClient returns nil when endpoint or key is empty, which
// callers must treat as the capability being unconfigured.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	if endpoint == "" || apiKey == "" {
		return nil
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = 1
	hc.HTTPClient.Timeout = callTimeout
	hc.Logger = nil
	return &HTTPClient{endpoint: endpoint, apiKey: apiKey, hc: hc}
}

func (c *HTTPClient) Analyze(ctx context.Context, fc FileContext) (Verdict, error) {
	if c == nil {
		return Verdict{}, ErrUnavailable
	}

	text, err := c.complete(ctx, analyzePrompt(fc))
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(text), nil
}

func (c *HTTPClient) SynthesizeRule(ctx context.Context, fc FileContext, rationale string) (string, error) {
	if c == nil {
		return "", ErrUnavailable
	}

	text, err := c.complete(ctx, synthesisPrompt(fc, rationale))
	if err != nil {
		return "", err
	}
	return CleanRuleBody(text), nil
}

type completionRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type completionResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *HTTPClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("completion request failed")
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

	var cr completionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cr.Candidates) == 0 || len(cr.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty completion response")
	}
	return cr.Candidates[0].Content.Parts[0].Text, nil
}

func analyzePrompt(fc FileContext) string {
	preview := fc.Preview
	if len(preview) > analyzePreviewCap {
		preview = preview[:analyzePreviewCap]
	}
	return fmt.Sprintf(`You are a malware analysis expert. Analyze the following file metadata and extracted strings.

Filename: %s
Type: %s
Size: %d bytes

Extracted Strings (preview):
%s

Task:
1. Determine if this file is likely MALICIOUS or SAFE.
2. Provide a confidence score (0-100).
3. Explain your reasoning in 2 sentences.

Output Format:
STATUS: [MALICIOUS/SAFE]
CONFIDENCE: [0-100]
REASON: [Your explanation]`, fc.Filename, fc.MediaType, fc.Size, preview)
}

func synthesisPrompt(fc FileContext, rationale string) string {
	preview := fc.Preview
	if len(preview) > synthesisPreviewCap {
		preview = preview[:synthesisPreviewCap]
	}
	return fmt.Sprintf(`Generate a valid YARA rule to detect this malicious file based on the analysis: "%s".

Filename: %s
Extracted Strings:
%s

Requirements:
1. Rule name should be derived from filename or malware family.
2. Use specific strings found in the preview.
3. Include metadata (author="SentinelX AI", date).
4. Output ONLY the raw YARA rule content, no markdown formatting.`, rationale, fc.Filename, preview)
}
