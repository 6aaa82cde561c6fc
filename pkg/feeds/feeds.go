package feeds

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Candidate is a rule normalized into the common shape, not yet
// deduplicated or persisted.
type Candidate struct {
	RuleID   string
	Name     string
	Content  string
	Source   string
	Family   string
	Severity string
}

// Source is one external feed adapter. The set of implementations is
// closed: adding a feed means adding a type here, not registering one
// at runtime.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// SyncOutcome is the per-source result of one aggregation cycle.
// Ephemeral, surfaced to callers and logs only.
type SyncOutcome struct {
	Source    string    `json:"source"`
	Accepted  int       `json:"accepted"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const fetchTimeout = 30 * time.Second

func newFeedClient() *retryablehttp.Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 2
	hc.RetryWaitMin = 200 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = fetchTimeout
	hc.Logger = nil
	return hc
}
