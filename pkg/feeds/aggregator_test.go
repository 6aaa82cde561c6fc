package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sentinelx/sentinelx/pkg/config"
	"github.com/sentinelx/sentinelx/pkg/store"
)

type fakeCommitter struct {
	commits []map[string]string
	err     error
}

func (f *fakeCommitter) Commit(bodies map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.commits = append(f.commits, bodies)
	return nil
}

func newTestAggregator(t *testing.T, cfg *config.Config) (*Aggregator, store.Store, *fakeCommitter) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	committer := &fakeCommitter{}
	return NewAggregator(cfg, "", st, committer), st, committer
}

func communityConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.CommunityRuleURLs = []string{url}
	return cfg
}

func TestSyncCycleDedupsByNameAcrossCycles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, eicarRule)
	}))
	defer srv.Close()

	agg, st, committer := newTestAggregator(t, communityConfig(srv.URL+"/MALW_Eicar.yar"))

	outcomes, err := agg.SyncCycle(context.Background(), []string{"community"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 1, outcomes[0].Accepted)

	// same rule name fetched again: exactly one persisted rule remains
	outcomes, err = agg.SyncCycle(context.Background(), []string{"community"})
	require.NoError(t, err)
	assert.Equal(t, 0, outcomes[0].Accepted)

	count, err := st.CountRules()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.Len(t, committer.commits, 1, "no rebuild when nothing was accepted")
	assert.Contains(t, committer.commits[0], "Eicar_Test.yar")
}

func TestSyncCycleRebuildsOncePerCycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/one.yar", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "rule Rule_One { condition: false }")
	})
	mux.HandleFunc("/two.yar", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "rule Rule_Two { condition: false }")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.CommunityRuleURLs = []string{srv.URL + "/one.yar", srv.URL + "/two.yar"}
	agg, _, committer := newTestAggregator(t, cfg)

	_, err := agg.SyncCycle(context.Background(), []string{"community"})
	require.NoError(t, err)

	require.Len(t, committer.commits, 1, "both rules land in one commit")
	assert.Len(t, committer.commits[0], 2)
}

func TestSyncCycleIsolatesFailingSource(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	hashes := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query_status": "ok", "data": [{"sha256_hash": "abc123"}]}`)
	}))
	defer hashes.Close()

	cfg := config.DefaultConfig()
	cfg.CommunityRuleURLs = []string{down.URL + "/a.yar"}
	cfg.HashFeedURL = hashes.URL
	agg, st, _ := newTestAggregator(t, cfg)

	outcomes, err := agg.SyncCycle(context.Background(), []string{"community", "hashfeed"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.NotEmpty(t, outcomes[0].Errors, "community failure recorded")
	assert.Equal(t, 0, outcomes[0].Accepted)
	assert.Empty(t, outcomes[1].Errors)
	assert.Equal(t, 1, outcomes[1].Accepted, "hash feed unaffected by sibling failure")

	count, err := st.CountRules()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSyncCycleUnknownSource(t *testing.T) {
	agg, _, _ := newTestAggregator(t, config.DefaultConfig())

	outcomes, err := agg.SyncCycle(context.Background(), []string{"nonexistent"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.NotEmpty(t, outcomes[0].Errors)
}

func TestAggregatorKnowsAllSources(t *testing.T) {
	agg, _, _ := newTestAggregator(t, config.DefaultConfig())
	assert.Equal(t, []string{"community", "pulse", "hashfeed"}, agg.SourceNames())
}
