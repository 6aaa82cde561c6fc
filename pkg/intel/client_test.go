package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(text string) string {
	b, _ := json.Marshal(completionResponse{
		Candidates: []struct {
			Content content `json:"content"`
		}{{Content: content{Parts: []part{{Text: text}}}}},
	})
	return string(b)
}

func TestNewHTTPClientRequiresEndpointAndKey(t *testing.T) {
	assert.Nil(t, NewHTTPClient("", "key"))
	assert.Nil(t, NewHTTPClient("http://example.invalid", ""))
	assert.NotNil(t, NewHTTPClient("http://example.invalid", "key"))
}

func TestAnalyzeParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		prompt := req.Contents[0].Parts[0].Text
		assert.Contains(t, prompt, "dropper.bin")
		assert.Contains(t, prompt, "GetProcAddress")

		fmt.Fprint(w, completionBody("STATUS: MALICIOUS\nCONFIDENCE: 90\nREASON: Injector imports."))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key")
	verdict, err := c.Analyze(context.Background(), FileContext{
		Filename:  "dropper.bin",
		MediaType: "application/octet-stream",
		Size:      1024,
		Preview:   "GetProcAddress\nVirtualAlloc",
	})

	require.NoError(t, err)
	assert.True(t, verdict.Malicious)
	assert.Equal(t, 90, verdict.Confidence)
	assert.Equal(t, "Injector imports.", verdict.Reason)
}

func TestSynthesizeRuleStripsFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("```yara\nrule Auto_Test { condition: false }\n```"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key")
	body, err := c.SynthesizeRule(context.Background(), FileContext{Filename: "x.bin"}, "packed loader")

	require.NoError(t, err)
	assert.Equal(t, "rule Auto_Test { condition: false }", body)
}

func TestAnalyzeEmptyResponseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key")
	_, err := c.Analyze(context.Background(), FileContext{Filename: "x"})
	assert.Error(t, err)
}
