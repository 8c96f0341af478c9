package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samteezy/clip/internal/config"
)

func TestSummarize_Success(t *testing.T) {
	var gotGoal bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		msgs := body["messages"].([]any)
		user := msgs[1].(map[string]any)["content"].(string)
		if strings.Contains(user, "find the bug") {
			gotGoal = true
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "short summary"}},
			},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 5},
		})
	}))
	defer srv.Close()

	s := New(5 * time.Second)
	result, err := s.Summarize(context.Background(), "a long tool response body", config.LLMConfig{BaseURL: srv.URL, Model: "test-model"}, "", 50, true, "find the bug")
	require.NoError(t, err)
	assert.Equal(t, "short summary", result.Summary)
	assert.Equal(t, 5, result.SummaryTokens)
	assert.True(t, gotGoal)
}

func TestSummarize_MissingConfig(t *testing.T) {
	s := New(5 * time.Second)
	_, err := s.Summarize(context.Background(), "text", config.LLMConfig{}, "", 50, false, "")
	require.Error(t, err)
}

func TestSummarize_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	s := New(5 * time.Second)
	_, err := s.Summarize(context.Background(), "text", config.LLMConfig{BaseURL: srv.URL, Model: "m"}, "", 50, false, "")
	require.Error(t, err)
}
