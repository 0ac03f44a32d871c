package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-extractor/pkg/errors"
)

// sseServer streams deltas as chat completion chunks, or fails with status
// when status is not 200
func sseServer(t *testing.T, status int, deltas []string, calls *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
			return
		}

		var req struct {
			Stream   bool `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range deltas {
			chunk, _ := json.Marshal(map[string]interface{}{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": delta}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGenerator(url string, maxFailures uint32) *Generator {
	return NewGenerator(GeneratorConfig{
		APIKey:      "test-key",
		BaseURL:     url + "/v1",
		Timeout:     5 * time.Second,
		MaxFailures: maxFailures,
		Cooldown:    time.Minute,
	}, nil)
}

func TestGenerator_StreamsDeltas(t *testing.T) {
	var calls int32
	deltas := []string{`(id: "a1", `, "", `title: "Cells`, ` divide")`}
	server := sseServer(t, http.StatusOK, deltas, &calls)

	source, err := newTestGenerator(server.URL, 3).Open(context.Background(), "Explain mitosis")
	require.NoError(t, err)
	defer source.Close()

	var got []string
	for {
		fragment, err := source.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, fragment)
	}

	assert.Equal(t, []string{`(id: "a1", `, `title: "Cells`, ` divide")`}, got)
	assert.Equal(t, `(id: "a1", title: "Cells divide")`, strings.Join(got, ""))
}

func TestGenerator_EmptyPrompt(t *testing.T) {
	_, err := NewGenerator(GeneratorConfig{APIKey: "k"}, nil).Open(context.Background(), "  ")
	assert.True(t, errors.IsValidation(err))
}

func TestGenerator_BreakerOpens(t *testing.T) {
	var calls int32
	server := sseServer(t, http.StatusInternalServerError, nil, &calls)
	generator := newTestGenerator(server.URL, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := generator.Open(ctx, "Explain mitosis")
		assert.True(t, errors.IsType(err, errors.ErrorTypeExternal), "attempt %d", i)
	}
	assert.Equal(t, gobreaker.StateOpen, generator.State())

	_, err := generator.Open(ctx, "Explain mitosis")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker does not reach upstream")
}

func TestStreamSource_CancelledContext(t *testing.T) {
	var calls int32
	server := sseServer(t, http.StatusOK, []string{"a", "b"}, &calls)

	source, err := newTestGenerator(server.URL, 3).Open(context.Background(), "Explain mitosis")
	require.NoError(t, err)
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = source.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
