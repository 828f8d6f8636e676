package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string, seenAuth *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		*seenAuth = append(*seenAuth, r.Header.Get("Authorization"))
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chunk(content string) string {
	return fmt.Sprintf(`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, content)
}

const finish = `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-3.5-turbo","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`

func fixedCounter(n int) TokenCounter {
	return func(string, []ChatMessage) (int, error) { return n, nil }
}

func TestOpenAICompleteStream(t *testing.T) {
	var auth []string
	srv := sseServer(t, []string{chunk("Hel"), chunk(""), chunk("lo"), chunk(" world"), finish, "data: [DONE]"}, &auth)

	client := NewOpenAIClient("sk-default", srv.URL+"/v1")
	client.CountTokens = fixedCounter(7)

	var got []string
	var indexes []int
	resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(token string, index int) error {
		got = append(got, token)
		indexes = append(indexes, index)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", " world"}, got)
	assert.Equal(t, []int{0, 1, 2}, indexes)
	assert.Equal(t, "Hello world", resp.Content)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 7, resp.TokensIn)
	assert.Equal(t, 7, resp.TokensOut)
	assert.Equal(t, []string{"Bearer sk-default"}, auth)
}

func TestOpenAICompleteStreamDefaultCounterOffline(t *testing.T) {
	var auth []string
	srv := sseServer(t, []string{chunk("eigen"), chunk("values"), finish, "data: [DONE]"}, &auth)

	client := NewOpenAIClient("sk-default", srv.URL+"/v1")

	type result struct {
		resp *CompletionResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := client.CompleteStream(context.Background(), &CompletionRequest{
			Messages: []ChatMessage{{Role: "user", Content: "Explain eigenvalues"}},
		}, func(string, int) error { return nil })
		done <- result{resp, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "eigenvalues", res.resp.Content)
		assert.Greater(t, res.resp.TokensIn, 3)
		assert.Positive(t, res.resp.TokensOut)
	case <-time.After(5 * time.Second):
		t.Fatal("CompleteStream did not return after the provider finished")
	}
}

func TestOpenAIRequestScopedKey(t *testing.T) {
	var auth []string
	srv := sseServer(t, []string{chunk("ok"), "data: [DONE]"}, &auth)

	client := NewOpenAIClient("sk-default", srv.URL+"/v1")
	client.CountTokens = fixedCounter(1)
	noop := func(string, int) error { return nil }

	_, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "a"}},
		APIKey:   "sk-preview",
	}, noop)
	require.NoError(t, err)

	_, err = client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "b"}},
	}, noop)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer sk-preview", "Bearer sk-default"}, auth)
}

func TestOpenAIMissingKey(t *testing.T) {
	client := NewOpenAIClient("", "http://127.0.0.1:1/v1")
	_, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(string, int) error { return nil })
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIMidStreamFailure(t *testing.T) {
	var auth []string
	srv := sseServer(t, []string{chunk("partial"), "data: {not json"}, &auth)

	client := NewOpenAIClient("sk-default", srv.URL+"/v1")
	client.CountTokens = fixedCounter(1)

	var got []string
	_, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(token string, _ int) error {
		got = append(got, token)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []string{"partial"}, got)
}

func TestOpenAICallbackErrorStopsStream(t *testing.T) {
	var auth []string
	srv := sseServer(t, []string{chunk("a"), chunk("b"), "data: [DONE]"}, &auth)

	client := NewOpenAIClient("sk-default", srv.URL+"/v1")
	stop := errors.New("stop")

	calls := 0
	_, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(string, int) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestOpenAIUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-bad", srv.URL+"/v1")
	called := false
	_, err := client.CompleteStream(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	}, func(string, int) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
