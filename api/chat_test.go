package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasundae/pragi/internal/answer"
	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/gateway"
	"github.com/datasundae/pragi/internal/log"
	"github.com/datasundae/pragi/internal/retriever"
	"github.com/datasundae/pragi/internal/vecstore"
)

type fakeAnswerer struct {
	answer   answer.Answer
	err      error
	gotQuery string
}

func (f *fakeAnswerer) Ask(ctx context.Context, query string, opts ...retriever.Option) (answer.Answer, error) {
	f.gotQuery = query
	if f.err != nil {
		return answer.Answer{}, f.err
	}
	return f.answer, nil
}

func chatMux(answerer Answerer) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(answerer, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestChatHandler_Success(t *testing.T) {
	answerer := &fakeAnswerer{answer: answer.Answer{
		Text:       "The shadow is the unconscious side.",
		HasContext: true,
		Sources: []vecstore.Result{
			{Document: vecstore.Document{ID: "d1", Metadata: map[string]any{"title": "Aion"}}, Similarity: 0.9},
		},
		Usage: gateway.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}}
	mux := chatMux(answerer)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message": "what is the shadow"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "The shadow is the unconscious side.", resp.Response)
	assert.True(t, resp.HasContext)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].ID)
	assert.Equal(t, 120, resp.Usage.TotalTokens)
	assert.Equal(t, "what is the shadow", answerer.gotQuery)
}

func TestChatHandler_NoContext(t *testing.T) {
	answerer := &fakeAnswerer{answer: answer.Answer{Text: "general answer", HasContext: false}}
	mux := chatMux(answerer)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "hi"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.HasContext)
	assert.Empty(t, resp.Sources)
}

func TestChatHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing message", `{}`},
		{"message too long", fmt.Sprintf(`{"message": %q}`, strings.Repeat("a", MaxMessageLength+1))},
		{"k over max", `{"message": "x", "k": 500}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &fakeAnswerer{}
			mux := chatMux(answerer)

			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, answerer.gotQuery)
		})
	}
}

func TestChatHandler_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"retries exhausted", fault.ErrServiceBusy, http.StatusServiceUnavailable},
		{"rate limited", fault.ErrRateLimited, http.StatusTooManyRequests},
		{"deadline", fault.ErrDeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := chatMux(&fakeAnswerer{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "x"}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
