package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/go-bpe/internal/config"
	"github.com/example/go-bpe/internal/tokenizer"
)

func internalEncoder(t *testing.T) *tokenizer.Encoder {
	t.Helper()

	v, err := tokenizer.ParseVocabularyString("▁a\t1\n▁b\t2")
	if err != nil {
		t.Fatalf("parse vocab: %v", err)
	}

	return tokenizer.New(v)
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		server, request, want int
	}{
		{0, 0, 0},
		{0, 5, 5},
		{5, 0, 5},
		{5, 3, 3},
		{3, 5, 3},
	}

	for _, tt := range tests {
		if got := effectiveLimit(tt.server, tt.request); got != tt.want {
			t.Errorf("effectiveLimit(%d, %d) = %d; want %d", tt.server, tt.request, got, tt.want)
		}
	}
}

func TestCollectTokens_StopsOnCancelledContext(t *testing.T) {
	h := &handler{enc: internalEncoder(t)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := strings.Repeat("a b ", ctxCheckInterval)

	if _, _, err := h.collectTokens(ctx, input, 0); err == nil {
		t.Error("collectTokens: want context error")
	}

	if _, _, err := h.collectSentences(ctx, input, 0); err == nil {
		t.Error("collectSentences: want context error")
	}
}

func TestCollectTokens_ShortInputIgnoresDeadline(t *testing.T) {
	h := &handler{enc: internalEncoder(t)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	toks, truncated, err := h.collectTokens(ctx, "a b", 0)
	if err != nil {
		t.Fatalf("collectTokens: %v", err)
	}

	if len(toks) != 4 || truncated {
		t.Errorf("collectTokens = %q, %v", toks, truncated)
	}
}

func TestTokenize_TimeoutReturns504(t *testing.T) {
	h := NewHandler(internalEncoder(t),
		WithRequestTimeout(time.Nanosecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	body := `{"text":"` + strings.Repeat("a b ", 4*ctxCheckInterval) + `"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tokenize", bytes.NewBufferString(body))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}
}

func TestTokenize_CancelledWhileWaitingForWorker(t *testing.T) {
	h := &handler{
		enc:  internalEncoder(t),
		opts: defaultOptions(),
		sem:  make(chan struct{}, 1),
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.sem <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tokenize", bytes.NewBufferString(`{"text":"a"}`)).WithContext(ctx)
	h.handleTokenize(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}

func TestServer_HandlerOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Workers = 7
	cfg.Server.MaxTokens = 11
	cfg.Server.MaxTextBytes = 0
	cfg.Server.RequestTimeout = 0

	s := New(cfg, nil)

	opts := defaultOptions()
	for _, fn := range s.handlerOptions(nil) {
		fn(&opts)
	}

	if opts.workers != 7 {
		t.Errorf("workers = %d; want 7", opts.workers)
	}

	if opts.maxTokens != 11 {
		t.Errorf("maxTokens = %d; want 11", opts.maxTokens)
	}

	if opts.maxTextBytes != defaultOptions().maxTextBytes {
		t.Errorf("maxTextBytes = %d; want default when config is 0", opts.maxTextBytes)
	}

	if opts.requestTimeout != defaultOptions().requestTimeout {
		t.Errorf("requestTimeout = %v; want default when config is 0", opts.requestTimeout)
	}
}

func TestNew_ShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ShutdownTimeout = 3 * time.Second

	if s := New(cfg, nil); s.shutdownTimeout != 3*time.Second {
		t.Errorf("shutdownTimeout = %v; want 3s", s.shutdownTimeout)
	}

	cfg.Server.ShutdownTimeout = 0
	if s := New(cfg, nil); s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s fallback", s.shutdownTimeout)
	}
}
