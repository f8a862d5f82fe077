package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/go-bpe/internal/config"
	"github.com/example/go-bpe/internal/text"
	"github.com/example/go-bpe/internal/tokenizer"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// ctxCheckInterval is how many tokens are pulled between deadline checks.
const ctxCheckInterval = 256

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	maxTokens      int
	workers        int
	requestTimeout time.Duration
	vocabSource    string
	logger         *slog.Logger
	metrics        *Metrics
}

func defaultOptions() options {
	return options{
		maxTextBytes:   1 << 20,
		workers:        4,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /v1/tokenize.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithMaxTokens caps the tokens returned per request. 0 means no cap;
// requests may only lower it.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithWorkers sets the maximum number of concurrent tokenize calls.
// 0 disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request tokenization deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithVocabSource sets the vocabulary description reported by /v1/vocab.
func WithVocabSource(s string) Option {
	return func(o *options) { o.vocabSource = s }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	enc  *tokenizer.Encoder
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
	m    *Metrics
}

// NewHandler returns an http.Handler that serves /health, /v1/vocab,
// POST /v1/tokenize, POST /v1/decompose and, with WithMetrics, /metrics.
func NewHandler(enc *tokenizer.Encoder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		enc:  enc,
		opts: opts,
		log:  opts.logger,
		m:    opts.metrics,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}
	h.m.setVocabEntries(enc.Vocabulary().Len())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.m.instrument("health", h.handleHealth))
	mux.HandleFunc("/v1/vocab", h.m.instrument("vocab", h.handleVocab))
	mux.HandleFunc("/v1/tokenize", h.m.instrument("tokenize", h.handleTokenize))
	mux.HandleFunc("/v1/decompose", h.m.instrument("decompose", h.handleDecompose))
	if h.m != nil {
		mux.Handle("/metrics", h.m.Handler())
	}
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type vocabResponse struct {
	Size          int    `json:"size"`
	MaxPieceLen   int    `json:"max_piece_len"`
	Source        string `json:"source,omitempty"`
	Normalization string `json:"normalization"`
}

func (h *handler) handleVocab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v := h.enc.Vocabulary()
	writeJSON(w, http.StatusOK, vocabResponse{
		Size:          v.Len(),
		MaxPieceLen:   v.MaxPieceLen(),
		Source:        h.opts.vocabSource,
		Normalization: h.enc.Normalization().String(),
	})
}

type tokenizeRequest struct {
	Text      string `json:"text"`
	Sentences bool   `json:"sentences"`
	MaxTokens int    `json:"max_tokens"`
}

type tokensResponse struct {
	Tokens    []string `json:"tokens"`
	Truncated bool     `json:"truncated"`
}

type sentencesResponse struct {
	Sentences [][]string `json:"sentences"`
	Truncated bool       `json:"truncated"`
}

func (h *handler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req tokenizeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		if isBodyTooLarge(err) {
			h.m.reject("too_large")
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
			return
		}
		h.m.reject("invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if len(req.Text) > h.opts.maxTextBytes {
		h.m.reject("too_large")
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	if req.MaxTokens < 0 {
		h.m.reject("invalid_limit")
		writeError(w, http.StatusBadRequest, "max_tokens must not be negative")
		return
	}

	input, err := text.Normalize(req.Text)
	if err != nil {
		h.m.reject("invalid_text")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Acquire a worker slot and honour context cancellation while waiting.
	if h.sem != nil {
		waitStart := time.Now()
		select {
		case h.sem <- struct{}{}:
			h.m.acquired(time.Since(waitStart))
		case <-r.Context().Done():
			h.m.reject("cancelled")
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() {
			<-h.sem
			h.m.released()
		}()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	limit := effectiveLimit(h.opts.maxTokens, req.MaxTokens)

	start := time.Now()
	var (
		resp      any
		count     int
		truncated bool
	)
	if req.Sentences {
		var sentences [][]string
		sentences, truncated, err = h.collectSentences(ctx, input, limit)
		for _, s := range sentences {
			count += len(s)
		}
		resp = sentencesResponse{Sentences: sentences, Truncated: truncated}
	} else {
		var tokens []string
		tokens, truncated, err = h.collectTokens(ctx, input, limit)
		count = len(tokens)
		resp = tokensResponse{Tokens: tokens, Truncated: truncated}
	}
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		h.log.WarnContext(r.Context(), "tokenization timed out",
			slog.Int("text_len", len(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGatewayTimeout, "tokenization timed out")
		return
	}

	h.m.addTokens(count, truncated)
	h.log.InfoContext(r.Context(), "tokenize complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int("tokens", count),
		slog.Bool("sentences", req.Sentences),
		slog.Bool("truncated", truncated),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, resp)
}

// effectiveLimit combines the server cap with a per-request cap; 0 means none.
func effectiveLimit(server, request int) int {
	switch {
	case server <= 0:
		return request
	case request <= 0:
		return server
	default:
		return min(server, request)
	}
}

// collectTokens pulls at most limit tokens from the lazy stream. truncated
// reports whether a token past the limit exists.
func (h *handler) collectTokens(ctx context.Context, s string, limit int) ([]string, bool, error) {
	it := h.enc.TokenizeIter(s)
	out := []string{}

	for tok, ok := it.Next(); ok; tok, ok = it.Next() {
		if limit > 0 && len(out) == limit {
			return out, true, nil
		}
		out = append(out, tok)

		if len(out)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
		}
	}

	return out, false, nil
}

// collectSentences is collectTokens grouped by sentence. The limit counts
// tokens across all sentences, so the last sentence may be cut short.
func (h *handler) collectSentences(ctx context.Context, s string, limit int) ([][]string, bool, error) {
	sentences := h.enc.TokenizeSentencesIter(s)
	out := [][]string{}
	n := 0

	for sent, ok := sentences.Next(); ok; sent, ok = sentences.Next() {
		var toks []string
		for tok, ok := sent.Next(); ok; tok, ok = sent.Next() {
			if limit > 0 && n == limit {
				if len(toks) > 0 {
					out = append(out, toks)
				}
				return out, true, nil
			}
			toks = append(toks, tok)
			n++

			if n%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, false, err
				}
			}
		}
		out = append(out, toks)
	}

	return out, false, nil
}

type decomposeRequest struct {
	Word     string `json:"word"`
	Boundary bool   `json:"boundary"`
}

type decomposeResponse struct {
	Pieces []string `json:"pieces"`
}

// bodyOverhead is the JSON envelope allowed on top of maxTextBytes.
const bodyOverhead = 4096

// decodeBody decodes a JSON request body, reading at most maxTextBytes plus
// bodyOverhead bytes.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if h.opts.maxTextBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(h.opts.maxTextBytes)+bodyOverhead)
	}
	return json.NewDecoder(body).Decode(v)
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *handler) handleDecompose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req decomposeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("word exceeds maximum size of %d bytes", h.opts.maxTextBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Word == "" {
		writeError(w, http.StatusBadRequest, "word field is required")
		return
	}

	if len(req.Word) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("word exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	word := req.Word
	if req.Boundary {
		word = tokenizer.WordBoundary + word
	}

	pieces := h.enc.DecomposeWord(word)
	if pieces == nil {
		pieces = []string{}
	}
	writeJSON(w, http.StatusOK, decomposeResponse{Pieces: pieces})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server wires the handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	enc             *tokenizer.Encoder
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New returns a Server for enc. A nil enc is loaded from cfg.Vocab on Start.
func New(cfg config.Config, enc *tokenizer.Encoder) *Server {
	shutdown := cfg.Server.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		enc:             enc,
		logger:          slog.Default(),
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger passed to the handler.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	enc := s.enc
	if enc == nil {
		var err error
		enc, err = s.cfg.Vocab.NewEncoder()
		if err != nil {
			return fmt.Errorf("load vocabulary: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	h := NewHandler(enc, s.handlerOptions(metrics)...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening",
		slog.String("addr", s.cfg.Server.ListenAddr),
		slog.String("vocab", s.cfg.Vocab.Source()),
		slog.Int("vocab_entries", enc.Vocabulary().Len()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func (s *Server) handlerOptions(metrics *Metrics) []Option {
	opts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTokens(s.cfg.Server.MaxTokens),
		WithVocabSource(s.cfg.Vocab.Source()),
		WithLogger(s.logger),
		WithMetrics(metrics),
	}
	if s.cfg.Server.MaxTextBytes > 0 {
		opts = append(opts, WithMaxTextBytes(s.cfg.Server.MaxTextBytes))
	}
	if s.cfg.Server.RequestTimeout > 0 {
		opts = append(opts, WithRequestTimeout(s.cfg.Server.RequestTimeout))
	}
	return opts
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
