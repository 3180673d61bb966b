package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// SessionPath is the route the issuer serves.
const SessionPath = "/api/session"

// Issue outcomes reported to HandlerConfig.OnResult.
const (
	ResultIssued      = "issued"
	ResultRateLimited = "rate_limited"
	ResultBadRequest  = "bad_request"
	ResultUpstream    = "upstream_error"
)

const (
	failureMessage  = "Failed to fetch session data"
	limiterMaxKeys  = 10_000
	limiterKeyTTL   = 30 * time.Minute
	maxRequestBytes = 4 << 10
	defaultFallback = "alloy"
	anonymousClient = "anonymous"
	upstreamService = "realtime-sessions"
)

// HandlerConfig configures the token issuer server.
type HandlerConfig struct {
	// UpstreamURL is the realtime session creation endpoint.
	UpstreamURL string

	// Credential authenticates requests to UpstreamURL.
	Credential Credential

	Model              string
	TranscriptionModel string
	Instructions       string

	// Voices maps avatar selectors to voices; unknown selectors get DefaultVoice.
	Voices       map[string]string
	DefaultVoice string

	// RatePerMinute and Burst bound token requests per client address.
	// RatePerMinute <= 0 disables limiting.
	RatePerMinute int
	Burst         int

	Client *http.Client

	// OnResult, when set, is told the outcome of every request.
	OnResult func(result string)
}

// upstreamRequest is the session creation body sent upstream.
type upstreamRequest struct {
	Model                   string          `json:"model"`
	Voice                   string          `json:"voice"`
	Modalities              []string        `json:"modalities"`
	Instructions            string          `json:"instructions,omitempty"`
	ToolChoice              string          `json:"tool_choice"`
	InputAudioTranscription *transcribeSpec `json:"input_audio_transcription,omitempty"`
}

type transcribeSpec struct {
	Model string `json:"model"`
}

// IssuerHandler mints ephemeral realtime sessions on behalf of clients that
// must not hold the long-lived API key.
type IssuerHandler struct {
	cfg     HandlerConfig
	client  *http.Client
	limiter *clientLimiter
	now     func() time.Time
}

// NewIssuerHandler creates the issuer handler.
func NewIssuerHandler(cfg HandlerConfig) *IssuerHandler {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = defaultFallback
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	h := &IssuerHandler{cfg: cfg, client: client, now: time.Now}
	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = newClientLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), burst)
	}
	return h
}

// VoiceFor maps an avatar selector to the voice used for its session.
func (h *IssuerHandler) VoiceFor(avatar string) string {
	if v, ok := h.cfg.Voices[avatar]; ok && v != "" {
		return v
	}
	return h.cfg.DefaultVoice
}

// Routes returns a mux serving SessionPath, instrumented with otelhttp.
func (h *IssuerHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+SessionPath, h)
	return otelhttp.NewHandler(mux, "token-issuer")
}

// ServeHTTP handles one token request. The upstream session object is
// returned unchanged; any upstream failure becomes a 500 with a generic body.
func (h *IssuerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		if ok, retryAfter := h.limiter.allow(clientKey(r), h.now()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.report(ResultRateLimited)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	var req struct {
		SelectedAvatar string `json:"selectedAvatar"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err == nil && len(bytes.TrimSpace(body)) > 0 {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		h.report(ResultBadRequest)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	voice := h.VoiceFor(req.SelectedAvatar)
	data, err := h.createSession(r, voice)
	if err != nil {
		logger.ErrorContext(r.Context(), "Error fetching session data", "avatar", req.SelectedAvatar, "error", err)
		h.report(ResultUpstream)
		writeError(w, http.StatusInternalServerError, failureMessage)
		return
	}

	h.report(ResultIssued)
	logger.InfoContext(r.Context(), "Issued realtime session", "avatar", req.SelectedAvatar, "voice", voice)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *IssuerHandler) createSession(r *http.Request, voice string) ([]byte, error) {
	if h.cfg.Credential == nil {
		return nil, ErrNoAPIKey
	}

	payload := upstreamRequest{
		Model:        h.cfg.Model,
		Voice:        voice,
		Modalities:   []string{"audio", "text"},
		Instructions: h.cfg.Instructions,
		ToolChoice:   "auto",
	}
	if h.cfg.TranscriptionModel != "" {
		payload.InputAudioTranscription = &transcribeSpec{Model: h.cfg.TranscriptionModel}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := h.cfg.Credential.Apply(r.Context(), req); err != nil {
		return nil, err
	}
	logger.APIRequest(upstreamService, http.MethodPost, h.cfg.UpstreamURL,
		map[string]string{"Authorization": req.Header.Get("Authorization")}, payload)

	resp, err := h.client.Do(req)
	if err != nil {
		logger.APIResponse(upstreamService, 0, "", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("upstream returned status %d", resp.StatusCode)
		logger.APIResponse(upstreamService, resp.StatusCode, string(data), err)
		return nil, err
	}
	logger.APIResponse(upstreamService, resp.StatusCode, string(data), nil)
	if !json.Valid(data) {
		return nil, errors.New("upstream returned invalid JSON")
	}
	return data, nil
}

func (h *IssuerHandler) report(result string) {
	if h.cfg.OnResult != nil {
		h.cfg.OnResult(result)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return anonymousClient
	}
	return host
}

// clientLimiter keeps one token bucket per client address. Entries idle for
// longer than limiterKeyTTL are collected when the map fills up.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientEntry
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientEntry),
	}
}

// allow consumes one token for key. When none is available it returns the
// number of whole seconds until one will be.
func (l *clientLimiter) allow(key string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) >= limiterMaxKeys {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > limiterKeyTTL {
				delete(l.clients, k)
			}
		}
	}

	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 1
	}
	delay := res.DelayFrom(now)
	if delay <= 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}
