package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/schedura/console-gateway/internal/models"
	appErrors "github.com/schedura/console-gateway/pkg/errors"
)

// SessionStore owns the token pair the client authenticates with. The
// durable implementation lives in internal/repository; tests use an
// in-memory one.
type SessionStore interface {
	Tokens() models.TokenPair
	SetTokens(pair models.TokenPair)
	// Clear wipes tokens, profile and the authenticated flag. Called on
	// irrecoverable auth failure.
	Clear()
}

// Config wires the client to the upstream platform. Both hooks are
// optional instrumentation points.
type Config struct {
	BaseURL     string
	RefreshPath string
	Timeout     time.Duration

	ObserveRequest func(path string, duration time.Duration)
	ObserveRefresh func(ok bool)
}

// Client performs JSON calls against the upstream timetable platform with
// bearer injection and transparent token-refresh retry. At most one refresh
// request is in flight at any time; every 401-triggered caller queues behind
// the same mutex and re-checks token freshness before deciding whether to
// refresh again or just retry.
type Client struct {
	baseURL     string
	refreshPath string
	http        *http.Client
	store       SessionStore
	logger      *zap.Logger

	observeRequest func(path string, duration time.Duration)
	observeRefresh func(ok bool)

	refreshMu  sync.Mutex
	generation uint64
}

// NewClient builds an upstream client around the given session store.
func NewClient(cfg Config, store SessionStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		refreshPath:    refreshPath,
		http:           &http.Client{Timeout: cfg.Timeout},
		store:          store,
		logger:         logger,
		observeRequest: cfg.ObserveRequest,
		observeRefresh: cfg.ObserveRefresh,
	}
}

// Generation returns the current token generation. It advances by one on
// every successful refresh.
func (c *Client) Generation() uint64 {
	return atomic.LoadUint64(&c.generation)
}

// Request describes one upstream call. Body is retained as bytes so the
// request can be replayed after a token refresh; for multipart uploads the
// caller builds the encoded body and passes the boundary-bearing content
// type instead of letting the client force application/json.
type Request struct {
	Method      string
	Path        string
	Body        []byte
	ContentType string
	Multipart   bool
	// SkipAuth suppresses bearer injection (login, refresh).
	SkipAuth bool
}

// envelope is the upstream response contract.
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
}

// Pagination mirrors the upstream paging block.
type Pagination struct {
	TotalItems   int `json:"totalItems"`
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// Do executes one request and unmarshals the envelope's data into out (out
// may be nil). A 204 returns immediately with no body. A 401 on an
// authenticated request triggers the single-flight refresh-and-retry path;
// a 401 on the refresh path itself ends the session.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*Pagination, error) {
	allowRefresh := !req.SkipAuth && req.Path != c.refreshPath
	seenGen := atomic.LoadUint64(&c.generation)

	pagination, status, err := c.send(ctx, req, allowRefresh, out)
	if err != nil {
		if req.Path == c.refreshPath && appErrors.FromError(err).Status == http.StatusUnauthorized {
			c.store.Clear()
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		return pagination, err
	}
	if status != http.StatusUnauthorized {
		return pagination, nil
	}

	if err := c.awaitRefresh(ctx, seenGen); err != nil {
		return nil, err
	}

	pagination, _, err = c.send(ctx, req, false, out)
	if err != nil {
		if appErrors.FromError(err).Status == http.StatusUnauthorized {
			// Fresh token still rejected; nothing left to recover with.
			c.store.Clear()
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		return pagination, err
	}
	return pagination, nil
}

// send performs one HTTP round trip. When allowRefresh is set a 401 is
// reported through the status return, not the error, so Do can drive the
// refresh flow; otherwise it surfaces as a regular HTTP error.
func (c *Client) send(ctx context.Context, req Request, allowRefresh bool, out interface{}) (*Pagination, int, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build upstream request")
	}

	switch {
	case req.ContentType != "":
		httpReq.Header.Set("Content-Type", req.ContentType)
	case req.Multipart:
		// Boundary comes with the prepared body's content type; never
		// overwrite it with JSON.
	case len(req.Body) > 0:
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	if !req.SkipAuth {
		if token := c.store.Tokens().AccessToken; token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if c.observeRequest != nil {
		c.observeRequest(req.Path, time.Since(start))
	}
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized && allowRefresh {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, http.StatusUnauthorized, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, appErrors.New("UPSTREAM_HTTP", resp.StatusCode, extractMessage(raw, resp.Status))
	}

	if resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil, resp.StatusCode, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode upstream response")
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, resp.StatusCode, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode upstream payload")
		}
	}
	return env.Pagination, resp.StatusCode, nil
}

// awaitRefresh serializes token refreshes. Whoever holds the lock first
// performs the single refresh; everyone that piled up behind it observes
// the advanced generation and returns without refreshing again.
func (c *Client) awaitRefresh(ctx context.Context, seenGen uint64) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if atomic.LoadUint64(&c.generation) != seenGen {
		// Another in-flight request already rotated the token pair.
		return nil
	}

	refreshToken := c.store.Tokens().RefreshToken
	if refreshToken == "" {
		c.store.Clear()
		return appErrors.Clone(appErrors.ErrSessionExpired, "")
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode refresh payload")
	}

	var pair models.TokenPair
	_, _, err = c.send(ctx, Request{
		Method:   http.MethodPost,
		Path:     c.refreshPath,
		Body:     payload,
		SkipAuth: true,
	}, false, &pair)
	if err != nil || pair.AccessToken == "" {
		c.logger.Warn("token refresh failed, clearing session", zap.Error(err))
		if c.observeRefresh != nil {
			c.observeRefresh(false)
		}
		c.store.Clear()
		return appErrors.Clone(appErrors.ErrSessionExpired, "")
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	c.store.SetTokens(pair)
	atomic.AddUint64(&c.generation, 1)
	if c.observeRefresh != nil {
		c.observeRefresh(true)
	}
	c.logger.Debug("access token refreshed")
	return nil
}

func extractMessage(raw []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return env.Message
	}
	var direct struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &direct); err == nil && direct.Message != "" {
		return direct.Message
	}
	return fallback
}
