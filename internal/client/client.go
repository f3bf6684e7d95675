// Package client talks to the study server over HTTP and implements the
// study API interfaces for one participant.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/abhisek/studyctl/internal/server"
	"github.com/abhisek/studyctl/internal/study"
)

// ErrIncompatible means the server speaks a different API major version.
var ErrIncompatible = errors.New("incompatible server API version")

// APIError is a non-2xx response. It unwraps to the matching study error so
// callers can use errors.Is(err, study.ErrForbidden) and friends.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (HTTP %d %s): %s", e.Message, e.Status, e.Code, e.Details)
	}
	return fmt.Sprintf("%s (HTTP %d %s)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case server.CodeForbidden:
		return study.ErrForbidden
	case server.CodeSessionCompleted:
		return study.ErrSessionCompleted
	case server.CodeNotFound:
		return study.ErrNotFound
	case server.CodeInvalidRequest, server.CodeMissingIdentity:
		return study.ErrInvalidRequest
	case server.CodeUnavailable:
		return study.ErrUnavailable
	case server.CodeCostLimit:
		return study.ErrCostLimit
	}
	return nil
}

// Client is an HTTP client for one study server.
type Client struct {
	baseURL       string
	http          *http.Client
	participantID string
	log           *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithParticipant binds the client to a participant id.
func WithParticipant(id string) Option {
	return func(c *Client) { c.participantID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ParticipantID returns the bound participant id.
func (c *Client) ParticipantID() string { return c.participantID }

// ForParticipant returns a copy of c bound to id.
func (c *Client) ForParticipant(id string) *Client {
	cp := *c
	cp.participantID = id
	return &cp
}

var (
	_ study.SessionAPI      = (*Client)(nil)
	_ study.ConversationAPI = (*Client)(nil)
	_ study.ProfileAPI      = (*Client)(nil)
)

// CheckVersion fetches the server API version and fails with
// ErrIncompatible when its major version differs from ours.
func (c *Client) CheckVersion(ctx context.Context) (string, error) {
	var v server.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &v); err != nil {
		return "", fmt.Errorf("check version: %w", err)
	}
	if !semver.IsValid(v.APIVersion) {
		return "", fmt.Errorf("server reported %q: %w", v.APIVersion, ErrIncompatible)
	}
	if semver.Major(v.APIVersion) != semver.Major(server.APIVersion) {
		return v.APIVersion, fmt.Errorf("server %s, client %s: %w", v.APIVersion, server.APIVersion, ErrIncompatible)
	}
	if semver.Compare(v.APIVersion, server.APIVersion) < 0 {
		c.log.Warn("server API is older than client", "server", v.APIVersion, "client", server.APIVersion)
	}
	return v.APIVersion, nil
}

// Register creates a participant. A nil modality lets the server assign one.
func (c *Client) Register(ctx context.Context, modality *study.Modality) (*study.Participant, error) {
	var req server.RegisterRequest
	if modality != nil {
		req.Modality = string(*modality)
	}
	var p study.Participant
	if err := c.do(ctx, http.MethodPost, "/api/participants", req, &p); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &p, nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.participantID != "" {
		req.Header.Set(server.ParticipantHeader, c.participantID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug("api call", "method", method, "path", path, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body server.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: codeForStatus(resp.StatusCode), Message: msg}
	}
	if body.Code == server.CodeCostLimit {
		cle := &study.CostLimitError{Reason: body.Error}
		if body.Limits != nil {
			cle.Limits = *body.Limits
		}
		return cle
	}
	return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error, Details: body.Details}
}

// codeForStatus classifies responses that did not come from our handlers,
// such as a proxy error page.
func codeForStatus(status int) string {
	switch status {
	case http.StatusForbidden:
		return server.CodeForbidden
	case http.StatusConflict:
		return server.CodeSessionCompleted
	case http.StatusNotFound:
		return server.CodeNotFound
	case http.StatusBadRequest:
		return server.CodeInvalidRequest
	case http.StatusTooManyRequests:
		return server.CodeCostLimit
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return server.CodeUnavailable
	}
	return server.CodeInternal
}
