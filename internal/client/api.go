package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/abhisek/studyctl/internal/server"
	"github.com/abhisek/studyctl/internal/study"
)

func sessionPath(id string, suffix string) string {
	return "/api/sessions/" + url.PathEscape(id) + suffix
}

func (c *Client) StartSession(ctx context.Context) (*study.Session, error) {
	var s study.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", struct{}{}, &s); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &s, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*study.Session, error) {
	var s study.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &s); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (c *Client) UpdatePhase(ctx context.Context, id string, phase study.Phase) (*study.Session, error) {
	var s study.Session
	req := server.PhaseRequest{Phase: string(phase)}
	if err := c.do(ctx, http.MethodPut, sessionPath(id, "/phase"), req, &s); err != nil {
		return nil, fmt.Errorf("update phase: %w", err)
	}
	return &s, nil
}

func (c *Client) CompleteSession(ctx context.Context, id string) (*study.Session, error) {
	var s study.Session
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/complete"), struct{}{}, &s); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	return &s, nil
}

func (c *Client) UpdateSessionTime(ctx context.Context, id string, update study.TimeUpdate) error {
	spent := update.TimeSpent
	req := server.TimeRequest{TimeSpent: &spent, IsPaused: update.IsPaused}
	if err := c.do(ctx, http.MethodPut, sessionPath(id, "/time"), req, nil); err != nil {
		return fmt.Errorf("update session time: %w", err)
	}
	return nil
}

func (c *Client) LogEvent(ctx context.Context, id string, event study.LogEvent) error {
	req := server.LogEventRequest{LogType: event.LogType, EventData: event.EventData}
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/events"), req, nil); err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func (c *Client) StartConversation(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "/conversation"), struct{}{}, nil); err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	return nil
}

func (c *Client) EndConversation(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodDelete, sessionPath(sessionID, "/conversation"), nil, nil); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}

// SendExchange posts one message. A spending-cap refusal comes back as a
// *study.CostLimitError.
func (c *Client) SendExchange(ctx context.Context, req study.ExchangeRequest) (*study.ExchangeResponse, error) {
	var out study.ExchangeResponse
	body := server.ExchangeRequest{Message: req.Message, Turn: req.Turn}
	if err := c.do(ctx, http.MethodPost, sessionPath(req.SessionID, "/exchanges"), body, &out); err != nil {
		return nil, fmt.Errorf("send exchange: %w", err)
	}
	return &out, nil
}

func (c *Client) GetCostLimits(ctx context.Context) (study.CostLimits, error) {
	var out study.CostLimits
	if err := c.do(ctx, http.MethodGet, "/api/participants/me/cost-limits", nil, &out); err != nil {
		return study.CostLimits{}, fmt.Errorf("cost limits: %w", err)
	}
	return out, nil
}

func (c *Client) GetProfile(ctx context.Context) (*study.Participant, error) {
	var p study.Participant
	if err := c.do(ctx, http.MethodGet, "/api/participants/me", nil, &p); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (c *Client) MarkInteractionComplete(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/participants/me/interaction", struct{}{}, nil); err != nil {
		return fmt.Errorf("mark interaction complete: %w", err)
	}
	return nil
}

func (c *Client) RecordConsent(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/participants/me/consent", struct{}{}, nil); err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	return nil
}

func (c *Client) CompleteAssessment(ctx context.Context, kind study.AssessmentKind) error {
	path := "/api/participants/me/assessments/" + url.PathEscape(string(kind))
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("complete %s assessment: %w", kind, err)
	}
	return nil
}
