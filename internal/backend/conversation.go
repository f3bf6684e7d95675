package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/studyctl/internal/llm"
	"github.com/abhisek/studyctl/internal/store"
	"github.com/abhisek/studyctl/internal/study"
)

// Rolling windows for the spending caps.
const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour
)

// maxMessageLen bounds a single participant message in bytes.
const maxMessageLen = 4000

func (a *ParticipantAPI) StartConversation(ctx context.Context, sessionID string) error {
	if err := a.requireConversational(ctx); err != nil {
		return err
	}
	sess, err := a.openSession(ctx, a.svc.store.SessionRepo(), sessionID)
	if err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	if err := a.svc.store.ConversationRepo().Start(ctx, sess.ID, a.id, a.svc.opts.Now()); err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	return nil
}

// EndConversation closes the conversation. Ending twice is a no-op.
func (a *ParticipantAPI) EndConversation(ctx context.Context, sessionID string) error {
	if _, err := a.ownedSession(ctx, a.svc.store.SessionRepo(), sessionID); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	if err := a.svc.store.ConversationRepo().End(ctx, sessionID, a.svc.opts.Now()); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}

// SendExchange forwards one participant message to the assistant. The
// spending caps are checked before the provider is called; a participant at
// either cap gets a *study.CostLimitError and no request is made.
func (a *ParticipantAPI) SendExchange(ctx context.Context, req study.ExchangeRequest) (*study.ExchangeResponse, error) {
	svc := a.svc
	if svc.provider == nil {
		return nil, fmt.Errorf("assistant not configured: %w", study.ErrUnavailable)
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, fmt.Errorf("empty message: %w", study.ErrInvalidRequest)
	}
	if len(msg) > maxMessageLen {
		return nil, fmt.Errorf("message longer than %d bytes: %w", maxMessageLen, study.ErrInvalidRequest)
	}
	if err := a.requireConversational(ctx); err != nil {
		return nil, err
	}
	if _, err := a.openSession(ctx, svc.store.SessionRepo(), req.SessionID); err != nil {
		return nil, fmt.Errorf("send exchange: %w", err)
	}
	convo, err := svc.store.ConversationRepo().Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("send exchange: %w", err)
	}
	if !convo.Active() {
		return nil, fmt.Errorf("conversation already ended: %w", study.ErrInvalidRequest)
	}

	if err := svc.limiter(a.id).Wait(ctx); err != nil {
		return nil, fmt.Errorf("exchange rate: %w", err)
	}

	lock := svc.turnLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	limits, err := a.GetCostLimits(ctx)
	if err != nil {
		return nil, err
	}
	if limits.Exceeded() {
		svc.opts.Metrics.ExchangeFinished("cost_limit", "", 0, 0, 0, 0)
		svc.log.Info("exchange refused at spending cap", "participant_id", a.id,
			"daily_cost", limits.DailyCost, "weekly_cost", limits.WeeklyCost)
		return nil, &study.CostLimitError{Reason: limits.BlockReason(), Limits: limits}
	}

	history, err := svc.store.EventRepo().Exchanges(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turn := len(history) + 1
	if req.Turn != 0 && req.Turn != turn {
		svc.log.Warn("client turn out of step", "session_id", req.SessionID, "client_turn", req.Turn, "turn", turn)
	}

	llmCtx, cancel := context.WithTimeout(llm.WithSession(llm.WithPurpose(ctx, llm.PurposeExchange), req.SessionID), svc.opts.LLMTimeout)
	defer cancel()

	start := time.Now()
	resp, err := svc.provider.Generate(llmCtx, llm.Request{
		System:    svc.opts.SystemPrompt,
		Messages:  buildTranscript(history, msg),
		MaxTokens: svc.opts.MaxTokens,
	})
	latency := time.Since(start)
	if err != nil {
		svc.opts.Metrics.ExchangeFinished("error", "", 0, 0, 0, 0)
		return nil, fmt.Errorf("assistant: %w", mapProviderError(err))
	}

	model := resp.Model
	if model == "" {
		model = svc.provider.ModelID()
	}
	cost := llm.ExchangeCost(model, resp.Usage)

	err = svc.store.EventRepo().AppendExchange(ctx, store.ExchangeData{
		SessionID:     req.SessionID,
		ParticipantID: a.id,
		Turn:          turn,
		Message:       msg,
		Reply:         resp.Text,
		Model:         model,
		InputTokens:   resp.Usage.InputTokens,
		OutputTokens:  resp.Usage.OutputTokens,
		Cost:          cost,
		LatencyMs:     latency.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("record exchange: %w", err)
	}
	svc.opts.Metrics.ExchangeFinished("success", model, latency.Seconds(),
		resp.Usage.InputTokens, resp.Usage.OutputTokens, cost)

	return &study.ExchangeResponse{
		Reply:        resp.Text,
		Turn:         turn,
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         cost,
	}, nil
}

// GetCostLimits reports spend over the rolling day and week. A window is
// exceeded once spend reaches its cap.
func (a *ParticipantAPI) GetCostLimits(ctx context.Context) (study.CostLimits, error) {
	svc := a.svc
	now := svc.opts.Now()
	events := svc.store.EventRepo()

	daily, err := events.SpendSince(ctx, a.id, now.Add(-dailyWindow))
	if err != nil {
		return study.CostLimits{}, fmt.Errorf("cost limits: %w", err)
	}
	weekly, err := events.SpendSince(ctx, a.id, now.Add(-weeklyWindow))
	if err != nil {
		return study.CostLimits{}, fmt.Errorf("cost limits: %w", err)
	}

	lim := svc.opts.Limits
	return study.CostLimits{
		DailyCost:           daily,
		DailyRemaining:      max(0, lim.Daily-daily),
		WeeklyCost:          weekly,
		WeeklyRemaining:     max(0, lim.Weekly-weekly),
		DailyLimitExceeded:  daily >= lim.Daily,
		WeeklyLimitExceeded: weekly >= lim.Weekly,
	}, nil
}

func (a *ParticipantAPI) requireConversational(ctx context.Context) error {
	p, err := a.svc.store.ParticipantRepo().Get(ctx, a.id)
	if err != nil {
		return err
	}
	if p.Modality != study.ModalityConversational {
		return fmt.Errorf("participant modality is %s: %w", p.Modality, study.ErrInvalidRequest)
	}
	return nil
}

// buildTranscript replays the stored exchanges followed by the new message.
func buildTranscript(history []store.ExchangeRecord, msg string) []llm.Message {
	out := make([]llm.Message, 0, 2*len(history)+1)
	for _, ex := range history {
		out = append(out,
			llm.Message{Role: llm.RoleUser, Content: ex.Message},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Reply},
		)
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: msg})
}

// mapProviderError marks provider failures the participant can retry as
// study.ErrUnavailable while keeping the provider error in the chain.
func mapProviderError(err error) error {
	var (
		rl      *llm.ErrRateLimit
		unavail *llm.ErrProviderUnavailable
	)
	if errors.As(err, &rl) || errors.As(err, &unavail) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(study.ErrUnavailable, err)
	}
	return err
}
