package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/study"
)

// ErrExchangeInFlight is returned when a message is sent while the previous
// exchange has not completed.
var ErrExchangeInFlight = errors.New("previous message still in flight")

// ConversationOptions configures a ConversationTracker.
type ConversationOptions struct {
	SessionID string
	Logger    *slog.Logger

	// OnExchange fires after each completed exchange.
	OnExchange func(rec ExchangeRecord)
	// OnBlockChange fires when sending becomes disabled or re-enabled. An
	// empty reason means sending is allowed again.
	OnBlockChange func(reason string)
}

// ConversationTracker counts exchanges, tokens and spend for the
// conversational modality and gates outbound messages on the cost ledger.
// The ledger is always taken from the backend, never computed locally.
type ConversationTracker struct {
	sched clock.Scheduler
	api   study.ConversationAPI
	opts  ConversationOptions
	log   *slog.Logger

	mu          sync.Mutex
	turn        int
	exchanges   []ExchangeRecord
	tokens      int
	cost        float64
	ledger      study.CostLimits
	blockReason string
	elapsed     int
	paused      bool
	started     bool
	stopped     bool
	inFlight    bool
	tick        clock.Handle
}

var _ Tracker = (*ConversationTracker)(nil)

// NewConversationTracker creates a tracker sending through api.
func NewConversationTracker(sched clock.Scheduler, api study.ConversationAPI, opts ConversationOptions) *ConversationTracker {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ConversationTracker{
		sched: sched,
		api:   api,
		opts:  opts,
		log:   log.With("component", "conversation_tracker"),
	}
}

// Start begins the elapsed-time tick.
func (c *ConversationTracker) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	c.tick = c.sched.Every(time.Second, c.onTick)
}

// Stop cancels the tick.
func (c *ConversationTracker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

// SetPaused suspends elapsed time accounting.
func (c *ConversationTracker) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// CanSend reports whether a new message may be sent and, if not, why.
func (c *ConversationTracker) CanSend() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blockReason != "" {
		return false, c.blockReason
	}
	if c.inFlight {
		return false, ErrExchangeInFlight.Error()
	}
	return true, ""
}

// Ledger returns the last ledger fetched from the backend.
func (c *ConversationTracker) Ledger() study.CostLimits {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger
}

// Turn returns the number of completed exchanges.
func (c *ConversationTracker) Turn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn
}

// Send sends one message and records the exchange. A cost-limit rejection,
// whether decided locally from the cached ledger or by the backend, returns
// a *study.CostLimitError and disables sending until a ledger refresh shows
// both windows under cap again.
func (c *ConversationTracker) Send(ctx context.Context, message string) (*study.ExchangeResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("empty message: %w", study.ErrInvalidRequest)
	}

	c.mu.Lock()
	if c.blockReason != "" {
		err := &study.CostLimitError{Reason: c.blockReason, Limits: c.ledger}
		c.mu.Unlock()
		return nil, err
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrExchangeInFlight
	}
	c.inFlight = true
	turn := c.turn + 1
	c.mu.Unlock()

	start := c.sched.Now()
	resp, err := c.api.SendExchange(ctx, study.ExchangeRequest{
		Message:   message,
		SessionID: c.opts.SessionID,
		Turn:      turn,
	})
	latency := c.sched.Now().Sub(start)

	if err != nil {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()

		if errors.Is(err, study.ErrCostLimit) {
			return nil, c.handleRemoteLimit(ctx, err)
		}
		return nil, fmt.Errorf("send exchange: %w", err)
	}

	rec := ExchangeRecord{
		Turn:         turn,
		Latency:      latency,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         resp.Cost,
		At:           c.sched.Now(),
	}

	c.mu.Lock()
	c.inFlight = false
	c.turn = turn
	c.exchanges = append(c.exchanges, rec)
	c.tokens += resp.TotalTokens()
	c.cost += resp.Cost
	cb := c.opts.OnExchange
	c.mu.Unlock()

	if cb != nil {
		cb(rec)
	}

	if _, err := c.RefreshLedger(ctx); err != nil {
		c.log.Warn("ledger refresh after exchange failed", "turn", turn, "error", err)
	}
	return resp, nil
}

// RefreshLedger fetches the cost ledger and updates the send gate from it.
func (c *ConversationTracker) RefreshLedger(ctx context.Context) (study.CostLimits, error) {
	limits, err := c.api.GetCostLimits(ctx)
	if err != nil {
		return study.CostLimits{}, fmt.Errorf("get cost limits: %w", err)
	}
	c.mu.Lock()
	c.ledger = limits
	c.mu.Unlock()
	c.setBlockReason(limits.BlockReason())
	return limits, nil
}

// Summary returns the current aggregated telemetry.
func (c *ConversationTracker) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	exchanges := make([]ExchangeRecord, len(c.exchanges))
	copy(exchanges, c.exchanges)
	return Summary{
		Modality:       study.ModalityConversational,
		ElapsedSeconds: c.elapsed,
		ExchangeCount:  len(c.exchanges),
		Turn:           c.turn,
		TotalTokens:    c.tokens,
		TotalCost:      c.cost,
		Exchanges:      exchanges,
	}
}

func (c *ConversationTracker) handleRemoteLimit(ctx context.Context, cause error) error {
	reason := ""
	var cle *study.CostLimitError
	if errors.As(cause, &cle) {
		reason = cle.Reason
	}

	limits, err := c.RefreshLedger(ctx)
	if err != nil {
		c.log.Warn("ledger refresh after cost-limit rejection failed", "error", err)
		limits = c.Ledger()
	}
	if r := limits.BlockReason(); r != "" {
		reason = r
	}
	if reason == "" {
		reason = study.ErrCostLimit.Error()
	}
	// The backend decided; block even if the refreshed ledger disagrees.
	c.setBlockReason(reason)
	return &study.CostLimitError{Reason: reason, Limits: limits}
}

func (c *ConversationTracker) setBlockReason(reason string) {
	c.mu.Lock()
	changed := c.blockReason != reason
	c.blockReason = reason
	cb := c.opts.OnBlockChange
	c.mu.Unlock()

	if changed && cb != nil {
		cb(reason)
	}
}

func (c *ConversationTracker) onTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.paused {
		return
	}
	c.elapsed++
}
