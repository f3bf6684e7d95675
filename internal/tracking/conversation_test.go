package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/studyctl/internal/clock"
	"github.com/abhisek/studyctl/internal/study"
)

// fakeConversation serves exchanges and a mutable ledger. When overCap is
// set it rejects exchanges the way the backend does.
type fakeConversation struct {
	fc        *clock.Fake
	limits    study.CostLimits
	overCap   bool
	sendErr   error
	latency   time.Duration
	requests  []study.ExchangeRequest
	ledgerHit int
}

func (f *fakeConversation) StartConversation(context.Context, string) error { return nil }
func (f *fakeConversation) EndConversation(context.Context, string) error   { return nil }

func (f *fakeConversation) SendExchange(_ context.Context, req study.ExchangeRequest) (*study.ExchangeResponse, error) {
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.overCap {
		return nil, &study.CostLimitError{Reason: "daily cap", Limits: f.limits}
	}
	if f.latency > 0 {
		f.fc.Advance(f.latency)
	}
	f.limits.DailyCost += 0.01
	f.limits.WeeklyCost += 0.01
	return &study.ExchangeResponse{
		Reply:        "reply to " + req.Message,
		Turn:         req.Turn,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: 20,
		Cost:         0.01,
	}, nil
}

func (f *fakeConversation) GetCostLimits(context.Context) (study.CostLimits, error) {
	f.ledgerHit++
	return f.limits, nil
}

func newConversation(t *testing.T) (*ConversationTracker, *fakeConversation, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(epoch)
	api := &fakeConversation{fc: fc}
	c := NewConversationTracker(fc, api, ConversationOptions{SessionID: "sess-1"})
	c.Start()
	t.Cleanup(c.Stop)
	return c, api, fc
}

func TestConversation_CountsExchanges(t *testing.T) {
	c, api, _ := newConversation(t)
	api.latency = 1500 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := c.Send(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, i+1, resp.Turn)
	}

	s := c.Summary()
	assert.Equal(t, 3, s.ExchangeCount)
	assert.Equal(t, 3, s.Turn)
	assert.Equal(t, 90, s.TotalTokens)
	assert.InDelta(t, 0.03, s.TotalCost, 1e-9)
	assert.Equal(t, 1500*time.Millisecond, s.Exchanges[0].Latency)
	assert.Equal(t, 3, api.ledgerHit, "ledger refreshed after every exchange")
	assert.Equal(t, "sess-1", api.requests[2].SessionID)
	assert.Equal(t, 3, api.requests[2].Turn)
}

func TestConversation_CapDisablesAndRestoreEnables(t *testing.T) {
	c, api, _ := newConversation(t)
	ctx := context.Background()

	api.limits = study.CostLimits{DailyCost: 2, DailyLimitExceeded: true}
	_, err := c.RefreshLedger(ctx)
	require.NoError(t, err)

	ok, reason := c.CanSend()
	assert.False(t, ok)
	assert.Contains(t, reason, "Daily spending limit")

	_, err = c.Send(ctx, "blocked")
	var cle *study.CostLimitError
	require.ErrorAs(t, err, &cle)
	assert.Empty(t, api.requests, "local block never reaches the backend")

	api.limits = study.CostLimits{WeeklyCost: 9, WeeklyLimitExceeded: true}
	_, err = c.RefreshLedger(ctx)
	require.NoError(t, err)
	ok, _ = c.CanSend()
	assert.False(t, ok, "weekly cap blocks as well")

	api.limits = study.CostLimits{DailyRemaining: 1, WeeklyRemaining: 5}
	ok, _ = c.CanSend()
	assert.False(t, ok, "only a refresh re-enables sending")

	_, err = c.RefreshLedger(ctx)
	require.NoError(t, err)
	ok, reason = c.CanSend()
	assert.True(t, ok)
	assert.Empty(t, reason)

	_, err = c.Send(ctx, "hello again")
	require.NoError(t, err)
}

func TestConversation_RemoteRejectionBlocksLikeLocal(t *testing.T) {
	c, api, _ := newConversation(t)
	ctx := context.Background()

	var changes []string
	c.opts.OnBlockChange = func(r string) { changes = append(changes, r) }

	api.overCap = true
	_, err := c.Send(ctx, "hi")
	require.ErrorIs(t, err, study.ErrCostLimit)

	ok, reason := c.CanSend()
	assert.False(t, ok)
	assert.Equal(t, "daily cap", reason)
	assert.Equal(t, 0, c.Turn(), "rejected exchange is not a turn")
	require.Len(t, changes, 1)

	_, err = c.Send(ctx, "again")
	require.ErrorIs(t, err, study.ErrCostLimit)
	assert.Len(t, api.requests, 1, "second attempt blocked locally")

	api.overCap = false
	_, err = c.RefreshLedger(ctx)
	require.NoError(t, err)
	ok, _ = c.CanSend()
	assert.True(t, ok)
	assert.Equal(t, []string{"daily cap", ""}, changes)
}

func TestConversation_TransientErrorDoesNotBlock(t *testing.T) {
	c, api, _ := newConversation(t)
	api.sendErr = errors.New("connection reset")

	_, err := c.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, study.ErrCostLimit)

	ok, _ := c.CanSend()
	assert.True(t, ok)
	assert.Equal(t, 0, c.Summary().ExchangeCount)
}

func TestConversation_EmptyMessageRejected(t *testing.T) {
	c, api, _ := newConversation(t)
	_, err := c.Send(context.Background(), "   ")
	require.ErrorIs(t, err, study.ErrInvalidRequest)
	assert.Empty(t, api.requests)
}

func TestConversation_ElapsedExcludesPause(t *testing.T) {
	c, _, fc := newConversation(t)
	fc.Advance(5 * time.Second)
	c.SetPaused(true)
	fc.Advance(5 * time.Second)
	c.SetPaused(false)
	fc.Advance(2 * time.Second)
	assert.Equal(t, 7, c.Summary().ElapsedSeconds)
}
