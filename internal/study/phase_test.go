package study

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialPhase(t *testing.T) {
	tests := []struct {
		name  string
		flags CompletionFlags
		want  Phase
	}{
		{"fresh", CompletionFlags{}, PhaseConsent},
		{"consented", CompletionFlags{Consent: true}, PhasePreAssessment},
		{"pre done", CompletionFlags{Consent: true, PreAssessment: true}, PhaseInteraction},
		{"interaction done", CompletionFlags{Consent: true, PreAssessment: true, Interaction: true}, PhasePostAssessment},
		{"all done", CompletionFlags{true, true, true, true}, PhaseCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InitialPhase(tt.flags))
		})
	}
}

func TestCheckTransition_ForwardOnly(t *testing.T) {
	phases := Phases()
	for i, from := range phases {
		for j, to := range phases {
			err := CheckTransition(from, to)
			if j == i+1 {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			var te *TransitionError
			assert.True(t, errors.As(err, &te))
			assert.ErrorIs(t, err, ErrInvalidRequest)
		}
	}
}

func TestCheckTransition_RejectsSkip(t *testing.T) {
	err := CheckTransition(PhaseConsent, PhaseInteraction)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot skip PRE_ASSESSMENT")
}

func TestCheckTransition_UnknownPhase(t *testing.T) {
	assert.Error(t, CheckTransition("BOGUS", PhaseConsent))
	assert.Error(t, CheckTransition(PhaseConsent, "BOGUS"))
}

func TestPhaseNext(t *testing.T) {
	next, ok := PhaseInteraction.Next()
	assert.True(t, ok)
	assert.Equal(t, PhasePostAssessment, next)

	_, ok = PhaseCompleted.Next()
	assert.False(t, ok)
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("POST_ASSESSMENT")
	require.NoError(t, err)
	assert.Equal(t, PhasePostAssessment, p)

	_, err = ParsePhase("post_assessment")
	assert.Error(t, err)
}

func TestCompletionFlags_SetInOrder(t *testing.T) {
	var f CompletionFlags

	_, err := f.Set(PhaseInteraction)
	require.Error(t, err, "interaction cannot be set before consent")

	f, err = f.Set(PhaseConsent)
	require.NoError(t, err)
	f, err = f.Set(PhasePreAssessment)
	require.NoError(t, err)

	_, err = f.Set(PhasePostAssessment)
	require.Error(t, err, "post cannot be set while interaction is false")

	f, err = f.Set(PhaseInteraction)
	require.NoError(t, err)
	f, err = f.Set(PhaseInteraction)
	require.NoError(t, err, "setting a true flag again is a no-op")

	assert.Equal(t, 75, f.CompletionPercentage())
	assert.True(t, f.Ordered())
}

func TestCompletionFlags_Percentage(t *testing.T) {
	for n := 0; n <= 4; n++ {
		var f CompletionFlags
		for _, p := range Phases()[:n] {
			var err error
			f, err = f.Set(p)
			require.NoError(t, err)
		}
		assert.Equal(t, n*25, f.CompletionPercentage())
	}
}

func TestCompletionFlags_Merge(t *testing.T) {
	local := CompletionFlags{Consent: true, PreAssessment: true, Interaction: true}
	remote := CompletionFlags{Consent: true}
	assert.Equal(t, local, local.Merge(remote), "merge never reverts a flag")
}

func TestCostLimits_BlockReason(t *testing.T) {
	assert.Empty(t, CostLimits{}.BlockReason())
	assert.Contains(t, CostLimits{DailyLimitExceeded: true, DailyCost: 1.5}.BlockReason(), "Daily")
	assert.Contains(t, CostLimits{WeeklyLimitExceeded: true}.BlockReason(), "Weekly")
	assert.True(t, CostLimits{WeeklyLimitExceeded: true}.Exceeded())
}

func TestCostLimitError_MatchesSentinel(t *testing.T) {
	err := error(&CostLimitError{Reason: "daily cap"})
	assert.ErrorIs(t, err, ErrCostLimit)
	assert.Equal(t, "daily cap", err.Error())
	assert.False(t, IsFatal(err))
	assert.True(t, IsFatal(ErrSessionCompleted))
}
