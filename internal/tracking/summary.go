// Package tracking accumulates interaction telemetry for the two learning
// modalities so both produce comparable summaries.
package tracking

import (
	"sort"
	"time"

	"github.com/abhisek/studyctl/internal/study"
)

// Tracker is the modality-independent view the session controller holds.
type Tracker interface {
	Start()
	Stop()
	SetPaused(paused bool)
	Summary() Summary
}

// UnitRecord is the reading telemetry for one content unit (page).
type UnitRecord struct {
	Unit           int       `json:"unit"`
	TotalTimeMs    int64     `json:"total_time_ms"`
	ScrollDepth    int       `json:"scroll_depth"`
	MaxScrollDepth int       `json:"max_scroll_depth"`
	TimeEntered    time.Time `json:"time_entered"`
}

// ExchangeRecord is the telemetry for one completed conversational exchange.
type ExchangeRecord struct {
	Turn         int           `json:"turn"`
	Latency      time.Duration `json:"latency"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	At           time.Time     `json:"at"`
}

// Summary is the aggregated telemetry reported upward by a tracker.
type Summary struct {
	Modality       study.Modality
	ElapsedSeconds int

	// Reading.
	UnitsVisited    int
	TotalUnits      int
	ReadingProgress float64
	Units           []UnitRecord

	// Conversational.
	ExchangeCount int
	Turn          int
	TotalTokens   int
	TotalCost     float64
	Exchanges     []ExchangeRecord
}

// EventData flattens the summary into a log event payload.
func (s Summary) EventData() map[string]any {
	data := map[string]any{
		"modality":        string(s.Modality),
		"elapsed_seconds": s.ElapsedSeconds,
	}
	switch s.Modality {
	case study.ModalityReading:
		units := make([]map[string]any, 0, len(s.Units))
		for _, u := range s.Units {
			units = append(units, map[string]any{
				"unit":             u.Unit,
				"total_time_ms":    u.TotalTimeMs,
				"scroll_depth":     u.ScrollDepth,
				"max_scroll_depth": u.MaxScrollDepth,
				"time_entered":     u.TimeEntered.UTC().Format(time.RFC3339Nano),
			})
		}
		data["units_visited"] = s.UnitsVisited
		data["total_units"] = s.TotalUnits
		data["reading_progress"] = s.ReadingProgress
		data["units"] = units
	case study.ModalityConversational:
		exchanges := make([]map[string]any, 0, len(s.Exchanges))
		for _, e := range s.Exchanges {
			exchanges = append(exchanges, map[string]any{
				"turn":          e.Turn,
				"latency_ms":    e.Latency.Milliseconds(),
				"input_tokens":  e.InputTokens,
				"output_tokens": e.OutputTokens,
				"cost":          e.Cost,
			})
		}
		data["exchange_count"] = s.ExchangeCount
		data["turn"] = s.Turn
		data["total_tokens"] = s.TotalTokens
		data["total_cost"] = s.TotalCost
		data["exchanges"] = exchanges
	}
	return data
}

func sortedUnits(units map[int]*UnitRecord) []UnitRecord {
	out := make([]UnitRecord, 0, len(units))
	for _, u := range units {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}
