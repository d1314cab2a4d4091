// Package cost tracks model token usage per day and per model, with an
// estimated spend from configured per-million-token rates.
package cost

import (
	"sort"
	"sync"
	"time"
)

// Rate is the price in USD per million tokens.
type Rate struct {
	Input  float64
	Output float64
}

// DefaultRates covers the models paimy ships configured for.
var DefaultRates = map[string]Rate{
	"claude-sonnet-4-20250514": {Input: 3, Output: 15},
	"claude-3-5-haiku-latest":  {Input: 0.8, Output: 4},
	"gpt-4o":                   {Input: 2.5, Output: 10},
	"gpt-4o-mini":              {Input: 0.15, Output: 0.6},
}

// ModelUsage is the usage of one model on one day.
type ModelUsage struct {
	Model        string  `json:"model"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// DailyStats is the usage for a single day.
type DailyStats struct {
	Date         string       `json:"date"`
	Requests     int          `json:"requests"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	Cost         float64      `json:"cost_usd"`
	Models       []ModelUsage `json:"models"`
}

// Tracker records model usage. The day rolls over at midnight in loc.
type Tracker struct {
	mu     sync.Mutex
	rates  map[string]Rate
	loc    *time.Location
	now    func() time.Time
	date   string
	models map[string]*ModelUsage
}

// NewTracker creates a tracker. A nil rates map uses DefaultRates.
func NewTracker(rates map[string]Rate, loc *time.Location) *Tracker {
	if rates == nil {
		rates = DefaultRates
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		rates:  rates,
		loc:    loc,
		now:    time.Now,
		models: make(map[string]*ModelUsage),
	}
}

// Record adds one model call. Unknown models are counted at zero cost.
// Safe on a nil receiver.
func (t *Tracker) Record(model string, inputTokens, outputTokens int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	u, ok := t.models[model]
	if !ok {
		u = &ModelUsage{Model: model}
		t.models[model] = u
	}
	rate := t.rates[model]
	u.Requests++
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.Cost += (float64(inputTokens)*rate.Input + float64(outputTokens)*rate.Output) / 1_000_000
}

// Today returns today's usage, models sorted by name.
func (t *Tracker) Today() DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	stats := DailyStats{Date: t.date, Models: make([]ModelUsage, 0, len(t.models))}
	for _, u := range t.models {
		stats.Requests += u.Requests
		stats.InputTokens += u.InputTokens
		stats.OutputTokens += u.OutputTokens
		stats.Cost += u.Cost
		stats.Models = append(stats.Models, *u)
	}
	sort.Slice(stats.Models, func(i, j int) bool { return stats.Models[i].Model < stats.Models[j].Model })
	return stats
}

// rollover resets the counters when the day changed. Callers hold mu.
func (t *Tracker) rollover() {
	today := t.now().In(t.loc).Format("2006-01-02")
	if today != t.date {
		t.date = today
		t.models = make(map[string]*ModelUsage)
	}
}
