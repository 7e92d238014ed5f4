// Package pricing turns accumulated token usage into an estimated cost.
package pricing

import "strings"

// Usage holds token counts accumulated from assistant log entries.
type Usage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheWrite int64 `json:"cacheWrite"`
	CacheRead  int64 `json:"cacheRead"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		Input:      u.Input + o.Input,
		Output:     u.Output + o.Output,
		CacheWrite: u.CacheWrite + o.CacheWrite,
		CacheRead:  u.CacheRead + o.CacheRead,
	}
}

// Total returns the sum of all token counts.
func (u Usage) Total() int64 {
	return u.Input + u.Output + u.CacheWrite + u.CacheRead
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Pricer computes the cost of usage for a model.
type Pricer interface {
	Cost(model string, u Usage) float64
}

// Rate is a price in USD per million tokens.
type Rate struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

// Table is a Pricer keyed by model family.
type Table struct {
	Rates    map[string]Rate
	Fallback Rate
}

// DefaultTable returns published list prices per model family.
func DefaultTable() *Table {
	sonnet := Rate{Input: 3, Output: 15, CacheWrite: 3.75, CacheRead: 0.30}
	return &Table{
		Rates: map[string]Rate{
			"opus":   {Input: 15, Output: 75, CacheWrite: 18.75, CacheRead: 1.50},
			"sonnet": sonnet,
			"haiku":  {Input: 0.80, Output: 4, CacheWrite: 1, CacheRead: 0.08},
		},
		Fallback: sonnet,
	}
}

// Cost implements Pricer.
func (t *Table) Cost(model string, u Usage) float64 {
	rate, ok := t.Rates[Family(model)]
	if !ok {
		rate = t.Fallback
	}
	const perMillion = 1_000_000.0
	return (float64(u.Input)*rate.Input +
		float64(u.Output)*rate.Output +
		float64(u.CacheWrite)*rate.CacheWrite +
		float64(u.CacheRead)*rate.CacheRead) / perMillion
}

// Family simplifies a model identifier to opus, sonnet or haiku when it
// names one of those families, and returns it unchanged otherwise.
func Family(model string) string {
	lower := strings.ToLower(model)
	for _, family := range []string{"opus", "sonnet", "haiku"} {
		if strings.Contains(lower, family) {
			return family
		}
	}
	return model
}
