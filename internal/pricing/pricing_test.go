package pricing

import (
	"math"
	"testing"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-opus-4-1-20250805", "opus"},
		{"claude-3-5-Sonnet-20241022", "sonnet"},
		{"claude-haiku-4-5", "haiku"},
		{"gpt-4o", "gpt-4o"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Family(tt.model); got != tt.want {
			t.Errorf("Family(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestUsageAdd(t *testing.T) {
	a := Usage{Input: 1, Output: 2, CacheWrite: 3, CacheRead: 4}
	b := Usage{Input: 10, Output: 20, CacheWrite: 30, CacheRead: 40}
	got := a.Add(b)
	want := Usage{Input: 11, Output: 22, CacheWrite: 33, CacheRead: 44}
	if got != want {
		t.Errorf("Add = %+v, want %+v", got, want)
	}
	if got.Total() != 110 {
		t.Errorf("Total = %d, want 110", got.Total())
	}
	if got.IsZero() || !(Usage{}).IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestTableCost(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name  string
		model string
		usage Usage
		want  float64
	}{
		{"opus output", "claude-opus-4", Usage{Output: 1_000_000}, 75},
		{"sonnet mixed", "sonnet", Usage{Input: 1_000_000, CacheRead: 1_000_000}, 3.30},
		{"unknown falls back to sonnet", "mystery", Usage{Input: 2_000_000}, 6},
		{"zero usage", "opus", Usage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Cost(tt.model, tt.usage)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cost = %v, want %v", got, tt.want)
			}
		})
	}
}
