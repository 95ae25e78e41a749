package bridge

import (
	"testing"
)

func TestPlanReplay(t *testing.T) {
	tests := []struct {
		name       string
		limit      int64
		n          int
		finalEnd   int64
		offset     int64
		ok         bool
		wantFrom   int
		wantOffset int64
	}{
		{name: "empty previous buffer", limit: 1000, n: 0, ok: false},
		{name: "degenerate limit", limit: 0, n: 10, ok: false},
		{name: "nothing finalized replays everything", limit: 1000, n: 10, ok: true, wantFrom: 0, wantOffset: 1000},
		{name: "half finalized", limit: 1000, n: 10, finalEnd: 500, ok: true, wantFrom: 5, wantOffset: 500},
		{name: "offset inside final", limit: 1000, n: 10, finalEnd: 500, offset: 300, ok: true, wantFrom: 2, wantOffset: 800},
		{name: "offset above final is clamped", limit: 1000, n: 10, finalEnd: 500, offset: 800, ok: true, wantFrom: 0, wantOffset: 1000},
		{name: "negative offset is clamped", limit: 1000, n: 10, finalEnd: 0, offset: -5, ok: true, wantFrom: 0, wantOffset: 1000},
		{name: "final beyond buffer replays nothing", limit: 1000, n: 10, finalEnd: 5000, ok: true, wantFrom: 10, wantOffset: 0},
		{name: "uneven chunk time floors", limit: 1000, n: 3, finalEnd: 500, ok: true, wantFrom: 1, wantOffset: 666},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, ok := PlanReplay(tt.limit, tt.n, tt.finalEnd, tt.offset)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if plan.From != tt.wantFrom {
				t.Errorf("From = %d, want %d", plan.From, tt.wantFrom)
			}
			if plan.BridgingOffset != tt.wantOffset {
				t.Errorf("BridgingOffset = %d, want %d", plan.BridgingOffset, tt.wantOffset)
			}
		})
	}
}

func TestPlanReplayIndexBounds(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for finalEnd := int64(0); finalEnd <= 3000; finalEnd += 125 {
			for offset := int64(-500); offset <= 3500; offset += 250 {
				plan, ok := PlanReplay(1000, n, finalEnd, offset)
				if !ok {
					t.Fatalf("n=%d: expected a plan", n)
				}
				if plan.From < 0 || plan.From > n {
					t.Fatalf("n=%d final=%d offset=%d: From = %d out of [0, %d]",
						n, finalEnd, offset, plan.From, n)
				}
				if plan.BridgingOffset < 0 {
					t.Fatalf("n=%d final=%d offset=%d: negative bridging offset %d",
						n, finalEnd, offset, plan.BridgingOffset)
				}
			}
		}
	}
}

func TestCorrected(t *testing.T) {
	s := RestartState{RestartCounter: 3, BridgingOffset: 400}
	if got := s.Corrected(900, 1000); got != 3500 {
		t.Errorf("Corrected = %d, want 3500", got)
	}

	s = RestartState{}
	if got := s.Corrected(1234, 290000); got != 1234 {
		t.Errorf("Corrected = %d, want 1234", got)
	}
}
