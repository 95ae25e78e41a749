package bridge

import (
	"math"
)

// RestartState is carried across recognition sessions so transcript
// timestamps stay continuous and replayed audio is bounded. All times are
// milliseconds.
type RestartState struct {
	RestartCounter      int
	ResultEndTime       int64
	IsFinalEndTime      int64
	FinalRequestEndTime int64
	BridgingOffset      int64
	LastWasFinal        bool
}

// Corrected maps a session-relative result end time onto the timeline of
// the whole run.
func (s RestartState) Corrected(resultEndTime int64, limitMs int64) int64 {
	return resultEndTime - s.BridgingOffset + limitMs*int64(s.RestartCounter)
}

// ReplayPlan says which chunks of the previous session's buffer must be
// sent again to a new session.
type ReplayPlan struct {
	From           int
	ChunkTime      float64
	BridgingOffset int64
}

// PlanReplay computes the replay tail for a previous buffer of n chunks.
// The chunk duration is approximated as limitMs/n. The bridging offset is
// clamped to [0, finalEnd] before use and the start index to [0, n].
// It returns false when there is nothing to plan: an empty buffer or a
// degenerate chunk duration.
func PlanReplay(limitMs int64, n int, finalEnd, offset int64) (ReplayPlan, bool) {
	if n <= 0 {
		return ReplayPlan{}, false
	}

	chunkTime := float64(limitMs) / float64(n)
	if chunkTime <= 0 || math.IsInf(chunkTime, 0) || math.IsNaN(chunkTime) {
		return ReplayPlan{}, false
	}

	if offset < 0 {
		offset = 0
	}
	if offset > finalEnd {
		offset = finalEnd
	}

	from := int(math.Floor(float64(finalEnd-offset) / chunkTime))
	from = min(max(from, 0), n)

	return ReplayPlan{
		From:           from,
		ChunkTime:      chunkTime,
		BridgingOffset: int64(math.Floor(float64(n-from) * chunkTime)),
	}, true
}
