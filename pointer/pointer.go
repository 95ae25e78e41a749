package pointer

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Anchor is where the caption should sit. The numeric values are what
// the display page receives.
type Anchor int

const (
	AnchorBottom Anchor = 0
	AnchorTop    Anchor = 1
)

func (a Anchor) String() string {
	switch a {
	case AnchorBottom:
		return "bottom"
	case AnchorTop:
		return "top"
	}
	return fmt.Sprintf("Anchor(%d)", int(a))
}

// AnchorFor keeps the caption away from the pointer: a pointer inside the
// top percent of the screen pushes the caption to the bottom.
func AnchorFor(y, screenHeight int, percent float64) Anchor {
	if float64(y) < float64(screenHeight)/100*percent {
		return AnchorBottom
	}
	return AnchorTop
}

type Tracker interface {
	Position() (y, screenHeight int, err error)
}

// StaticTracker reports a fixed position. Serve uses it when pointer
// tracking is off.
type StaticTracker struct {
	Y      int
	Height int
}

func (s StaticTracker) Position() (int, int, error) {
	return s.Y, s.Height, nil
}

// Watch publishes the anchor on every tick until ctx is done. Tracker
// errors skip the tick.
func Watch(
	ctx context.Context,
	tracker Tracker,
	percent float64,
	every time.Duration,
	publish func(Anchor),
	logger *log.Logger,
) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			y, height, err := tracker.Position()
			if err != nil {
				logger.Warn("pointer position", "error", err)
				continue
			}
			publish(AnchorFor(y, height, percent))
		}
	}
}
