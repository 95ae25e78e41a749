//go:build !headless

package pointer

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotTracker reads the system pointer and screen size.
type RobotTracker struct{}

func (RobotTracker) Position() (int, int, error) {
	_, y := robotgo.Location()
	_, height := robotgo.GetScreenSize()
	if height <= 0 {
		return 0, 0, fmt.Errorf("screen size unavailable")
	}
	return y, height, nil
}
