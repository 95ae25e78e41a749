//go:build headless

package pointer

import "errors"

// RobotTracker is unavailable in headless builds.
type RobotTracker struct{}

func (RobotTracker) Position() (int, int, error) {
	return 0, 0, errors.New("pointer tracking disabled in headless build")
}
