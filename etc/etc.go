package etc

import (
	"fmt"
	"time"

	"github.com/nrednav/cuid2"
)

// NewFreshID returns a collision-resistant id for a serve run.
func NewFreshID() string {
	return cuid2.Generate()
}

// Millis renders a millisecond offset as m:ss.mmm.
func Millis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	minutes := int64(d / time.Minute)
	seconds := int64((d % time.Minute) / time.Second)
	rest := ms % 1000
	return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, rest)
}
