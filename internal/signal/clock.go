package signal

import "time"

// Clock is the tick source of a session.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock waits on wall-clock time.
var RealClock Clock = realClock{}
