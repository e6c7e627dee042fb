package debounce

import "time"

// Clock schedules the quiet-period deadline. The controller never relies on
// Timer.Stop succeeding: a stale timer that still fires is ignored by its
// generation number.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall clock backed by time.AfterFunc.
func SystemClock() Clock { return systemClock{} }
