package clock

import "time"

// Clock reports the current time. Session bookkeeping reads it instead of
// calling time.Now directly so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }
