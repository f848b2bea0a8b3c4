// Package globaltime is the process clock for persisted timestamps
// (fetched_at, processed_at, run ledger times). Tests pin it with
// SetMockTime.
package globaltime

import (
	"sync/atomic"
	"time"
)

// frozen holds the pinned instant; nil means the wall clock.
var frozen atomic.Pointer[time.Time]

func Now() time.Time {
	if pinned := frozen.Load(); pinned != nil {
		return *pinned
	}
	return time.Now()
}

func UTC() time.Time {
	return Now().UTC()
}

// Since reports the elapsed time from t on the process clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

func SetMockTime(t time.Time) {
	frozen.Store(&t)
}

func ResetTime() {
	frozen.Store(nil)
}
