// Package globaltime is the process clock. Tests pin it with SetMockTime.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Unix is the current time in whole seconds, the unit timeline scores use.
func Unix() int64 {
	return Now().Unix()
}

// In returns the current wall-clock time in loc, or UTC when loc is nil.
func In(loc *time.Location) time.Time {
	if loc == nil {
		return UTC()
	}
	return Now().In(loc)
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
