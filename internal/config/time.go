package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRotationInterval = 5 * time.Minute
	defaultReportCacheTTL   = 6 * time.Hour
)

var (
	rotationInterval          atomic.Value
	reportCacheTTL            atomic.Value
	rotationIntervalListeners []chan time.Duration
	listenersMu               sync.Mutex
)

// Runs after settings.go init, so the embedded defaults are already loaded.
func init() {
	cfg := GetConfig()
	rotationInterval.Store(calculateRotationInterval(cfg))
	reportCacheTTL.Store(calculateReportCacheTTL(cfg))
}

func SetBetweenTime() {
	cfg := GetConfig()
	setRotationInterval(calculateRotationInterval(cfg))
	setReportCacheTTL(calculateReportCacheTTL(cfg))
}

// CalculateBetweenTime converts a Timer to a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMilliseconds(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMilliseconds(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func GetRotationInterval() time.Duration {
	return rotationInterval.Load().(time.Duration)
}

// RotationIntervalUpdates returns a channel primed with the current interval
// that receives every later change. Slow readers only see the latest value.
func RotationIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	rotationIntervalListeners = append(rotationIntervalListeners, ch)
	listenersMu.Unlock()

	ch <- GetRotationInterval()
	return ch
}

func setRotationInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultRotationInterval
	}

	if GetRotationInterval() == interval {
		return
	}
	rotationInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range rotationIntervalListeners {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- interval:
		default:
		}
	}
}

func calculateRotationInterval(cfg Config) time.Duration {
	if cfg.Rotation.Timer.IsZero() {
		return defaultRotationInterval
	}
	return CalculateBetweenTime(cfg.Rotation.Timer)
}

func GetReportCacheTTL() time.Duration {
	return reportCacheTTL.Load().(time.Duration)
}

func setReportCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultReportCacheTTL
	}
	reportCacheTTL.Store(ttl)
}

func calculateReportCacheTTL(cfg Config) time.Duration {
	if cfg.Report.CacheTimer.IsZero() {
		return defaultReportCacheTTL
	}
	return CalculateBetweenTime(cfg.Report.CacheTimer)
}
