package config

import (
	"testing"
	"time"
)

func TestCalculateMilliseconds(t *testing.T) {
	timer := Timer{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}
	want := uint64((24*60*60 + 2*60*60 + 3*60 + 4) * 1000)

	if got := CalculateMilliseconds(timer); got != want {
		t.Fatalf("CalculateMilliseconds returned %d, want %d", got, want)
	}
}

func TestCalculateBetweenTime(t *testing.T) {
	t.Run("enforces minimum interval", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{}); got != time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1s", got)
		}
	})

	t.Run("returns configured duration", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{Minutes: 1, Seconds: 30}); got != 90*time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1m30s", got)
		}
	})
}

func TestDefaultIntervals(t *testing.T) {
	cfg := DefaultConfig()

	if got := calculateRotationInterval(cfg); got != 5*time.Minute {
		t.Fatalf("default rotation interval = %s, want 5m", got)
	}
	if got := calculateReportCacheTTL(cfg); got != 6*time.Hour {
		t.Fatalf("default report cache ttl = %s, want 6h", got)
	}
	if got := calculateRotationInterval(Config{}); got != defaultRotationInterval {
		t.Fatalf("zero timer should fall back to %s, got %s", defaultRotationInterval, got)
	}
}

func TestSetBetweenTimeNotifiesRotationListeners(t *testing.T) {
	restoreConfigState(t)

	updates := RotationIntervalUpdates()
	if got := <-updates; got != GetRotationInterval() {
		t.Fatalf("initial update = %s, want %s", got, GetRotationInterval())
	}

	testCfg := DefaultConfig()
	testCfg.Rotation.Timer = Timer{Seconds: 30}
	testCfg.Report.CacheTimer = Timer{Minutes: 10}
	configValue.Store(testCfg)

	SetBetweenTime()

	if got := GetRotationInterval(); got != 30*time.Second {
		t.Fatalf("GetRotationInterval returned %s, want 30s", got)
	}
	if got := GetReportCacheTTL(); got != 10*time.Minute {
		t.Fatalf("GetReportCacheTTL returned %s, want 10m", got)
	}

	select {
	case got := <-updates:
		if got != 30*time.Second {
			t.Fatalf("listener received %s, want 30s", got)
		}
	default:
		t.Fatal("expected rotation listener to receive the new interval")
	}
}

func TestRotationListenerKeepsLatestValue(t *testing.T) {
	restoreConfigState(t)

	updates := RotationIntervalUpdates()
	<-updates

	setRotationInterval(10 * time.Second)
	setRotationInterval(20 * time.Second)

	if got := <-updates; got != 20*time.Second {
		t.Fatalf("listener received %s, want latest value 20s", got)
	}
}

func restoreConfigState(t *testing.T) {
	t.Helper()

	origCfg := GetConfig()
	origInterval := GetRotationInterval()
	origTTL := GetReportCacheTTL()
	origPath := settingsFilePath

	listenersMu.Lock()
	origListeners := rotationIntervalListeners
	listenersMu.Unlock()

	t.Cleanup(func() {
		configValue.Store(origCfg)
		rotationInterval.Store(origInterval)
		reportCacheTTL.Store(origTTL)
		settingsFilePath = origPath

		listenersMu.Lock()
		rotationIntervalListeners = origListeners
		listenersMu.Unlock()
	})
}
