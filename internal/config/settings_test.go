package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Catalog.Size != 60 {
		t.Fatalf("default catalog size = %d, want 60", cfg.Catalog.Size)
	}
	if !cfg.Rotation.AutoRotate {
		t.Fatal("auto-rotate should be enabled by default")
	}
	if cfg.Rotation.ConnectDelayMs != 1500 || cfg.Rotation.TickMs != 1000 {
		t.Fatalf("unexpected rotation delays %+v", cfg.Rotation)
	}
	if cfg.Report.Model == "" {
		t.Fatal("default report model is empty")
	}
}

func TestReadSettingsCreatesDefaultFile(t *testing.T) {
	restoreConfigState(t)
	settingsFilePath = filepath.Join(t.TempDir(), "data", "settings.json")

	ReadSettings()

	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if string(data) != string(defaultConfig) {
		t.Fatal("written settings differ from embedded defaults")
	}
	if GetConfig().Catalog.Size != 60 {
		t.Fatalf("loaded catalog size = %d, want 60", GetConfig().Catalog.Size)
	}
}

func TestReadSettingsLoadsExistingFile(t *testing.T) {
	restoreConfigState(t)
	settingsFilePath = filepath.Join(t.TempDir(), "settings.json")

	cfg := DefaultConfig()
	cfg.Catalog.Size = 12
	cfg.Rotation.Timer = Timer{Minutes: 1}
	data, _ := json.Marshal(cfg)
	if err := os.WriteFile(settingsFilePath, data, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	ReadSettings()

	if CatalogSize() != 12 {
		t.Fatalf("CatalogSize returned %d, want 12", CatalogSize())
	}
	if GetRotationInterval() != time.Minute {
		t.Fatalf("GetRotationInterval returned %s, want 1m", GetRotationInterval())
	}
}

func TestUpdateConfigPersists(t *testing.T) {
	restoreConfigState(t)
	settingsFilePath = filepath.Join(t.TempDir(), "settings.json")

	err := UpdateConfig(func(cfg *Config) {
		cfg.History.Limit = 7
	})
	if err != nil {
		t.Fatalf("UpdateConfig returned error: %v", err)
	}

	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		t.Fatalf("settings not persisted: %v", err)
	}
	var stored Config
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("persisted settings invalid: %v", err)
	}
	if stored.History.Limit != 7 || GetConfig().History.Limit != 7 {
		t.Fatalf("history limit not updated: stored=%d live=%d", stored.History.Limit, GetConfig().History.Limit)
	}

	if err := UpdateConfig(nil); err == nil {
		t.Fatal("expected error for nil updater")
	}
}

func TestDurationFallbacks(t *testing.T) {
	restoreConfigState(t)
	configValue.Store(Config{})

	if ConnectDelay() != 1500*time.Millisecond {
		t.Fatalf("ConnectDelay returned %s", ConnectDelay())
	}
	if TickInterval() != time.Second {
		t.Fatalf("TickInterval returned %s", TickInterval())
	}
	if ReportTimeout() != 20*time.Second {
		t.Fatalf("ReportTimeout returned %s", ReportTimeout())
	}
}

func TestReportAPIKeyPrecedence(t *testing.T) {
	restoreConfigState(t)

	cfg := DefaultConfig()
	cfg.Report.APIKey = "from-settings"
	configValue.Store(cfg)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	if got := ReportAPIKey(); got != "from-settings" {
		t.Fatalf("ReportAPIKey returned %q, want from-settings", got)
	}

	t.Setenv("API_KEY", "from-api-key")
	if got := ReportAPIKey(); got != "from-api-key" {
		t.Fatalf("ReportAPIKey returned %q, want from-api-key", got)
	}

	t.Setenv("GEMINI_API_KEY", "from-gemini")
	if got := ReportAPIKey(); got != "from-gemini" {
		t.Fatalf("ReportAPIKey returned %q, want from-gemini", got)
	}
}

type fakePublisher struct {
	setKey    string
	channel   string
	published []byte
}

func (f *fakePublisher) Set(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.StatusCmd {
	f.setKey = key
	return redis.NewStatusResult("OK", nil)
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.published, _ = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestSetConfigBroadcastsToRedis(t *testing.T) {
	restoreConfigState(t)
	settingsFilePath = filepath.Join(t.TempDir(), "settings.json")

	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	if !attachPublisher(ctx, cancel, pub) {
		t.Fatal("attachPublisher refused a fresh publisher")
	}
	t.Cleanup(DisableRedisSynchronization)

	cfg := DefaultConfig()
	cfg.Catalog.Size = 30
	if err := SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig returned error: %v", err)
	}

	if pub.setKey != redisSettingsKey || pub.channel != redisSettingsChannel {
		t.Fatalf("unexpected redis targets key=%q channel=%q", pub.setKey, pub.channel)
	}
	var shared Config
	if err := json.Unmarshal(pub.published, &shared); err != nil {
		t.Fatalf("published payload invalid: %v", err)
	}
	if shared.Catalog.Size != 30 {
		t.Fatalf("published catalog size = %d, want 30", shared.Catalog.Size)
	}
}

func TestApplyRemotePayload(t *testing.T) {
	restoreConfigState(t)
	settingsFilePath = filepath.Join(t.TempDir(), "settings.json")

	if err := applyRemotePayload([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}

	cfg := DefaultConfig()
	cfg.Rotation.Timer = Timer{Seconds: 45}
	payload, _ := json.Marshal(cfg)
	if err := applyRemotePayload(payload); err != nil {
		t.Fatalf("applyRemotePayload returned error: %v", err)
	}
	if GetRotationInterval() != 45*time.Second {
		t.Fatalf("remote interval not applied, got %s", GetRotationInterval())
	}
}
