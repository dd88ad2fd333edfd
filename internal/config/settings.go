package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/security"
	"vpnrotator/internal/support"
)

type Config struct {
	Rotation struct {
		Timer          Timer  `json:"timer"`
		AutoRotate     bool   `json:"auto_rotate"`
		ConnectDelayMs uint32 `json:"connect_delay_ms"`
		TickMs         uint32 `json:"tick_ms"`
	} `json:"rotation"`

	Catalog struct {
		Size uint32 `json:"size"`
		Seed uint64 `json:"seed"` // 0 draws a fresh catalog every start
	} `json:"catalog"`

	Report struct {
		Model          string `json:"model"`
		TimeoutSeconds uint32 `json:"timeout_seconds"`
		APIKey         string `json:"api_key"`
		CacheTimer     Timer  `json:"cache_timer"`
	} `json:"report"`

	History struct {
		Enabled bool   `json:"enabled"`
		Limit   uint32 `json:"limit"`
	} `json:"history"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

const (
	defaultConnectDelay  = 1500 * time.Millisecond
	defaultTick          = time.Second
	defaultReportTimeout = 20 * time.Second
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	settingsFilePath = filepath.Join("data", "settings.json")

	configValue atomic.Value
	configMu    sync.Mutex

	InProductionMode bool
)

func init() {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default settings are invalid: %v", err))
	}
	configValue.Store(cfg)
}

func DefaultConfig() Config {
	var cfg Config
	_ = json.Unmarshal(defaultConfig, &cfg)
	return cfg
}

func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Error reading settings file", "path", settingsFilePath, "error", err)
			return
		}

		log.Warn("Settings file not found, creating with default configuration", "path", settingsFilePath)
		if err := os.MkdirAll(filepath.Dir(settingsFilePath), 0o755); err != nil {
			log.Error("Error creating directory for settings file", "error", err)
			return
		}
		if err := os.WriteFile(settingsFilePath, defaultConfig, 0o644); err != nil {
			log.Error("Error writing default settings file", "error", err)
			return
		}
		data = defaultConfig
	}

	var newConfig Config
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file", "error", err)
		return
	}

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		log.Error("Error applying configuration from settings file", "error", err)
		return
	}

	log.Debug("Settings file loaded successfully")
}

func SetConfig(newConfig Config) error {
	return applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, broadcast: true, source: "local"})
}

// UpdateConfig applies updater to a copy of the current settings and
// persists the result.
func UpdateConfig(updater func(cfg *Config)) error {
	if updater == nil {
		return errors.New("config: updater cannot be nil")
	}

	cfg := GetConfig()
	updater(&cfg)
	return SetConfig(cfg)
}

type configUpdateOptions struct {
	persistToFile bool
	broadcast     bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	SetBetweenTime()

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal settings: %w", err))
		} else if err := os.WriteFile(settingsFilePath, data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write settings: %w", err))
		}
	}

	if opts.broadcast {
		payload, err := json.Marshal(newConfig)
		if err != nil {
			errs = append(errs, fmt.Errorf("serialize settings for broadcast: %w", err))
		} else if err := broadcastConfigUpdate(payload); err != nil {
			errs = append(errs, fmt.Errorf("broadcast settings: %w", err))
		}
	}

	log.Debug("Configuration applied", "source", opts.source)
	return errors.Join(errs...)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}

func CatalogSize() int {
	return int(GetConfig().Catalog.Size)
}

func ConnectDelay() time.Duration {
	ms := GetConfig().Rotation.ConnectDelayMs
	if ms == 0 {
		return defaultConnectDelay
	}
	return time.Duration(ms) * time.Millisecond
}

func TickInterval() time.Duration {
	ms := GetConfig().Rotation.TickMs
	if ms == 0 {
		return defaultTick
	}
	return time.Duration(ms) * time.Millisecond
}

func ReportTimeout() time.Duration {
	seconds := GetConfig().Report.TimeoutSeconds
	if seconds == 0 {
		return defaultReportTimeout
	}
	return time.Duration(seconds) * time.Second
}

// ReportAPIKey resolves the Gemini key from GEMINI_API_KEY, then API_KEY, then
// the settings file. Stored keys may be encrypted with security.EncryptSecret.
func ReportAPIKey() string {
	if key := strings.TrimSpace(support.GetEnv("GEMINI_API_KEY", "")); key != "" {
		return key
	}
	if key := strings.TrimSpace(support.GetEnv("API_KEY", "")); key != "" {
		return key
	}

	stored := strings.TrimSpace(GetConfig().Report.APIKey)
	if stored == "" {
		return ""
	}

	plain, legacy, err := security.DecryptSecret(stored)
	if err != nil {
		log.Error("Could not decrypt report api key from settings", "error", err)
		return ""
	}
	if legacy {
		log.Warn("Report api key is stored in plain text; encrypt it with `vpnrotator encrypt-secret`")
	}
	return plain
}
