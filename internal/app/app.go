package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"vpnrotator/internal/app/server"
	"vpnrotator/internal/catalog"
	"vpnrotator/internal/config"
	"vpnrotator/internal/database"
	"vpnrotator/internal/jobs/runtime"
	"vpnrotator/internal/report"
	"vpnrotator/internal/rotation"
	"vpnrotator/internal/support"
	"vpnrotator/internal/tui"
)

const DefaultBackendPort = 8082

var tuiLogPath = filepath.Join("data", "vpnrotator.log")

// Options carries command line overrides. Zero values defer to the
// environment and settings.
type Options struct {
	BackendPort int
	Seed        uint64
	CatalogSize int
	Production  bool
}

// LoadEnvironment reads .env and the settings file and sets the log level.
func LoadEnvironment(production bool) {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	config.SetProductionMode(production)
	if production {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	config.ReadSettings()
}

// Serve runs the controller, its background jobs and the HTTP API until ctx
// is cancelled.
func Serve(ctx context.Context, opts Options) error {
	LoadEnvironment(opts.Production)

	port := resolvePort("BACKEND_PORT", "PORT", opts.BackendPort)

	s, err := buildStack(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	g, gctx := errgroup.WithContext(ctx)
	s.start(gctx, g)

	g.Go(func() error {
		return server.OpenRoutes(gctx, port, s.serverOptions())
	})

	return ignoreCancel(g.Wait())
}

// RunTUI runs the controller behind the terminal dashboard. Logs go to a file
// so they do not draw over the dashboard.
func RunTUI(ctx context.Context, opts Options) error {
	logFile, err := redirectLogs(tuiLogPath)
	if err != nil {
		return err
	}
	defer func() {
		log.SetOutput(os.Stderr)
		_ = logFile.Close()
	}()

	LoadEnvironment(opts.Production)

	s, err := buildStack(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	s.start(gctx, g)

	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, s.ctrl)
	})

	return ignoreCancel(g.Wait())
}

type stack struct {
	ctrl      *rotation.Controller
	redis     *redis.Client
	history   *runtime.RotationHistory
	publisher *runtime.RotationPublisher
}

func buildStack(ctx context.Context, opts Options) (*stack, error) {
	s := &stack{}
	cfg := config.GetConfig()

	if client, err := support.GetRedisClient(); err != nil {
		if errors.Is(err, support.ErrRedisNotConfigured) {
			log.Info("Redis not configured. Report cache, settings sync and rotation events are disabled.")
		} else {
			log.Warn("Redis unavailable. Report cache, settings sync and rotation events are disabled.", "error", err)
		}
	} else {
		s.redis = client
		config.EnableRedisSynchronization(ctx, client)
		s.publisher = runtime.NewRotationPublisher(client)
	}

	if cfg.History.Enabled {
		if _, err := database.SetupDB(database.OptionsFromEnv()...); err != nil {
			log.Warn("Database unavailable. Rotation history is disabled.", "error", err)
		} else {
			s.history = runtime.NewRotationHistory()
		}
	}

	cat, err := buildCatalog(opts, cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	var listeners []rotation.RotationListener
	if s.history != nil {
		listeners = append(listeners, s.history)
	}
	if s.publisher != nil {
		listeners = append(listeners, s.publisher)
	}

	s.ctrl = rotation.NewController(cat, buildAnalyzer(cfg, s.redis), rotation.Options{
		Interval:     config.GetRotationInterval(),
		ConnectDelay: config.ConnectDelay(),
		TickInterval: config.TickInterval(),
		AutoRotate:   cfg.Rotation.AutoRotate,
		Listeners:    listeners,
	})
	return s, nil
}

func (s *stack) start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return s.ctrl.Run(ctx) })
	g.Go(func() error { return followRotationInterval(ctx, s.ctrl, config.RotationIntervalUpdates()) })

	if s.history != nil {
		g.Go(func() error {
			s.history.Run(ctx)
			return nil
		})
		g.Go(func() error {
			runtime.StartHistoryRetentionRoutine(ctx, runtime.DefaultHistoryRetention)
			return nil
		})
	}

	if s.redis != nil {
		g.Go(func() error {
			s.publisher.Run(ctx)
			return nil
		})
		g.Go(func() error {
			runtime.StartInstanceHeartbeat(ctx, s.redis, s.ctrl.Snapshot, runtime.DefaultHeartbeatInterval, runtime.DefaultHeartbeatTTL)
			return nil
		})
	}
}

func (s *stack) serverOptions() server.Options {
	opts := server.Options{
		Controller:   s.ctrl,
		HistoryLimit: int(config.GetConfig().History.Limit),
	}
	if s.history != nil {
		opts.History = database.ListRotationRecords
	}
	opts.Settings = config.GetConfig
	opts.SaveSettings = config.SetConfig
	if s.redis != nil {
		client := s.redis
		opts.Instances = func(ctx context.Context) ([]runtime.InstanceStatus, error) {
			return runtime.ListInstances(ctx, client)
		}
	}
	return opts
}

func (s *stack) close() {
	if s.redis != nil {
		config.DisableRedisSynchronization()
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}
	if s.history != nil {
		if err := database.Close(); err != nil {
			log.Warn("error closing database", "error", err)
		}
	}
}

func buildCatalog(opts Options, cfg config.Config) (*catalog.Catalog, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Catalog.Seed
	}
	size := opts.CatalogSize
	if size == 0 {
		size = config.CatalogSize()
	}

	cat, err := catalog.Generate(catalog.NewRand(seed), size)
	if err != nil {
		return nil, fmt.Errorf("generate catalog: %w", err)
	}
	log.Info("Catalog generated", "proxies", cat.Len(), "seed", seed)
	return cat, nil
}

// buildAnalyzer wires Gemini behind the redis cache when both are available.
// Without a credential the service answers every request with the fallback.
func buildAnalyzer(cfg config.Config, client *redis.Client) *report.Service {
	apiKey := config.ReportAPIKey()
	if apiKey == "" {
		log.Warn("No Gemini API key configured. Security reports use the fallback template.")
		return report.NewService(nil, config.ReportTimeout())
	}

	var gen report.Generator = report.NewGeminiGenerator(apiKey, cfg.Report.Model)
	if client != nil {
		gen = report.NewCachedGenerator(gen, report.NewRedisStore(client), config.GetReportCacheTTL())
	}
	return report.NewService(gen, config.ReportTimeout())
}

type intervalSetter interface {
	SetInterval(ctx context.Context, interval time.Duration) error
}

// followRotationInterval pushes rotation interval changes from settings into
// the controller.
func followRotationInterval(ctx context.Context, ctrl intervalSetter, updates <-chan time.Duration) error {
	var last time.Duration
	select {
	case last = <-updates:
	case <-ctx.Done():
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case interval := <-updates:
			if interval == last {
				continue
			}
			last = interval
			if err := ctrl.SetInterval(ctx, interval); err != nil {
				if errors.Is(err, rotation.ErrStopped) || ctx.Err() != nil {
					return nil
				}
				log.Warn("Failed to apply rotation interval", "interval", interval, "error", err)
				continue
			}
			log.Info("Rotation interval updated", "interval", interval)
		}
	}
}

func redirectLogs(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolvePort prefers an explicit --backend-port, then the env overrides, then
// DefaultBackendPort.
func resolvePort(primaryEnv, legacyEnv string, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return DefaultBackendPort
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
