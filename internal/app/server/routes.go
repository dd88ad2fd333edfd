package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/netutil"

	"vpnrotator/internal/auth"
	"vpnrotator/internal/catalog"
	"vpnrotator/internal/config"
	"vpnrotator/internal/graphql"
	"vpnrotator/internal/jobs/runtime"
	"vpnrotator/internal/rotation"
)

const (
	DefaultMaxConnections = 256
	shutdownTimeout       = 10 * time.Second
)

// Controller is the part of rotation.Controller the HTTP layer drives.
type Controller interface {
	Snapshot() rotation.Snapshot
	Catalog() *catalog.Catalog
	Subscribe() (<-chan rotation.Snapshot, func())
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SelectProxy(ctx context.Context, id string) error
	RotateNow(ctx context.Context) error
	ToggleAutoRotate(ctx context.Context) error
}

type Options struct {
	Controller Controller
	// History is nil when rotation history storage is disabled.
	History        graphql.HistoryFunc
	HistoryLimit   int
	Instances      func(ctx context.Context) ([]runtime.InstanceStatus, error)
	// Settings and SaveSettings back /settings; nil disables the routes.
	Settings       func() config.Config
	SaveSettings   func(config.Config) error
	MaxConnections int
}

type api struct {
	ctrl           Controller
	history        graphql.HistoryFunc
	historyLimit   int
	instances      func(ctx context.Context) ([]runtime.InstanceStatus, error)
	settings       func() config.Config
	saveSettingsFn func(config.Config) error
	hub            *Hub
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the API handler. The returned Hub must be run for /ws
// clients to receive updates.
func NewRouter(opts Options) (http.Handler, *Hub, error) {
	if opts.Controller == nil {
		return nil, nil, errors.New("server: controller is required")
	}

	a := &api{
		ctrl:           opts.Controller,
		history:        opts.History,
		historyLimit:   opts.HistoryLimit,
		instances:      opts.Instances,
		settings:       opts.Settings,
		saveSettingsFn: opts.SaveSettings,
		hub:            NewHub(opts.Controller),
	}

	graphQLHandler, err := newGraphQLHandler(opts.Controller, opts.History)
	if err != nil {
		return nil, nil, fmt.Errorf("server: graphql schema: %w", err)
	}

	router := http.NewServeMux()
	router.HandleFunc("GET /proxies", a.listProxies)
	router.HandleFunc("GET /proxies/{id}", a.getProxy)
	router.HandleFunc("GET /state", a.getState)
	router.HandleFunc("GET /history", a.listHistory)
	router.HandleFunc("GET /instances", a.listInstances)
	router.HandleFunc("GET /version", getVersion)
	router.HandleFunc("GET /ws", a.hub.ServeWs)
	router.Handle("POST /graphql", graphQLHandler)

	router.Handle("POST /connect", auth.RequireOperator(http.HandlerFunc(a.connect)))
	router.Handle("POST /disconnect", auth.RequireOperator(http.HandlerFunc(a.disconnect)))
	router.Handle("POST /select/{id}", auth.RequireOperator(http.HandlerFunc(a.selectProxy)))
	router.Handle("POST /rotate", auth.RequireOperator(http.HandlerFunc(a.rotateNow)))
	router.Handle("POST /autoRotate", auth.RequireOperator(http.HandlerFunc(a.toggleAutoRotate)))
	router.Handle("GET /settings", auth.RequireOperator(http.HandlerFunc(a.getSettings)))
	router.Handle("POST /settings", auth.RequireOperator(http.HandlerFunc(a.saveSettings)))

	return enableCORS(router), a.hub, nil
}

// OpenRoutes serves the API on port until ctx is cancelled.
func OpenRoutes(ctx context.Context, port int, opts Options) error {
	handler, hub, err := NewRouter(opts)
	if err != nil {
		return err
	}

	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("api server listen: %w", err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("api server shutdown", "error", err)
		}
	}()

	log.Info("Starting vpnrotator api", "port", port, "auth", auth.Enabled(), "max_connections", maxConns)
	if err := server.Serve(netutil.LimitListener(listener, maxConns)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
