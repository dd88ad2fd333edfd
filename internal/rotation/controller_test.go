package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vpnrotator/internal/catalog"
	"vpnrotator/internal/domain"
)

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{gates: make(map[string]chan struct{})}
}

func (f *fakeAnalyzer) block(proxyID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[proxyID] = gate
	return gate
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, proxy domain.ProxyDescriptor) domain.SecurityReport {
	f.mu.Lock()
	f.calls = append(f.calls, proxy.ID)
	gate := f.gates[proxy.ID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	return domain.SecurityReport{RiskLevel: domain.RiskLow, Summary: "report for " + proxy.ID}
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingListener struct {
	mu        sync.Mutex
	rotations []Rotation
}

func (l *recordingListener) RecordRotation(r Rotation) {
	l.mu.Lock()
	l.rotations = append(l.rotations, r)
	l.mu.Unlock()
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rotations)
}

type controllerHarness struct {
	ctrl     *Controller
	analyzer *fakeAnalyzer
	listener *recordingListener
	tickers  chan *manualTicker
	cancel   context.CancelFunc
	errCh    chan error
}

func startController(t *testing.T, cat *catalog.Catalog, autoRotate bool) *controllerHarness {
	t.Helper()

	h := &controllerHarness{
		analyzer: newFakeAnalyzer(),
		listener: &recordingListener{},
		tickers:  make(chan *manualTicker, 8),
		errCh:    make(chan error, 1),
	}

	h.ctrl = NewController(cat, h.analyzer, Options{
		Interval:     5 * time.Minute,
		ConnectDelay: time.Millisecond,
		AutoRotate:   autoRotate,
		Intn:         catalog.NewRand(5).IntN,
		Listeners:    []RotationListener{h.listener},
	})
	h.ctrl.newTicker = func(time.Duration) ticker {
		tk := &manualTicker{ch: make(chan time.Time)}
		h.tickers <- tk
		return tk
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errCh <- h.ctrl.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.errCh:
		case <-time.After(2 * time.Second):
			t.Error("controller did not stop")
		}
	})
	return h
}

func waitForSnapshot(t *testing.T, sub <-chan Snapshot, desc string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", desc)
			}
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func (h *controllerHarness) nextTicker(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-h.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("ticker was not started")
		return nil
	}
}

func connected(s Snapshot) bool { return s.Connection == domain.Connected }

func TestControllerConnectProducesReport(t *testing.T) {
	h := startController(t, newTestCatalog(t, "A", "B", "C"), true)
	sub, cancel := h.ctrl.Subscribe()
	defer cancel()

	if err := h.ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	snap := waitForSnapshot(t, sub, "report", func(s Snapshot) bool {
		return connected(s) && s.Report != nil
	})
	if snap.Proxy == nil || snap.Proxy.ID != snap.SelectedID {
		t.Fatalf("snapshot proxy does not match selection: %+v", snap)
	}
	if snap.Report.Summary != "report for "+snap.SelectedID {
		t.Fatalf("unexpected report %+v", snap.Report)
	}
	if snap.Timer != 300 || snap.Analyzing {
		t.Fatalf("unexpected timer/analyzing: %d/%v", snap.Timer, snap.Analyzing)
	}
	if h.listener.count() != 1 {
		t.Fatalf("listener saw %d rotations, want 1", h.listener.count())
	}
}

func TestControllerTickerFollowsAutoRotate(t *testing.T) {
	h := startController(t, newTestCatalog(t, "A", "B"), true)
	sub, cancel := h.ctrl.Subscribe()
	defer cancel()
	ctx := context.Background()

	if err := h.ctrl.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	waitForSnapshot(t, sub, "connected", connected)

	tk := h.nextTicker(t)
	tk.ch <- time.Now()
	waitForSnapshot(t, sub, "countdown", func(s Snapshot) bool { return s.Timer == 299 })

	if err := h.ctrl.ToggleAutoRotate(ctx); err != nil {
		t.Fatalf("ToggleAutoRotate returned error: %v", err)
	}
	if !tk.isStopped() {
		t.Fatal("ticker still running with auto-rotate off")
	}
	if snap := h.ctrl.Snapshot(); snap.Timer != 299 || snap.AutoRotate {
		t.Fatalf("unexpected snapshot after toggle: %+v", snap)
	}

	if err := h.ctrl.ToggleAutoRotate(ctx); err != nil {
		t.Fatalf("ToggleAutoRotate returned error: %v", err)
	}
	resumed := h.nextTicker(t)
	resumed.ch <- time.Now()
	waitForSnapshot(t, sub, "resumed countdown", func(s Snapshot) bool { return s.Timer == 298 })

	if err := h.ctrl.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if !resumed.isStopped() {
		t.Fatal("ticker still running after disconnect")
	}
}

func TestControllerSupersedesStaleReports(t *testing.T) {
	h := startController(t, newTestCatalog(t, "A", "B"), false)
	sub, cancel := h.ctrl.Subscribe()
	defer cancel()
	ctx := context.Background()

	gateA := h.analyzer.block("A")
	if err := h.ctrl.SelectProxy(ctx, "A"); err != nil {
		t.Fatalf("SelectProxy returned error: %v", err)
	}
	if err := h.ctrl.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	waitForSnapshot(t, sub, "analyzing A", func(s Snapshot) bool { return connected(s) && s.Analyzing })

	if err := h.ctrl.SelectProxy(ctx, "B"); err != nil {
		t.Fatalf("SelectProxy returned error: %v", err)
	}
	snap := waitForSnapshot(t, sub, "report for B", func(s Snapshot) bool { return s.Report != nil })
	if snap.Report.Summary != "report for B" {
		t.Fatalf("unexpected report %+v", snap.Report)
	}

	close(gateA)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if got := h.ctrl.Snapshot(); got.Report == nil || got.Report.Summary != "report for B" {
			t.Fatalf("stale report replaced the current one: %+v", got.Report)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if h.analyzer.callCount() != 2 {
		t.Fatalf("analyzer called %d times, want 2", h.analyzer.callCount())
	}
}

func TestControllerRejectsUnknownProxy(t *testing.T) {
	h := startController(t, newTestCatalog(t, "A", "B"), true)

	err := h.ctrl.SelectProxy(context.Background(), "missing")
	if !errors.Is(err, catalog.ErrProxyNotFound) {
		t.Fatalf("SelectProxy error = %v, want ErrProxyNotFound", err)
	}
}

func TestControllerStopsCleanly(t *testing.T) {
	h := startController(t, newTestCatalog(t, "A", "B"), true)
	sub, _ := h.ctrl.Subscribe()

	h.cancel()
	select {
	case err := <-h.errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		h.errCh <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for range sub {
	}

	if err := h.ctrl.Connect(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Connect after stop returned %v, want ErrStopped", err)
	}
}
