package rotation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"vpnrotator/internal/catalog"
	"vpnrotator/internal/domain"
)

const (
	DefaultConnectDelay = 1500 * time.Millisecond
	DefaultTickInterval = time.Second
)

var ErrStopped = errors.New("rotation controller stopped")

// Analyzer produces the security report for a proxy. Implementations must
// always return a report; failures are expected to be replaced by a fallback.
type Analyzer interface {
	Analyze(ctx context.Context, proxy domain.ProxyDescriptor) domain.SecurityReport
}

// RotationListener is notified from the controller loop every time the active
// proxy changes while connected. Implementations must not block.
type RotationListener interface {
	RecordRotation(Rotation)
}

type Rotation struct {
	RequestID string
	Reason    Reason
	From      string
	Proxy     domain.ProxyDescriptor
	At        time.Time
}

type Snapshot struct {
	Connection domain.ConnectionState  `json:"connection_state"`
	SelectedID string                  `json:"selected_proxy_id,omitempty"`
	Proxy      *domain.ProxyDescriptor `json:"current_proxy"`
	Timer      int                     `json:"timer"`
	Interval   int                     `json:"rotation_interval"`
	AutoRotate bool                    `json:"auto_rotate"`
	Report     *domain.SecurityReport  `json:"report"`
	Analyzing  bool                    `json:"analyzing"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

type Options struct {
	Interval     time.Duration
	ConnectDelay time.Duration
	TickInterval time.Duration
	AutoRotate   bool
	Intn         func(int) int
	Listeners    []RotationListener
}

type request struct {
	event Event
	reply chan error
}

// Controller owns the rotation state on a single goroutine started by Run.
// Every intent, tick, connect resolution and report result is an event
// processed by that goroutine, so the state needs no locking.
type Controller struct {
	reducer      Reducer
	analyzer     Analyzer
	connectDelay time.Duration
	tickInterval time.Duration
	listeners    []RotationListener

	newTicker func(time.Duration) ticker
	afterFunc func(time.Duration, func())

	events   chan request
	done     chan struct{}
	started  atomic.Bool
	state    State
	ticker   ticker
	snapshot atomic.Pointer[Snapshot]

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

func NewController(cat *catalog.Catalog, analyzer Analyzer, opts Options) *Controller {
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = DefaultConnectDelay
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Intn == nil {
		opts.Intn = catalog.NewRand(0).IntN
	}

	c := &Controller{
		reducer:      Reducer{Catalog: cat, Intn: opts.Intn},
		analyzer:     analyzer,
		connectDelay: opts.ConnectDelay,
		tickInterval: opts.TickInterval,
		listeners:    opts.Listeners,
		newTicker:    newRealTicker,
		afterFunc:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		events:       make(chan request),
		done:         make(chan struct{}),
		state:        NewState(int(opts.Interval/time.Second), opts.AutoRotate),
		subs:         make(map[int]chan Snapshot),
	}
	c.storeSnapshot()
	return c
}

func (c *Controller) Catalog() *catalog.Catalog {
	return c.reducer.Catalog
}

// Run processes events until ctx is cancelled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("rotation controller already running")
	}

	defer func() {
		c.stopTicker()
		close(c.done)
		c.closeSubscribers()
	}()

	log.Debug("rotation controller started", "proxies", c.reducer.Catalog.Len(), "interval", c.state.Interval)

	for {
		select {
		case <-ctx.Done():
			log.Debug("rotation controller stopped")
			return nil
		case req := <-c.events:
			c.handle(ctx, req)
		case <-c.tickC():
			c.handle(ctx, request{event: Tick{}})
		}
	}
}

func (c *Controller) Connect(ctx context.Context) error {
	return c.Dispatch(ctx, Connect{})
}

func (c *Controller) Disconnect(ctx context.Context) error {
	return c.Dispatch(ctx, Disconnect{})
}

func (c *Controller) SelectProxy(ctx context.Context, id string) error {
	return c.Dispatch(ctx, SelectProxy{ID: id})
}

func (c *Controller) RotateNow(ctx context.Context) error {
	return c.Dispatch(ctx, RotateNow{})
}

func (c *Controller) ToggleAutoRotate(ctx context.Context) error {
	return c.Dispatch(ctx, ToggleAutoRotate{})
}

func (c *Controller) SetInterval(ctx context.Context, interval time.Duration) error {
	return c.Dispatch(ctx, SetInterval{Seconds: int(interval / time.Second)})
}

// Dispatch hands e to the loop and waits until it has been applied.
func (c *Controller) Dispatch(ctx context.Context, e Event) error {
	req := request{event: e, reply: make(chan error, 1)}

	select {
	case c.events <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Older snapshots are discarded when the reader falls behind. The channel is
// closed when the controller stops or cancel is called.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	ch <- c.Snapshot()

	c.subsMu.Lock()
	select {
	case <-c.done:
		c.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (c *Controller) handle(ctx context.Context, req request) {
	next, effects, err := c.reducer.Reduce(c.state, req.event)
	if req.reply != nil {
		// Reply once the snapshot reflects the event.
		defer func() { req.reply <- err }()
	}
	if err != nil {
		log.Debug("rotation event rejected", "event", eventName(req.event), "error", err)
		return
	}

	prev := c.state
	c.state = next

	for _, effect := range effects {
		c.apply(ctx, effect)
	}
	c.syncTicker()

	if next != prev {
		c.storeSnapshot()
		c.broadcast()
	}
}

func (c *Controller) apply(ctx context.Context, effect Effect) {
	switch eff := effect.(type) {
	case ScheduleConnect:
		log.Info("connecting", "delay", c.connectDelay)
		c.afterFunc(c.connectDelay, func() {
			c.post(ConnectResolved{Seq: eff.Seq})
		})

	case RequestReport:
		proxy, err := c.reducer.Catalog.Get(eff.Tag.ProxyID)
		if err != nil {
			log.Error("report request for unknown proxy", "proxy_id", eff.Tag.ProxyID, "error", err)
			return
		}
		go func(tag ReportTag) {
			report := c.analyzer.Analyze(ctx, proxy)
			c.post(ReportReady{Tag: tag, Report: report})
		}(eff.Tag)

	case Rotated:
		proxy, err := c.reducer.Catalog.Get(eff.To)
		if err != nil {
			return
		}
		rotation := Rotation{
			RequestID: uuid.NewString(),
			Reason:    eff.Reason,
			From:      eff.From,
			Proxy:     proxy,
			At:        time.Now(),
		}
		log.Info("active proxy changed", "reason", eff.Reason, "from", eff.From, "to", proxy.ID, "address", proxy.Address(), "location", proxy.Location())
		for _, listener := range c.listeners {
			listener.RecordRotation(rotation)
		}
	}
}

// post delivers an internally generated event. It gives up once the loop
// has stopped so late timers and report goroutines never leak.
func (c *Controller) post(e Event) {
	select {
	case c.events <- request{event: e}:
	case <-c.done:
	}
}

func (c *Controller) syncTicker() {
	wanted := c.state.Connection == domain.Connected && c.state.AutoRotate
	switch {
	case wanted && c.ticker == nil:
		c.ticker = c.newTicker(c.tickInterval)
	case !wanted && c.ticker != nil:
		c.stopTicker()
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) tickC() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C()
}

func (c *Controller) storeSnapshot() {
	s := c.state
	snap := Snapshot{
		Connection: s.Connection,
		SelectedID: s.SelectedID,
		Timer:      s.Timer,
		Interval:   s.Interval,
		AutoRotate: s.AutoRotate,
		Analyzing:  s.Analyzing,
		UpdatedAt:  time.Now(),
	}
	if proxy, err := c.reducer.Catalog.Get(s.SelectedID); err == nil {
		snap.Proxy = &proxy
	}
	if s.Report != nil {
		report := *s.Report
		snap.Report = &report
	}
	c.snapshot.Store(&snap)
}

func (c *Controller) broadcast() {
	snap := c.Snapshot()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Controller) closeSubscribers() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

func eventName(e Event) string {
	switch e.(type) {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case SelectProxy:
		return "select"
	case RotateNow:
		return "rotate"
	case ToggleAutoRotate:
		return "toggle_auto_rotate"
	case SetInterval:
		return "set_interval"
	default:
		return "internal"
	}
}
