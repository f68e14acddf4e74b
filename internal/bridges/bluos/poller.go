package bluos

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// DefaultPollInterval is how often each device's status is fetched.
const DefaultPollInterval = time.Second

// DeviceLookup resolves a device by name. *Registry implements it.
type DeviceLookup interface {
	FindDeviceByName(name string) (Device, bool)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Devices    DeviceLookup
	Controller Controller
	Store      Store
	Keys       Keys
	Metrics    *Metrics
	Logger     Logger

	// Interval between polls of one device. Default: DefaultPollInterval.
	Interval time.Duration
}

// Poller runs one polling loop per device.
//
// Each loop ticks on its own ticker, so a slow device delays only its own
// next poll and polls of one device never overlap.
type Poller struct {
	devices  DeviceLookup
	client   Controller
	store    Store
	keys     Keys
	metrics  *Metrics
	logger   Logger
	interval time.Duration

	mu     sync.Mutex
	ctx    context.Context
	loops  map[string]context.CancelFunc
	status map[string]PollStatus
	wg     sync.WaitGroup
}

// PollStatus is the polling record of one device.
type PollStatus struct {
	// Known is false until the first poll has finished.
	Known     bool      `json:"known"`
	Online    bool      `json:"online"`
	LastPoll  time.Time `json:"last_poll,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	OK        uint64    `json:"polls_ok"`
	Failed    uint64    `json:"polls_failed"`
}

// NewPoller creates a Poller. Loops start with Sync once Start has been called.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Poller{
		devices:  cfg.Devices,
		client:   cfg.Controller,
		store:    cfg.Store,
		keys:     cfg.Keys,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		loops:    make(map[string]context.CancelFunc),
		status:   make(map[string]PollStatus),
	}
}

// Start sets the context all loops derive from. Loops end when it is
// cancelled or on StopAll.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Sync makes the set of running loops equal to names. Loops for names no
// longer present are cancelled; new names get a loop.
func (p *Poller) Sync(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	for name, cancel := range p.loops {
		if !want[name] {
			cancel()
			delete(p.loops, name)
			delete(p.status, name)
			p.metrics.forgetDevice(name)
			p.logger.Debug("polling stopped", "device", name)
		}
	}

	for name := range want {
		if _, running := p.loops[name]; running {
			continue
		}
		loopCtx, cancel := context.WithCancel(p.ctx)
		p.loops[name] = cancel
		p.wg.Add(1)
		go p.run(loopCtx, name)
		p.logger.Debug("polling started", "device", name, "interval", p.interval)
	}
}

// Active returns the names of devices with a running loop, sorted.
func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.loops))
	for n := range p.loops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Status returns the polling record of device name.
func (p *Poller) Status(name string) PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[name]
}

// Totals sums the poll counters over all devices.
func (p *Poller) Totals() (ok, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.status {
		ok += st.OK
		failed += st.Failed
	}
	return ok, failed
}

// StopAll cancels every loop and waits up to timeout for them to exit. It
// reports whether all loops finished in time.
func (p *Poller) StopAll(timeout time.Duration) bool {
	p.mu.Lock()
	for name, cancel := range p.loops {
		cancel()
		delete(p.loops, name)
	}
	p.ctx = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Poller) run(ctx context.Context, name string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx, name)
		}
	}
}

// PollOnce fetches the status of device name and stores it in its Status
// point with ack=true. A name that is not configured is skipped. Failures
// are logged and mark the device offline.
func (p *Poller) PollOnce(ctx context.Context, name string) {
	device, ok := p.devices.FindDeviceByName(name)
	if !ok {
		return
	}

	body, err := p.client.FetchStatus(ctx, device.IP)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.observePoll(name, err)
		p.logger.Warn("status poll failed", "device", name, "ip", device.IP, "error", err)
		p.record(ctx, name, err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.metrics.observePoll(name, nil)

	if err := p.store.SetState(ctx, p.keys.ControlPoint(name, PointStatus), statusText(body), true); err != nil {
		if ctx.Err() == nil {
			p.logger.Error("storing status failed", "device", name, "error", err)
		}
		return
	}
	p.record(ctx, name, nil)
}

// record updates the polling record and writes the Online point when
// reachability changes.
func (p *Poller) record(ctx context.Context, name string, pollErr error) {
	online := pollErr == nil

	p.mu.Lock()
	if ctx.Err() != nil {
		// Loop was cancelled by Sync or StopAll; its record is gone.
		p.mu.Unlock()
		return
	}
	st := p.status[name]
	changed := !st.Known || st.Online != online
	wasKnown := st.Known
	st.Known = true
	st.Online = online
	st.LastPoll = time.Now().UTC()
	if online {
		st.OK++
		st.LastError = ""
	} else {
		st.Failed++
		st.LastError = pollErr.Error()
	}
	p.status[name] = st
	p.mu.Unlock()

	if !changed {
		return
	}

	p.metrics.setOnline(name, online)
	if err := p.store.SetState(ctx, p.keys.ControlPoint(name, PointOnline), online, true); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("storing reachability failed", "device", name, "error", err)
		}
		return
	}
	if wasKnown {
		p.logger.Info("device reachability changed", "device", name, "online", online)
	}
}

// statusText is the stored form of a status body: compact JSON when the
// body is JSON, otherwise the body as text.
func statusText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}
