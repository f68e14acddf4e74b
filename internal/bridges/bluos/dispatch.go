package bluos

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rookie50/ioBroker.bluos/internal/state"
)

const defaultQueueSize = 64

// job is one command waiting to be sent.
type job struct {
	ref     string
	id      string
	device  Device
	point   string
	command Command
	volume  float64
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Devices    DeviceLookup
	Controller Controller
	Store      Store
	Keys       Keys
	Metrics    *Metrics
	Logger     Logger

	// QueueSize bounds pending commands. Default: 64.
	QueueSize int
}

// Dispatcher turns unacknowledged writes to control points into player
// commands.
//
// HandleStateChange runs on the store's writer goroutine, so it only
// validates and enqueues. A single worker sends commands in arrival order.
type Dispatcher struct {
	devices DeviceLookup
	client  Controller
	store   Store
	keys    Keys
	metrics *Metrics
	logger  Logger

	queue chan job
	wg    sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		devices: cfg.Devices,
		client:  cfg.Controller,
		store:   cfg.Store,
		keys:    cfg.Keys,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan job, size),
	}
}

// Start runs the worker until ctx is cancelled. Call Wait after cancelling.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.work(ctx)
}

// Wait blocks until the worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// HandleStateChange is the StateHandler for the device subtree.
//
// Only writes with ack=false are commands. A value of true on a button
// sends its playback command; a number on Volume sets the volume. Writes
// for devices that are not configured are logged and dropped.
func (d *Dispatcher) HandleStateChange(id string, st *state.State) {
	if st == nil || st.Ack || st.Val == nil {
		return
	}

	name, point, ok := d.keys.ParseControlPoint(id)
	if !ok {
		return
	}

	j := job{ref: uuid.NewString(), id: id, point: point}
	if cmd, isButton := buttonCommands[point]; isButton {
		if b, ok := st.Val.(bool); !ok || !b {
			return
		}
		j.command = cmd
	} else if point == PointVolume {
		level, ok := toFloat(st.Val)
		if !ok {
			d.logger.Warn("ignoring non-numeric volume", "id", id, "value", st.Val)
			return
		}
		j.volume = level
	} else {
		return
	}

	device, found := d.devices.FindDeviceByName(name)
	if !found {
		d.logger.Warn("command for unknown device", "device", name, "id", id)
		return
	}
	j.device = device

	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		d.logger.Warn("dispatcher not running, command dropped", "id", id)
		return
	}

	select {
	case d.queue <- j:
		d.logger.Debug("command queued", "ref", j.ref, "id", id)
	default:
		d.metrics.commandDropped()
		d.logger.Warn("command queue full, command dropped", "id", id)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.execute(ctx, j)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	name := j.device.Name

	if j.point == PointVolume {
		err := d.client.SetVolume(ctx, j.device.IP, j.volume)
		d.metrics.observeCommand(name, "volume", err)
		if err != nil {
			d.logger.Warn("setting volume failed", "ref", j.ref, "device", name, "volume", j.volume, "error", err)
			return
		}
		if err := d.store.SetState(ctx, j.id, j.volume, true); err != nil {
			d.logger.Warn("acknowledging volume failed", "id", j.id, "error", err)
		}
		return
	}

	err := d.client.SendPlaybackCommand(ctx, j.device.IP, j.command)
	d.metrics.observeCommand(name, string(j.command), err)
	if err != nil {
		d.logger.Warn("playback command failed", "ref", j.ref, "device", name, "command", j.command, "error", err)
		return
	}

	d.logger.Debug("playback command sent", "ref", j.ref, "device", name, "command", j.command)

	// Buttons are momentary.
	if err := d.store.SetState(ctx, j.id, false, true); err != nil {
		d.logger.Warn("resetting button failed", "id", j.id, "error", err)
	}
}

// toFloat accepts any numeric value or a numeric string.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
