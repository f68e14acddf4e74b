package bluos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/config"
	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// DefaultStopTimeout bounds Stop.
const DefaultStopTimeout = 5 * time.Second

// Store is the part of the state store the adapter uses. *state.Store
// implements it.
type Store interface {
	GetObject(ctx context.Context, id string) (*state.Object, error)
	SetObjectNotExists(ctx context.Context, id string, obj *state.Object) (bool, error)
	ExtendObject(ctx context.Context, id string, patch map[string]any) (*state.Object, error)
	DeleteObject(ctx context.Context, id string) error
	GetState(ctx context.Context, id string) (*state.State, error)
	SetState(ctx context.Context, id string, val any, ack bool) error
	SubscribeStates(pattern string, handler state.StateHandler) (func(), error)
	SubscribeObjects(pattern string, handler state.ObjectHandler) (func(), error)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AdapterOptions holds the dependencies of an Adapter.
type AdapterOptions struct {
	// Config is the adapter section of config.yaml.
	Config config.AdapterConfig

	// Store is the state store. Required.
	Store Store

	// Controller talks to players. Default: a Client built from Config.
	Controller Controller

	// Publisher receives health messages. Optional.
	Publisher HealthPublisher

	// HealthTopic is where health is published. Required with Publisher.
	HealthTopic string

	// Registerer receives the bridge's metrics. Optional.
	Registerer prometheus.Registerer

	Logger  Logger
	Version string
}

// DeviceStatus is a configured device with its polling record.
type DeviceStatus struct {
	Device
	Poll PollStatus `json:"poll"`
}

// Adapter wires the registry, poller, dispatcher and health reporter to
// the state store.
type Adapter struct {
	cfg   config.AdapterConfig
	keys  Keys
	store Store

	registry   *Registry
	poller     *Poller
	dispatcher *Dispatcher
	health     *HealthReporter
	metrics    *Metrics
	logger     Logger

	ctx       context.Context
	ctxCancel context.CancelFunc
	unsubs    []func()

	reconcileMu sync.Mutex
	known       map[string]bool

	started   atomic.Bool
	connected atomic.Bool
	stopOnce  sync.Once
}

// NewAdapter creates an Adapter.
func NewAdapter(opts AdapterOptions) (*Adapter, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Config.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if opts.Publisher != nil && opts.HealthTopic == "" {
		return nil, fmt.Errorf("health topic is required with a publisher")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	controller := opts.Controller
	if controller == nil {
		controller = NewClient(ClientConfig{
			Port:    opts.Config.DevicePort,
			Timeout: opts.Config.RequestTimeout,
		})
	}

	keys := Keys{Namespace: opts.Config.Namespace}
	metrics := NewMetrics(opts.Registerer)

	seed := make([]Device, 0, len(opts.Config.Devices))
	for _, d := range opts.Config.Devices {
		seed = append(seed, Device{Name: d.Name, IP: d.IP})
	}

	a := &Adapter{
		cfg:     opts.Config,
		keys:    keys,
		store:   opts.Store,
		metrics: metrics,
		logger:  logger,
		known:   make(map[string]bool),
	}

	a.registry = NewRegistry(opts.Store, keys, seed, logger)
	a.poller = NewPoller(PollerConfig{
		Devices:    a.registry,
		Controller: controller,
		Store:      opts.Store,
		Keys:       keys,
		Metrics:    metrics,
		Logger:     logger,
		Interval:   opts.Config.PollInterval,
	})
	a.dispatcher = NewDispatcher(DispatcherConfig{
		Devices:    a.registry,
		Controller: controller,
		Store:      opts.Store,
		Keys:       keys,
		Metrics:    metrics,
		Logger:     logger,
	})
	a.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Topic:     opts.HealthTopic,
		Interval:  opts.Config.HealthInterval,
		Publisher: opts.Publisher,
		Stats:     a.stats,
		Logger:    logger,
	})

	return a, nil
}

// Start subscribes to configuration and control point changes, loads the
// device registry and starts polling.
//
// The connection indicator is false until every step has succeeded. On
// error the adapter is left stopped.
func (a *Adapter) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return fmt.Errorf("adapter already started")
	}
	a.ctx, a.ctxCancel = context.WithCancel(ctx)

	if err := a.initConnection(ctx); err != nil {
		a.abort()
		return err
	}

	if err := a.health.PublishStarting(); err != nil {
		a.logger.Warn("publishing starting health failed", "error", err)
	}

	a.dispatcher.Start(a.ctx)
	a.poller.Start(a.ctx)
	a.registry.SetOnDevicesChanged(a.reconcile)

	// Subscribe first so an edit made while loading is not lost. Load
	// notifies the callback, which runs the first reconcile.
	if err := a.subscribe(); err != nil {
		a.abort()
		return err
	}

	if err := a.registry.Load(ctx); err != nil {
		a.abort()
		return fmt.Errorf("loading device registry: %w", err)
	}

	a.health.Start(a.ctx)

	if err := a.setConnection(ctx, true); err != nil {
		a.abort()
		return err
	}

	a.logger.Info("BluOS bridge started",
		"namespace", a.cfg.Namespace,
		"devices", len(a.registry.Devices()),
		"poll_interval", a.poller.interval,
	)
	return nil
}

func (a *Adapter) initConnection(ctx context.Context) error {
	_, err := a.store.SetObjectNotExists(ctx, a.keys.Connection(), &state.Object{
		Type: state.TypeState,
		Common: state.Common{
			Name:  "Device or service connected",
			Role:  "indicator.connected",
			Type:  state.ValueBoolean,
			Read:  true,
			Write: false,
			Def:   false,
		},
	})
	if err != nil {
		return fmt.Errorf("creating connection indicator: %w", err)
	}
	return a.setConnection(ctx, false)
}

func (a *Adapter) setConnection(ctx context.Context, connected bool) error {
	if err := a.store.SetState(ctx, a.keys.Connection(), connected, true); err != nil {
		return fmt.Errorf("setting connection indicator: %w", err)
	}
	a.connected.Store(connected)
	return nil
}

func (a *Adapter) subscribe() error {
	for _, key := range []string{a.keys.Devices(), a.keys.Groups()} {
		unsub, err := a.store.SubscribeObjects(key, a.registry.OnConfigurationChanged)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", key, err)
		}
		a.unsubs = append(a.unsubs, unsub)
	}

	unsub, err := a.store.SubscribeStates(a.keys.Subtree(), a.dispatcher.HandleStateChange)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", a.keys.Subtree(), err)
	}
	a.unsubs = append(a.unsubs, unsub)
	return nil
}

// abort undoes a partial Start.
func (a *Adapter) abort() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	a.registry.SetOnDevicesChanged(nil)
	a.ctxCancel()
	a.poller.StopAll(a.stopTimeout())
	a.dispatcher.Wait()
}

// reconcile provisions control points for the current devices and makes
// polling follow the list.
func (a *Adapter) reconcile(devices []Device) {
	a.reconcileMu.Lock()
	defer a.reconcileMu.Unlock()

	if a.ctx == nil || a.ctx.Err() != nil {
		return
	}

	current := make(map[string]bool, len(devices))
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		if current[d.Name] {
			a.logger.Warn("duplicate device name, first entry wins", "device", d.Name)
			continue
		}
		current[d.Name] = true
		names = append(names, d.Name)

		created, err := ProvisionDevice(a.ctx, a.store, a.keys, d.Name)
		if err != nil {
			a.logger.Error("provisioning control points failed", "device", d.Name, "error", err)
		}
		if created > 0 {
			a.logger.Info("control points created", "device", d.Name, "count", created)
		}
	}

	// Stop loops of removed devices before touching their keys.
	a.poller.Sync(names)

	for name := range a.known {
		if current[name] {
			continue
		}
		if !a.cfg.DeleteOrphaned {
			a.logger.Info("device removed, control points kept", "device", name)
			continue
		}
		if err := RemoveDevice(a.ctx, a.store, a.keys, name); err != nil {
			a.logger.Error("removing control points failed", "device", name, "error", err)
			continue
		}
		a.logger.Info("device removed, control points deleted", "device", name)
	}
	a.known = current
	a.metrics.setDevices(len(names))
}

// Stop unsubscribes, cancels polling and in-flight commands and clears the
// connection indicator. It waits at most the configured stop timeout for
// loops to exit and always returns.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		if !a.started.Load() || a.ctx == nil {
			return
		}
		timeout := a.stopTimeout()

		for _, unsub := range a.unsubs {
			unsub()
		}
		a.unsubs = nil
		a.ctxCancel()

		finished := make(chan struct{})
		go func() {
			a.poller.StopAll(timeout)
			a.dispatcher.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(timeout):
			a.logger.Warn("timed out waiting for polling and commands to stop", "timeout", timeout)
		}

		a.health.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.setConnection(ctx, false); err != nil {
			a.logger.Warn("clearing connection indicator failed", "error", err)
		}
		a.connected.Store(false)

		a.logger.Info("BluOS bridge stopped")
	})
}

func (a *Adapter) stopTimeout() time.Duration {
	if a.cfg.StopTimeout > 0 {
		return a.cfg.StopTimeout
	}
	return DefaultStopTimeout
}

// Keys returns the key builder for this adapter's namespace.
func (a *Adapter) Keys() Keys {
	return a.keys
}

// Connected reports the value of the connection indicator.
func (a *Adapter) Connected() bool {
	return a.connected.Load()
}

// Devices returns every configured device with its polling record.
func (a *Adapter) Devices() []DeviceStatus {
	devices := a.registry.Devices()
	out := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceStatus{Device: d, Poll: a.poller.Status(d.Name)})
	}
	return out
}

// Device returns one configured device.
func (a *Adapter) Device(name string) (DeviceStatus, bool) {
	d, ok := a.registry.FindDeviceByName(name)
	if !ok {
		return DeviceStatus{}, false
	}
	return DeviceStatus{Device: d, Poll: a.poller.Status(name)}, true
}

// Groups returns the configured groups.
func (a *Adapter) Groups() []Group {
	return a.registry.Groups()
}

// ControlPoints returns the state of every control point of device,
// keyed by point name. Points never written are omitted.
func (a *Adapter) ControlPoints(ctx context.Context, device string) (map[string]*state.State, error) {
	out := make(map[string]*state.State, len(controlPoints))
	for _, cp := range controlPoints {
		st, err := a.store.GetState(ctx, a.keys.ControlPoint(device, cp.name))
		if errors.Is(err, state.ErrStateNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[cp.name] = st
	}
	return out, nil
}

// Health returns the current health message.
func (a *Adapter) Health() HealthMessage {
	return a.health.Message()
}

func (a *Adapter) stats() HealthStats {
	devices := a.registry.Devices()
	st := HealthStats{DevicesManaged: len(devices)}
	for _, d := range devices {
		if a.poller.Status(d.Name).Online {
			st.DevicesOnline++
		}
	}
	st.PollsOK, st.PollsFailed = a.poller.Totals()
	return st
}
