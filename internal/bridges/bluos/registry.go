package bluos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rookie50/ioBroker.bluos/internal/state"
)

// devicesSchema describes the device list for configuration editors.
var devicesSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "title": "Name"},
			"ip":   map[string]any{"type": "string", "title": "IP address"},
		},
		"required": []string{"name", "ip"},
	},
}

// groupsSchema describes the group list for configuration editors.
var groupsSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "title": "Name"},
			"devices": map[string]any{
				"type":  "array",
				"title": "Devices",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"name"},
	},
}

// Registry holds the current device and group lists.
//
// Both lists are immutable snapshots swapped atomically, so readers on the
// polling and dispatch paths never see a partial update. Updates of one list
// are serialised, and the change callback sees them in the order they were
// stored.
type Registry struct {
	store  Store
	keys   Keys
	seed   []Device
	logger Logger

	devices atomic.Pointer[[]Device]
	groups  atomic.Pointer[[]Group]

	devicesMu sync.Mutex
	groupsMu  sync.Mutex

	onChangeMu sync.RWMutex
	onChange   func([]Device)
}

// NewRegistry creates a Registry. seed is written as the initial device
// list when the configuration entry does not exist yet.
func NewRegistry(store Store, keys Keys, seed []Device, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Registry{
		store:  store,
		keys:   keys,
		seed:   slices.Clone(seed),
		logger: logger,
	}
	r.devices.Store(&[]Device{})
	r.groups.Store(&[]Group{})
	return r
}

// SetOnDevicesChanged registers fn to receive every new device list.
func (r *Registry) SetOnDevicesChanged(fn func([]Device)) {
	r.onChangeMu.Lock()
	r.onChange = fn
	r.onChangeMu.Unlock()
}

// Load reads both configuration entries, creating them when absent.
//
// A malformed device or group list is logged and treated as empty. Only
// store errors are returned.
//
// Each entry is read again under its update lock once it exists, so an edit
// racing with Load is either seen here or delivered to
// OnConfigurationChanged afterwards.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.ensureDevices(ctx); err != nil {
		return err
	}
	if err := r.ensureGroups(ctx); err != nil {
		return err
	}
	if err := r.reload(ctx, r.keys.Devices(), &r.devicesMu, r.setDevices); err != nil {
		return fmt.Errorf("reading device list: %w", err)
	}
	if err := r.reload(ctx, r.keys.Groups(), &r.groupsMu, r.setGroups); err != nil {
		return fmt.Errorf("reading group list: %w", err)
	}
	return nil
}

func (r *Registry) reload(ctx context.Context, id string, mu *sync.Mutex, set func(*state.Object)) error {
	mu.Lock()
	defer mu.Unlock()

	obj, err := r.store.GetObject(ctx, id)
	if err != nil && !errors.Is(err, state.ErrObjectNotFound) {
		return err
	}
	set(obj)
	return nil
}

func (r *Registry) ensureDevices(ctx context.Context) error {
	_, err := r.store.GetObject(ctx, r.keys.Devices())
	if err == nil {
		return nil
	}
	if !errors.Is(err, state.ErrObjectNotFound) {
		return fmt.Errorf("reading device list: %w", err)
	}

	seed := r.seed
	if seed == nil {
		seed = []Device{}
	}
	def, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("encoding device seed: %w", err)
	}

	obj := &state.Object{
		Type: state.TypeConfig,
		Common: state.Common{
			Name:    "Devices",
			Type:    state.ValueArray,
			Read:    true,
			Write:   true,
			Desc:    "BluOS players as a JSON array of {name, ip}",
			Default: string(def),
			Schema:  devicesSchema,
		},
	}
	created, err := r.store.SetObjectNotExists(ctx, r.keys.Devices(), obj)
	if err != nil {
		return fmt.Errorf("creating device list: %w", err)
	}
	if created {
		r.logger.Info("device list created", "key", r.keys.Devices(), "devices", len(seed))
	}
	return nil
}

func (r *Registry) ensureGroups(ctx context.Context) error {
	obj, err := r.store.GetObject(ctx, r.keys.Groups())
	if err != nil && !errors.Is(err, state.ErrObjectNotFound) {
		return fmt.Errorf("reading group list: %w", err)
	}
	if err == nil && !isEmptyDefault(obj.Common.Default) {
		return nil
	}

	_, err = r.store.ExtendObject(ctx, r.keys.Groups(), map[string]any{
		"type": state.TypeConfig,
		"common": map[string]any{
			"name":    "Groups",
			"type":    state.ValueArray,
			"read":    true,
			"write":   true,
			"desc":    "BluOS player groups as a JSON array of {name, devices}",
			"default": "[]",
			"schema":  groupsSchema,
		},
	})
	if err != nil {
		return fmt.Errorf("initialising group list: %w", err)
	}
	return nil
}

// OnConfigurationChanged reloads the list whose entry changed. It is an
// ObjectHandler for the device and group keys; other keys are ignored. A
// deleted entry empties its list.
func (r *Registry) OnConfigurationChanged(id string, obj *state.Object) {
	switch id {
	case r.keys.Devices():
		r.devicesMu.Lock()
		r.setDevices(obj)
		r.devicesMu.Unlock()
	case r.keys.Groups():
		r.groupsMu.Lock()
		r.setGroups(obj)
		r.groupsMu.Unlock()
	}
}

// setDevices parses obj, swaps the snapshot and notifies the callback.
// Callers hold devicesMu.
func (r *Registry) setDevices(obj *state.Object) {
	var def any
	if obj != nil {
		def = obj.Common.Default
	}
	devices, skipped, err := parseDevices(def)
	if err != nil {
		r.logger.Warn("device list is malformed, using empty list", "key", r.keys.Devices(), "error", err)
		devices = []Device{}
	}
	for _, serr := range skipped {
		r.logger.Warn("device entry skipped", "key", r.keys.Devices(), "error", serr)
	}
	r.devices.Store(&devices)
	r.logger.Info("device list loaded", "devices", len(devices))

	r.onChangeMu.RLock()
	fn := r.onChange
	r.onChangeMu.RUnlock()
	if fn != nil {
		fn(slices.Clone(devices))
	}
}

// setGroups is setDevices for the group list. Callers hold groupsMu.
func (r *Registry) setGroups(obj *state.Object) {
	var def any
	if obj != nil {
		def = obj.Common.Default
	}
	groups, err := parseGroups(def)
	if err != nil {
		r.logger.Warn("group list is malformed, using empty list", "key", r.keys.Groups(), "error", err)
		groups = []Group{}
	}
	r.groups.Store(&groups)
	r.logger.Debug("group list loaded", "groups", len(groups))
}

// Devices returns a copy of the current device list.
func (r *Registry) Devices() []Device {
	return slices.Clone(*r.devices.Load())
}

// Groups returns a copy of the current group list.
func (r *Registry) Groups() []Group {
	groups := *r.groups.Load()
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Name: g.Name, Devices: slices.Clone(g.Devices)}
	}
	return out
}

// FindDeviceByName returns the first device called name.
func (r *Registry) FindDeviceByName(name string) (Device, bool) {
	for _, d := range *r.devices.Load() {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// parseDevices decodes a device list default. The value is either the
// JSON text of an array or an already decoded array. Absent or empty input
// is an empty list.
//
// err is set when the value is not an array. Entries that are not a valid
// {name, ip} object are left out and reported in skipped.
func parseDevices(def any) (devices []Device, skipped []error, err error) {
	data, ok, err := defaultBytes(def)
	if err != nil || !ok {
		return []Device{}, nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}
	if entries == nil {
		// JSON null
		return nil, nil, fmt.Errorf("%w: not an array", ErrMalformedConfig)
	}

	devices = make([]Device, 0, len(entries))
	for i, raw := range entries {
		var d Device
		if err := json.Unmarshal(raw, &d); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: entry %d: %w", ErrMalformedConfig, i, err))
			continue
		}
		if d.Name == "" || d.IP == "" {
			skipped = append(skipped, fmt.Errorf("%w: entry %d needs a name and an ip", ErrMalformedConfig, i))
			continue
		}
		if err := state.ValidateID(d.Name); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: entry %d: %w", ErrMalformedConfig, i, err))
			continue
		}
		devices = append(devices, d)
	}
	return devices, skipped, nil
}

// parseGroups is parseDevices for the group list.
func parseGroups(def any) ([]Group, error) {
	data, ok, err := defaultBytes(def)
	if err != nil || !ok {
		return []Group{}, err
	}

	var groups []Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}
	if groups == nil {
		return nil, fmt.Errorf("%w: not an array", ErrMalformedConfig)
	}
	for i, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: group %d has no name", ErrMalformedConfig, i)
		}
		if g.Devices == nil {
			groups[i].Devices = []string{}
		}
	}
	return groups, nil
}

// defaultBytes returns the JSON text of a configuration default. ok is
// false when there is nothing to parse.
func defaultBytes(def any) (data []byte, ok bool, err error) {
	switch v := def.(type) {
	case nil:
		return nil, false, nil
	case string:
		if v == "" {
			return nil, false, nil
		}
		return []byte(v), true, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
		}
		return data, true, nil
	}
}

func isEmptyDefault(def any) bool {
	switch v := def.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
