package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// Logger defines the logging interface used by the Store.
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

// StoreOptions configures a Store.
type StoreOptions struct {
	// Repository persists objects and states. Required.
	Repository Repository

	// Bus mirrors states to MQTT and feeds external writes back in. Optional.
	Bus *Bus

	// Logger defaults to a no-op logger.
	Logger Logger

	// Source is recorded as State.From for local writes.
	Source string
}

// Store is the hierarchical key/value store the adapter runs against.
//
// Keys are dotted paths. Every key may have an object (its definition) and
// a state (its current value). Writes notify subscribers whose pattern
// matches the key. Handlers run synchronously on the writer's goroutine,
// outside any store lock, and must not block.
type Store struct {
	repo   Repository
	bus    *Bus
	logger Logger
	source string

	mu         sync.RWMutex
	nextSubID  uint64
	stateSubs  map[uint64]stateSub
	objectSubs map[uint64]objectSub
}

type stateSub struct {
	match   matcher
	handler StateHandler
}

type objectSub struct {
	match   matcher
	handler ObjectHandler
}

// matcher is either an exact key or a compiled glob.
type matcher struct {
	exact string
	g     glob.Glob
}

func (m matcher) Match(id string) bool {
	if m.g != nil {
		return m.g.Match(id)
	}
	return m.exact == id
}

// NewStore creates a Store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Repository == nil {
		return nil, ErrRepositoryRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	source := opts.Source
	if source == "" {
		source = "local"
	}
	return &Store{
		repo:       opts.Repository,
		bus:        opts.Bus,
		logger:     logger,
		source:     source,
		stateSubs:  make(map[uint64]stateSub),
		objectSubs: make(map[uint64]objectSub),
	}, nil
}

// Start attaches the bus, if any, so external writes reach the store.
func (s *Store) Start(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	if err := s.bus.attach(ctx, s); err != nil {
		return fmt.Errorf("attaching bus: %w", err)
	}
	return nil
}

// Close drops every subscription. Writes still succeed afterwards but
// notify nobody. The repository belongs to the caller and stays open.
func (s *Store) Close() {
	s.mu.Lock()
	clear(s.stateSubs)
	clear(s.objectSubs)
	s.mu.Unlock()
}

// GetObject returns the object for id or ErrObjectNotFound.
func (s *Store) GetObject(ctx context.Context, id string) (*Object, error) {
	return s.repo.GetObject(ctx, id)
}

// ListObjects returns the objects whose id starts with prefix.
func (s *Store) ListObjects(ctx context.Context, prefix string) ([]*Object, error) {
	return s.repo.ListObjects(ctx, prefix)
}

// SetObjectNotExists creates obj under id unless an object already exists.
// Existing objects and their values are never touched. If the object is
// created and has a Def value, the state is initialised to it (ack=true).
func (s *Store) SetObjectNotExists(ctx context.Context, id string, obj *Object) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	o := obj.Clone()
	o.ID = id

	created, err := s.repo.CreateObject(ctx, o)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	s.notifyObject(id, o)

	if o.Type == TypeState && o.Common.Def != nil {
		if _, err := s.repo.GetState(ctx, id); errors.Is(err, ErrStateNotFound) {
			if err := s.setState(ctx, id, o.Common.Def, true, s.source); err != nil {
				return true, fmt.Errorf("initialising %s: %w", id, err)
			}
		}
	}
	return true, nil
}

// ExtendObject deep-merges patch into the object for id, creating it if it
// does not exist, and returns the result.
func (s *Store) ExtendObject(ctx context.Context, id string, patch map[string]any) (*Object, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	base, err := s.repo.GetObject(ctx, id)
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		return nil, err
	}

	obj, err := extend(id, base, patch)
	if err != nil {
		return nil, err
	}
	if err := s.repo.PutObject(ctx, obj); err != nil {
		return nil, err
	}

	s.notifyObject(id, obj)
	return obj.Clone(), nil
}

// DeleteObject removes the object and state for id. Deleting a missing
// key is not an error.
func (s *Store) DeleteObject(ctx context.Context, id string) error {
	removed, err := s.repo.DeleteObject(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	s.notifyObject(id, nil)
	s.notifyState(id, nil)
	if s.bus != nil {
		s.bus.clearState(id)
	}
	return nil
}

// GetState returns the state for id or ErrStateNotFound.
func (s *Store) GetState(ctx context.Context, id string) (*State, error) {
	return s.repo.GetState(ctx, id)
}

// SetState writes val to id. ack=false marks a command for the owner of
// the key; ack=true records a confirmed value.
func (s *Store) SetState(ctx context.Context, id string, val any, ack bool) error {
	return s.setState(ctx, id, val, ack, s.source)
}

func (s *Store) setState(ctx context.Context, id string, val any, ack bool, from string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	normalized, data, err := normalizeValue(val)
	if err != nil {
		return fmt.Errorf("setting %s: %w", id, err)
	}

	st := &State{Val: normalized, Ack: ack, TS: time.Now().UTC(), From: from}
	if err := s.repo.PutState(ctx, id, st, data); err != nil {
		return err
	}

	s.notifyState(id, st)
	if s.bus != nil {
		s.bus.publishState(id, st)
	}
	return nil
}

// SubscribeStates calls handler for every state change whose id matches
// pattern. A pattern without '*', '?', '[' or '{' matches one key exactly;
// otherwise it is a glob in which '*' also spans '.'.
//
// The returned function removes the subscription.
func (s *Store) SubscribeStates(pattern string, handler StateHandler) (func(), error) {
	m, err := compileMatcher(pattern)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidPattern)
	}

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.stateSubs[id] = stateSub{match: m, handler: handler}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.stateSubs, id)
		s.mu.Unlock()
	}, nil
}

// SubscribeObjects is SubscribeStates for object definitions.
func (s *Store) SubscribeObjects(pattern string, handler ObjectHandler) (func(), error) {
	m, err := compileMatcher(pattern)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidPattern)
	}

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.objectSubs[id] = objectSub{match: m, handler: handler}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.objectSubs, id)
		s.mu.Unlock()
	}, nil
}

func (s *Store) notifyState(id string, st *State) {
	s.mu.RLock()
	var handlers []StateHandler
	for _, sub := range s.stateSubs {
		if sub.match.Match(id) {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		var cp *State
		if st != nil {
			c := *st
			cp = &c
		}
		s.safeCall(id, func() { h(id, cp) })
	}
}

func (s *Store) notifyObject(id string, obj *Object) {
	s.mu.RLock()
	var handlers []ObjectHandler
	for _, sub := range s.objectSubs {
		if sub.match.Match(id) {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		cp := obj.Clone()
		s.safeCall(id, func() { h(id, cp) })
	}
}

// safeCall keeps one faulty subscriber from breaking the writer.
func (s *Store) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state subscriber panic recovered", "id", id, "panic", r)
		}
	}()
	fn()
}

func compileMatcher(pattern string) (matcher, error) {
	if pattern == "" {
		return matcher{}, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return matcher{exact: pattern}, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return matcher{}, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	return matcher{g: g}, nil
}
