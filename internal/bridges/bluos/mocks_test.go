package bluos

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rookie50/ioBroker.bluos/internal/state"
)

const testNamespace = "bluos.0"

var testKeys = Keys{Namespace: testNamespace}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewStore(state.StoreOptions{Repository: state.NewMemoryRepository()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// staticDevices implements DeviceLookup over a fixed list.
type staticDevices []Device

func (s staticDevices) FindDeviceByName(name string) (Device, bool) {
	for _, d := range s {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// MockController implements Controller for testing.
type MockController struct {
	mu       sync.Mutex
	commands []sentCommand
	volumes  []sentVolume
	fetches  []string

	status   []byte
	fetchErr error
	sendErr  error

	// block, when set, holds SendPlaybackCommand until it is closed.
	block   chan struct{}
	entered chan struct{}
}

type sentCommand struct {
	Address string
	Command Command
}

type sentVolume struct {
	Address string
	Level   float64
}

func NewMockController() *MockController {
	return &MockController{status: []byte(`{"state":"stop"}`)}
}

func (m *MockController) SendPlaybackCommand(ctx context.Context, address string, cmd Command) error {
	m.mu.Lock()
	block, entered := m.block, m.entered
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, sentCommand{Address: address, Command: cmd})
	return m.sendErr
}

func (m *MockController) SetVolume(_ context.Context, address string, level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes = append(m.volumes, sentVolume{Address: address, Level: level})
	return m.sendErr
}

func (m *MockController) FetchStatus(_ context.Context, address string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, address)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.status, nil
}

func (m *MockController) SetFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *MockController) GetCommands() []sentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentCommand, len(m.commands))
	copy(out, m.commands)
	return out
}

func (m *MockController) GetVolumes() []sentVolume {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentVolume, len(m.volumes))
	copy(out, m.volumes)
	return out
}

func (m *MockController) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

// fakePlayer is an httptest server speaking the BluOS endpoints.
type fakePlayer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []playerRequest
	status   string
	code     int
}

type playerRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newFakePlayer(t *testing.T) *fakePlayer {
	t.Helper()
	p := &fakePlayer{status: `{ "state": "play", "volume": 30 }`, code: http.StatusOK}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePlayer) serve(w http.ResponseWriter, r *http.Request) {
	req := playerRequest{Method: r.Method, Path: r.URL.Path}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 { //nolint:errcheck // tests only
		_ = json.Unmarshal(data, &req.Body) //nolint:errcheck // recorded as nil on failure
	}

	p.mu.Lock()
	p.requests = append(p.requests, req)
	code, status := p.code, p.status
	p.mu.Unlock()

	w.WriteHeader(code)
	if r.URL.Path == "/Status" {
		_, _ = io.WriteString(w, status) //nolint:errcheck // tests only
	}
}

// Address is host:port as stored in a device's ip field.
func (p *fakePlayer) Address() string {
	return strings.TrimPrefix(p.URL, "http://")
}

func (p *fakePlayer) Requests() []playerRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]playerRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *fakePlayer) Count(method, path string) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// mockPublisher implements HealthPublisher for testing.
type mockPublisher struct {
	mu        sync.Mutex
	connected bool
	messages  []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}
