package bluos

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestClient_SendPlaybackCommand(t *testing.T) {
	player := newFakePlayer(t)
	c := NewClient(ClientConfig{})

	for _, cmd := range []Command{CommandPlay, CommandSkip, CommandBack, CommandPause} {
		if err := c.SendPlaybackCommand(context.Background(), player.Address(), cmd); err != nil {
			t.Fatalf("SendPlaybackCommand(%s) error = %v", cmd, err)
		}
	}

	want := []playerRequest{
		{Method: http.MethodPost, Path: "/Play", Body: map[string]any{"command": "play"}},
		{Method: http.MethodPost, Path: "/Play", Body: map[string]any{"command": "skip"}},
		{Method: http.MethodPost, Path: "/Play", Body: map[string]any{"command": "back"}},
		{Method: http.MethodPost, Path: "/Play", Body: map[string]any{"command": "pause"}},
	}
	if diff := cmp.Diff(want, player.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_SendPlaybackCommand_Unknown(t *testing.T) {
	player := newFakePlayer(t)
	c := NewClient(ClientConfig{})

	err := c.SendPlaybackCommand(context.Background(), player.Address(), "stop")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
	if n := len(player.Requests()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestClient_SetVolume(t *testing.T) {
	player := newFakePlayer(t)
	c := NewClient(ClientConfig{})

	if err := c.SetVolume(context.Background(), player.Address(), 35); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}

	want := []playerRequest{
		{Method: http.MethodPost, Path: "/Volume", Body: map[string]any{"volume": float64(35)}},
	}
	if diff := cmp.Diff(want, player.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_FetchStatus(t *testing.T) {
	player := newFakePlayer(t)
	c := NewClient(ClientConfig{})

	body, err := c.FetchStatus(context.Background(), player.Address())
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if string(body) != `{ "state": "play", "volume": 30 }` {
		t.Errorf("body = %q", body)
	}
	if player.Count(http.MethodGet, "/Status") != 1 {
		t.Errorf("requests = %v", player.Requests())
	}
}

func TestClient_UnexpectedStatus(t *testing.T) {
	player := newFakePlayer(t)
	player.mu.Lock()
	player.code = http.StatusServiceUnavailable
	player.mu.Unlock()

	c := NewClient(ClientConfig{})
	_, err := c.FetchStatus(context.Background(), player.Address())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	player := newFakePlayer(t)
	addr := player.Address()
	player.Close()

	c := NewClient(ClientConfig{Timeout: time.Second})
	err := c.SendPlaybackCommand(context.Background(), addr, CommandPlay)
	if !errors.Is(err, ErrDeviceUnreachable) {
		t.Fatalf("error = %v, want ErrDeviceUnreachable", err)
	}
}

func TestClient_BaseURL(t *testing.T) {
	c := NewClient(ClientConfig{})

	tests := []struct {
		address string
		want    string
		wantErr error
	}{
		{"10.0.0.5", "http://10.0.0.5:11000", nil},
		{"10.0.0.5:8080", "http://10.0.0.5:8080", nil},
		{"player.local", "http://player.local:11000", nil},
		{"fe80::1", "http://[fe80::1]:11000", nil},
		{"", "", ErrEmptyAddress},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := c.baseURL(tt.address)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("baseURL(%q) error = %v, want %v", tt.address, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("baseURL(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}

func TestClient_CustomPort(t *testing.T) {
	c := NewClient(ClientConfig{Port: 11100})
	got, err := c.baseURL("10.0.0.5")
	if err != nil {
		t.Fatalf("baseURL() error = %v", err)
	}
	if got != "http://10.0.0.5:11100" {
		t.Errorf("baseURL() = %q", got)
	}
}
