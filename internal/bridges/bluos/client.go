package bluos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	// DefaultPort is the port BluOS players serve their HTTP API on.
	DefaultPort = 11000

	// DefaultRequestTimeout bounds a single request to a player.
	DefaultRequestTimeout = 5 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// Controller sends requests to BluOS players. address is the device IP,
// optionally with a port.
type Controller interface {
	SendPlaybackCommand(ctx context.Context, address string, cmd Command) error
	SetVolume(ctx context.Context, address string, level float64) error
	FetchStatus(ctx context.Context, address string) ([]byte, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Port is used for addresses without one. Default: DefaultPort.
	Port int

	// Timeout bounds each request. Default: DefaultRequestTimeout.
	Timeout time.Duration

	// HTTPClient overrides the pooled client. Tests inject one here.
	HTTPClient *http.Client
}

// Client talks to the HTTP API of BluOS players.
type Client struct {
	port    int
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
		hc.Timeout = timeout
	}
	return &Client{port: port, timeout: timeout, http: hc}
}

type playRequest struct {
	Command Command `json:"command"`
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

// SendPlaybackCommand posts {"command": cmd} to /Play.
func (c *Client) SendPlaybackCommand(ctx context.Context, address string, cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	_, err := c.do(ctx, http.MethodPost, address, "/Play", playRequest{Command: cmd})
	return err
}

// SetVolume posts {"volume": level} to /Volume. The player clamps the level.
func (c *Client) SetVolume(ctx context.Context, address string, level float64) error {
	_, err := c.do(ctx, http.MethodPost, address, "/Volume", volumeRequest{Volume: level})
	return err
}

// FetchStatus returns the body of GET /Status.
func (c *Client) FetchStatus(ctx context.Context, address string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, address, "/Status", nil)
}

func (c *Client) do(ctx context.Context, method, address, path string, body any) ([]byte, error) {
	base, err := c.baseURL(address)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrDeviceUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrDeviceUnreachable, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}
	return data, nil
}

// baseURL returns http://host:port for address, adding the configured port
// when address has none.
func (c *Client) baseURL(address string) (string, error) {
	if address == "" {
		return "", ErrEmptyAddress
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return "http://" + address, nil
	}
	return "http://" + net.JoinHostPort(address, strconv.Itoa(c.port)), nil
}
