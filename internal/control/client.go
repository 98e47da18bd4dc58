package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client dials a running daemon's control socket for one request/response
// round trip. Each call opens a fresh connection; this is an operator tool,
// not a high-throughput client, so connection reuse isn't worth the state.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

func (c *Client) call(req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return Response{}, fmt.Errorf("control: cannot reach ups-guardiand at %s (is it running?): %w", c.socketPath, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("control: failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("control: failed to read response: %w", err)
	}
	if !resp.OK && resp.Error != "" {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}

func (c *Client) Status() (Response, error) {
	return c.call(Request{Command: CommandStatus})
}

func (c *Client) Cancel() (Response, error) {
	return c.call(Request{Command: CommandCancel})
}

func (c *Client) TestHook(hookID string) (Response, error) {
	return c.call(Request{Command: CommandTestHook, HookID: hookID})
}

func (c *Client) History(sinceDays int) (Response, error) {
	return c.call(Request{Command: CommandHistory, SinceDays: sinceDays})
}
