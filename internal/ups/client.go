package ups

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/guardianerr"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

const commandDeadline = 10 * time.Second

// listenBackoffCap and listenMaxAttempts implement the event-driven mode's
// reconnect-and-relisten policy: delay = min(2^attempt, 30)s, 5 attempts max.
const (
	listenBackoffCapSeconds = 30
	listenMaxAttempts       = 5
)

// Client speaks the plain-text NUT protocol. A single command is in flight
// at a time (guarded by mu); LISTEN mode adds a reader goroutine and a
// heartbeat goroutine layered over the same connection.
type Client struct {
	cfg config.NUTConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	status ConnectionStatus

	upsName        string
	autoDiscovered bool

	listenCancel context.CancelFunc
}

// NewClient constructs a client for the given NUT server; it does not dial.
func NewClient(cfg config.NUTConfig) *Client {
	return &Client{cfg: cfg, upsName: cfg.UPSName}
}

// Status returns the client's connection health. The client never emits
// connected/disconnected notifications itself; that is the monitor's job.
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect dials the NUT server, authenticates if configured, and clears the
// auto-discovery flag so a server whose driver changed gets redetected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.autoDiscovered {
		c.upsName = c.cfg.UPSName
	}
	c.autoDiscovered = false

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.status = ConnectionStatus{Connected: false, LastError: err, ReconnectAttempts: c.status.ReconnectAttempts}
		return guardianerr.TransientIOError("nut dial failed", err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if c.cfg.Username != "" {
		if _, err := c.sendLocked(fmt.Sprintf("USERNAME %s", c.cfg.Username)); err != nil {
			conn.Close()
			c.status.Connected = false
			c.status.LastError = err
			return err
		}
		if _, err := c.sendLocked(fmt.Sprintf("PASSWORD %s", c.cfg.Password)); err != nil {
			conn.Close()
			c.status.Connected = false
			c.status.LastError = err
			return err
		}
	}

	c.status.Connected = true
	c.status.LastError = nil
	return nil
}

// Close releases the underlying connection and stops any LISTEN-mode
// goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listenCancel != nil {
		c.listenCancel()
		c.listenCancel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		c.status.Connected = false
		return err
	}
	return nil
}

// sendLocked writes one command line and reads one response line. Caller
// must hold mu and have an open connection.
func (c *Client) sendLocked(cmd string) (string, error) {
	if c.conn == nil {
		return "", guardianerr.TransientIOError("not connected", nil)
	}
	c.conn.SetDeadline(time.Now().Add(commandDeadline))

	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		c.status.Connected = false
		c.status.LastError = err
		return "", guardianerr.TransientIOError("nut write failed", err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.status.Connected = false
		c.status.LastError = err
		return "", guardianerr.TransientIOError("nut read failed", err)
	}
	line = strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(line, "ERR ") {
		err := guardianerr.ProtocolErr("nut server error", fmt.Errorf("%s", line))
		c.status.LastError = err
		return "", err
	}

	return line, nil
}

// readEnvelopeLocked reads lines until it sees one starting with "END LIST",
// returning the raw lines in between. Caller must hold mu.
func (c *Client) readEnvelopeLocked() ([]string, error) {
	var lines []string
	for {
		if c.conn == nil {
			return nil, guardianerr.TransientIOError("not connected", nil)
		}
		c.conn.SetDeadline(time.Now().Add(commandDeadline))
		line, err := c.reader.ReadString('\n')
		if err != nil {
			c.status.Connected = false
			c.status.LastError = err
			return nil, guardianerr.TransientIOError("nut read failed", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "END LIST") {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// ListUPS issues LIST UPS and returns the device names reported.
func (c *Client) ListUPS() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.sendLocked("LIST UPS"); err != nil {
		return nil, err
	}
	lines, err := c.readEnvelopeLocked()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range lines {
		tokens := tokenizeQuoted(line)
		if len(tokens) >= 2 && tokens[0] == "UPS" {
			names = append(names, tokens[1])
		}
	}
	return names, nil
}

// Discover auto-selects a UPS name via LIST UPS if none is configured.
func (c *Client) Discover() (string, error) {
	c.mu.Lock()
	already := c.upsName != "" || c.autoDiscovered
	c.mu.Unlock()
	if already {
		return c.upsName, nil
	}

	names, err := c.ListUPS()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", guardianerr.ProtocolErr("no UPS reported by NUT server", nil)
	}

	c.mu.Lock()
	c.upsName = names[0]
	c.autoDiscovered = true
	c.mu.Unlock()
	return names[0], nil
}

// ListVar issues LIST VAR <ups> and parses the envelope into a map.
// Any command failure sets connected=false and returns an empty map.
func (c *Client) ListVar(upsName string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.sendLocked(fmt.Sprintf("LIST VAR %s", upsName)); err != nil {
		c.status.Connected = false
		return map[string]string{}, err
	}
	lines, err := c.readEnvelopeLocked()
	if err != nil {
		return map[string]string{}, err
	}

	vars := make(map[string]string, len(lines))
	for _, line := range lines {
		tokens := tokenizeQuoted(line)
		// VAR <ups> <key> "<value>"
		if len(tokens) >= 4 && tokens[0] == "VAR" {
			vars[tokens[2]] = tokens[3]
		}
	}
	return vars, nil
}

// ListRW issues LIST RW <ups>, analogous to ListVar but for writable vars.
func (c *Client) ListRW(upsName string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.sendLocked(fmt.Sprintf("LIST RW %s", upsName)); err != nil {
		return map[string]string{}, err
	}
	lines, err := c.readEnvelopeLocked()
	if err != nil {
		return map[string]string{}, err
	}

	vars := make(map[string]string, len(lines))
	for _, line := range lines {
		tokens := tokenizeQuoted(line)
		if len(tokens) >= 4 && tokens[0] == "VAR" {
			vars[tokens[2]] = tokens[3]
		}
	}
	return vars, nil
}

// GetVar issues GET VAR <ups> <key>.
func (c *Client) GetVar(upsName, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, err := c.sendLocked(fmt.Sprintf("GET VAR %s %s", upsName, key))
	if err != nil {
		return "", err
	}
	tokens := tokenizeQuoted(line)
	if len(tokens) >= 4 {
		return tokens[3], nil
	}
	return "", guardianerr.ProtocolErr("malformed GET VAR response", fmt.Errorf("%s", line))
}

// SetVar issues SET VAR <ups> <key> "<value>". Whitelisting lives at the API
// boundary, out of the core's scope; this merely relays the call.
func (c *Client) SetVar(upsName, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.sendLocked(fmt.Sprintf("SET VAR %s %s %q", upsName, key, value))
	return err
}

// InstCmd issues INSTCMD <ups> <cmd>.
func (c *Client) InstCmd(upsName, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.sendLocked(fmt.Sprintf("INSTCMD %s %s", upsName, cmd))
	return err
}

// Ver issues the VER heartbeat command.
func (c *Client) Ver() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked("VER")
}

// StartListen issues LISTEN <ups>. If the server replies OK, it spawns a
// reader goroutine that invokes onDataChanged on every DATACHANGED line and
// a heartbeat goroutine that periodically issues VER. Returns ok=false if
// the server doesn't accept LISTEN (an ERR reply also comes back as the
// error), so the monitor knows to fall back to polling.
func (c *Client) StartListen(ctx context.Context, upsName string, heartbeat time.Duration, onDataChanged func(), onFailure func(error)) (bool, error) {
	c.mu.Lock()
	line, err := c.sendLocked(fmt.Sprintf("LISTEN %s", upsName))
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !strings.HasPrefix(line, "OK") {
		return false, nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.listenCancel = cancel
	c.mu.Unlock()

	go c.listenReaderLoop(listenCtx, upsName, onDataChanged, onFailure)
	go c.heartbeatLoop(listenCtx, heartbeat)

	return true, nil
}

func (c *Client) listenReaderLoop(ctx context.Context, upsName string, onDataChanged func(), onFailure func(error)) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		reader := c.reader
		c.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetDeadline(time.Time{})
		line, err := reader.ReadString('\n')
		if err != nil {
			attempt++
			logger.Warn("nut listen connection dropped", zap.Int("attempt", attempt), zap.Error(err))
			if attempt > listenMaxAttempts {
				onFailure(guardianerr.TransientIOError("listen mode exhausted reconnect attempts", err))
				return
			}
			delay := time.Duration(minInt(1<<attempt, listenBackoffCapSeconds)) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if err := c.Connect(ctx); err != nil {
				continue
			}
			ok, err := c.StartListen(ctx, upsName, 0, onDataChanged, onFailure)
			if err != nil || !ok {
				continue
			}
			return // new goroutines for the fresh connection took over
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "DATACHANGED") {
			attempt = 0
			onDataChanged()
		}
		// DATASTALE and other pushes are ignored by the core; the next
		// polling-cadence LIST VAR will surface staleness as an empty read.
	}
}

// heartbeatLoop keeps the TCP connection warm while LISTEN mode is active.
// It only writes; the reader goroutine owns all reads on the connection and
// consumes (and ignores) the VER reply line alongside DATACHANGED pushes.
func (c *Client) heartbeatLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			if _, err := conn.Write([]byte("VER\n")); err != nil {
				logger.Warn("listen heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// tokenizeQuoted splits a NUT response line on whitespace, treating a
// double-quoted run as a single token (quotes stripped). A quoted empty
// string still yields a token, so VAR lines with empty values keep their
// shape.
func tokenizeQuoted(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	quoted := false
	flush := func() {
		if cur.Len() > 0 || quoted {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
		quoted = false
	}

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
			quoted = true
		case ch == ' ' && !inQuote:
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return tokens
}
