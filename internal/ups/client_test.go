package ups

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/upsguard/upsguard/internal/config"
)

// fakeNUTServer speaks just enough of the upsd line protocol for client
// tests: one connection at a time, canned variables, optional auth.
type fakeNUTServer struct {
	listener net.Listener
	vars     map[string]string
}

func startFakeNUTServer(t *testing.T) *fakeNUTServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start fake NUT server: %v", err)
	}
	s := &fakeNUTServer{
		listener: ln,
		vars: map[string]string{
			"ups.status":      "OL",
			"battery.charge":  "95.0",
			"battery.runtime": "1800",
			"device.model":    "Back-UPS 950",
			"ups.alarm":       "",
		},
	}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeNUTServer) addr() (string, int) {
	tcpAddr := s.listener.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func (s *fakeNUTServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeNUTServer) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "VER":
			fmt.Fprintf(conn, "Network UPS Tools upsd 2.8.0\n")
		case strings.HasPrefix(line, "USERNAME "), strings.HasPrefix(line, "PASSWORD "):
			fmt.Fprintf(conn, "OK\n")
		case line == "LIST UPS":
			fmt.Fprintf(conn, "BEGIN LIST UPS\n")
			fmt.Fprintf(conn, "UPS dummy \"Dummy UPS\"\n")
			fmt.Fprintf(conn, "END LIST UPS\n")
		case line == "LIST VAR dummy":
			fmt.Fprintf(conn, "BEGIN LIST VAR dummy\n")
			for k, v := range s.vars {
				fmt.Fprintf(conn, "VAR dummy %s \"%s\"\n", k, v)
			}
			fmt.Fprintf(conn, "END LIST VAR dummy\n")
		case strings.HasPrefix(line, "GET VAR dummy "):
			key := strings.TrimPrefix(line, "GET VAR dummy ")
			if v, ok := s.vars[key]; ok {
				fmt.Fprintf(conn, "VAR dummy %s \"%s\"\n", key, v)
			} else {
				fmt.Fprintf(conn, "ERR VAR-NOT-SUPPORTED\n")
			}
		default:
			fmt.Fprintf(conn, "ERR UNKNOWN-COMMAND\n")
		}
	}
}

func testClient(t *testing.T, s *fakeNUTServer) *Client {
	t.Helper()
	host, port := s.addr()
	c := NewClient(config.NUTConfig{Host: host, Port: port})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_DiscoverPicksFirstReportedUPS(t *testing.T) {
	c := testClient(t, startFakeNUTServer(t))

	name, err := c.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if name != "dummy" {
		t.Fatalf("expected auto-discovered name \"dummy\", got %q", name)
	}
}

func TestClient_ListVarParsesEnvelope(t *testing.T) {
	c := testClient(t, startFakeNUTServer(t))

	vars, err := c.ListVar("dummy")
	if err != nil {
		t.Fatalf("ListVar: %v", err)
	}
	if vars["ups.status"] != "OL" {
		t.Fatalf("expected ups.status OL, got %q", vars["ups.status"])
	}
	if vars["device.model"] != "Back-UPS 950" {
		t.Fatalf("expected quoted value with spaces preserved, got %q", vars["device.model"])
	}
	if v, ok := vars["ups.alarm"]; !ok || v != "" {
		t.Fatalf("expected empty quoted value to survive as an empty string, got ok=%v v=%q", ok, v)
	}
}

func TestClient_GetVar(t *testing.T) {
	c := testClient(t, startFakeNUTServer(t))

	v, err := c.GetVar("dummy", "battery.charge")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	if v != "95.0" {
		t.Fatalf("expected 95.0, got %q", v)
	}
}

func TestClient_ErrResponseSurfacesFullLine(t *testing.T) {
	c := testClient(t, startFakeNUTServer(t))

	_, err := c.GetVar("dummy", "no.such.var")
	if err == nil {
		t.Fatal("expected an error for an unsupported variable")
	}
	if !strings.Contains(err.Error(), "ERR VAR-NOT-SUPPORTED") {
		t.Fatalf("expected the full ERR line surfaced, got %v", err)
	}
}

func TestClient_ConnectFailureReportsDisconnected(t *testing.T) {
	c := NewClient(config.NUTConfig{Host: "127.0.0.1", Port: 1}) // nothing listens here
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail")
	}
	if c.Status().Connected {
		t.Fatal("expected connection status to report disconnected")
	}
}

func TestTokenizeQuoted(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{`VAR dummy ups.status "OL CHRG"`, []string{"VAR", "dummy", "ups.status", "OL CHRG"}},
		{`UPS dummy "Dummy UPS"`, []string{"UPS", "dummy", "Dummy UPS"}},
		{`VAR dummy ups.alarm ""`, []string{"VAR", "dummy", "ups.alarm", ""}},
		{`OK`, []string{"OK"}},
		{``, nil},
	}
	for _, c := range cases {
		got := tokenizeQuoted(c.line)
		if len(got) != len(c.want) {
			t.Errorf("tokenizeQuoted(%q) = %v, want %v", c.line, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("tokenizeQuoted(%q)[%d] = %q, want %q", c.line, i, got[i], c.want[i])
			}
		}
	}
}
