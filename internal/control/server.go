package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/upsguard/upsguard/internal/app"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// Server accepts Requests on a unix domain socket and answers them against
// one shared *app.Context, giving upsguardctl a way to reach the live
// daemon's in-memory state (shutdown phase, latest snapshot) that reading
// the database alone can't provide.
type Server struct {
	socketPath string
	appCtx     *app.Context
	listener   net.Listener
}

func NewServer(socketPath string, appCtx *app.Context) *Server {
	return &Server{socketPath: socketPath, appCtx: appCtx}
}

// Serve listens on the configured socket path until the listener is closed.
// Call from its own goroutine; returns nil on a clean Close.
func (s *Server) Serve() error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen failed: %w", err)
	}
	s.listener = ln
	logger.Info("control socket listening", zap.String("path", s.socketPath))

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&req); err != nil {
		writeResponse(conn, Response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)})
		return
	}

	resp := s.dispatch(req)
	writeResponse(conn, resp)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Command {
	case CommandStatus:
		return s.handleStatus()
	case CommandCancel:
		return s.handleCancel()
	case CommandTestHook:
		return s.handleTestHook(req.HookID)
	case CommandHistory:
		return s.handleHistory(req.SinceDays)
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (s *Server) handleStatus() Response {
	status := s.appCtx.Shutdown.Status()
	view := &StatusView{
		Phase:            string(status.Phase),
		RemainingSeconds: status.RemainingSeconds,
		InFinalCountdown: status.InFinalCountdown,
		ChannelErrors:    s.appCtx.Dispatcher.ChannelErrors(),
	}
	if snap, ok := s.appCtx.Monitor.LatestSnapshot(); ok {
		view.UPSStatus = string(snap.Status)
		view.HasSnapshot = true
	}
	view.NUTConnected = s.appCtx.NUTClient.Status().Connected
	return Response{OK: true, Status: view}
}

func (s *Server) handleCancel() Response {
	ok, reason := s.appCtx.Shutdown.RequestCancel()
	if !ok {
		return Response{OK: false, Error: reason}
	}
	return Response{OK: true, Message: "cancellation requested"}
}

func (s *Server) handleTestHook(hookID string) Response {
	if hookID == "" {
		return Response{OK: false, Error: "hook id is required"}
	}
	for _, spec := range s.appCtx.Shutdown.HookSpecs() {
		if spec.ID != hookID {
			continue
		}
		hook, err := s.appCtx.HookRegistry.Create(spec.BackendID, spec.Config)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		ok, err := hook.TestConnection()
		if err != nil {
			return Response{OK: ok, Error: err.Error()}
		}
		return Response{OK: ok, Message: fmt.Sprintf("hook %q test connection succeeded", spec.DisplayName)}
	}
	return Response{OK: false, Error: fmt.Sprintf("no configured hook with id %q", hookID)}
}

func (s *Server) handleHistory(sinceDays int) Response {
	events, err := s.appCtx.Events.Query(sinceDays, "", "")
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, History: events}
}

func writeResponse(conn net.Conn, resp Response) {
	enc := json.NewEncoder(conn)
	if err := enc.Encode(resp); err != nil {
		logger.Warn("control: failed to write response", zap.Error(err))
	}
}
