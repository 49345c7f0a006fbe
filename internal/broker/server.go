package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/portgrant/portgrantd/internal/rules"
)

// Engine is the port rule engine the broker fronts. Satisfied by
// *tracker.Tracker.
type Engine interface {
	AllowTcpPortAccess(port uint16, iface string, clientFD int) bool
	AllowUdpPortAccess(port uint16, iface string, clientFD int) bool
	RevokeTcpPortAccess(port uint16, iface string) bool
	RevokeUdpPortAccess(port uint16, iface string) bool
	LockDownLoopbackTcpPort(port uint16, clientFD int) bool
	ReleaseLoopbackTcpPort(port uint16) bool
	StartTcpPortForwarding(inputDstPort uint16, inputIfname, dstIP string, dstPort uint16, clientFD int) bool
	StartUdpPortForwarding(inputDstPort uint16, inputIfname, dstIP string, dstPort uint16, clientFD int) bool
	StopTcpPortForwarding(inputDstPort uint16, inputIfname string) bool
	StopUdpPortForwarding(inputDstPort uint16, inputIfname string) bool
	ActiveRules() []rules.PortRule
	HasActiveRules() bool
}

// Server is the local broker API server. It owns the control socket and
// the read-only status socket.
type Server struct {
	cfg    Config
	engine Engine
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*net.UnixConn]struct{}
}

// NewServer creates a Server. Config defaults are applied automatically.
func NewServer(cfg Config, engine Engine, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()
	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger.With("component", "broker"),
		conns:  make(map[*net.UnixConn]struct{}),
	}
}

// Start listens on both sockets and serves until ctx is cancelled. On
// shutdown the listeners and all client connections are closed, and Start
// returns only after every in-flight handler has finished, so the engine
// can be torn down safely afterwards. Rules stay live until their lifeline
// pipes close or the tracker is closed.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	for _, path := range []string{s.cfg.SocketPath, s.cfg.StatusSocketPath} {
		os.Remove(path)
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("broker: create socket dir: %w", err)
			}
		}
	}

	ctrlLn, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("broker: listen unix %s: %w", s.cfg.SocketPath, err)
	}
	statusLn, err := net.Listen("unix", s.cfg.StatusSocketPath)
	if err != nil {
		ctrlLn.Close()
		os.Remove(s.cfg.SocketPath)
		return fmt.Errorf("broker: listen unix %s: %w", s.cfg.StatusSocketPath, err)
	}

	for _, path := range []string{s.cfg.SocketPath, s.cfg.StatusSocketPath} {
		if err := setSocketPermissions(path, s.cfg.SocketGroup, s.logger); err != nil {
			s.logger.Error("failed to set socket permissions", "path", path, "error", err)
		}
	}

	statusServer := &http.Server{Handler: s.statusMux()}

	s.logger.Info("broker started",
		"socket", s.cfg.SocketPath,
		"status_socket", s.cfg.StatusSocketPath,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx, ctrlLn, &wg)
	}()
	go func() {
		defer wg.Done()
		if err := statusServer.Serve(statusLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	ctrlLn.Close()
	statusServer.Close()
	s.closeConns()
	wg.Wait()

	os.Remove(s.cfg.SocketPath)
	os.Remove(s.cfg.StatusSocketPath)
	s.logger.Info("broker stopped")
	return nil
}

// acceptLoop registers every handler in wg so Start does not return while
// a connection is still dispatching into the engine.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, wg *sync.WaitGroup) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accept failed", "error", err)
			return
		}
		unixConn, ok := conn.(*net.UnixConn)
		if !ok {
			conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(unixConn)
		}()
	}
}

func (s *Server) trackConn(conn *net.UnixConn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn *net.UnixConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// handleConn serves one client connection in request/response lockstep.
// Requests are newline-terminated and may arrive split across reads;
// claim requests carry the client's lifeline descriptor as SCM_RIGHTS
// ancillary data alongside any read of that request's bytes.
func (s *Server) handleConn(conn *net.UnixConn) {
	s.trackConn(conn)
	defer s.untrackConn(conn)
	defer conn.Close()

	closeAll := func(fds []int) {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}

	buf := make([]byte, maxRequestSize)
	// Room for a few descriptors; any beyond the first are closed.
	oob := make([]byte, unix.CmsgSpace(4*4))
	var pending []byte
	var pendingFDs []int
	defer func() { closeAll(pendingFDs) }()

	for {
		n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
		if err != nil || (n == 0 && oobn == 0) {
			return
		}
		pending = append(pending, buf[:n]...)
		pendingFDs = append(pendingFDs, parseRights(oob[:oobn])...)

		for {
			line, rest, found := bytes.Cut(pending, []byte{'\n'})
			if !found {
				break
			}
			pending = rest

			fds := pendingFDs
			pendingFDs = nil
			resp, fatal := s.serveRequest(line, fds)
			// The tracker duplicated what it needs; release our copies.
			closeAll(fds)

			if _, err := conn.Write(EncodeResponse(resp)); err != nil {
				return
			}
			if fatal {
				// Framing is broken; do not try to resynchronize.
				return
			}
		}

		if len(pending) > maxRequestSize {
			s.logger.Error("request exceeds frame limit", "bytes", len(pending))
			conn.Write(EncodeResponse(Response{OK: false, Error: "broker: request too large"}))
			return
		}
	}
}

// serveRequest answers one request. fatal is true when the message could
// not be parsed and the connection should be dropped.
func (s *Server) serveRequest(data []byte, fds []int) (resp Response, fatal bool) {
	req, err := ParseRequest(data)
	if err != nil {
		s.logger.Error("bad request", "error", err)
		return Response{OK: false, Error: err.Error()}, true
	}

	lifelineFD := -1
	if NeedsLifeline(req.Op) {
		if len(fds) == 0 {
			s.logger.Error("claim request without lifeline fd", "op", req.Op)
			return Response{OK: false, Error: "broker: " + req.Op + " requires a lifeline fd"}, false
		}
		lifelineFD = fds[0]
	}

	if ok := s.dispatch(req, lifelineFD); !ok {
		return Response{OK: false, Error: "broker: " + req.Op + " refused"}, false
	}
	return Response{OK: true}, false
}

// dispatch maps one request onto the engine's typed entry points.
func (s *Server) dispatch(req Request, lifelineFD int) bool {
	switch req.Op {
	case OpAllowTCP:
		return s.engine.AllowTcpPortAccess(req.Port, req.Iface, lifelineFD)
	case OpAllowUDP:
		return s.engine.AllowUdpPortAccess(req.Port, req.Iface, lifelineFD)
	case OpRevokeTCP:
		return s.engine.RevokeTcpPortAccess(req.Port, req.Iface)
	case OpRevokeUDP:
		return s.engine.RevokeUdpPortAccess(req.Port, req.Iface)
	case OpLockdownTCP:
		return s.engine.LockDownLoopbackTcpPort(req.Port, lifelineFD)
	case OpReleaseTCP:
		return s.engine.ReleaseLoopbackTcpPort(req.Port)
	case OpForwardTCP:
		return s.engine.StartTcpPortForwarding(req.Port, req.Iface, req.DstIP, req.DstPort, lifelineFD)
	case OpForwardUDP:
		return s.engine.StartUdpPortForwarding(req.Port, req.Iface, req.DstIP, req.DstPort, lifelineFD)
	case OpStopForwardTCP:
		return s.engine.StopTcpPortForwarding(req.Port, req.Iface)
	case OpStopForwardUDP:
		return s.engine.StopUdpPortForwarding(req.Port, req.Iface)
	default:
		return false
	}
}

// parseRights extracts every descriptor passed as SCM_RIGHTS ancillary
// data. Ownership of the returned fds is the caller's.
func parseRights(oob []byte) []int {
	if len(oob) == 0 {
		return nil
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	var fds []int
	for _, scm := range scms {
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		fds = append(fds, got...)
	}
	return fds
}
