package ipc

import (
	"bufio"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/logging"
)

// SnapshotSource returns the latest published session snapshot, or nil
// before the first one.
type SnapshotSource func() *Snapshot

// Server answers status requests on a unix socket. It only ever reads
// published snapshots and never touches session state.
type Server struct {
	socketPath   string
	listener     net.Listener
	snapshot     SnapshotSource
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a server for socketPath. A stale socket left by a
// previous session is removed.
func NewServer(socketPath string, snapshot SnapshotSource) *Server {
	_ = os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		snapshot:   snapshot,
		startTime:  time.Now(),
	}
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "create IPC socket")
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return errors.Wrap(err, "set socket permissions")
	}

	logging.L().Info("status socket listening", zap.String("path", s.socketPath))

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			logging.L().Warn("IPC accept", zap.Error(err))
			continue
		}

		s.conns.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.conns.Done()
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)

	// One JSON request per line.
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		logging.L().Debug("IPC read", zap.Error(err))
		return
	}

	var resp *Response
	if req, err := ParseRequest(data); err != nil {
		resp = NewErrorResponse("invalid request: " + err.Error())
	} else {
		resp = s.handleCommand(req)
	}

	respData, err := resp.Marshal()
	if err != nil {
		logging.L().Warn("marshal IPC response", zap.Error(err))
		return
	}
	if _, err := conn.Write(append(respData, '\n')); err != nil {
		logging.L().Debug("send IPC response", zap.Error(err))
	}
}

func (s *Server) handleCommand(req *Request) *Response {
	snap := s.snapshot()
	if snap == nil {
		return NewErrorResponse("session is starting")
	}

	var data any
	switch req.Command {
	case CommandGetStatus:
		status := snap.Status
		status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
		data = status
	case CommandGetClients:
		data = ClientsData{Clients: snap.Clients}
	case CommandGetMonitors:
		data = MonitorsData{Monitors: snap.Monitors}
	default:
		return NewErrorResponse("unknown command: " + string(req.Command))
	}

	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// Stop closes the listener, waits for open connections and removes the
// socket.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	_ = os.Remove(s.socketPath)
}
