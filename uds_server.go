package netcore

import (
	"net"
	"os"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// UDSServer binds a Unix domain socket listener and reuses the same
// StreamServer accept loop as TCPServer. Socket-file cleanup (removing a
// stale path left behind by an unclean shutdown) is attempted before
// bind, matching the usual Go idiom for unix listeners.
type UDSServer struct {
	*StreamServer
	path string
}

func NewUDSServer(path string, opts SocketOptions, backlog int, newSession SessionFactory, log logging.LeveledLogger) *UDSServer {
	return &UDSServer{
		StreamServer: NewStreamServer(opts, backlog, newSession, namedLogger(log, "uds-server")),
		path:         path,
	}
}

func (s *UDSServer) Start() error {
	if fi, err := os.Stat(s.path); err == nil && !fi.IsDir() {
		_ = os.Remove(s.path)
	}
	l, err := net.Listen("unix", s.path)
	if err != nil {
		return errors.Wrap(err, "netcore: uds server listen")
	}
	go s.Serve(l)
	return nil
}

// Stop additionally removes the socket file after the listener closes.
func (s *UDSServer) Stop() error {
	err := s.StreamServer.Stop()
	_ = os.Remove(s.path)
	return err
}
