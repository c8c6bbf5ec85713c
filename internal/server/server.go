// Package server multiplexes unix socket clients onto a single embedded
// controller. Each connection gets its own goroutine; all hardware access is
// serialized inside the controller, so the socket protocol layer never holds
// the device lock across network I/O.
package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mjguynn/a15kb/internal/ec"
	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/internal/logger"
	"github.com/mjguynn/a15kb/internal/telemetry"
	"github.com/mjguynn/a15kb/protocol"
)

const (
	socketDirPerm  = 0o755
	socketFilePerm = 0o666
)

type Config struct {
	// SocketDir overrides the runtime socket directory. Tests point it at a
	// temp dir; the daemon leaves it empty.
	SocketDir  string
	SocketName string
}

func (c Config) withDefaults() Config {
	if c.SocketDir == "" {
		c.SocketDir = protocol.SocketDir
	}
	if c.SocketName == "" {
		c.SocketName = protocol.DefaultSocketName
	}

	return c
}

func (c Config) socketPath() string {
	return filepath.Join(c.SocketDir, c.SocketName)
}

type Server struct {
	cfg      Config
	ctrl     *ec.Controller
	rec      telemetry.Collector
	logger   logger.Logger
	nextConn atomic.Uint64
}

func New(cfg Config, ctrl *ec.Controller, rec telemetry.Collector) *Server {
	return &Server{
		cfg:    cfg.withDefaults(),
		ctrl:   ctrl,
		rec:    rec,
		logger: logger.New(),
	}
}

// Run binds the unix socket and serves clients until ctx is canceled. The
// socket file is world-writable so unprivileged clients can connect.
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	if err := os.MkdirAll(s.cfg.SocketDir, socketDirPerm); err != nil {
		return errFactory.WithData(ErrSocketDirCreate, struct {
			Path  string
			Error string
		}{
			Path:  s.cfg.SocketDir,
			Error: err.Error(),
		})
	}

	path := s.cfg.socketPath()

	// A crashed daemon leaves the old socket file behind; bind would fail
	// with EADDRINUSE even though nothing is listening.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.WithData(ErrStaleSocketRemove, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	// Clear the umask around bind so the chmod below is the only permission
	// policy in effect.
	oldMask := unix.Umask(0)
	listener, err := net.Listen("unix", path)
	unix.Umask(oldMask)
	if err != nil {
		return errFactory.WithData(ErrSocketBind, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	if err := os.Chmod(path, socketFilePerm); err != nil {
		listener.Close()
		return errFactory.WithData(ErrSocketChmod, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	s.logger.Info().Str("socket", path).Msg("Listening for clients")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("Server shutting down")
				return nil
			}

			s.logger.Error().Err(err).Msg("Failed to accept connection")
			continue
		}

		id := s.nextConn.Add(1)
		s.logger.Debug().Uint64("conn", id).Msg("Client connected")
		go s.serveConn(conn, id)
	}
}

// serveConn runs the request loop for one client. io.EOF at a frame boundary
// is a clean close; a frame that cannot be decoded gets a MalformedRequest
// response and the loop continues, so one bad frame doesn't kill the session.
func (s *Server) serveConn(conn net.Conn, id uint64) {
	defer conn.Close()
	defer s.logger.Debug().Uint64("conn", id).Msg("Client disconnected")

	for {
		req, err := protocol.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}

			s.logger.Debug().Uint64("conn", id).Err(err).Msg("Rejected malformed request")
			if err := protocol.WriteError(conn, protocol.StatusMalformedRequest); err != nil {
				return
			}
			continue
		}

		if !s.handle(conn, id, req) {
			return
		}
	}
}

// handle dispatches one decoded request and writes exactly one response.
// Returns false when the connection should be dropped. A panic while serving
// is answered as InternalError rather than taking the daemon down.
func (s *Server) handle(conn net.Conn, id uint64, req protocol.Request) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Uint64("conn", id).
				Interface("panic", r).
				Msg("Recovered from panic while serving request")
			ok = protocol.WriteError(conn, protocol.StatusInternalError) == nil
		}
	}()

	switch req := req.(type) {
	case protocol.GetThermalInfo:
		return s.handleThermalInfo(conn, id)
	case protocol.SetFanState:
		return s.handleSetFanState(conn, id, req.State)
	default:
		// ReadRequest only produces the variants above.
		s.logger.Error().Uint64("conn", id).Msg("Unhandled request variant")
		return protocol.WriteError(conn, protocol.StatusInternalError) == nil
	}
}

func (s *Server) handleThermalInfo(conn net.Conn, id uint64) bool {
	info, err := s.ctrl.ThermalInfo()
	if err != nil {
		s.logControllerError(id, "thermal_info", err)
		return protocol.WriteError(conn, protocol.StatusInternalError) == nil
	}

	if err := protocol.WriteThermalInfo(conn, info); err != nil {
		s.logger.Debug().Uint64("conn", id).Err(err).Msg("Failed to write response")
		return false
	}

	// Recorded after the response is on the wire, off the hardware lock, so
	// a slow database never delays the client.
	s.recordSnapshot(info)

	return true
}

func (s *Server) handleSetFanState(conn net.Conn, id uint64, state protocol.FanState) bool {
	resp, err := s.ctrl.SetFanState(state)
	if err != nil {
		s.logControllerError(id, "set_fan_state", err)
		return protocol.WriteError(conn, protocol.StatusInternalError) == nil
	}

	if resp.Status == protocol.FanChangeUnsafeSpeed {
		s.logger.Info().
			Uint64("conn", id).
			Str("requested", state.String()).
			Str("allowed", resp.Allowed.String()).
			Msg("Rejected unsafe fan speed")
	} else {
		s.logger.Info().
			Uint64("conn", id).
			Str("state", state.String()).
			Msg("Fan state changed")
	}

	if err := protocol.WriteFanChange(conn, resp); err != nil {
		s.logger.Debug().Uint64("conn", id).Err(err).Msg("Failed to write response")
		return false
	}

	return true
}

func (s *Server) logControllerError(id uint64, op string, err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		s.logger.ErrorWithContext(appErr, "ec", op).
			Uint64("conn", id).
			Msg("Controller operation failed")
		return
	}

	s.logger.Error().
		Uint64("conn", id).
		Str("op", op).
		Err(err).
		Msg("Controller operation failed")
}

func (s *Server) recordSnapshot(info protocol.ThermalInfo) {
	snapshot := &telemetry.Snapshot{
		Timestamp:  time.Now(),
		CPUTemp:    int(info.CPUTemp),
		RPMLeft:    int(info.RPMLeft),
		RPMRight:   int(info.RPMRight),
		FixedSpeed: float64(info.FixedSpeed),
	}
	if info.GPUTemp != nil {
		temp := int(*info.GPUTemp)
		snapshot.GPUTemp = &temp
	}
	if info.FanState != nil {
		mode := info.FanState.Mode.String()
		snapshot.FanMode = &mode
	}

	if err := s.rec.Record(context.Background(), snapshot); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to record telemetry snapshot")
	}
}
