// Package client connects to a running a15kb daemon over its unix socket
// and exposes the fan service as plain method calls.
package client

import (
	"net"
	"sync"

	"github.com/mjguynn/a15kb/protocol"
)

// Connection is one client session with the daemon. Methods are safe for
// concurrent use; calls are serialized onto the single socket. After an I/O
// error the wire position is unknown, so the caller should Close and redial
// rather than retry on the same Connection.
type Connection struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the named socket inside the daemon's runtime directory.
func Dial(socketName string) (*Connection, error) {
	return DialPath(protocol.SocketPath(socketName))
}

// DialPath connects to a daemon socket at an explicit path.
func DialPath(path string) (*Connection, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}

	return &Connection{conn: conn}, nil
}

// ThermalInfo reports the daemon's current temperatures, fan RPMs and fan
// state.
func (c *Connection) ThermalInfo() (protocol.ThermalInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.WriteRequest(c.conn, protocol.GetThermalInfo{}); err != nil {
		return protocol.ThermalInfo{}, err
	}

	return protocol.ReadThermalInfo(c.conn)
}

// SetFanState asks the daemon to switch fan control. A rejected speed is
// reported in the response, not as an error.
func (c *Connection) SetFanState(state protocol.FanState) (protocol.FanChangeResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.WriteRequest(c.conn, protocol.SetFanState{State: state}); err != nil {
		return protocol.FanChangeResponse{}, err
	}

	return protocol.ReadFanChange(c.conn)
}

// SetFanSpeed pins both fans at a fixed fraction of their maximum speed.
func (c *Connection) SetFanSpeed(speed float64) (protocol.FanChangeResponse, error) {
	p, err := protocol.NewPercent(speed)
	if err != nil {
		return protocol.FanChangeResponse{}, err
	}

	return c.SetFanState(protocol.FixedFanState(p))
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.Close()
}
