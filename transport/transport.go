// Package transport provides datagram endpoints used to exchange frames.
package transport

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ErrFatal is matched by errors which make the endpoint unusable.
var ErrFatal = errors.New("fatal transport error")

// Transport sends and receives datagrams.
type Transport interface {
	// Send sends one datagram.
	Send(addr netip.AddrPort, b []byte) error

	// Receive blocks until datagram is received. Datagram is stored in buf.
	Receive(buf []byte) (int, netip.AddrPort, error)

	// LocalAddr returns the address endpoint is bound to.
	LocalAddr() netip.AddrPort

	// Close stops the endpoint. Blocked Receive returns net.ErrClosed.
	Close() error
}

// Error is the transport error annotated with its severity.
type Error struct {
	Err   error
	Fatal bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports fatal errors as ErrFatal.
func (e *Error) Is(target error) bool {
	return e.Fatal && target == ErrFatal
}

// Classify annotates error with its severity. Address already in use and permission errors
// are fatal, everything else is a warning.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var tErr *Error
	if errors.As(err, &tErr) {
		return err
	}
	return &Error{
		Err: err,
		Fatal: errors.Is(err, syscall.EADDRINUSE) ||
			errors.Is(err, syscall.EPERM) ||
			errors.Is(err, syscall.EACCES),
	}
}

// IsFatal tells if error makes the endpoint unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// Resolve resolves host:port into the address.
func Resolve(network, hostPort string) (netip.AddrPort, error) {
	addr, err := net.ResolveUDPAddr(network, hostPort)
	if err != nil {
		return netip.AddrPort{}, errors.WithStack(err)
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

var _ Transport = &UDP{}

// Listen binds new UDP socket. Port 0 selects an ephemeral port.
func Listen(network string, port uint16) (*UDP, error) {
	conn, err := net.ListenUDP(network, &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, errors.WithStack(Classify(err))
	}
	return &UDP{
		conn:  conn,
		owned: true,
	}, nil
}

// Borrow uses socket bound by the caller. Close never closes borrowed socket, it only unblocks
// Receive by moving the read deadline to the past. The caller resets the deadline before reusing
// the socket.
func Borrow(conn *net.UDPConn) *UDP {
	return &UDP{conn: conn}
}

// UDP is the UDP endpoint.
type UDP struct {
	conn  *net.UDPConn
	owned bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Send sends one datagram.
func (t *UDP) Send(addr netip.AddrPort, b []byte) error {
	if t.closed.Load() {
		return errors.WithStack(net.ErrClosed)
	}
	if _, err := t.conn.WriteToUDPAddrPort(b, addr); err != nil {
		return errors.WithStack(Classify(err))
	}
	return nil
}

// Receive blocks until datagram is received.
func (t *UDP) Receive(buf []byte) (int, netip.AddrPort, error) {
	n, addr, err := t.conn.ReadFromUDPAddrPort(buf)
	if t.closed.Load() {
		return 0, netip.AddrPort{}, errors.WithStack(net.ErrClosed)
	}
	if err != nil {
		return 0, netip.AddrPort{}, errors.WithStack(Classify(err))
	}
	return n, netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), nil
}

// LocalAddr returns the address socket is bound to.
func (t *UDP) LocalAddr() netip.AddrPort {
	addr, ok := t.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Owned tells if Close closes the socket.
func (t *UDP) Owned() bool {
	return t.owned
}

// Close closes owned socket or unblocks Receive on borrowed one. It is safe to call it many times.
func (t *UDP) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.owned {
			t.closeErr = errors.WithStack(t.conn.Close())
			return
		}
		t.closeErr = errors.WithStack(t.conn.SetReadDeadline(time.Now()))
	})
	return t.closeErr
}
