package transport_test

import (
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/ripple/transport"
)

func TestClassify(t *testing.T) {
	requireT := require.New(t)

	requireT.NoError(transport.Classify(nil))

	for _, errno := range []syscall.Errno{syscall.EADDRINUSE, syscall.EPERM, syscall.EACCES} {
		err := transport.Classify(&net.OpError{
			Op:  "listen",
			Net: "udp4",
			Err: os.NewSyscallError("bind", errno),
		})
		requireT.True(transport.IsFatal(err))
		requireT.True(errors.Is(err, errno))
	}

	err := transport.Classify(&net.OpError{
		Op:  "read",
		Net: "udp4",
		Err: os.NewSyscallError("recvfrom", syscall.ECONNREFUSED),
	})
	requireT.Error(err)
	requireT.False(transport.IsFatal(err))
	requireT.True(errors.Is(err, syscall.ECONNREFUSED))

	requireT.False(transport.IsFatal(errors.New("random error")))
	requireT.Equal(err, transport.Classify(err))
}

func TestAddressInUseIsFatal(t *testing.T) {
	requireT := require.New(t)

	tr, err := transport.Listen("udp4", 0)
	requireT.NoError(err)
	defer tr.Close()

	_, err = transport.Listen("udp4", tr.LocalAddr().Port())
	requireT.Error(err)
	requireT.True(transport.IsFatal(err))
	requireT.True(errors.Is(err, syscall.EADDRINUSE))
}

func TestSendReceive(t *testing.T) {
	requireT := require.New(t)

	tr1, err := transport.Listen("udp4", 0)
	requireT.NoError(err)
	defer tr1.Close()
	tr2, err := transport.Listen("udp4", 0)
	requireT.NoError(err)
	defer tr2.Close()

	requireT.True(tr1.Owned())
	requireT.NoError(tr1.Send(loopback(tr2), []byte("hello")))

	buf := make([]byte, 16)
	n, addr, err := tr2.Receive(buf)
	requireT.NoError(err)
	requireT.Equal([]byte("hello"), buf[:n])
	requireT.Equal(loopback(tr1), addr)
}

func TestCloseUnblocksReceive(t *testing.T) {
	requireT := require.New(t)

	tr, err := transport.Listen("udp4", 0)
	requireT.NoError(err)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := tr.Receive(make([]byte, 16))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	requireT.NoError(tr.Close())
	requireT.NoError(tr.Close())

	select {
	case err := <-errCh:
		requireT.True(errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	}

	requireT.True(errors.Is(tr.Send(loopback(tr), []byte("hello")), net.ErrClosed))
}

func TestBorrowedSocketIsNotClosed(t *testing.T) {
	requireT := require.New(t)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	requireT.NoError(err)
	defer conn.Close()

	tr := transport.Borrow(conn)
	requireT.False(tr.Owned())

	errCh := make(chan error, 1)
	go func() {
		_, _, err := tr.Receive(make([]byte, 16))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	requireT.NoError(tr.Close())

	select {
	case err := <-errCh:
		requireT.True(errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	}

	requireT.NoError(conn.SetReadDeadline(time.Time{}))
	_, err = conn.WriteToUDPAddrPort([]byte("still open"), tr.LocalAddr())
	requireT.NoError(err)

	buf := make([]byte, 16)
	n, _, err := conn.ReadFromUDPAddrPort(buf)
	requireT.NoError(err)
	requireT.Equal([]byte("still open"), buf[:n])
}

func TestResolve(t *testing.T) {
	requireT := require.New(t)

	addr, err := transport.Resolve("udp4", "127.0.0.1:10000")
	requireT.NoError(err)
	requireT.Equal(netip.MustParseAddrPort("127.0.0.1:10000"), addr)

	_, err = transport.Resolve("udp4", "no-port")
	requireT.Error(err)
}

func loopback(tr transport.Transport) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), tr.LocalAddr().Port())
}
