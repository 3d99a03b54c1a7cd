package link

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	errs "telemlink/internal/errors"
	"telemlink/util"
)

// collect drains a byte channel until want bytes have arrived or the
// timeout expires.  Inbound data may be coalesced differently from
// how it was written, so tests accumulate rather than compare chunks.
func collect(t *testing.T, ch <-chan []byte, want int, timeout time.Duration) []byte {
	t.Helper()
	var out []byte
	deadline := time.After(timeout)
	for len(out) < want {
		select {
		case data := <-ch:
			out = append(out, data...)
		case <-deadline:
			t.Fatalf("received %d bytes before timeout, want %d", len(out), want)
		}
	}
	return out
}

// TestLinkIDsSequential verifies the process-wide id counter.
func TestLinkIDsSequential(t *testing.T) {
	a := New("127.0.0.1", 5760, false)
	b := New("127.0.0.1", 5761, false)

	if a.ID() < 1 {
		t.Errorf("first id = %d, want >= 1", a.ID())
	}
	if b.ID() != a.ID()+1 {
		t.Errorf("ids = %d, %d, want sequential", a.ID(), b.ID())
	}
}

// TestLinkName verifies the mode/address/port display format.
func TestLinkName(t *testing.T) {
	cli := New("10.0.0.2", 5760, false)
	if got, want := cli.Name(), "TCP Link (host:10.0.0.2 port:5760)"; got != want {
		t.Errorf("client name = %q, want %q", got, want)
	}

	srv := New("", 14550, true)
	if got, want := srv.Name(), "TCP Server (host:0.0.0.0 port:14550)"; got != want {
		t.Errorf("server name = %q, want %q", got, want)
	}
}

// TestConnectionSpeed verifies the static nominal capacity.
func TestConnectionSpeed(t *testing.T) {
	l := New("127.0.0.1", 5760, false)
	if got := l.ConnectionSpeed(); got != 54_000_000 {
		t.Errorf("ConnectionSpeed = %d, want 54000000", got)
	}
}

// TestConnectNoListener verifies a client connect with nobody
// listening fails with exactly one communication error.
func TestConnectNoListener(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	l := New("127.0.0.1", port, false)
	l.SetConnectTimeout(2 * time.Second)

	errors := 0
	l.OnCommunicationError(func(name, msg string) { errors++ })

	if err := l.Connect(); err == nil {
		t.Fatal("Connect succeeded with no listener")
	}
	if errors != 1 {
		t.Errorf("communication errors = %d, want 1", errors)
	}
	if l.IsConnected() {
		t.Error("IsConnected = true after failed connect")
	}
}

// TestServerAcceptTimeout verifies the bounded server-mode wait:
// no inbound peer fails the attempt within the timeout and leaves the
// link idle with no acceptor.
func TestServerAcceptTimeout(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	l := New("", port, true)
	l.SetConnectTimeout(300 * time.Millisecond)

	errors := 0
	l.OnCommunicationError(func(name, msg string) { errors++ })

	start := time.Now()
	err = l.Connect()
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Connect succeeded with no inbound peer")
	}
	if !errs.Is(err, errs.ErrAcceptTimeout) {
		t.Errorf("err = %v, want ErrAcceptTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("accept wait took %v, want bounded by the timeout", elapsed)
	}
	if errors != 1 {
		t.Errorf("communication errors = %d, want 1", errors)
	}
	if l.IsConnected() {
		t.Error("IsConnected = true after timeout")
	}

	// The port must be free again: the failed attempt closed the
	// listener.
	ln, err := net.Listen("tcp", util.FormatAddr("127.0.0.1", port))
	if err != nil {
		t.Fatalf("port still held after failed connect: %v", err)
	}
	ln.Close()
}

// TestClientServerRoundTrip runs the full scenario: a server link and
// a client link pair up and exchange bytes in both directions, each
// firing exactly one connected transition.
func TestClientServerRoundTrip(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	srv := New("", port, true)
	srv.SetConnectTimeout(3 * time.Second)
	cli := New("127.0.0.1", port, false)
	cli.SetConnectTimeout(2 * time.Second)

	var srvConnects, cliConnects atomic.Int32
	srv.OnConnected(func(*Link) { srvConnects.Add(1) })
	cli.OnConnected(func(*Link) { cliConnects.Add(1) })

	srvGot := make(chan []byte, 16)
	cliGot := make(chan []byte, 16)
	srv.OnBytesReceived(func(_ *Link, data []byte) { srvGot <- data })
	cli.OnBytesReceived(func(_ *Link, data []byte) { cliGot <- data })

	srvDisc := make(chan struct{})
	srv.OnDisconnected(func(*Link) { close(srvDisc) })

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Connect() }()

	// Give the server a moment to start listening.
	time.Sleep(100 * time.Millisecond)

	if err := cli.Connect(); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer cli.Disconnect()
	if err := <-serverErr; err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer srv.Disconnect()

	if !srv.IsConnected() || !cli.IsConnected() {
		t.Fatal("both endpoints should report connected")
	}

	// Client → server.
	if _, err := cli.WriteBytes([]byte("PING")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if got := collect(t, srvGot, 4, 2*time.Second); string(got) != "PING" {
		t.Errorf("server received %q, want %q", got, "PING")
	}

	// Server → client.
	if _, err := srv.WriteBytes([]byte("PONG")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	if got := collect(t, cliGot, 4, 2*time.Second); string(got) != "PONG" {
		t.Errorf("client received %q, want %q", got, "PONG")
	}

	// Both directions left rate samples behind.
	if len(cli.OutSamples()) == 0 {
		t.Error("client has no outbound samples after write")
	}
	if len(srv.InSamples()) == 0 {
		t.Error("server has no inbound samples after receive")
	}
	if len(srv.OutSamples()) == 0 {
		t.Error("server has no outbound samples after write")
	}
	if len(cli.InSamples()) == 0 {
		t.Error("client has no inbound samples after receive")
	}

	if srvConnects.Load() != 1 {
		t.Errorf("server connected events = %d, want 1", srvConnects.Load())
	}
	if cliConnects.Load() != 1 {
		t.Errorf("client connected events = %d, want 1", cliConnects.Load())
	}

	// Client hangs up; the server observes a peer-initiated close.
	cli.Disconnect()
	select {
	case <-srvDisc:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the peer close")
	}
	if srv.IsConnected() {
		t.Error("server still connected after peer close")
	}
}

// TestDisconnectIdempotent verifies disconnecting an idle link is a
// safe no-op that fires no events.
func TestDisconnectIdempotent(t *testing.T) {
	l := New("127.0.0.1", 5760, false)

	disconnects := 0
	l.OnDisconnected(func(*Link) { disconnects++ })

	l.Disconnect()
	l.Disconnect()

	if disconnects != 0 {
		t.Errorf("disconnected events = %d, want 0", disconnects)
	}
	if l.IsConnected() {
		t.Error("IsConnected = true on idle link")
	}
}

// TestDisconnectAfterSessionFiresOnce verifies exactly one
// disconnected event for a connected link torn down twice.
func TestDisconnectAfterSessionFiresOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, c) //nolint:errcheck
		}
	}()

	l := New("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, false)
	l.SetConnectTimeout(2 * time.Second)

	var disconnects atomic.Int32
	l.OnDisconnected(func(*Link) { disconnects.Add(1) })

	if err := l.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	l.Disconnect()
	l.Disconnect()

	if got := disconnects.Load(); got != 1 {
		t.Errorf("disconnected events = %d, want 1", got)
	}
}

// TestPeerClose verifies a remote hang-up clears the connected state,
// emits one disconnected event, and leaves the link reusable.
func TestPeerClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	l := New("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, false)
	l.SetConnectTimeout(2 * time.Second)

	disc := make(chan struct{})
	l.OnDisconnected(func(*Link) { close(disc) })

	if err := l.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	peer := <-accepted
	peer.Close()

	select {
	case <-disc:
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnected event after peer close")
	}
	if l.IsConnected() {
		t.Error("IsConnected = true after peer close")
	}
	if _, err := l.WriteBytes([]byte("x")); !errs.Is(err, errs.ErrNotConnected) {
		t.Errorf("WriteBytes err = %v, want ErrNotConnected", err)
	}

	// An explicit disconnect afterwards is still a safe no-op.
	l.Disconnect()
}

// TestSetPortWhileConnectedReconnects verifies the
// disconnect → apply → reconnect sequence of setters on a live link.
func TestSetPortWhileConnectedReconnects(t *testing.T) {
	lnA, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer lnA.Close()
	lnB, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer lnB.Close()

	acceptedB := make(chan net.Conn, 1)
	go func() {
		for {
			c, err := lnA.Accept()
			if err != nil {
				return
			}
			go io.Copy(io.Discard, c) //nolint:errcheck
		}
	}()
	go func() {
		for {
			c, err := lnB.Accept()
			if err != nil {
				return
			}
			acceptedB <- c
			go io.Copy(io.Discard, c) //nolint:errcheck
		}
	}()

	l := New("127.0.0.1", lnA.Addr().(*net.TCPAddr).Port, false)
	l.SetConnectTimeout(2 * time.Second)

	var connects, disconnects, nameChanges atomic.Int32
	l.OnConnected(func(*Link) { connects.Add(1) })
	l.OnDisconnected(func(*Link) { disconnects.Add(1) })
	l.OnNameChanged(func(string) { nameChanges.Add(1) })

	if err := l.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer l.Disconnect()

	l.SetPort(lnB.Addr().(*net.TCPAddr).Port)

	if !l.IsConnected() {
		t.Fatal("link not connected after SetPort")
	}
	select {
	case <-acceptedB:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived at the new port")
	}

	if got := nameChanges.Load(); got != 1 {
		t.Errorf("name changes = %d, want 1", got)
	}
	if got := disconnects.Load(); got != 1 {
		t.Errorf("disconnected events = %d, want 1", got)
	}
	if got := connects.Load(); got != 2 {
		t.Errorf("connected events = %d, want 2", got)
	}
}

// TestServerSinglePeer verifies a server link never adopts a second
// inbound connection while one peer is active.
func TestServerSinglePeer(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	srv := New("", port, true)
	srv.SetConnectTimeout(3 * time.Second)

	var connects atomic.Int32
	srv.OnConnected(func(*Link) { connects.Add(1) })

	received := make(chan []byte, 16)
	srv.OnBytesReceived(func(_ *Link, data []byte) { received <- data })

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Connect() }()
	time.Sleep(100 * time.Millisecond)

	first, err := net.DialTimeout("tcp", util.FormatAddr("127.0.0.1", port), 2*time.Second)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()
	if err := <-serverErr; err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer srv.Disconnect()

	// A second dial may complete in the kernel backlog, but the link
	// never accepts it as the active peer.
	second, err := net.DialTimeout("tcp", util.FormatAddr("127.0.0.1", port), 1*time.Second)
	if err == nil {
		defer second.Close()
		second.Write([]byte("intruder")) //nolint:errcheck
	}

	if _, err := first.Write([]byte("PING")); err != nil {
		t.Fatalf("first peer write: %v", err)
	}

	if got := collect(t, received, 4, 2*time.Second); string(got) != "PING" {
		t.Errorf("server received %q, want %q from the first peer only", got, "PING")
	}

	// Nothing more arrives: the second connection's bytes are never
	// pumped.
	select {
	case data := <-received:
		t.Errorf("unexpected extra data %q from a second peer", data)
	case <-time.After(300 * time.Millisecond):
	}

	if got := connects.Load(); got != 1 {
		t.Errorf("connected events = %d, want 1", got)
	}

	srvRemote := func() string {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conn.RemoteAddr().String()
	}()
	if srvRemote != first.LocalAddr().String() {
		t.Errorf("active peer = %s, want the first dialer %s", srvRemote, first.LocalAddr())
	}
}

// TestWriteBytesNotConnected verifies writes on an idle link fail
// cleanly.
func TestWriteBytesNotConnected(t *testing.T) {
	l := New("127.0.0.1", 5760, false)
	if _, err := l.WriteBytes([]byte("PING")); !errs.Is(err, errs.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

// TestBytesAvailableIdle verifies the staged-byte query on an idle
// link.
func TestBytesAvailableIdle(t *testing.T) {
	l := New("127.0.0.1", 5760, false)
	if n := l.BytesAvailable(); n != 0 {
		t.Errorf("BytesAvailable = %d, want 0", n)
	}
}
