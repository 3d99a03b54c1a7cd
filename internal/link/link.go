// Package link implements a bidirectional TCP telemetry-link
// endpoint.  A Link either dials a remote peer (client mode) or
// accepts a single inbound peer (server mode), drains inbound bytes
// on a dedicated pump goroutine, and retains raw rate samples for a
// higher-level throughput calculator.
//
// The Link moves opaque byte buffers only; framing and parsing of the
// telemetry protocol happen in the collaborators that subscribe to
// its events.
package link

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"telemlink/config"
	errs "telemlink/internal/errors"
	"telemlink/log"
	"telemlink/util"
)

// nextLinkID is the process-wide id counter.  Ids start at 1 and are
// never reused for the lifetime of the process.
var nextLinkID atomic.Int64

// Link is one transport endpoint managing a single peer connection.
//
// The control context (whoever calls Connect/Disconnect/setters) owns
// the socket and listener handles; the pump goroutine only reads and
// writes the active socket while connected.  Methods are safe for use
// from one control context concurrent with the pump.
type Link struct {
	id int

	mu       sync.Mutex // guards the fields below
	host     string
	port     int
	asServer bool
	name     string
	timeout  time.Duration

	conn net.Conn     // active peer socket, nil while idle
	ln   net.Listener // server-mode acceptor, nil otherwise
	pump *pump        // live pump, nil while idle

	connected atomic.Bool

	events emitter

	rateMu  sync.Mutex // single accounting lock for both directions
	inRate  rateBuffer
	outRate rateBuffer
}

// New creates an idle Link for the given endpoint.  In server mode
// host is only used for display; the listener binds all interfaces.
func New(host string, port int, asServer bool) *Link {
	l := &Link{
		id:       int(nextLinkID.Add(1)),
		host:     host,
		port:     port,
		asServer: asServer,
		timeout:  config.DefaultConnectTimeout,
		inRate:   newRateBuffer(config.DefaultRateWindowSlots),
		outRate:  newRateBuffer(config.DefaultRateWindowSlots),
	}
	l.name = linkName(asServer, host, port)
	log.With(logrus.Fields{"link": l.name, "id": l.id}).Debug("link created")
	return l
}

// NewFromConfig creates a Link from a loaded configuration.
func NewFromConfig(cfg *config.Config) *Link {
	l := New(cfg.Host, cfg.Port, cfg.Server)
	if cfg.ConnectTimeout > 0 {
		l.SetConnectTimeout(cfg.ConnectTimeout)
	}
	return l
}

func linkName(asServer bool, host string, port int) string {
	mode := "Link"
	if asServer {
		mode = "Server"
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("TCP %s (host:%s port:%d)", mode, host, port)
}

// ── identity ─────────────────────────────────────────────────────────

// ID returns the process-unique link id.
func (l *Link) ID() int { return l.id }

// Name returns the current display name.
func (l *Link) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// ConnectionSpeed returns the static nominal capacity of the TCP link
// class in bits per second.  It is not a measurement.
func (l *Link) ConnectionSpeed() int64 { return config.DefaultConnectionSpeed }

// resetName recomputes the display name and notifies listeners.
func (l *Link) resetName() {
	l.mu.Lock()
	l.name = linkName(l.asServer, l.host, l.port)
	name := l.name
	l.mu.Unlock()
	l.events.emitNameChanged(name)
}

// ── configuration setters ────────────────────────────────────────────
//
// Each setter serializes through disconnect → apply → reconnect, so a
// reconfiguration is never applied to a live connection.

// SetHostAddress changes the remote address, restarting the link if
// it was connected.
func (l *Link) SetHostAddress(host string) {
	reconnect := l.IsConnected()
	if reconnect {
		l.Disconnect()
	}

	l.mu.Lock()
	l.host = host
	l.mu.Unlock()
	l.resetName()

	if reconnect {
		l.reconnect()
	}
}

// SetPort changes the port, restarting the link if it was connected.
func (l *Link) SetPort(port int) {
	reconnect := l.IsConnected()
	if reconnect {
		l.Disconnect()
	}

	l.mu.Lock()
	l.port = port
	l.mu.Unlock()
	l.resetName()

	if reconnect {
		l.reconnect()
	}
}

// SetAsServer switches between client and server mode.  A no-op when
// the mode is unchanged.
func (l *Link) SetAsServer(asServer bool) {
	l.mu.Lock()
	same := l.asServer == asServer
	l.mu.Unlock()
	if same {
		return
	}

	reconnect := l.IsConnected()
	if reconnect {
		l.Disconnect()
	}

	l.mu.Lock()
	l.asServer = asServer
	l.mu.Unlock()
	l.resetName()

	if reconnect {
		l.reconnect()
	}
}

// SetConnectTimeout overrides the bounded connect wait (default 5 s).
func (l *Link) SetConnectTimeout(d time.Duration) {
	l.mu.Lock()
	l.timeout = d
	l.mu.Unlock()
}

// reconnect re-establishes the link after a setter applied new
// configuration.  The connect error has already been reported through
// the communication-error event, so it is only logged here.
func (l *Link) reconnect() {
	if err := l.Connect(); err != nil {
		log.With(logrus.Fields{"link": l.Name()}).
			WithError(err).Warn("reconnect after reconfiguration failed")
	}
}

// ── lifecycle ────────────────────────────────────────────────────────

// IsConnected reports whether an active peer socket exists.  In
// server mode it does not reflect the listening state.
func (l *Link) IsConnected() bool { return l.connected.Load() }

// Connect establishes the peer connection: dial in client mode, wait
// for one inbound peer in server mode, both bounded by the connect
// timeout.  Any previous session is torn down first, and no pump from
// it survives into the new one.  Exactly one communication-error
// event is emitted per failed attempt.
func (l *Link) Connect() error {
	if l.IsConnected() {
		l.Disconnect()
	}
	l.stopPump()

	l.mu.Lock()
	asServer, host, port, timeout := l.asServer, l.host, l.port, l.timeout
	l.mu.Unlock()

	var conn net.Conn
	var err error
	if asServer {
		conn, err = l.acceptPeer(port, timeout)
	} else {
		conn, err = l.dialPeer(host, port, timeout)
	}
	if err != nil {
		log.With(logrus.Fields{"link": l.Name()}).WithError(err).Warn("connect failed")
		l.events.emitCommunicationError(l.Name(), "Connection failed: "+err.Error())
		return err
	}

	l.adoptConn(conn)
	return nil
}

// dialPeer performs the client-mode hardware connect.
func (l *Link) dialPeer(host string, port int, timeout time.Duration) (net.Conn, error) {
	addr := util.FormatAddr(host, port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, errs.Wrap("dial", addr, errs.ErrConnectTimeout)
		}
		return nil, errs.Wrap("dial", addr, err)
	}
	return conn, nil
}

// acceptPeer performs the server-mode hardware connect: listen if not
// already listening, then wait for one inbound peer under a deadline.
// Connections beyond the active one are never accepted, which keeps
// the link to a single remote peer.  On failure the listener is
// closed so the link lands back in idle with no acceptor.
func (l *Link) acceptPeer(port int, timeout time.Duration) (net.Conn, error) {
	addr := fmt.Sprintf(":%d", port)

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, errs.Wrap("listen", addr, err)
		}
		l.mu.Lock()
		l.ln = ln
		l.mu.Unlock()
		log.With(logrus.Fields{"link": l.Name(), "addr": ln.Addr().String()}).
			Debug("listening for inbound peer")
	}

	tl := ln.(*net.TCPListener)
	_ = tl.SetDeadline(time.Now().Add(timeout))
	conn, err := tl.Accept()
	if err != nil {
		l.mu.Lock()
		l.ln = nil
		l.mu.Unlock()
		_ = ln.Close()
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, errs.Wrap("accept", addr, errs.ErrAcceptTimeout)
		}
		return nil, errs.Wrap("accept", addr, err)
	}
	_ = tl.SetDeadline(time.Time{})
	return conn, nil
}

// adoptConn installs the new peer socket, marks the link connected,
// notifies listeners, and starts the pump.  The connected flag is set
// before the pump runs, so no read proceeds ahead of the transition.
func (l *Link) adoptConn(conn net.Conn) {
	p := newPump(l, conn)

	l.mu.Lock()
	l.conn = conn
	l.pump = p
	l.mu.Unlock()
	l.connected.Store(true)

	log.With(logrus.Fields{"link": l.Name(), "peer": conn.RemoteAddr().String()}).
		Info("link connected")
	l.events.emitConnected(l)

	go p.run()
}

// Disconnect tears the link down: the pump is stopped and joined
// before the socket is released, and the listener (if any) stops.
// Idempotent; calling it on an idle link is a safe no-op.
func (l *Link) Disconnect() {
	l.stopPump()

	l.mu.Lock()
	conn := l.conn
	ln := l.ln
	l.conn = nil
	l.ln = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}

	if l.connected.Swap(false) {
		log.With(logrus.Fields{"link": l.Name()}).Info("link disconnected")
		l.events.emitDisconnected(l)
	}
}

// stopPump signals the live pump (if any) to stop and waits for it to
// fully exit.  Never called while holding l.mu: the pump takes the
// same lock on its peer-closed path.
func (l *Link) stopPump() {
	l.mu.Lock()
	p := l.pump
	l.pump = nil
	l.mu.Unlock()

	if p != nil {
		p.stopAndWait()
	}
}

// peerClosed handles a close initiated by the remote end.  It runs on
// the pump goroutine, which exits right after; a later Disconnect
// still joins that pump but emits no second disconnected event.
func (l *Link) peerClosed() {
	if !l.connected.Swap(false) {
		return
	}

	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	log.With(logrus.Fields{"link": l.Name()}).Info("peer closed connection")
	l.events.emitDisconnected(l)
}

// ── data path ────────────────────────────────────────────────────────

// WriteBytes writes the buffer to the peer socket and records the
// outbound rate sample.  It blocks only on the socket's own flow
// control.
func (l *Link) WriteBytes(data []byte) (int, error) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil || !l.connected.Load() {
		return 0, errs.ErrNotConnected
	}

	n, err := conn.Write(data)
	if n > 0 {
		l.recordSample(DirectionOut, n, time.Now().UnixMilli())
		if log.L().IsLevelEnabled(logrus.DebugLevel) {
			log.With(logrus.Fields{"link": l.Name(), "bytes": n}).
				Debug("sent\n" + util.Dump(data[:n]))
		}
	}
	if err != nil {
		l.events.emitCommunicationError(l.Name(), "error on socket: "+err.Error())
		return n, errs.Wrap("write", conn.RemoteAddr().String(), err)
	}
	return n, nil
}

// BytesAvailable returns the number of inbound bytes staged by the
// pump but not yet delivered.  Zero while idle.
func (l *Link) BytesAvailable() int {
	l.mu.Lock()
	p := l.pump
	l.mu.Unlock()
	if p == nil {
		return 0
	}
	return p.buffered()
}
