package link

// pump.go - the dedicated goroutine that drains inbound bytes for one
// connection.  Exactly one pump is live per link at a time; it is
// spawned after a successful connect and joined before any socket
// teardown, so no stale pump ever touches a new socket.

import (
	"bufio"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	errs "telemlink/internal/errors"
	"telemlink/log"
	"telemlink/util"
)

// pollInterval is the read-deadline granularity.  Short enough that a
// stop request is honored promptly, long enough to stay off the hot
// path.
const pollInterval = 250 * time.Millisecond

type pump struct {
	link *Link
	conn net.Conn
	br   *bufio.Reader

	stop chan struct{}
	done chan struct{}
}

func newPump(l *Link, conn net.Conn) *pump {
	return &pump{
		link: l,
		conn: conn,
		br:   bufio.NewReaderSize(conn, util.DefaultBufSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// buffered reports how many inbound bytes are staged in the pump's
// reader but not yet delivered.
func (p *pump) buffered() int { return p.br.Buffered() }

// run is the pump loop.  It polls the socket under a short read
// deadline, forwards whatever arrived, and records the inbound rate
// sample.  An EOF or reset is a peer-initiated close, not an error.
func (p *pump) run() {
	defer close(p.done)

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		_ = p.conn.SetReadDeadline(time.Now().Add(pollInterval))

		n, err := p.br.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.link.events.emitBytesReceived(p.link, data)
			p.link.recordSample(DirectionIn, n, time.Now().UnixMilli())

			if log.L().IsLevelEnabled(logrus.DebugLevel) {
				log.With(logrus.Fields{"link": p.link.Name(), "bytes": n}).
					Debug("received\n" + util.Dump(data))
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// A stop request closes the socket out from under us;
			// that read error is not a link event.
			select {
			case <-p.stop:
				return
			default:
			}
			if errs.IsClosed(err) {
				p.link.peerClosed()
				return
			}
			log.With(logrus.Fields{"link": p.link.Name()}).
				WithError(err).Warn("socket read failed")
			p.link.events.emitCommunicationError(p.link.Name(), "error on socket: "+err.Error())
			return
		}
	}
}

// stopAndWait signals the pump to exit and blocks until it has.  The
// read deadline is forced so a pending read returns immediately.
func (p *pump) stopAndWait() {
	close(p.stop)
	_ = p.conn.SetReadDeadline(time.Now())
	<-p.done
}
