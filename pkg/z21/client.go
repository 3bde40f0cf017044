package z21

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-dcc/dccstack/pkg/detector"
)

const maxDatagramBytes = 1472

// Observer is tried against every incoming frame in FIFO order; returning
// true consumes (removes) it from the pending list (spec §4.5, §5).
type Observer func(Frame) bool

type pendingEntry struct {
	observer  Observer
	frame     []byte // encoded bytes to resend on retransmission; nil for the permanent broadcast observer
	sentAt    time.Time
	permanent bool
}

// Client is a Z21 UDP connection: the outgoing FIFO send buffer with
// idle-coalesce, the pending-request/observer list with retransmission,
// and the streamed receive buffer (spec §4.5).
//
// A mutex guards the fields the receive goroutine and the caller's own
// goroutine both touch — the spec's single-threaded cooperative model
// describes the logical ordering guarantees, not a literal absence of Go
// goroutines; the teacher's own BusManager (bus_manager.go) takes the same
// approach, guarding its listener table with a mutex despite CANopen's
// conceptually single bus.
type Client struct {
	logger *slog.Logger
	cfg    Config

	conn       *net.UDPConn
	remoteAddr *net.UDPAddr

	mu         sync.Mutex
	state      ConnState
	pending    []*pendingEntry
	sendQueue  [][]byte
	recvBuf    []byte
	lastSendAt time.Time

	power     *powerState
	sink      EventSink
	library   LibraryInfo
	lock      LockState
	detectors *detector.Aggregator
}

type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// NewClient constructs a Client bound to no socket yet; call Connect to
// open it. Z21 carries CAN, R-Bus, and LocoNet feedback data as distinct
// broadcast LanIDs on this same UDP socket (z21client.cpp's
// parseCanDetectorInfo/parseRBusDetectorInfo/parseLoconetDetectorInfo all
// read the same message stream), so Client owns a detector.Aggregator and
// feeds all three into it; sink.OnDetectorInfo, if set, is registered as
// the aggregator's wildcard callback.
func NewClient(cfg Config, sink EventSink, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		logger:    logger.With("service", "z21"),
		cfg:       cfg,
		sink:      sink,
		power:     newPowerState(),
		detectors: detector.NewAggregator(),
	}
	if sink.OnDetectorInfo != nil {
		c.detectors.OnAny(func(info detector.DetectorInfo) { c.sink.OnDetectorInfo(info) })
	}
	c.installBroadcastObserver()
	return c
}

// Detectors returns the Client's CAN/R-Bus/LocoNet feedback aggregator, for
// callers that want per-port registration (Aggregator.OnPort) in addition
// to or instead of EventSink.OnDetectorInfo's wildcard delivery.
func (c *Client) Detectors() *detector.Aggregator {
	return c.detectors
}

// Connect opens the UDP socket, sends a status query, and blocks until
// either a response arrives or ConnectTimeout expires (spec §4.5:
// "transition to Connected only after a successful status query").
func (c *Client) Connect() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.remoteAddr = addr
	c.state = StateConnecting
	c.mu.Unlock()

	go c.readLoop(conn)

	done := make(chan error, 1)
	c.addObserver(func(f Frame) bool {
		if f.LanID == LanSystemStateData {
			done <- nil
			return true
		}
		return false
	}, nil)

	if err := c.sendFrame(Encode(LanGetBroadcastFlags, nil)); err != nil {
		return err
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
		c.logger.Info("connected", "host", c.cfg.Host)
		return nil
	case <-time.After(c.cfg.ConnectTimeout):
		c.mu.Lock()
		c.state = StateDisconnected
		c.conn.Close()
		c.conn = nil
		c.mu.Unlock()
		return ErrConnectTimeout
	}
}

// Disconnect clears the send buffer, the pending-request list, and closes
// the socket (spec §5 cancellation semantics).
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.sendQueue = nil
	c.state = StateDisconnected
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// addObserver appends an entry to the tail of the pending list and returns
// it, so a caller that times out waiting for a match can remove it itself
// (dispatch only removes an entry whose observer actually consumes a
// frame). frame, if non-nil, is the encoded datagram payload resent on
// staleness.
func (c *Client) addObserver(obs Observer, frame []byte) *pendingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &pendingEntry{observer: obs, frame: frame, sentAt: time.Now()}
	c.pending = append(c.pending, e)
	return e
}

// addPermanentObserver installs the always-present broadcast observer at
// the head of the pending list; it never consumes.
func (c *Client) addPermanentObserver(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append([]*pendingEntry{{observer: obs, permanent: true}}, c.pending...)
}

// enqueueSend appends a frame to the FIFO send buffer; Tick flushes it once
// coalesced or once the idle timer elapses.
func (c *Client) enqueueSend(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendQueue = append(c.sendQueue, frame)
}

// sendFrame enqueues and immediately flushes a single frame (used for the
// connect handshake, where there is nothing to coalesce with yet).
func (c *Client) sendFrame(frame []byte) error {
	c.enqueueSend(frame)
	return c.flush()
}

// flush writes as many queued frames as fit in one datagram (FIFO order,
// spec §4.5), splitting into further datagrams if the queue exceeds
// maxDatagramBytes.
func (c *Client) flush() error {
	c.mu.Lock()
	queue := c.sendQueue
	c.sendQueue = nil
	conn := c.conn
	c.mu.Unlock()

	if len(queue) == 0 || conn == nil {
		return nil
	}

	var datagram []byte
	for _, frame := range queue {
		if len(datagram)+len(frame) > maxDatagramBytes && len(datagram) > 0 {
			if _, err := conn.Write(datagram); err != nil {
				return err
			}
			datagram = nil
		}
		datagram = append(datagram, frame...)
	}
	if len(datagram) > 0 {
		if _, err := conn.Write(datagram); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.lastSendAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Tick flushes the send queue once Config.IdleCoalesce has elapsed since the
// last send, and runs the retransmit sweep on every call; the sweep is not
// rate-limited by Config.RetransmitInterval. Call it periodically from the
// host's event loop.
func (c *Client) Tick(now time.Time) error {
	c.mu.Lock()
	hasQueued := len(c.sendQueue) > 0
	idleElapsed := now.Sub(c.lastSendAt) >= c.cfg.IdleCoalesce
	c.mu.Unlock()

	if hasQueued && idleElapsed {
		if err := c.flush(); err != nil {
			return err
		}
	}
	c.retransmitSweep(now)
	return nil
}

// retransmitSweep re-enqueues (without removing or replacing) any pending
// entry whose frame is older than StaleAfter, refreshing its timestamp
// (spec §4.5, §8: "retransmission... replaces neither entry nor observer").
func (c *Client) retransmitSweep(now time.Time) {
	c.mu.Lock()
	var stale [][]byte
	for _, e := range c.pending {
		if e.permanent || e.frame == nil {
			continue
		}
		if now.Sub(e.sentAt) >= c.cfg.StaleAfter {
			e.sentAt = now
			stale = append(stale, e.frame)
		}
	}
	c.mu.Unlock()

	for _, frame := range stale {
		c.enqueueSend(frame)
	}
}

// readLoop drains the connected UDP socket into HandleDatagram until the
// connection is closed (by Disconnect, or a failed Connect attempt).
func (c *Client) readLoop(conn *net.UDPConn) {
	buf := make([]byte, maxDatagramBytes)
	remote, _ := conn.RemoteAddr().(*net.UDPAddr)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		datagram := append([]byte(nil), buf[:n]...)
		c.HandleDatagram(datagram, remote)
	}
}

// HandleDatagram processes one received UDP datagram. Datagrams from a
// different host/port are dropped with a warning and the receive buffer is
// left untouched (spec §8 boundary behavior).
func (c *Client) HandleDatagram(data []byte, from *net.UDPAddr) {
	c.mu.Lock()
	remote := c.remoteAddr
	c.mu.Unlock()
	if remote != nil && (!from.IP.Equal(remote.IP) || from.Port != remote.Port) {
		c.logger.Warn("dropped datagram from unexpected peer", "from", from)
		return
	}

	c.mu.Lock()
	c.recvBuf = append(c.recvBuf, data...)
	var frames []Frame
	for {
		frame, n, err := DecodeOne(c.recvBuf)
		if err != nil {
			break
		}
		frames = append(frames, frame)
		c.recvBuf = c.recvBuf[n:]
	}
	c.mu.Unlock()

	for _, f := range frames {
		c.dispatch(f)
	}
}

// dispatch tries observers in FIFO order until one consumes the frame.
// Observers are copied out (swap-aside) before invocation so a callback
// that schedules a new observer does not mutate the slice being ranged
// over; new observers append after this pass completes (spec §5).
func (c *Client) dispatch(f Frame) {
	c.mu.Lock()
	observers := make([]*pendingEntry, len(c.pending))
	copy(observers, c.pending)
	c.mu.Unlock()

	for _, e := range observers {
		if e.observer(f) {
			c.removeObserver(e)
			return
		}
	}
}

func (c *Client) removeObserver(target *pendingEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.pending {
		if e == target {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
