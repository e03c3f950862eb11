package link

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/moffa90/go-pybricks/protocol"
)

// DeviceInfo is the identity of a connected hub. Fields that could not be
// read are left empty.
type DeviceInfo struct {
	Address          string
	Name             string
	FirmwareRevision string
	SoftwareRevision string

	// PnPID is nil when the PnP ID characteristic was unreadable
	PnPID *protocol.PnPID
}

// Conn is one connected session with a hub. It is created by
// Manager.Connect and becomes unusable once Done is closed.
//
// Conn is safe for concurrent use. Writes are serialized; inbound events
// are delivered in arrival order to every subscriber.
type Conn struct {
	id         ulid.ULID
	info       DeviceInfo
	caps       protocol.HubCapabilities
	peripheral Peripheral
	control    Characteristic
	write      writeFunc
	config     Config

	writeMu sync.Mutex

	// queue holds raw notification frames not yet dispatched
	queueMu sync.Mutex
	queue   [][]byte
	wake    chan struct{}

	// subMu guards subs and the last status, and is held while an event
	// is being delivered
	subMu      sync.Mutex
	subs       map[int]*subscription
	nextSub    int
	closed     bool
	status     protocol.StatusReport
	haveStatus bool

	// ready is closed by the first Subscribe; frames wait in the queue
	// until then
	ready     chan struct{}
	readyOnce sync.Once

	// stdout is only touched by the pump goroutine
	stdout strings.Builder

	done     chan struct{}
	lostOnce sync.Once
}

type subscription struct {
	ch       chan Event
	quit     chan struct{}
	quitOnce sync.Once
}

func newConn(cfg Config) *Conn {
	return &Conn{
		id:     ulid.Make(),
		config: cfg,
		wake:   make(chan struct{}, 1),
		subs:   make(map[int]*subscription),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns the session id, unique per connection.
func (c *Conn) ID() ulid.ULID {
	return c.id
}

// Info returns the identity fields read at connect time.
func (c *Conn) Info() DeviceInfo {
	return c.info
}

// Capabilities returns the capability record read at connect time.
func (c *Conn) Capabilities() protocol.HubCapabilities {
	return c.caps
}

// Done is closed when the link is lost or the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns ErrLinkLost once Done is closed, nil before.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return ErrLinkLost
	default:
		return nil
	}
}

// Write sends one command frame to the control characteristic.
//
// If the link is lost while the write is pending, Write returns ErrLinkLost
// immediately even if the platform write never completes.
//
// Example:
//
//	err := conn.Write(ctx, protocol.BuildStartUserProgramCmd(protocol.SlotMain))
func (c *Conn) Write(ctx context.Context, frame []byte) error {
	if err := c.Err(); err != nil {
		return err
	}

	result := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		if c.Err() != nil {
			result <- ErrLinkLost
			return
		}
		result <- c.write(ctx, frame)
	}()

	select {
	case err := <-result:
		if err != nil && c.Err() != nil {
			return ErrLinkLost
		}
		return err
	case <-c.done:
		return ErrLinkLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving every subsequent inbound event and a
// function that ends the subscription. The channel is closed when the
// subscription ends or the link is lost.
//
// Frames received before the first subscription are held and delivered to
// it, so the status report sent when notifications are enabled is never
// missed. A later subscriber first receives the most recent status report.
//
// Events are delivered with blocking sends, so a subscriber that stops
// reading stalls delivery to all subscribers until it unsubscribes.
//
// Example:
//
//	events, cancel := conn.Subscribe()
//	defer cancel()
//	for ev := range events {
//	    if ev.Kind == link.EventStdout {
//	        fmt.Print(ev.Text)
//	    }
//	}
func (c *Conn) Subscribe() (<-chan Event, func()) {
	sub := &subscription{
		ch:   make(chan Event, c.config.EventBuffer),
		quit: make(chan struct{}),
	}

	c.subMu.Lock()
	if c.closed {
		c.subMu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if c.haveStatus {
		select {
		case sub.ch <- Event{Kind: EventStatus, Status: c.status}:
		default:
		}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.subMu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })

	cancel := func() {
		sub.quitOnce.Do(func() {
			close(sub.quit)
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// handleNotification is the platform notification callback. It only queues
// the frame so the platform goroutine is never blocked.
func (c *Conn) handleNotification(value []byte) {
	frame := make([]byte, len(value))
	copy(frame, value)

	c.queueMu.Lock()
	c.queue = append(c.queue, frame)
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) pop() ([]byte, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	frame := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return frame, true
}

// pump dispatches queued frames in order until the link is lost. Frames
// still queued at that point, and any batched stdout, are delivered before
// the subscriptions close.
func (c *Conn) pump() {
	defer c.closeSubscribers()

	select {
	case <-c.ready:
	case <-c.done:
	}

	for {
		c.drain()
		select {
		case <-c.wake:
		case <-c.done:
			c.drain()
			c.flushStdout()
			return
		}
	}
}

func (c *Conn) drain() {
	for {
		frame, ok := c.pop()
		if !ok {
			return
		}
		c.dispatch(frame)
	}
}

func (c *Conn) flushStdout() {
	if c.stdout.Len() == 0 {
		return
	}
	c.publish(Event{Kind: EventStdout, Text: c.stdout.String()})
	c.stdout.Reset()
}

func (c *Conn) dispatch(frame []byte) {
	ev, err := decodeEvent(frame)
	if err != nil {
		c.logDebug("dropping event", "error", err, "frame_len", len(frame))
		return
	}

	if ev.Kind == EventStdout && c.config.StdoutDelivery == StdoutBatched {
		c.stdout.WriteString(ev.Text)
		return
	}
	if ev.Kind == EventStatus {
		c.flushStdout()
	}

	c.publish(ev)
}

func (c *Conn) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if ev.Kind == EventStatus {
		c.status = ev.Status
		c.haveStatus = true
	}

	for _, sub := range c.subs {
		select {
		case sub.ch <- ev:
		case <-sub.quit:
		case <-c.done:
			// the link is gone: deliver what fits, never wait
			select {
			case sub.ch <- ev:
			default:
				c.logDebug("dropping event for slow subscriber", "kind", ev.Kind.String())
			}
		}
	}
}

func (c *Conn) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.closed = true
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
}

// markLost closes Done. Safe to call more than once.
func (c *Conn) markLost() {
	c.lostOnce.Do(func() {
		close(c.done)
	})
}

func (c *Conn) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, append([]interface{}{"session", c.id.String()}, keysAndValues...)...)
	}
}
