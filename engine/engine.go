// Package engine generalizes the teacher's goroutine-per-block simulator
// (Sim/node/Handler/Dinger/Starter/Stopper) into the live scheduling model
// of §5: each block (DVB, Encap, PhysLayer, SatCarrier) runs two
// cooperatively-scheduled Channels (upward and downward); within a Channel,
// messages and timers are processed strictly sequentially by one goroutine,
// so a Handler never runs concurrently with itself or with its own Dinger.
// Unlike the teacher's offline discrete-event Sim, Channels run on the real
// wall clock: timers are backed by time.Timer, and a Channel blocks on its
// select set rather than advancing a virtual now.
package engine

import (
	"time"

	"github.com/rs/xid"
)

// Clock is a real wall-clock instant, counted in nanoseconds since the Unix
// epoch (time.Now().UnixNano(); not monotonic).
type Clock int64

// Now returns the current Clock.
func Now() Clock {
	return Clock(time.Now().UnixNano())
}

// Add returns c advanced by d.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d)
}

// Sub returns the Duration between c and earlier.
func (c Clock) Sub(earlier Clock) time.Duration {
	return time.Duration(c - earlier)
}

// Message is anything a Channel can Send or receive: SOF, logon
// request/response, SAC, TTP, a DVB-RCS2 burst, a BBFrame, a Slotted-ALOHA
// payload, or a shareMessage crossing to the paired channel.
type Message any

// Handler processes Messages delivered to a Channel.
type Handler interface {
	Handle(msg Message, ch *Channel) error
}

// Dinger handles an elapsed Timer.
type Dinger interface {
	Ding(data any, ch *Channel) error
}

// Starter runs once when a Channel starts.
type Starter interface {
	Start(ch *Channel) error
}

// Stopper runs once when a Channel is shut down.
type Stopper interface {
	Stop(ch *Channel) error
}

// CorrelationId tags one message's causal chain across channels, useful
// when a handler's log lines must be grouped across a shareMessage hop.
type CorrelationId = xid.ID

// NewCorrelationId returns a fresh CorrelationId.
func NewCorrelationId() CorrelationId {
	return xid.New()
}

// shared wraps a Message crossing a ShareMessage hop with the
// CorrelationId stamped by the sending Channel, so the receiving Channel's
// handler can tie its own log lines back to the event that caused the
// hop (§9).
type shared struct {
	id      CorrelationId
	payload Message
}

type timerEntry struct {
	id    uint64
	timer *time.Timer
	data  any
}

// Channel is one cooperatively-scheduled event loop: a single goroutine
// that processes exactly one message or timer ding at a time, in the order
// it arrives. Event handlers must not block; scheduling decisions never
// wait on I/O (§5).
type Channel struct {
	name    string
	handler Handler
	in      chan Message
	dings   chan dingEvent
	paired  *Channel // the other channel in the same block, for shareMessage
	now     Clock
	nextTID uint64
	timers  map[uint64]*timerEntry
	done    chan struct{}
	corr    CorrelationId // of the message/ding currently being handled
}

type dingEvent struct {
	data any
}

// NewChannel returns a Channel named name (used in log lines), running
// handler.
func NewChannel(name string, handler Handler) *Channel {
	return &Channel{
		name:   name,
		handler: handler,
		in:      make(chan Message, 64),
		dings:   make(chan dingEvent, 16),
		timers:  make(map[uint64]*timerEntry),
		done:    make(chan struct{}),
	}
}

// Pair links two Channels of the same block so ShareMessage can cross
// between them without going through external transport (§9 "shared
// message" primitive, now an explicit typed hop instead of a pointer pair).
func Pair(a, b *Channel) {
	a.paired = b
	b.paired = a
}

// Now returns the Channel's last-observed wall-clock time.
func (c *Channel) Now() Clock {
	return c.now
}

// Send enqueues msg for processing on this Channel, from another goroutine
// or from within this Channel's own Handle/Ding (in which case it
// processes after the current event returns).
func (c *Channel) Send(msg Message) {
	c.in <- msg
}

// ShareMessage delivers msg to the channel's pair, the typed replacement
// for the teacher's cross-channel shared state (§9). The hop is stamped
// with a fresh CorrelationId so the receiving handler can tie its log
// lines back to this event via CorrelationId.
func (c *Channel) ShareMessage(msg Message) CorrelationId {
	id := NewCorrelationId()
	if c.paired != nil {
		c.paired.Send(shared{id: id, payload: msg})
	}
	return id
}

// CorrelationId returns the CorrelationId of the message or shareMessage
// hop currently being handled, or a zero value outside of a Handle call
// reached via ShareMessage.
func (c *Channel) CorrelationId() CorrelationId {
	return c.corr
}

// Timer arms a one-shot timer that delivers data via Ding after delay.
// Returns a timer id that can be passed to CancelTimer.
func (c *Channel) Timer(delay time.Duration, data any) uint64 {
	c.nextTID++
	id := c.nextTID
	t := time.AfterFunc(delay, func() {
		c.dings <- dingEvent{data: data}
	})
	c.timers[id] = &timerEntry{id: id, timer: t, data: data}
	return id
}

// CancelTimer stops a previously armed timer if it has not already fired.
func (c *Channel) CancelTimer(id uint64) {
	if e, ok := c.timers[id]; ok {
		e.timer.Stop()
		delete(c.timers, id)
	}
}

// Run starts the Channel's event loop. It blocks until Shutdown is called
// or in is closed; callers run it in its own goroutine, per block.
func (c *Channel) Run() error {
	if s, ok := c.handler.(Starter); ok {
		if err := s.Start(c); err != nil {
			return err
		}
	}
	for {
		c.now = Now()
		select {
		case msg, ok := <-c.in:
			if !ok {
				return c.stop()
			}
			payload := msg
			c.corr = CorrelationId{}
			if sh, ok := msg.(shared); ok {
				c.corr = sh.id
				payload = sh.payload
			}
			if err := c.handler.Handle(payload, c); err != nil {
				return err
			}
		case d := <-c.dings:
			if r, ok := c.handler.(Dinger); ok {
				if err := r.Ding(d.data, c); err != nil {
					return err
				}
			}
		case <-c.done:
			return c.stop()
		}
	}
}

// Shutdown stops the Channel's event loop after its current event returns.
func (c *Channel) Shutdown() {
	close(c.done)
}

func (c *Channel) stop() error {
	for _, e := range c.timers {
		e.timer.Stop()
	}
	if s, ok := c.handler.(Stopper); ok {
		return s.Stop(c)
	}
	return nil
}

// Block is a pair of cooperatively-scheduled Channels sharing one logical
// component (DVB, Encap, PhysLayer, SatCarrier), per §5.
type Block struct {
	Up   *Channel
	Down *Channel
}

// NewBlock returns a Block with its two Channels already paired.
func NewBlock(name string, up, down Handler) *Block {
	b := &Block{
		Up:   NewChannel(name+".up", up),
		Down: NewChannel(name+".down", down),
	}
	Pair(b.Up, b.Down)
	return b
}

// Run starts both Channels in their own goroutines and returns immediately;
// errors are delivered on the returned channel (one slot per direction).
func (b *Block) Run() <-chan error {
	errc := make(chan error, 2)
	go func() { errc <- b.Up.Run() }()
	go func() { errc <- b.Down.Run() }()
	return errc
}

// Shutdown stops both Channels.
func (b *Block) Shutdown() {
	b.Up.Shutdown()
	b.Down.Shutdown()
}
