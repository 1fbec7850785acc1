// Package satellite implements the transparent satellite's frame
// forwarding: per-GW delay FIFOs that enforce a fixed one-way delay and
// preserve FIFO ordering per (GW, class), with SOF bypassing the delay path
// entirely (§4.5).
package satellite

import "sort"

// Clock is a simulation tick, shared by convention with macfifo.Clock and
// the engine package's Clock.
type Clock int64

// Class identifies one of the three delayed FIFO classes forwarded to a GW:
// logon, control (SAC/TTP) and data (DVB-RCS2 burst/BBFrame).
type Class int

const (
	ClassLogon Class = iota
	ClassControl
	ClassData
)

// Frame is an opaque payload forwarded unmodified; the satellite never
// inspects or alters it beyond reading the fields needed to route it.
type Frame struct {
	CarrierId int
	Payload   []byte
}

type queued struct {
	frame   Frame
	tickOut Clock
}

// gwFifos holds the three per-class delay FIFOs for one GW, each
// independently ordered by enqueue time (tickOut is monotonic within a
// class because delay is fixed, so FIFO order is preserved automatically).
type gwFifos struct {
	fifos [3][]queued
}

// Downlink is the per-GW delay + forwarding stage. SOF frames are
// delivered via SOFBypass, not through Enqueue, to preserve precise
// superframe synchronisation (§4.5).
type Downlink struct {
	OneWayDelay Clock
	gws         map[int]*gwFifos
}

// NewDownlink returns a Downlink applying a fixed one-way delay to every
// enqueued frame.
func NewDownlink(oneWayDelay Clock) *Downlink {
	return &Downlink{OneWayDelay: oneWayDelay, gws: make(map[int]*gwFifos)}
}

func (d *Downlink) gw(gwId int) *gwFifos {
	g, ok := d.gws[gwId]
	if !ok {
		g = &gwFifos{}
		d.gws[gwId] = g
	}
	return g
}

// Enqueue schedules frame for delivery to gwId's class FIFO at
// now+OneWayDelay.
func (d *Downlink) Enqueue(gwId int, class Class, frame Frame, now Clock) {
	g := d.gw(gwId)
	g.fifos[class] = append(g.fifos[class], queued{frame: frame, tickOut: now + d.OneWayDelay})
}

// Tick pops every frame whose tickOut has elapsed from every GW and class,
// in class order (logon, control, data) and FIFO order within a class, per
// the fwdTimer rule of §4.5.
func (d *Downlink) Tick(now Clock) map[int][]Frame {
	out := make(map[int][]Frame)
	var gwIds []int
	for id := range d.gws {
		gwIds = append(gwIds, id)
	}
	sort.Ints(gwIds)
	for _, id := range gwIds {
		g := d.gws[id]
		var frames []Frame
		for class := 0; class < 3; class++ {
			q := g.fifos[class]
			i := 0
			for i < len(q) && q[i].tickOut <= now {
				frames = append(frames, q[i].frame)
				i++
			}
			g.fifos[class] = q[i:]
		}
		if len(frames) > 0 {
			out[id] = frames
		}
	}
	return out
}

// SOFBypass delivers an SOF frame for immediate forwarding, bypassing the
// delay FIFOs entirely (§4.5): synchronisation requires every station's
// frame tick to slave to the SOF without the jitter of the ordinary
// per-class queues, so the caller forwards the returned frame directly
// rather than scheduling it through Enqueue/Tick.
func (d *Downlink) SOFBypass(frame Frame) Frame {
	return frame
}
