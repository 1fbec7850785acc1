// Package macfifo implements the priority-keyed MAC FIFOs that sit between
// the upper (encapsulation) layer and the return-link schedulers, in the
// shape of the teacher's Iface/AQM contract (Enqueue/Dequeue/Peek/Len):
// push fails with Full once a FIFO reaches its packet-count bound, and
// scheduling never blocks on a push.
package macfifo

import "github.com/heistp/opensand-return-mac/errkind"

// Clock is the simulation time a FifoElement was ticked in or out, shared
// with the engine package's Clock representation by convention (both are
// int64 nanosecond counts).
type Clock int64

// Element wraps a payload with the ticks it entered and left its FIFO.
type Element struct {
	Payload []byte
	TickIn  Clock
	TickOut Clock
}

// Stats tracks a FIFO's cumulative counters.
type Stats struct {
	InLengthBytes      uint64
	OutLengthBytes     uint64
	CurrentLengthBytes uint64
	CurrentPktNbr      int
	DropPktNbr         uint64
	DropBytes          uint64
}

// Fifo is a bounded, ordered queue of Elements for a single priority class.
type Fifo struct {
	MaxSize int
	items   []Element
	Stats   Stats
}

// NewFifo returns an empty Fifo bounded by maxSize packets.
func NewFifo(maxSize int) *Fifo {
	return &Fifo{MaxSize: maxSize}
}

// Push enqueues e, returning a ResourceExhausted error if the FIFO is full.
func (f *Fifo) Push(e Element) error {
	if f.Stats.CurrentPktNbr >= f.MaxSize {
		f.Stats.DropPktNbr++
		f.Stats.DropBytes += uint64(len(e.Payload))
		return errkind.New(errkind.ResourceExhausted, "FIFO full")
	}
	f.items = append(f.items, e)
	f.Stats.CurrentPktNbr++
	n := uint64(len(e.Payload))
	f.Stats.InLengthBytes += n
	f.Stats.CurrentLengthBytes += n
	return nil
}

// Pop removes and returns the oldest Element, or ok=false if empty.
// Non-blocking: callers drain what fits within a scheduling tick's budget.
func (f *Fifo) Pop() (e Element, ok bool) {
	if len(f.items) == 0 {
		return Element{}, false
	}
	e, f.items = f.items[0], f.items[1:]
	f.Stats.CurrentPktNbr--
	n := uint64(len(e.Payload))
	f.Stats.OutLengthBytes += n
	f.Stats.CurrentLengthBytes -= n
	return e, true
}

// Peek returns the oldest Element without removing it.
func (f *Fifo) Peek() (e Element, ok bool) {
	if len(f.items) == 0 {
		return Element{}, false
	}
	return f.items[0], true
}

// Len returns the current packet count.
func (f *Fifo) Len() int {
	return f.Stats.CurrentPktNbr
}

// Priority identifies a QoS-ordered FIFO class; lower values drain first.
type Priority uint8

// Set is an ordered collection of per-priority Fifos, the unit the return
// schedulers (DAMA agent, SCPC, Slotted-ALOHA terminal) drain from on every
// tick.
type Set struct {
	order []Priority
	fifos map[Priority]*Fifo
}

// NewSet returns a Set whose fifos are drained in ascending Priority order.
func NewSet() *Set {
	return &Set{fifos: make(map[Priority]*Fifo)}
}

// Add registers a Fifo for the given priority class.
func (s *Set) Add(p Priority, maxSize int) *Fifo {
	f := NewFifo(maxSize)
	if _, exists := s.fifos[p]; !exists {
		s.order = append(s.order, p)
		sortPriorities(s.order)
	}
	s.fifos[p] = f
	return f
}

func sortPriorities(p []Priority) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j-1] > p[j]; j-- {
			p[j-1], p[j] = p[j], p[j-1]
		}
	}
}

// Fifo returns the Fifo for the given priority, or nil if unregistered.
func (s *Set) Fifo(p Priority) *Fifo {
	return s.fifos[p]
}

// Priorities returns the registered priorities in drain order.
func (s *Set) Priorities() []Priority {
	return append([]Priority(nil), s.order...)
}

// DrainBudget pops Elements across priorities in order while
// budgetBytes remains positive, decrementing budgetBytes by each popped
// Element's payload length. When a priority's head-of-line Element does
// not fit the remaining budget, that priority is left and draining goes on
// with the next priority, matching the non-blocking, budget-bounded
// scheduling rule of §4.7.
func (s *Set) DrainBudget(budgetBytes int) []Element {
	var out []Element
	for _, p := range s.order {
		f := s.fifos[p]
		for budgetBytes > 0 {
			e, ok := f.Peek()
			if !ok || len(e.Payload) > budgetBytes {
				break
			}
			e, _ = f.Pop()
			budgetBytes -= len(e.Payload)
			out = append(out, e)
		}
	}
	return out
}
