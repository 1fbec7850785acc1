// Package saloha implements Slotted-ALOHA return access: terminal-side
// replica placement, retransmission and backoff, and gateway-side
// collision resolution, SIC-style slot release and ACK generation (§4.4).
package saloha

import (
	"math/rand"
	"sort"

	"github.com/heistp/opensand-return-mac/errkind"
)

// TalId is a terminal identifier.
type TalId uint16

// PduSeq is a terminal-local sequence number for a Slotted-ALOHA PDU.
type PduSeq uint16

// Packet is one Slotted-ALOHA data packet queued for transmission or
// received on the gateway, carrying its replica slot indices.
type Packet struct {
	TalId    TalId
	Qos      uint8
	PduSeq   PduSeq
	Replicas []int // slot indices, within the current SA-frame
	Payload  []byte

	collided map[int]bool // by slot index: replica released from that slot, gateway-side scratch
}

// Context is the per-terminal Slotted-ALOHA sequence state held by the
// gateway and the terminal: the terminal's next local PDU sequence number
// and an ExpectedSeq counter. The gateway creates one per acknowledged
// terminal; Resolve neither reads nor advances ExpectedSeq, so duplicate
// deliveries are not filtered.
type Context struct {
	TalId        TalId
	ExpectedSeq  PduSeq
	nextLocalSeq PduSeq
}

// NewContext returns a freshly initialized Context for tal.
func NewContext(tal TalId) *Context {
	return &Context{TalId: tal}
}

// Terminal is the ST-side Slotted-ALOHA scheduler: it places new packets on
// distinct random slots, tracks pending acknowledgement and retransmits
// (with backoff) unacknowledged packets up to a retry limit.
type Terminal struct {
	TalId             TalId
	NbReplicas        int
	SlotsPerFrame     int
	TimeoutSaFrames   int
	MaxRetransmission int
	BackoffMin        int
	BackoffMax        int

	ctx     *Context
	pending map[PduSeq]*pendingPacket
	rng     *rand.Rand
}

type pendingPacket struct {
	pkt          Packet
	sfSent       int
	attempt      int
	backoffUntil int // SA-frame number; 0 means ready
}

// NewTerminal returns a Terminal for tal with the given slot geometry and
// retry policy. rng is injected so placement and backoff are reproducible
// in tests; production callers pass a process-seeded source.
func NewTerminal(tal TalId, nbReplicas, slotsPerFrame, timeoutSaFrames, maxRetransmission, backoffMin, backoffMax int, rng *rand.Rand) *Terminal {
	return &Terminal{
		TalId:             tal,
		NbReplicas:        nbReplicas,
		SlotsPerFrame:     slotsPerFrame,
		TimeoutSaFrames:   timeoutSaFrames,
		MaxRetransmission: maxRetransmission,
		BackoffMin:        backoffMin,
		BackoffMax:        backoffMax,
		ctx:               NewContext(tal),
		pending:           make(map[PduSeq]*pendingPacket),
		rng:               rng,
	}
}

// Enqueue places payload on NbReplicas distinct, uniformly-chosen slots and
// returns the resulting Packet, queued for delivery on the next SA-frame.
func (t *Terminal) Enqueue(qos uint8, payload []byte, sfn int) (Packet, error) {
	if t.NbReplicas > t.SlotsPerFrame {
		return Packet{}, errkind.New(errkind.ConfigInvalid, "nbReplicas exceeds slotsPerFrame")
	}
	seq := t.ctx.nextLocalSeq
	t.ctx.nextLocalSeq++
	replicas := t.chooseSlots()
	pkt := Packet{TalId: t.TalId, Qos: qos, PduSeq: seq, Replicas: replicas, Payload: payload}
	t.pending[seq] = &pendingPacket{pkt: pkt, sfSent: sfn}
	return pkt, nil
}

// chooseSlots picks NbReplicas distinct slot indices uniformly at random
// from [0, SlotsPerFrame) by shuffling the whole slot pool and taking its
// first NbReplicas entries.
func (t *Terminal) chooseSlots() []int {
	pool := make([]int, t.SlotsPerFrame)
	for i := range pool {
		pool[i] = i
	}
	t.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	out := append([]int(nil), pool[:t.NbReplicas]...)
	sort.Ints(out)
	return out
}

// OnAck removes acknowledged PDUs from the pending set.
func (t *Terminal) OnAck(acked []PduSeq) {
	for _, seq := range acked {
		delete(t.pending, seq)
	}
}

// Retransmissions returns packets whose timeout has elapsed as of sfn and
// are due for retransmission (backoff satisfied), rearming each with a new
// replica placement and backoff window. Packets that exhaust
// MaxRetransmission are dropped and reported in the second return value.
func (t *Terminal) Retransmissions(sfn int) (due []Packet, dropped []PduSeq) {
	for seq, p := range t.pending {
		if sfn-p.sfSent < t.TimeoutSaFrames {
			continue
		}
		if p.backoffUntil > sfn {
			continue
		}
		if p.attempt >= t.MaxRetransmission {
			dropped = append(dropped, seq)
			delete(t.pending, seq)
			continue
		}
		p.attempt++
		p.sfSent = sfn
		p.pkt.Replicas = t.chooseSlots()
		window := t.BackoffMax - t.BackoffMin
		if window < 0 {
			window = 0
		}
		backoff := t.BackoffMin
		if window > 0 {
			backoff += t.rng.Intn(window + 1)
		}
		p.backoffUntil = sfn + backoff
		due = append(due, p.pkt)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].PduSeq < due[j].PduSeq })
	return due, dropped
}

// Gateway is the NCC-side Slotted-ALOHA resolver for one category: it
// groups received packets by slot, resolves collisions SIC-style and
// produces the accepted packets plus the ACK list for one SA-frame.
type Gateway struct {
	SlotsPerFrame int
	contexts      map[TalId]*Context
}

// NewGateway returns a Gateway for a category with the given slot geometry.
func NewGateway(slotsPerFrame int) *Gateway {
	return &Gateway{SlotsPerFrame: slotsPerFrame, contexts: make(map[TalId]*Context)}
}

// contextFor returns (creating if absent) the Context for tal.
func (g *Gateway) contextFor(tal TalId) *Context {
	c, ok := g.contexts[tal]
	if !ok {
		c = NewContext(tal)
		g.contexts[tal] = c
	}
	return c
}

// Ack is one entry of a Slotted-ALOHA ACK frame.
type Ack struct {
	TalId  TalId
	PduSeq PduSeq
}

// Resolve groups received packets by slot, marks every occupant of a slot
// with two or more packets as collided, and accepts any packet with at
// least one uncollided replica (I5). Accepted packets are delivered in
// ascending replica[0] order; resolution walks slot indices in ascending
// order, repeating the walk until no further packet is decoded, and a
// packet decoded via one replica has its other replicas virtually removed
// in the order they appear (SIC release), possibly freeing a slot for a
// packet that was otherwise fully collided.
func (g *Gateway) Resolve(received []Packet) (accepted []Packet, acks []Ack) {
	bySlot := make(map[int][]*Packet, g.SlotsPerFrame)
	pkts := make([]*Packet, len(received))
	for i := range received {
		pkts[i] = &received[i]
		pkts[i].collided = make(map[int]bool, len(pkts[i].Replicas))
		for _, s := range pkts[i].Replicas {
			bySlot[s] = append(bySlot[s], pkts[i])
		}
	}

	occupants := func(slot int) int {
		n := 0
		for _, p := range bySlot[slot] {
			if !p.collided[slot] {
				n++
			}
		}
		return n
	}

	decoded := make(map[*Packet]bool)
	slots := make([]int, 0, len(bySlot))
	for s := range bySlot {
		slots = append(slots, s)
	}
	sort.Ints(slots)

	changed := true
	for changed {
		changed = false
		for _, s := range slots {
			if occupants(s) != 1 {
				continue
			}
			var winner *Packet
			for _, p := range bySlot[s] {
				if !p.collided[s] {
					winner = p
					break
				}
			}
			if winner == nil || decoded[winner] {
				continue
			}
			decoded[winner] = true
			changed = true
			for _, r := range winner.Replicas {
				if r != s {
					winner.collided[r] = true
				}
			}
		}
	}

	for _, p := range pkts {
		if decoded[p] {
			accepted = append(accepted, *p)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Replicas[0] < accepted[j].Replicas[0] })
	for _, p := range accepted {
		g.contextFor(p.TalId)
		acks = append(acks, Ack{TalId: p.TalId, PduSeq: p.PduSeq})
	}
	return accepted, acks
}
