// Package probe is the push-only metrics sink the core components report
// to (§6 "Persisted state: none; probes are push-only to an external
// output sink"), generalizing the teacher's per-run Xplot file sink into a
// live Prometheus registry suitable for a long-running entity process.
package probe

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/heistp/opensand-return-mac/fmtdef"
)

// Sink collects every probe the core emits: DAMA allocation gauges,
// Slotted-ALOHA drop counters, physical-layer minimal-condition and drop
// gauges, and FIFO occupancy. One Sink is constructed per entity process;
// the physical-layer pipeline reports to it through PhyProbe, while the
// band planner, DAMA and Slotted-ALOHA components take no Sink.
type Sink struct {
	registry *prometheus.Registry

	RbdcAllocatedKbps *prometheus.GaugeVec
	VbdcAllocatedKb   *prometheus.GaugeVec
	FifoLengthBytes   *prometheus.GaugeVec
	FifoDropPackets   *prometheus.CounterVec
	SalohaDrops       *prometheus.CounterVec
	PhyMinimalCondDB  *prometheus.GaugeVec
	PhyDrops          prometheus.Counter
}

// NewSink registers every probe's metric family under a fresh registry in
// the "opensand" namespace. The entity argument is not used: metric names
// do not include it, and per-entity values are told apart only by the
// "entity" label that callers set on the vector metrics (PhyDrops has no
// such label).
func NewSink(entity string) *Sink {
	reg := prometheus.NewRegistry()
	ns := "opensand"
	s := &Sink{
		registry: reg,
		RbdcAllocatedKbps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "dama", Name: "rbdc_allocated_kbps",
			Help: "RBDC rate allocated to a terminal in the last TTP.",
		}, []string{"entity", "tal_id"}),
		VbdcAllocatedKb: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "dama", Name: "vbdc_allocated_kb",
			Help: "VBDC volume allocated to a terminal in the last TTP.",
		}, []string{"entity", "tal_id"}),
		FifoLengthBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "fifo", Name: "length_bytes",
			Help: "Current occupied bytes of a MAC FIFO.",
		}, []string{"entity", "priority"}),
		FifoDropPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "fifo", Name: "drop_packets_total",
			Help: "Packets dropped on FIFO push due to Full.",
		}, []string{"entity", "priority"}),
		SalohaDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "saloha", Name: "drop_total",
			Help: "Slotted-ALOHA packets dropped after exhausting retransmissions.",
		}, []string{"entity"}),
		PhyMinimalCondDB: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "phy", Name: "minimal_condition_db",
			Help: "Required Es/N0 of the most recently selected MODCOD.",
		}, []string{"entity", "modcod"}),
		PhyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "phy", Name: "drops_total",
			Help: "Frames marked corrupted by the attenuation pipeline.",
		}),
	}
	reg.MustRegister(s.RbdcAllocatedKbps, s.VbdcAllocatedKb, s.FifoLengthBytes,
		s.FifoDropPackets, s.SalohaDrops, s.PhyMinimalCondDB, s.PhyDrops)
	return s
}

// Pusher returns a Prometheus Pusher configured to push this Sink's
// registry to addr under job, the entity's push-only output sink.
func (s *Sink) Pusher(addr, job string) *push.Pusher {
	return push.New(addr, job).Gatherer(s.registry)
}

// PhyProbe adapts a Sink to physlayer.Probe for one entity, so the
// attenuation pipeline can report without depending on prometheus
// directly.
type PhyProbe struct {
	Sink   *Sink
	Entity string
}

// SetMinimalCondition implements physlayer.Probe.
func (p PhyProbe) SetMinimalCondition(modcod fmtdef.Id, requiredEsN0 float64) {
	p.Sink.PhyMinimalCondDB.WithLabelValues(p.Entity, strconv.Itoa(int(modcod))).Set(requiredEsN0)
}

// IncDrops implements physlayer.Probe.
func (p PhyProbe) IncDrops() {
	p.Sink.PhyDrops.Inc()
}
