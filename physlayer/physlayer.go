// Package physlayer implements the attenuation & MODCOD check pipeline:
// MODCOD selection from a received frame's header, the minimal-condition
// threshold update, and corrupted-frame insertion when the link's C/N
// falls below what the selected MODCOD requires (§4.6).
package physlayer

import "github.com/heistp/opensand-return-mac/fmtdef"

// Probe is the push-only sink the pipeline reports minimal-condition
// threshold updates and drop counters to; the concrete sink (Prometheus)
// lives in the probe package and is injected here as an interface so this
// package stays free of that dependency.
type Probe interface {
	SetMinimalCondition(modcod fmtdef.Id, requiredEsN0 float64)
	IncDrops()
}

// noopProbe discards everything; used when the caller has no sink wired.
type noopProbe struct{}

func (noopProbe) SetMinimalCondition(fmtdef.Id, float64) {}
func (noopProbe) IncDrops()                              {}

// ErrorInsertionPolicy decides whether a frame whose cn falls below the
// minimal condition should actually be corrupted. The default policy
// always applies (deterministic drop below threshold); a probabilistic or
// burst-error policy can be substituted without touching the pipeline.
type ErrorInsertionPolicy interface {
	ShouldCorrupt(modcod fmtdef.Id, cnDB, requiredEsN0 float64) bool
}

// AlwaysCorrupt is the default ErrorInsertionPolicy: any frame below the
// minimal condition is corrupted.
type AlwaysCorrupt struct{}

// ShouldCorrupt implements ErrorInsertionPolicy.
func (AlwaysCorrupt) ShouldCorrupt(modcod fmtdef.Id, cnDB, requiredEsN0 float64) bool {
	return cnDB < requiredEsN0
}

// Frame is the subset of a received DVB frame the pipeline needs: whether
// it carries a MODCOD at all (SAC/TTP/SOF/logon do not), the MODCOD id if
// so, and its carrier C/N.
type Frame struct {
	HasModcod bool
	Modcod    fmtdef.Id
	CnDB      float64
	Corrupted bool
}

// Pipeline runs the per-frame attenuation & MODCOD check (§4.6).
type Pipeline struct {
	Table  *fmtdef.Table
	Policy ErrorInsertionPolicy
	Probe  Probe

	Drops uint64
}

// NewPipeline returns a Pipeline using AlwaysCorrupt and a discarding probe
// unless overridden on the returned value.
func NewPipeline(table *fmtdef.Table) *Pipeline {
	return &Pipeline{Table: table, Policy: AlwaysCorrupt{}, Probe: noopProbe{}}
}

// Process runs frame through the pipeline, returning the (possibly
// corrupted) frame. Non-MODCOD frames pass through unchanged but keep
// their cn for the receiver's ACM loop (step 4).
func (p *Pipeline) Process(frame Frame) Frame {
	if !frame.HasModcod {
		return frame
	}
	def, ok := p.Table.Get(frame.Modcod)
	if !ok {
		return frame
	}
	p.Probe.SetMinimalCondition(frame.Modcod, def.RequiredEsN0)
	if p.Policy.ShouldCorrupt(frame.Modcod, frame.CnDB, def.RequiredEsN0) {
		frame.Corrupted = true
		p.Drops++
		p.Probe.IncDrops()
	}
	return frame
}
