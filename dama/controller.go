package dama

import (
	"sort"

	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/wire"
)

// CategorySpec is the NCC's view of a terminal category's total capacity,
// as produced by the band planner and consumed by the allocation passes.
type CategorySpec struct {
	CapacityKbps float64
	FcaEnabled   bool
}

// Controller is the NCC-side DAMA controller: it aggregates capacity
// requests across logged-on terminals and computes the TTP broadcast each
// superframe (§4.2).
type Controller struct {
	Table            *fmtdef.Table
	FrameDurationSec float64

	categories map[string]CategorySpec
	contexts   map[TalId]*Context
	touched    map[TalId]bool
	nextLogon  uint16
}

// NewController returns a Controller for the given FMT table and frame
// duration (used to convert remaining rate capacity to a per-frame volume
// for the VBDC pass).
func NewController(table *fmtdef.Table, frameDurationSec float64) *Controller {
	return &Controller{
		Table:            table,
		FrameDurationSec: frameDurationSec,
		categories:       make(map[string]CategorySpec),
		contexts:         make(map[TalId]*Context),
		touched:          make(map[TalId]bool),
	}
}

// RegisterCategory declares a terminal category's total capacity as
// computed by the band planner.
func (c *Controller) RegisterCategory(label string, capacityKbps float64, fcaEnabled bool) {
	c.categories[label] = CategorySpec{CapacityKbps: capacityKbps, FcaEnabled: fcaEnabled}
}

// OnLogon handles a logon request, allocating a category slot and
// registering a Context. Rejects talId 0x1F (reserved broadcast, B1) and
// talId collisions. Admission control caps the requested CRA against the
// category's capacity remaining after every already-admitted terminal's
// CraAllocated, so Σ CraAllocated never exceeds categoryCapacity and pass
// 1 of ComputeTTP (which grants CraRequested unconditionally) cannot
// violate I1.
func (c *Controller) OnLogon(req wire.LogonRequest, categoryLabel string, rbdcTimeoutFrames int) (wire.LogonResponse, error) {
	tal := TalId(req.Mac)
	if tal == BroadcastTalId {
		return wire.LogonResponse{}, errkind.New(errkind.StateViolation, "logon rejected: reserved broadcast talId")
	}
	if _, exists := c.contexts[tal]; exists {
		return wire.LogonResponse{}, errkind.New(errkind.StateViolation, "logon rejected: talId collision")
	}
	spec, ok := c.categories[categoryLabel]
	if !ok {
		return wire.LogonResponse{}, errkind.New(errkind.ConfigInvalid, "logon references unknown category "+categoryLabel)
	}
	var admittedCra float64
	for _, ctx := range c.contexts {
		if ctx.CurrentCategoryLabel == categoryLabel {
			admittedCra += ctx.CraAllocated
		}
	}
	remaining := spec.CapacityKbps - admittedCra
	if remaining < 0 {
		remaining = 0
	}
	cra := float64(req.CraKbps)
	if cra > remaining {
		cra = remaining
	}
	ctx := NewContext(tal, categoryLabel, cra, float64(req.MaxRbdcKbps), float64(req.MaxVbdcKb), rbdcTimeoutFrames)
	c.contexts[tal] = ctx

	c.nextLogon++
	groupId := c.nextLogon
	return wire.LogonResponse{LogonId: uint16(tal), GroupId: groupId}, nil
}

// OnSac updates a terminal's context from a received SAC. SACs for unknown
// talIds are discarded with a StateViolation error for the caller to log at
// WARNING and drop, per §4.2/§7.
func (c *Controller) OnSac(sac wire.SAC) error {
	ctx, ok := c.contexts[TalId(sac.TalId)]
	if !ok {
		return errkind.New(errkind.StateViolation, "SAC for unknown talId")
	}
	ctx.OnSac(float64(sac.RbdcKbps), float64(sac.VbdcKb))
	if id, ok := c.Table.BestForCN(sac.CnDB); ok {
		ctx.RequiredFmt = id
	}
	c.touched[ctx.TalId] = true
	return nil
}

// OnFrameTick advances every context's RBDC timer by one frame (I7),
// except contexts that received a SAC this frame (already reset by OnSac).
func (c *Controller) OnFrameTick() {
	for tal, ctx := range c.contexts {
		if c.touched[tal] {
			continue
		}
		ctx.TickTimer()
	}
	c.touched = make(map[TalId]bool)
}

// Context returns the registered Context for tal, or nil.
func (c *Controller) Context(tal TalId) *Context {
	return c.contexts[tal]
}

// ComputeTTP runs the priority-ordered CRA->RBDC->VBDC->FCA allocation
// passes over every context currently affected to categoryLabel and
// produces one Assignment per active terminal (§4.2).
func (c *Controller) ComputeTTP(categoryLabel string, sfn uint16) (wire.TTP, error) {
	spec, ok := c.categories[categoryLabel]
	if !ok {
		return wire.TTP{}, errkind.New(errkind.ConfigInvalid, "unknown category "+categoryLabel)
	}

	var ctxs []*Context
	for _, ctx := range c.contexts {
		if ctx.CurrentCategoryLabel == categoryLabel {
			ctxs = append(ctxs, ctx)
		}
	}

	// Pass 1: CRA, deterministic.
	remainingRate := spec.CapacityKbps
	for _, ctx := range ctxs {
		ctx.CraAllocated = ctx.CraRequested
		remainingRate -= ctx.CraAllocated
	}
	if remainingRate < 0 {
		remainingRate = 0
	}

	// Pass 2: RBDC, sorted by descending credit, talId ascending tie-break.
	sort.Slice(ctxs, func(i, j int) bool {
		if ctxs[i].RbdcCredit != ctxs[j].RbdcCredit {
			return ctxs[i].RbdcCredit > ctxs[j].RbdcCredit
		}
		return ctxs[i].TalId < ctxs[j].TalId
	})
	for _, ctx := range ctxs {
		g := ctx.RbdcRequest
		if g > remainingRate {
			g = remainingRate
		}
		ctx.RbdcAllocated = g
		ctx.RbdcCredit += ctx.RbdcRequest - g
		remainingRate -= g
	}

	// Pass 3: VBDC, sorted by descending outstanding volume request.
	sort.Slice(ctxs, func(i, j int) bool {
		if ctxs[i].VbdcRequest != ctxs[j].VbdcRequest {
			return ctxs[i].VbdcRequest > ctxs[j].VbdcRequest
		}
		return ctxs[i].TalId < ctxs[j].TalId
	})
	remainingVolume := remainingRate * c.FrameDurationSec
	for _, ctx := range ctxs {
		g := ctx.VbdcRequest
		if g > remainingVolume {
			g = remainingVolume
		}
		ctx.VbdcAllocated = g
		ctx.VbdcRequest -= g
		remainingVolume -= g
	}
	remainingRate = remainingVolume / c.FrameDurationSec

	// Pass 4: FCA, optional, split equally among contexts that still have
	// an outstanding RBDC request.
	if spec.FcaEnabled {
		var wanting []*Context
		for _, ctx := range ctxs {
			if ctx.RbdcRequest > 0 {
				wanting = append(wanting, ctx)
			}
		}
		if len(wanting) > 0 && remainingRate > 0 {
			share := remainingRate / float64(len(wanting))
			for _, ctx := range wanting {
				ctx.FcaAllocated = share
			}
		}
	}

	ttp := wire.TTP{SuperFrameNumber: sfn}
	for _, ctx := range ctxs {
		ttp.Assignments = append(ttp.Assignments, wire.Assignment{
			TalId:    uint16(ctx.TalId),
			Access:   wire.AccessDAMA,
			RateKbps: uint16(ctx.CraAllocated + ctx.RbdcAllocated + ctx.FcaAllocated),
			VolumeKb: uint16(ctx.VbdcAllocated),
		})
	}
	return ttp, nil
}
