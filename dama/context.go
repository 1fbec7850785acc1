// Package dama implements the return-link DAMA control plane: the NCC-side
// Controller that aggregates capacity requests and computes TTPs, and the
// ST-side Agent that builds SAC requests, tracks RBDC credit/timeout, and
// applies TTP assignments to the return scheduler.
package dama

import "github.com/heistp/opensand-return-mac/fmtdef"

// TalId is a 5-bit terminal identifier (0..30); 31 is reserved broadcast.
type TalId uint16

// BroadcastTalId is the reserved broadcast terminal id.
const BroadcastTalId TalId = 0x1F

// Context is a terminal's DAMA allocation state, held by the Controller for
// every logged-on terminal.
type Context struct {
	TalId                TalId
	CurrentCategoryLabel string

	CraRequested float64 // kb/s
	CraAllocated float64 // kb/s

	MaxRbdc     float64 // kb/s
	RbdcTimeout int     // frames
	MaxVbdc     float64 // kb

	RbdcRequest   float64 // kb/s
	RbdcAllocated float64 // kb/s
	RbdcCredit    float64 // kb/s, fractional remainder carried between passes
	RbdcTimer     int     // frames remaining until the request expires

	VbdcRequest   float64 // kb
	VbdcAllocated float64 // kb

	FcaAllocated float64 // kb/s

	// DVB-RCS2 ACM state.
	CurrentFmt  fmtdef.Id
	RequiredFmt fmtdef.Id
	CarrierId   int
}

// NewContext returns a Context for talId freshly registered at logon, with
// CRA set per spec.md §4.2 onLogon.
func NewContext(talId TalId, categoryLabel string, craAllocated, maxRbdc, maxVbdc float64, rbdcTimeout int) *Context {
	return &Context{
		TalId:                talId,
		CurrentCategoryLabel: categoryLabel,
		CraRequested:         craAllocated,
		CraAllocated:         craAllocated,
		MaxRbdc:              maxRbdc,
		RbdcTimeout:          rbdcTimeout,
		MaxVbdc:              maxVbdc,
	}
}

// OnSac updates the context from a received SAC, per spec.md §4.2 onSac:
// rbdcRequest is clamped to maxRbdc, the timer is reset, rbdcCredit is
// zeroed, and vbdcRequest accumulates (clamped to maxVbdc).
func (c *Context) OnSac(rbdcKbps, vbdcKb float64) {
	c.RbdcRequest = min(rbdcKbps, c.MaxRbdc)
	c.RbdcTimer = c.RbdcTimeout
	c.RbdcCredit = 0
	c.VbdcRequest = min(c.VbdcRequest+vbdcKb, c.MaxVbdc)
}

// TickTimer advances the RBDC timer by one frame, per spec.md §4.2
// onFrameTick / I7: the timer decreases monotonically until it expires, at
// which point the outstanding request is zeroed. Called once per frame
// except on a frame where OnSac already reset it.
func (c *Context) TickTimer() {
	if c.RbdcTimer > 0 {
		c.RbdcTimer--
	}
	if c.RbdcTimer == 0 {
		c.RbdcRequest = 0
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
