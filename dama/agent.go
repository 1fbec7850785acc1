package dama

import (
	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/macfifo"
	"github.com/heistp/opensand-return-mac/wire"
)

// State is the ST-side logon state machine's current state (§4.3).
type State int

const (
	StateInit State = iota
	StateWaitLogonResp
	StateRunning
)

// DefaultLogonTimeoutSec is the default logon retransmit timer, in seconds
// (the engine package owns wall-clock conversion).
const DefaultLogonTimeoutSec = 5.0

// Agent is the ST-side DAMA agent: it builds the logon request, tracks the
// logon state machine, records the allocation of the last applied TTP in
// Ctx, and computes the return scheduler's per-frame budget.
type Agent struct {
	TalId TalId
	State State

	GroupId int
	Ctx     *Context

	// RbdcFifo and VbdcFifo are the FIFOs tagged DAMA_RBDC/DAMA_VBDC
	// respectively; BuildSAC reads VbdcFifo's backlog.
	RbdcFifo *macfifo.Fifo
	VbdcFifo *macfifo.Fifo

	table *fmtdef.Table

	// pending RBDC desired rate, refreshed by the caller from recent FIFO
	// drain-rate measurements before BuildSAC is called.
	rbdcDesiredKbps float64
	forwardCN       float64
}

// NewAgent returns an Agent for talId, not yet logged on.
func NewAgent(tal TalId, table *fmtdef.Table, rbdcFifo, vbdcFifo *macfifo.Fifo) *Agent {
	return &Agent{TalId: tal, State: StateInit, table: table, RbdcFifo: rbdcFifo, VbdcFifo: vbdcFifo}
}

// Start transitions from INIT to WAIT_LOGON_RESP and returns the logon
// request to send.
func (a *Agent) Start(craKbps, maxRbdcKbps, maxVbdcKb uint16, isSCPC bool) wire.LogonRequest {
	a.State = StateWaitLogonResp
	return wire.LogonRequest{
		Mac:         uint16(a.TalId),
		CraKbps:     craKbps,
		MaxRbdcKbps: maxRbdcKbps,
		MaxVbdcKb:   maxVbdcKb,
		IsSCPC:      isSCPC,
	}
}

// LogonTimerExpired resends the logon request while WAIT_LOGON_RESP; it is
// a no-op once RUNNING (the timer is not rearmed at that point, §5).
func (a *Agent) LogonTimerExpired(craKbps, maxRbdcKbps, maxVbdcKb uint16, isSCPC bool) (wire.LogonRequest, bool) {
	if a.State != StateWaitLogonResp {
		return wire.LogonRequest{}, false
	}
	return a.Start(craKbps, maxRbdcKbps, maxVbdcKb, isSCPC), true
}

// OnLogonResponse transitions to RUNNING and records the assigned group id.
func (a *Agent) OnLogonResponse(resp wire.LogonResponse, craKbps, maxRbdcKbps, maxVbdcKb float64, rbdcTimeoutFrames int) {
	a.State = StateRunning
	a.GroupId = int(resp.GroupId)
	a.Ctx = NewContext(a.TalId, "", craKbps, maxRbdcKbps, maxVbdcKb, rbdcTimeoutFrames)
}

// SetRbdcDesired records the FIFO-observed desired RBDC rate (kb/s) to
// report in the next SAC, clamped to [0, maxRbdc].
func (a *Agent) SetRbdcDesired(kbps float64) {
	if a.Ctx == nil {
		return
	}
	if kbps < 0 {
		kbps = 0
	}
	if kbps > a.Ctx.MaxRbdc {
		kbps = a.Ctx.MaxRbdc
	}
	a.rbdcDesiredKbps = kbps
}

// SetForwardCN records the current input C/N for the forward link, attached
// to the next SAC's ACM field.
func (a *Agent) SetForwardCN(cn float64) {
	a.forwardCN = cn
}

// BuildSAC constructs the next SAC per §4.3: the RBDC field carries the
// desired rate last recorded by SetRbdcDesired (already clamped to
// [0, maxRbdc]) and the VBDC field carries the VBDC FIFO's current backlog
// in kb, clamped to maxVbdc.
func (a *Agent) BuildSAC() wire.SAC {
	vbdcKb := float64(a.VbdcFifo.Stats.CurrentLengthBytes) * 8 / 1000
	if vbdcKb > a.Ctx.MaxVbdc {
		vbdcKb = a.Ctx.MaxVbdc
	}
	return wire.SAC{
		TalId:    uint16(a.TalId),
		GroupId:  uint16(a.GroupId),
		RbdcKbps: uint16(a.rbdcDesiredKbps),
		VbdcKb:   uint16(vbdcKb),
		CnDB:     a.forwardCN,
	}
}

// ApplyTTP applies the assignment addressed to this terminal, or returns
// StateViolation if the TTP carries no entry for it.
func (a *Agent) ApplyTTP(ttp wire.TTP) error {
	for _, asg := range ttp.Assignments {
		if TalId(asg.TalId) != a.TalId {
			continue
		}
		a.Ctx.RbdcAllocated = float64(asg.RateKbps) - a.Ctx.CraAllocated - a.Ctx.FcaAllocated
		if a.Ctx.RbdcAllocated < 0 {
			a.Ctx.RbdcAllocated = 0
		}
		a.Ctx.VbdcAllocated = float64(asg.VolumeKb)
		return nil
	}
	return errkind.New(errkind.StateViolation, "TTP carries no assignment for this terminal")
}

// FrameBudgetSym computes the per-frame symbol budget available to the
// return scheduler: totalBudget = cra + rbdc + fca + vbdcThisFrame,
// converted to symbols using the terminal's current MODCOD (§4.3).
func (a *Agent) FrameBudgetSym(vbdcThisFrameKb float64) (float64, error) {
	kbps := a.Ctx.CraAllocated + a.Ctx.RbdcAllocated + a.Ctx.FcaAllocated
	sym, err := a.table.KbitsToSym(a.Ctx.CurrentFmt, kbps+vbdcThisFrameKb)
	if err != nil {
		return 0, err
	}
	return sym, nil
}
