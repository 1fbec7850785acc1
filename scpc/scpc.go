// Package scpc implements the SCPC (Single Channel Per Carrier) return
// scheduler: a constant-rate dequeue for terminals assigned a fixed carrier,
// bypassing DAMA entirely.
package scpc

import (
	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/macfifo"
)

// Context is a terminal's SCPC state: a fixed carrier assignment and a
// fixed MODCOD, with no dynamic allocation fields (§3).
type Context struct {
	TalId             uint16
	CarrierId         int
	Fmt               fmtdef.Id
	CarrierRateSymSec float64
}

// Scheduler drains one or more terminals' return FIFOs onto their assigned
// SCPC carrier every scpcCarrierDuration tick, at the carrier's constant
// symbol rate (§4.2/§5). Unlike DAMA there is no allocation pass: each
// terminal's byte budget for the tick is fixed by its carrier's rate.
type Scheduler struct {
	table    *fmtdef.Table
	contexts map[uint16]*Context
	fifos    map[uint16]*macfifo.Set
}

// NewScheduler returns an empty Scheduler.
func NewScheduler(table *fmtdef.Table) *Scheduler {
	return &Scheduler{
		table:    table,
		contexts: make(map[uint16]*Context),
		fifos:    make(map[uint16]*macfifo.Set),
	}
}

// Register assigns tal a fixed SCPC carrier and the priority FIFO set it
// will be drained from.
func (s *Scheduler) Register(ctx Context, fifos *macfifo.Set) {
	s.contexts[ctx.TalId] = &ctx
	s.fifos[ctx.TalId] = fifos
}

// TickBudgetSym returns the symbol budget available to tal for one
// scpcCarrierDuration tick: the carrier's constant symbol rate times the
// tick duration, independent of any other terminal's state.
func (s *Scheduler) TickBudgetSym(tal uint16, tickDurationSec float64) (float64, error) {
	ctx, ok := s.contexts[tal]
	if !ok {
		return 0, errkind.New(errkind.StateViolation, "unknown SCPC terminal")
	}
	return ctx.CarrierRateSymSec * tickDurationSec, nil
}

// Drain dequeues payload from tal's FIFO set up to its fixed per-tick byte
// budget and returns the drained elements in priority order.
func (s *Scheduler) Drain(tal uint16, tickDurationSec float64) ([]macfifo.Element, error) {
	ctx, ok := s.contexts[tal]
	if !ok {
		return nil, errkind.New(errkind.StateViolation, "unknown SCPC terminal")
	}
	fifos, ok := s.fifos[tal]
	if !ok {
		return nil, errkind.New(errkind.StateViolation, "unknown SCPC terminal")
	}
	budgetSym := ctx.CarrierRateSymSec * tickDurationSec
	budgetKb, err := s.table.SymToKbits(ctx.Fmt, budgetSym)
	if err != nil {
		return nil, err
	}
	budgetBytes := int(budgetKb * 1000 / 8)
	return fifos.DrainBudget(budgetBytes), nil
}
