package scpc

import (
	"testing"

	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/macfifo"
	"github.com/stretchr/testify/require"
)

func testTable() *fmtdef.Table {
	return fmtdef.NewTable([]fmtdef.Definition{
		{Id: 1, Modulation: fmtdef.ModulationQPSK, SpectralEfficiency: 2.0, RequiredEsN0: 1.0},
	})
}

func TestDrainRespectsFixedCarrierBudget(t *testing.T) {
	table := testTable()
	s := NewScheduler(table)
	fifos := macfifo.NewSet()
	f := fifos.Add(0, 10)
	require.NoError(t, f.Push(macfifo.Element{Payload: make([]byte, 100)}))
	require.NoError(t, f.Push(macfifo.Element{Payload: make([]byte, 100)}))

	s.Register(Context{TalId: 1, CarrierId: 2, Fmt: 1, CarrierRateSymSec: 1000}, fifos)

	// budgetSym = 1000*1 = 1000 sym; budgetKb = 1000*2/1000 = 2 kb = 250 B.
	out, err := s.Drain(1, 1.0)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestDrainUnknownTerminal(t *testing.T) {
	s := NewScheduler(testTable())
	_, err := s.Drain(99, 1.0)
	require.Error(t, err)
}

func TestTickBudgetSym(t *testing.T) {
	s := NewScheduler(testTable())
	s.Register(Context{TalId: 1, Fmt: 1, CarrierRateSymSec: 500}, macfifo.NewSet())
	b, err := s.TickBudgetSym(1, 2.0)
	require.NoError(t, err)
	require.Equal(t, 1000.0, b)
}
