package fmtdef

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testTable() *Table {
	return NewTable([]Definition{
		{Id: 1, Modulation: ModulationBPSK, CodingRate: "1/3", SpectralEfficiency: 0.5, RequiredEsN0: -2.0},
		{Id: 2, Modulation: ModulationQPSK, CodingRate: "1/2", SpectralEfficiency: 1.0, RequiredEsN0: 1.0},
		{Id: 3, Modulation: ModulationQPSK, CodingRate: "3/4", SpectralEfficiency: 1.5, RequiredEsN0: 3.1},
		{Id: 4, Modulation: Modulation8PSK, CodingRate: "2/3", SpectralEfficiency: 2.0, RequiredEsN0: 6.2},
		{Id: 5, Modulation: Modulation16APSK, CodingRate: "3/4", SpectralEfficiency: 3.0, RequiredEsN0: 9.0},
	})
}

func TestGetMaxId(t *testing.T) {
	tbl := testTable()
	id, ok := tbl.GetMaxId()
	require.True(t, ok)
	require.Equal(t, Id(5), id)
}

func TestParseModulationFallback(t *testing.T) {
	require.Equal(t, ModulationUnknown, ParseModulation("bogus"))
	require.Equal(t, ModulationBPSK, ParseModulation("BPSK"))
}

func TestKbitsToSymRoundTrip(t *testing.T) {
	tbl := testTable()
	sym, err := tbl.KbitsToSym(3, 150)
	require.NoError(t, err)
	require.InDelta(t, 100000, sym, 1e-9) // 150kb * 1000 / 1.5 eff = 100000 sym
	back, err := tbl.SymToKbits(3, sym)
	require.NoError(t, err)
	require.InDelta(t, 150, back, 1e-9)
}

func TestParseGroupRejectsUnknownId(t *testing.T) {
	tbl := testTable()
	_, err := ParseGroup("1;99", tbl)
	require.Error(t, err)
}

func TestParseGroupOrdersByEsN0(t *testing.T) {
	tbl := testTable()
	g, err := ParseGroup("4;1;3", tbl)
	require.NoError(t, err)
	require.Equal(t, []Id{1, 3, 4}, g.Ids())
}

// R3: parsing a group spec then formatting it back yields the same ordered
// id set.
func TestGroupFormatRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tbl := testTable()
		perm := rapid.Permutation([]int{1, 2, 3, 4, 5}).Draw(rt, "perm")
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		var parts []string
		for _, v := range perm[:n] {
			parts = append(parts, itoa(v))
		}
		spec := join(parts, ";")
		g, err := ParseGroup(spec, tbl)
		if err != nil {
			return
		}
		before := g.Ids()
		g2, err := ParseGroup(g.Format(), tbl)
		require.NoError(rt, err)
		require.Equal(rt, before, g2.Ids())
	})
}

// I4: GetNearest(x) returns y with RequiredEsN0(y) <= RequiredEsN0(x), or the
// most robust id if no such y exists.
func TestGetNearestInvariant(t *testing.T) {
	tbl := testTable()
	g, err := ParseGroup("2;4;5", tbl)
	require.NoError(t, err)
	for _, x := range []Id{1, 2, 3, 4, 5} {
		y := g.GetNearest(x)
		esY := tbl.RequiredEsN0(y)
		esX := tbl.RequiredEsN0(x)
		if esY > esX {
			// must be the most robust available in the group
			require.Equal(t, g.Ids()[0], y)
		}
	}
}

func itoa(v int) string {
	return string(rune('0' + v))
}

func join(parts []string, sep string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += sep
		}
		s += p
	}
	return s
}
