// Package fmtdef models the Forward MODCOD Table: MODCOD ids and their
// (modulation, coding rate, spectral efficiency, required Es/N0) definitions,
// plus the textual FMT group grammar used to qualify carrier groups.
package fmtdef

import (
	"sort"

	"github.com/heistp/opensand-return-mac/errkind"
)

// Id is a MODCOD identifier.
type Id uint8

// Modulation is the modulation scheme of a MODCOD definition.
type Modulation int

const (
	ModulationUnknown Modulation = iota
	ModulationBPSK
	ModulationPi2BPSK
	ModulationQPSK
	Modulation8PSK
	Modulation16APSK
	Modulation32APSK
)

// ParseModulation converts the textual modulation name used in config files
// to a Modulation, falling back to ModulationUnknown for anything else
// (mirrors the original FmtDefinition constructor's fallback behaviour).
func ParseModulation(s string) Modulation {
	switch s {
	case "BPSK":
		return ModulationBPSK
	case "Pi/2BPSK":
		return ModulationPi2BPSK
	case "QPSK":
		return ModulationQPSK
	case "8PSK":
		return Modulation8PSK
	case "16APSK":
		return Modulation16APSK
	case "32APSK":
		return Modulation32APSK
	default:
		return ModulationUnknown
	}
}

// Definition is a single MODCOD id's performance parameters.
type Definition struct {
	Id                 Id
	Modulation         Modulation
	CodingRate         string
	SpectralEfficiency float64 // bit/symbol
	RequiredEsN0       float64 // dB
	BurstLenSym        int     // DVB-RCS2 burst length in symbols, 0 if unused
}

// Table maps MODCOD id to Definition, kept sorted by ascending RequiredEsN0.
type Table struct {
	byId   map[Id]Definition
	sorted []Definition // ascending RequiredEsN0
}

// NewTable returns a Table built from the given Definitions.
func NewTable(defs []Definition) *Table {
	t := &Table{
		byId:   make(map[Id]Definition, len(defs)),
		sorted: append([]Definition(nil), defs...),
	}
	for _, d := range defs {
		t.byId[d.Id] = d
	}
	sort.Slice(t.sorted, func(i, j int) bool {
		return t.sorted[i].RequiredEsN0 < t.sorted[j].RequiredEsN0
	})
	return t
}

// Get returns the Definition for id, and whether it was found.
func (t *Table) Get(id Id) (Definition, bool) {
	d, ok := t.byId[id]
	return d, ok
}

// RequiredEsN0 returns the required Es/N0 for id, or 0 if unknown.
func (t *Table) RequiredEsN0(id Id) float64 {
	d, ok := t.byId[id]
	if !ok {
		return 0
	}
	return d.RequiredEsN0
}

// GetMaxId returns the least robust (highest RequiredEsN0) MODCOD id in the
// table.
func (t *Table) GetMaxId() (Id, bool) {
	if len(t.sorted) == 0 {
		return 0, false
	}
	return t.sorted[len(t.sorted)-1].Id, true
}

// BestForCN returns the least robust (highest spectral efficiency) MODCOD
// id whose required Es/N0 does not exceed cn, the ACM selection used by the
// DAMA controller's required-MODCOD refresh. Falls back to the most robust
// id in the table if none qualify.
func (t *Table) BestForCN(cn float64) (Id, bool) {
	if len(t.sorted) == 0 {
		return 0, false
	}
	best := t.sorted[0]
	for _, d := range t.sorted {
		if d.RequiredEsN0 <= cn {
			best = d
		}
	}
	return best.Id, true
}

// KbitsToSym converts a kilobit volume to symbols using id's spectral
// efficiency: sym = vol_kb * 1000 / efficiency.
func (t *Table) KbitsToSym(id Id, volKb float64) (float64, error) {
	d, ok := t.byId[id]
	if !ok || d.SpectralEfficiency <= 0 {
		return 0, errkind.New(errkind.ConfigInvalid, "unknown MODCOD id for kbitsToSym")
	}
	return volKb * 1000 / d.SpectralEfficiency, nil
}

// SymToKbits converts a symbol volume to kilobits using id's spectral
// efficiency: vol_kb = sym * efficiency / 1000.
func (t *Table) SymToKbits(id Id, volSym float64) (float64, error) {
	d, ok := t.byId[id]
	if !ok {
		return 0, errkind.New(errkind.ConfigInvalid, "unknown MODCOD id for symToKbits")
	}
	return volSym * d.SpectralEfficiency / 1000, nil
}
