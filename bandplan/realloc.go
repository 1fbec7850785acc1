package bandplan

import (
	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/unitconv"
)

// categoryMaxFmt returns the globally least robust (highest required Es/N0)
// MODCOD id across every carrier group of cat.
func categoryMaxFmt(cat *Category, table *fmtdef.Table) (fmtdef.Id, bool) {
	var best fmtdef.Id
	var bestEsN0 float64
	found := false
	for _, g := range cat.Groups {
		id, ok := g.MaxFmt(table)
		if !ok {
			continue
		}
		e := table.RequiredEsN0(id)
		if !found || e > bestEsN0 {
			best, bestEsN0, found = id, e, true
		}
	}
	return best, found
}

// deltaSymbols converts rateKbps to a symbol-rate delta using cat's
// ceiling MODCOD's spectral efficiency.
func deltaSymbols(cat *Category, rateKbps float64, table *fmtdef.Table) (float64, error) {
	id, ok := categoryMaxFmt(cat, table)
	if !ok {
		return 0, errkind.New(errkind.ConfigInvalid, "category has no MODCOD-qualified carrier group")
	}
	def, _ := table.Get(id)
	return unitconv.KbpsToSymps(rateKbps, def.SpectralEfficiency), nil
}

// moveCarrier transfers one whole carrier of the given symbol rate from
// src to dst's accounting. Carriers are fungible counts keyed by symbol
// rate; individual CarrierGroup objects are not split.
func moveCarrier(src, dst *Category, rate float64) {
	src.SymbolRateToCarrierCount[rate]--
	if src.SymbolRateToCarrierCount[rate] == 0 {
		delete(src.SymbolRateToCarrierCount, rate)
	}
	dst.SymbolRateToCarrierCount[rate]++
}

// AllocateBand moves whole carriers from the reservoir category ("SNO")
// into the named category until its capacity has grown by at least
// newRateKbps, per §4.1's reallocation algorithm. Carriers are not
// subdivided: if the exact remainder cannot be met by a smaller reservoir
// carrier, the smallest reservoir carrier larger than the remainder is
// taken instead, rounding the allocation up to the next whole carrier.
// Fails with ResourceExhausted (InsufficientBand) if the reservoir cannot
// cover the request.
func (p *Plan) AllocateBand(label string, newRateKbps float64, table *fmtdef.Table) error {
	target, ok := p.Categories[label]
	if !ok {
		return errkind.New(errkind.ConfigInvalid, "unknown category "+label)
	}
	reservoir, ok := p.Categories[ReservoirLabel]
	if !ok {
		return errkind.New(errkind.ResourceExhausted, "no reservoir category available")
	}
	remaining, err := deltaSymbols(target, newRateKbps, table)
	if err != nil {
		return err
	}

	rates := sortedSymbolRates(reservoir)
	for _, r := range rates {
		for remaining > 0 && reservoir.SymbolRateToCarrierCount[r] > 0 && r <= remaining {
			moveCarrier(reservoir, target, r)
			remaining -= r
		}
	}
	if remaining <= 0 {
		return nil
	}
	// No exact/greedy match left; take the smallest carrier still larger
	// than the remainder, rounding the allocation up.
	rates = sortedSymbolRates(reservoir)
	for i := len(rates) - 1; i >= 0; i-- {
		r := rates[i]
		if reservoir.SymbolRateToCarrierCount[r] > 0 {
			moveCarrier(reservoir, target, r)
			return nil
		}
	}
	return errkind.New(errkind.ResourceExhausted, "InsufficientBand: reservoir exhausted")
}

// ReleaseBand moves whole carriers from the named category back into the
// reservoir category until the category's capacity has shrunk by at least
// newRateKbps. Fails with ResourceExhausted if the category does not hold
// enough carriers to release.
func (p *Plan) ReleaseBand(label string, newRateKbps float64, table *fmtdef.Table) error {
	target, ok := p.Categories[label]
	if !ok {
		return errkind.New(errkind.ConfigInvalid, "unknown category "+label)
	}
	reservoir, ok := p.Categories[ReservoirLabel]
	if !ok {
		reservoir = newCategory(ReservoirLabel, AccessOther)
		p.Categories[ReservoirLabel] = reservoir
		p.order = append(p.order, ReservoirLabel)
	}
	remaining, err := deltaSymbols(target, newRateKbps, table)
	if err != nil {
		return err
	}

	rates := sortedSymbolRates(target)
	for _, r := range rates {
		for remaining > 0 && target.SymbolRateToCarrierCount[r] > 0 && r <= remaining {
			moveCarrier(target, reservoir, r)
			remaining -= r
		}
	}
	if remaining <= 0 {
		return nil
	}
	rates = sortedSymbolRates(target)
	for i := len(rates) - 1; i >= 0; i-- {
		r := rates[i]
		if target.SymbolRateToCarrierCount[r] > 0 {
			moveCarrier(target, reservoir, r)
			return nil
		}
	}
	return errkind.New(errkind.ResourceExhausted, "cannot release: category has no more carriers")
}
