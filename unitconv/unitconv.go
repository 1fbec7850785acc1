// Package unitconv holds symbol/bit/rate conversions parameterised by
// frame duration and MODCOD efficiency; the band planner's reallocation
// uses KbpsToSymps, while the DAMA passes and the SCPC scheduler convert
// through fmtdef.Table instead. It generalizes the original implementation's
// UnitConverter family (kbits<->symbols, bits<->kbits, rates<->pktpf).
package unitconv

// Converter holds the per-category constants needed to convert between
// symbols, bits, kilobits and rates over a fixed frame duration.
type Converter struct {
	FrameDurationMs float64
}

// NewConverter returns a Converter for the given frame duration.
func NewConverter(frameDurationMs float64) *Converter {
	return &Converter{FrameDurationMs: frameDurationMs}
}

// BitsToKbits converts bits to kilobits.
func BitsToKbits(bits float64) float64 { return bits / 1000 }

// KbitsToBits converts kilobits to bits.
func KbitsToBits(kbits float64) float64 { return kbits * 1000 }

// BpsToSymps converts a bit rate to a symbol rate given a spectral
// efficiency in bit/symbol.
func BpsToSymps(bps, efficiency float64) float64 {
	if efficiency <= 0 {
		return 0
	}
	return bps / efficiency
}

// SympsToBps converts a symbol rate to a bit rate given a spectral
// efficiency in bit/symbol.
func SympsToBps(symps, efficiency float64) float64 {
	return symps * efficiency
}

// KbpsToSymps converts a kb/s rate to sym/s given a spectral efficiency in
// bit/symbol.
func KbpsToSymps(kbps, efficiency float64) float64 {
	return BpsToSymps(kbps*1000, efficiency)
}

// SympsToKbps converts a sym/s rate to kb/s given a spectral efficiency in
// bit/symbol.
func SympsToKbps(symps, efficiency float64) float64 {
	return SympsToBps(symps, efficiency) / 1000
}

// BpsToKbps converts a bit rate to a kb/s rate.
func BpsToKbps(bps float64) float64 { return bps / 1000 }

// SymbolsPerSuperframe returns the number of symbols carried over one
// superframe at the given symbol rate: symbolRate * superframeDurationSec.
func (c *Converter) SymbolsPerSuperframe(symbolRateSymps float64) float64 {
	return symbolRateSymps * c.FrameDurationMs / 1000
}
