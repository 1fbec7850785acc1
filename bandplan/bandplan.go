// Package bandplan splits a spot's bandplan into terminal categories and
// carrier groups under a weighted ratio policy (§4.1), and supports dynamic
// carrier reallocation between categories via a reservoir category.
package bandplan

import (
	"math"
	"sort"

	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
)

// AccessType identifies the MAC access scheme a carrier group serves.
type AccessType int

const (
	AccessDAMA AccessType = iota
	AccessTDM
	AccessALOHA
	AccessSCPC
	AccessOther
)

// ReservoirLabel is the reservoir category AllocateBand/ReleaseBand move
// carriers to and from.
const ReservoirLabel = "SNO"

// FormatRatio is one format/ratio entry on a declared carrier line.
type FormatRatio struct {
	FmtGroupSpec string
	Ratio        int
	SymbolRate   float64 // sym/s
}

// CarrierLine is one declared physical carrier in the topology.
type CarrierLine struct {
	CategoryLabel string
	Access        AccessType
	FormatRatios  []FormatRatio
}

// CarrierGroup is (carriersId, fmtGroup, ratio, symbolRate, access,
// carriersNumber, capacity) as defined in §3.
type CarrierGroup struct {
	CarriersId     int
	FmtGroup       *fmtdef.Group
	Ratio          int
	SymbolRate     float64 // sym/s
	Access         AccessType
	CarriersNumber int
	CapacitySym    float64 // sym/SF
}

// IsVCM reports whether the group is Variable Coding and Modulation capable
// (multiple MODCOD ratios on one carrier), permitted only for DAMA/TDM.
func (g *CarrierGroup) IsVCM() bool {
	return g.Access == AccessDAMA || g.Access == AccessTDM
}

// MaxFmt returns the group's least robust (highest required Es/N0) MODCOD
// id, the ceiling MODCOD the ACM loop may assign on this carrier.
func (g *CarrierGroup) MaxFmt(table *fmtdef.Table) (fmtdef.Id, bool) {
	ids := g.FmtGroup.Ids()
	if len(ids) == 0 {
		return 0, false
	}
	best := ids[0]
	bestEsN0 := table.RequiredEsN0(best)
	for _, id := range ids[1:] {
		if e := table.RequiredEsN0(id); e > bestEsN0 {
			best, bestEsN0 = id, e
		}
	}
	return best, true
}

// NearestFmt returns the group's GetNearest applied to id, i.e. the largest
// group id whose required Es/N0 does not exceed id's.
func (g *CarrierGroup) NearestFmt(id fmtdef.Id) fmtdef.Id {
	return g.FmtGroup.GetNearest(id)
}

// Category is a named bucket of carrier groups sharing an intended access
// type, plus the terminals affected to it.
type Category struct {
	Label     string
	Access    AccessType
	Groups    []*CarrierGroup
	Terminals []int // TalId, references only
	// SymbolRateToCarrierCount maps a carrier's symbol rate to how many
	// whole carriers of that rate the category currently holds; used by
	// the reservoir walk in AllocateBand/ReleaseBand.
	SymbolRateToCarrierCount map[float64]int
}

func newCategory(label string, access AccessType) *Category {
	return &Category{Label: label, Access: access, SymbolRateToCarrierCount: make(map[float64]int)}
}

// WeightedSum returns the category's weighted sum of ratio*symbolRate (in
// kHz units, i.e. divided by 1000), used both as a band-planning invariant
// precondition and as the planner's global weight contribution.
func (c *Category) WeightedSum() float64 {
	var w float64
	for _, g := range c.Groups {
		w += float64(g.Ratio) * g.SymbolRate / 1000
	}
	return w
}

// Plan is the result of computing a spot's bandplan: one set of Categories
// per declared label.
type Plan struct {
	Categories      map[string]*Category
	DefaultCategory string
	order           []string
}

// Bandplan is the spot-level configuration input to Compute.
type Bandplan struct {
	BandwidthKHz       float64
	RollOff            float64
	SuperframeDuration float64 // seconds
	Carriers           []CarrierLine
	// TerminalAffectation maps talId to an explicit category label;
	// terminals absent from the map fall back to DefaultCategory.
	TerminalAffectation map[int]string
	DefaultCategory     string
}

// Compute runs the band-planning algorithm of §4.1 steps 1-6, returning a
// single Plan holding one Category per label declared by the carrier lines.
func Compute(bp Bandplan, table *fmtdef.Table) (*Plan, error) {
	plan := &Plan{Categories: make(map[string]*Category), DefaultCategory: bp.DefaultCategory}

	// Step 1: build categories and carrier groups from the declared lines.
	for _, line := range bp.Carriers {
		cat, ok := plan.Categories[line.CategoryLabel]
		if !ok {
			cat = newCategory(line.CategoryLabel, line.Access)
			plan.Categories[line.CategoryLabel] = cat
			plan.order = append(plan.order, line.CategoryLabel)
		}
		isVCM := line.Access == AccessDAMA || line.Access == AccessTDM
		if len(line.FormatRatios) > 1 {
			if line.Access == AccessALOHA {
				return nil, errkind.New(errkind.ConfigInvalid,
					"ALOHA carrier line cannot declare multiple format ratios")
			}
			if !isVCM {
				return nil, errkind.New(errkind.ConfigInvalid,
					"non-VCM carrier line ("+accessName(line.Access)+") cannot declare multiple format ratios")
			}
		}
		for _, fr := range line.FormatRatios {
			g, err := fmtdef.ParseGroup(fr.FmtGroupSpec, table)
			if err != nil {
				return nil, err
			}
			cat.Groups = append(cat.Groups, &CarrierGroup{
				CarriersId: len(cat.Groups),
				FmtGroup:   g,
				Ratio:      fr.Ratio,
				SymbolRate: fr.SymbolRate,
				Access:     line.Access,
			})
		}
	}

	// Step 2: weighted sum across every category's carrier groups.
	var w float64
	for _, cat := range plan.Categories {
		w += cat.WeightedSum()
	}
	if w <= 0 {
		return nil, errkind.New(errkind.ConfigInvalid, "bandplan weighted sum is not positive")
	}

	// Steps 3-4: per-group carrier count and capacity.
	for _, cat := range plan.Categories {
		for _, g := range cat.Groups {
			n := int(math.Round(float64(g.Ratio) / w * bp.BandwidthKHz / (1 + bp.RollOff)))
			if n < 1 {
				n = 1
			}
			g.CarriersNumber = n
			g.CapacitySym = g.SymbolRate * bp.SuperframeDuration
			cat.SymbolRateToCarrierCount[g.SymbolRate] += n
		}
	}

	// Step 5: drop categories with zero carriers of the desired access type.
	for label, cat := range plan.Categories {
		total := 0
		for _, g := range cat.Groups {
			if g.Access == cat.Access {
				total += g.CarriersNumber
			}
		}
		if total == 0 {
			delete(plan.Categories, label)
			plan.order = removeLabel(plan.order, label)
		}
	}

	// Step 6: per-terminal affectation from explicit config entries.
	// Terminals absent from TerminalAffectation are not known to Compute
	// ahead of time (the population is discovered via logon); they fall
	// back to plan.DefaultCategory when looked up, see Plan.CategoryFor.
	for tal, label := range bp.TerminalAffectation {
		if cat, ok := plan.Categories[label]; ok {
			cat.Terminals = append(cat.Terminals, tal)
		}
	}

	return plan, nil
}

// CategoryFor returns the category explicitly affected to tal, or the
// default category if none, or nil if neither exists.
func (p *Plan) CategoryFor(tal int) *Category {
	for _, cat := range p.Categories {
		for _, t := range cat.Terminals {
			if t == tal {
				return cat
			}
		}
	}
	if p.DefaultCategory != "" {
		return p.Categories[p.DefaultCategory]
	}
	return nil
}

// ParseAccessType converts the textual access name used in config files to
// an AccessType, falling back to AccessOther for anything unrecognized.
func ParseAccessType(s string) AccessType {
	switch s {
	case "DAMA":
		return AccessDAMA
	case "TDM":
		return AccessTDM
	case "ALOHA":
		return AccessALOHA
	case "SCPC":
		return AccessSCPC
	default:
		return AccessOther
	}
}

func accessName(a AccessType) string {
	switch a {
	case AccessDAMA:
		return "DAMA"
	case AccessTDM:
		return "TDM"
	case AccessALOHA:
		return "ALOHA"
	case AccessSCPC:
		return "SCPC"
	default:
		return "other"
	}
}

func removeLabel(order []string, label string) []string {
	out := order[:0]
	for _, l := range order {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}

// sortedSymbolRates returns a category's distinct carrier symbol rates
// sorted descending, for the reservoir greedy walk.
func sortedSymbolRates(cat *Category) []float64 {
	rates := make([]float64, 0, len(cat.SymbolRateToCarrierCount))
	for r := range cat.SymbolRateToCarrierCount {
		rates = append(rates, r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rates)))
	return rates
}
