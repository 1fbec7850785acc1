package fmtdef

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/heistp/opensand-return-mac/errkind"
)

// Group is a set of MODCOD ids parsed from a textual spec of the grammar
//
//	range := N | N-M
//	group := range(';' range)*
//
// Ids are stored ordered by ascending RequiredEsN0 (most robust first).
type Group struct {
	ids   []Id // ascending RequiredEsN0
	table *Table
}

// ParseGroup parses spec against table, validating that every id exists in
// table. Ids are stored ordered by ascending required Es/N0.
func ParseGroup(spec string, table *Table) (*Group, error) {
	var ids []Id
	seen := make(map[Id]bool)
	for _, rng := range strings.Split(spec, ";") {
		rng = strings.TrimSpace(rng)
		if rng == "" {
			continue
		}
		lo, hi, err := parseRange(rng)
		if err != nil {
			return nil, errkind.Wrap(errkind.ConfigInvalid, "invalid FMT group range "+rng, err)
		}
		for v := lo; v <= hi; v++ {
			id := Id(v)
			if _, ok := table.Get(id); !ok {
				return nil, errkind.New(errkind.ConfigInvalid,
					fmt.Sprintf("FMT group references unknown MODCOD id %d", id))
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, errkind.New(errkind.ConfigInvalid, "FMT group spec is empty: "+spec)
	}
	g := &Group{ids: ids, table: table}
	g.sortByEsN0()
	return g, nil
}

func parseRange(rng string) (lo, hi int, err error) {
	parts := strings.SplitN(rng, "-", 2)
	lo, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return
	}
	if len(parts) == 1 {
		hi = lo
		return
	}
	hi, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return
}

func (g *Group) sortByEsN0() {
	for i := 1; i < len(g.ids); i++ {
		for j := i; j > 0 && g.table.RequiredEsN0(g.ids[j-1]) > g.table.RequiredEsN0(g.ids[j]); j-- {
			g.ids[j-1], g.ids[j] = g.ids[j], g.ids[j-1]
		}
	}
}

// Ids returns the group's ids ordered by ascending required Es/N0.
func (g *Group) Ids() []Id {
	return append([]Id(nil), g.ids...)
}

// Format renders the group back to the textual grammar, collapsing
// contiguous numeric ids into N-M ranges. Ids are emitted in ascending
// numeric order so that parsing the result again yields the same ordered
// id set per Group's ordering rule (R3).
func (g *Group) Format() string {
	sorted := append([]Id(nil), g.ids...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	var b strings.Builder
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		if j == i {
			fmt.Fprintf(&b, "%d", sorted[i])
		} else {
			fmt.Fprintf(&b, "%d-%d", sorted[i], sorted[j])
		}
		i = j + 1
	}
	return b.String()
}

// GetNearest returns the largest id in the group whose required Es/N0 is <=
// that of id, falling back to the most robust (lowest Es/N0) id in the group
// if none qualifies.
func (g *Group) GetNearest(id Id) Id {
	esn0 := g.table.RequiredEsN0(id)
	// g.ids is ascending RequiredEsN0 (most robust first); walk from the
	// end (least robust) to find the largest qualifying id.
	for i := len(g.ids) - 1; i >= 0; i-- {
		if g.table.RequiredEsN0(g.ids[i]) <= esn0 {
			return g.ids[i]
		}
	}
	return g.ids[0]
}
