// Package config loads the XML topology/infrastructure files and parses
// the entity CLI surface (§6): `--conf <topology.xml> --infrastructure
// <infra.xml> --entity <gw|st|sat>:<id> [--spot <id>]`.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/spf13/pflag"
)

// EntityKind is the role an entity binary runs as.
type EntityKind int

const (
	EntityGateway EntityKind = iota
	EntityTerminal
	EntitySatellite
)

// Entity identifies which role and instance this process runs, decoded
// from `--entity gw|st|sat:<id>`.
type Entity struct {
	Kind EntityKind
	Id   int
}

// Flags is the parsed CLI surface of an entity binary.
type Flags struct {
	ConfPath    string
	InfraPath   string
	Entity      Entity
	SpotId      int
	PushGateway string
}

// ParseFlags parses os.Args[1:] (or args, for tests) into Flags.
func ParseFlags(args []string) (Flags, error) {
	fs := pflag.NewFlagSet("opensand-entity", pflag.ContinueOnError)
	conf := fs.String("conf", "", "path to topology.xml")
	infra := fs.String("infrastructure", "", "path to infrastructure.xml")
	entity := fs.String("entity", "", "gw|st|sat:<id>")
	spot := fs.Int("spot", 0, "spot id")
	push := fs.String("push-gateway", "", "Prometheus pushgateway address")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if *conf == "" || *infra == "" || *entity == "" {
		return Flags{}, errkind.New(errkind.ConfigInvalid, "--conf, --infrastructure and --entity are required")
	}
	e, err := parseEntity(*entity)
	if err != nil {
		return Flags{}, err
	}
	return Flags{
		ConfPath:    *conf,
		InfraPath:   *infra,
		Entity:      e,
		SpotId:      *spot,
		PushGateway: *push,
	}, nil
}

func parseEntity(s string) (Entity, error) {
	kindStr, idStr, found := strings.Cut(s, ":")
	if !found {
		return Entity{}, errkind.New(errkind.ConfigInvalid, fmt.Sprintf("malformed --entity %q, want kind:id", s))
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return Entity{}, errkind.New(errkind.ConfigInvalid, fmt.Sprintf("malformed --entity id %q", idStr))
	}
	var kind EntityKind
	switch kindStr {
	case "gw":
		kind = EntityGateway
	case "st":
		kind = EntityTerminal
	case "sat":
		kind = EntitySatellite
	default:
		return Entity{}, errkind.New(errkind.ConfigInvalid, fmt.Sprintf("unknown entity kind %q", kindStr))
	}
	return Entity{Kind: kind, Id: id}, nil
}

// Topology is the decoded contents of topology.xml: the spots, their
// bandplans and FMT tables, and the per-terminal category affectation.
type Topology struct {
	XMLName xml.Name      `xml:"topology"`
	Spots   []SpotConfig  `xml:"spot"`
}

// SpotConfig is one beam's bandplan and FMT table declarations.
type SpotConfig struct {
	Id            int                `xml:"id,attr"`
	BandwidthKHz  float64            `xml:"bandwidth_khz"`
	RollOff       float64            `xml:"roll_off"`
	SuperframeDur float64            `xml:"superframe_duration_sec"`
	CarrierLines  []CarrierLineConfig `xml:"carrier_line"`
	FmtDefs       []FmtDefConfig     `xml:"fmt_table>definition"`
	Terminals     []TerminalConfig   `xml:"terminal"`
	DefaultCategory string           `xml:"default_category,attr"`
}

// CarrierLineConfig is one <carrier_line> element.
type CarrierLineConfig struct {
	Category   string  `xml:"category,attr"`
	Access     string  `xml:"access,attr"`
	SymbolRate float64 `xml:"symbol_rate"`
	FmtGroup   string  `xml:"fmt_group"`
	Ratio      float64 `xml:"ratio"`
}

// FmtDefConfig is one <definition> element in the FMT table.
type FmtDefConfig struct {
	Id                 uint8   `xml:"id,attr"`
	Modulation         string  `xml:"modulation"`
	CodingRate         string  `xml:"coding_rate"`
	SpectralEfficiency float64 `xml:"spectral_efficiency"`
	RequiredEsN0       float64 `xml:"required_esn0"`
	BurstLenSym        int     `xml:"burst_len_sym"`
}

// TerminalConfig is one terminal's static affectation.
type TerminalConfig struct {
	TalId    uint16 `xml:"tal_id,attr"`
	Category string `xml:"category,attr"`
}

// LoadTopology parses path as a Topology.
func LoadTopology(path string) (*Topology, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.ConfigInvalid, "reading topology", err)
	}
	var t Topology
	if err := xml.Unmarshal(b, &t); err != nil {
		return nil, errkind.Wrap(errkind.ConfigInvalid, "parsing topology xml", err)
	}
	return &t, nil
}

// Infrastructure is the decoded contents of infrastructure.xml: the frame
// duration, RBDC timeout, SOF timeout and logon timeout, i.e. the timing
// and DAMA policy parameters that are deployment-specific rather than
// bandplan geometry. It holds no entity inventory.
type Infrastructure struct {
	XMLName          xml.Name `xml:"infrastructure"`
	FrameDurationSec float64  `xml:"frame_duration_sec"`
	RbdcTimeoutFrames int     `xml:"rbdc_timeout_frames"`
	SofTimeoutSec    float64  `xml:"sof_timeout_sec"`
	LogonTimeoutSec  float64  `xml:"logon_timeout_sec"`
}

// LoadInfrastructure parses path as an Infrastructure.
func LoadInfrastructure(path string) (*Infrastructure, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.ConfigInvalid, "reading infrastructure", err)
	}
	var i Infrastructure
	if err := xml.Unmarshal(b, &i); err != nil {
		return nil, errkind.Wrap(errkind.ConfigInvalid, "parsing infrastructure xml", err)
	}
	return &i, nil
}
