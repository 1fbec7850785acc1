// Command opensand-entity is the process entry point for a Gateway (NCC),
// Satellite Terminal (ST) or transparent Satellite, wiring the band
// planner, FMT table, DAMA/Slotted-ALOHA/SCPC schedulers, physical-layer
// pipeline and satellite forwarding per the entity role selected on the
// command line (§6).
package main

import (
	"math/rand"
	"os"
	"os/signal"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/heistp/opensand-return-mac/bandplan"
	"github.com/heistp/opensand-return-mac/config"
	"github.com/heistp/opensand-return-mac/dama"
	"github.com/heistp/opensand-return-mac/engine"
	"github.com/heistp/opensand-return-mac/errkind"
	"github.com/heistp/opensand-return-mac/fmtdef"
	"github.com/heistp/opensand-return-mac/logging"
	"github.com/heistp/opensand-return-mac/macfifo"
	"github.com/heistp/opensand-return-mac/physlayer"
	"github.com/heistp/opensand-return-mac/probe"
	"github.com/heistp/opensand-return-mac/saloha"
	"github.com/heistp/opensand-return-mac/satellite"
	"github.com/heistp/opensand-return-mac/wire"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fatal(logging.New("opensand-entity", charmlog.ErrorLevel), err)
	}

	log := logging.New(entityTag(flags.Entity), charmlog.InfoLevel)

	topo, err := config.LoadTopology(flags.ConfPath)
	if err != nil {
		fatal(log, err)
	}
	infra, err := config.LoadInfrastructure(flags.InfraPath)
	if err != nil {
		fatal(log, err)
	}
	spot, err := findSpot(topo, flags.SpotId)
	if err != nil {
		fatal(log, err)
	}

	table, err := buildFmtTable(spot)
	if err != nil {
		fatal(log, err)
	}

	plan, err := bandplan.Compute(toBandplan(spot), table)
	if err != nil {
		fatal(log, err)
	}

	sink := probe.NewSink(entityTag(flags.Entity))
	if flags.PushGateway != "" {
		if err := sink.Pusher(flags.PushGateway, "opensand").Push(); err != nil {
			log.Warn("initial probe push failed", "err", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM)

	frameDur := time.Duration(infra.FrameDurationSec * float64(time.Second))

	switch flags.Entity.Kind {
	case config.EntityGateway:
		runGateway(log, plan, table, infra, sink, frameDur)
	case config.EntityTerminal:
		runTerminal(log, plan, table, infra, flags.Entity.Id, sink, frameDur)
	case config.EntitySatellite:
		runSatellite(log, infra, sink, frameDur)
	}

	<-sig
	log.Info("shutting down")
}

func entityTag(e config.Entity) string {
	switch e.Kind {
	case config.EntityGateway:
		return "gw"
	case config.EntityTerminal:
		return "st"
	case config.EntitySatellite:
		return "sat"
	default:
		return "entity"
	}
}

func findSpot(topo *config.Topology, spotId int) (config.SpotConfig, error) {
	for _, s := range topo.Spots {
		if s.Id == spotId {
			return s, nil
		}
	}
	return config.SpotConfig{}, errkind.New(errkind.ConfigInvalid, "no spot with the requested id in topology")
}

func buildFmtTable(spot config.SpotConfig) (*fmtdef.Table, error) {
	var defs []fmtdef.Definition
	for _, d := range spot.FmtDefs {
		defs = append(defs, fmtdef.Definition{
			Id:                 fmtdef.Id(d.Id),
			Modulation:         fmtdef.ParseModulation(d.Modulation),
			CodingRate:         d.CodingRate,
			SpectralEfficiency: d.SpectralEfficiency,
			RequiredEsN0:       d.RequiredEsN0,
			BurstLenSym:        d.BurstLenSym,
		})
	}
	if len(defs) == 0 {
		return nil, errkind.New(errkind.ConfigInvalid, "fmt table has no definitions")
	}
	return fmtdef.NewTable(defs), nil
}

func toBandplan(spot config.SpotConfig) bandplan.Bandplan {
	byCategory := make(map[string]*bandplan.CarrierLine)
	var order []string
	for _, cl := range spot.CarrierLines {
		line, ok := byCategory[cl.Category]
		if !ok {
			line = &bandplan.CarrierLine{
				CategoryLabel: cl.Category,
				Access:        bandplan.ParseAccessType(cl.Access),
			}
			byCategory[cl.Category] = line
			order = append(order, cl.Category)
		}
		line.FormatRatios = append(line.FormatRatios, bandplan.FormatRatio{
			FmtGroupSpec: cl.FmtGroup,
			Ratio:        int(cl.Ratio),
			SymbolRate:   cl.SymbolRate,
		})
	}
	var lines []bandplan.CarrierLine
	for _, label := range order {
		lines = append(lines, *byCategory[label])
	}

	affectation := make(map[int]string)
	for _, t := range spot.Terminals {
		affectation[int(t.TalId)] = t.Category
	}

	return bandplan.Bandplan{
		BandwidthKHz:        spot.BandwidthKHz,
		RollOff:             spot.RollOff,
		SuperframeDuration:  spot.SuperframeDur,
		Carriers:            lines,
		TerminalAffectation: affectation,
		DefaultCategory:     spot.DefaultCategory,
	}
}

// runGateway builds the NCC-side control plane and wires it into a
// §5 engine.Block: the up channel runs the SOF timer that drives
// ctrl.OnFrameTick/ComputeTTP every superframe and shares the resulting
// TTP to the down channel; the down channel feeds inbound SACs to
// ctrl.OnSac and applies the physical-layer check to inbound
// Slotted-ALOHA traffic before aloha.Resolve.
func runGateway(log *charmlog.Logger, plan *bandplan.Plan, table *fmtdef.Table, infra *config.Infrastructure, sink *probe.Sink, frameDur time.Duration) {
	ctrl := dama.NewController(table, infra.FrameDurationSec)
	for _, cat := range plan.Categories {
		var capacitySym float64
		for _, g := range cat.Groups {
			capacitySym += float64(g.CarriersNumber) * g.CapacitySym
		}
		capacityKbps, _ := table.SymToKbits(maxFmtOr(table, cat), capacitySym/infra.FrameDurationSec)
		ctrl.RegisterCategory(cat.Label, capacityKbps, false)
	}

	phy := physlayer.NewPipeline(table)
	phy.Probe = probe.PhyProbe{Sink: sink, Entity: "gw"}

	up := &gwUp{ctrl: ctrl, plan: plan, frameDur: frameDur, log: log}
	down := &gwDown{ctrl: ctrl, aloha: saloha.NewGateway(defaultSalohaSlots), phy: phy, log: log}
	block := engine.NewBlock("gw.dvb", up, down)
	block.Run()
	log.Info("gateway started", "categories", len(plan.Categories))
}

// gwUp is the SOF-driven half of the gateway's engine.Block: every
// frameDur it advances every category's RBDC timers and broadcasts a
// fresh TTP, per §4.2/§4.5.
type gwUp struct {
	ctrl     *dama.Controller
	plan     *bandplan.Plan
	frameDur time.Duration
	log      *charmlog.Logger
	sfn      uint16
}

func (g *gwUp) Start(ch *engine.Channel) error {
	ch.Timer(g.frameDur, nil)
	return nil
}

func (g *gwUp) Ding(data any, ch *engine.Channel) error {
	g.sfn++
	g.ctrl.OnFrameTick()
	for label := range g.plan.Categories {
		ttp, err := g.ctrl.ComputeTTP(label, g.sfn)
		if err != nil {
			g.log.Warn("compute ttp failed", "category", label, "err", err)
			continue
		}
		id := ch.ShareMessage(ttp)
		g.log.Debug("ttp computed", "category", label, "sfn", g.sfn, "assignments", len(ttp.Assignments), "correlation", id)
	}
	ch.Timer(g.frameDur, nil)
	return nil
}

func (g *gwUp) Handle(msg engine.Message, ch *engine.Channel) error {
	return nil
}

// gwDown is the return-channel half of the gateway's engine.Block: it
// applies the physical-layer check to inbound frames and feeds SACs to
// the controller and Slotted-ALOHA bursts to the collision resolver.
type gwDown struct {
	ctrl  *dama.Controller
	aloha *saloha.Gateway
	phy   *physlayer.Pipeline
	log   *charmlog.Logger
}

func (g *gwDown) Handle(msg engine.Message, ch *engine.Channel) error {
	switch m := msg.(type) {
	case wire.TTP:
		g.log.Debug("ttp ready for broadcast", "sfn", m.SuperFrameNumber, "correlation", ch.CorrelationId())
	case wire.SAC:
		if err := g.ctrl.OnSac(m); err != nil {
			g.log.Warn("SAC discarded", "tal_id", m.TalId, "err", err)
		}
	case []saloha.Packet:
		var survivors []saloha.Packet
		for _, p := range m {
			f := g.phy.Process(physlayer.Frame{HasModcod: true, CnDB: 0})
			if !f.Corrupted {
				survivors = append(survivors, p)
			}
		}
		accepted, acks := g.aloha.Resolve(survivors)
		g.log.Debug("saloha resolved", "received", len(m), "accepted", len(accepted), "acks", len(acks))
	}
	return nil
}

// runTerminal builds the ST-side DAMA agent and Slotted-ALOHA terminal
// state and wires them into a §5 engine.Block: the up channel runs the
// SOF timer that builds and shares the next SAC; the down channel
// applies an inbound TTP via agent.ApplyTTP.
func runTerminal(log *charmlog.Logger, plan *bandplan.Plan, table *fmtdef.Table, infra *config.Infrastructure, talId int, sink *probe.Sink, frameDur time.Duration) {
	cat := plan.CategoryFor(talId)
	if cat == nil {
		log.Warn("terminal has no category affectation", "tal_id", talId)
	}

	phy := physlayer.NewPipeline(table)
	phy.Probe = probe.PhyProbe{Sink: sink, Entity: "st"}

	fifos := macfifoSetFor()
	agent := dama.NewAgent(dama.TalId(talId), table, fifos.Fifo(rbdcPriority), fifos.Fifo(vbdcPriority))
	agent.Start(defaultCraKbps, defaultMaxRbdcKbps, defaultMaxVbdcKb, false)

	term := saloha.NewTerminal(saloha.TalId(talId), defaultSalohaReplicas, defaultSalohaSlots,
		defaultSalohaTimeoutFrames, defaultSalohaMaxRetx, defaultSalohaBackoffMin, defaultSalohaBackoffMax,
		rand.New(rand.NewSource(int64(talId))))

	up := &stUp{agent: agent, term: term, frameDur: frameDur, log: log}
	down := &stDown{agent: agent, log: log}
	block := engine.NewBlock("st.dvb", up, down)
	block.Run()
	log.Info("terminal started", "tal_id", talId)
}

// stUp is the SOF-driven half of the terminal's engine.Block: every
// frameDur it rearms and logs the Slotted-ALOHA packets due for
// retransmission (they are not sent anywhere from here) and, once logged
// on, builds and shares the next SAC, per §4.3/§4.4.
type stUp struct {
	agent    *dama.Agent
	term     *saloha.Terminal
	frameDur time.Duration
	log      *charmlog.Logger
	sfn      int
}

func (s *stUp) Start(ch *engine.Channel) error {
	ch.Timer(s.frameDur, nil)
	return nil
}

func (s *stUp) Ding(data any, ch *engine.Channel) error {
	s.sfn++
	if due, dropped := s.term.Retransmissions(s.sfn); len(due) > 0 || len(dropped) > 0 {
		s.log.Debug("saloha retransmissions", "due", len(due), "dropped", len(dropped))
	}
	if s.agent.State == dama.StateRunning {
		sac := s.agent.BuildSAC()
		id := ch.ShareMessage(sac)
		s.log.Debug("sac built", "rbdc_kbps", sac.RbdcKbps, "vbdc_kb", sac.VbdcKb, "correlation", id)
	}
	ch.Timer(s.frameDur, nil)
	return nil
}

func (s *stUp) Handle(msg engine.Message, ch *engine.Channel) error {
	return nil
}

// stDown is the forward-channel half of the terminal's engine.Block: it
// applies an inbound TTP to the agent's allocation state.
type stDown struct {
	agent *dama.Agent
	log   *charmlog.Logger
}

func (s *stDown) Handle(msg engine.Message, ch *engine.Channel) error {
	switch m := msg.(type) {
	case wire.LogonResponse:
		s.agent.OnLogonResponse(m, defaultCraKbps, defaultMaxRbdcKbps, defaultMaxVbdcKb, defaultRbdcTimeoutFrames)
		s.log.Debug("logon accepted", "group_id", m.GroupId, "correlation", ch.CorrelationId())
	case wire.TTP:
		if err := s.agent.ApplyTTP(m); err != nil {
			s.log.Warn("TTP carries no assignment for this terminal", "err", err, "correlation", ch.CorrelationId())
			return nil
		}
		budgetSym, err := s.agent.FrameBudgetSym(0)
		if err != nil {
			s.log.Warn("frame budget computation failed", "err", err)
			return nil
		}
		s.log.Debug("ttp applied", "sfn", m.SuperFrameNumber, "budget_sym", budgetSym, "correlation", ch.CorrelationId())
	}
	return nil
}

// runSatellite builds the transparent forwarding downlink and wires it
// into a §5 engine.Block: the up channel ticks the per-class delay FIFOs
// every frameDur and shares delivered frames to the down channel; the
// down channel enqueues inbound frames onto their GW/class queue.
func runSatellite(log *charmlog.Logger, infra *config.Infrastructure, sink *probe.Sink, frameDur time.Duration) {
	downlink := satellite.NewDownlink(satellite.Clock(frameDur))
	up := &satUp{downlink: downlink, frameDur: frameDur, log: log}
	down := &satDown{downlink: downlink, log: log}
	block := engine.NewBlock("sat.fwd", up, down)
	block.Run()
	log.Info("satellite started")
}

type satUp struct {
	downlink *satellite.Downlink
	frameDur time.Duration
	log      *charmlog.Logger
}

func (s *satUp) Start(ch *engine.Channel) error {
	ch.Timer(s.frameDur, nil)
	return nil
}

func (s *satUp) Ding(data any, ch *engine.Channel) error {
	delivered := s.downlink.Tick(satellite.Clock(engine.Now()))
	for gwId, frames := range delivered {
		id := ch.ShareMessage(frames)
		s.log.Debug("downlink delivered", "gw", gwId, "frames", len(frames), "correlation", id)
	}
	ch.Timer(s.frameDur, nil)
	return nil
}

func (s *satUp) Handle(msg engine.Message, ch *engine.Channel) error {
	return nil
}

type satDown struct {
	downlink *satellite.Downlink
	log      *charmlog.Logger
}

func (s *satDown) Handle(msg engine.Message, ch *engine.Channel) error {
	f, ok := msg.(gwFrame)
	if !ok {
		return nil
	}
	s.downlink.Enqueue(f.gwId, f.class, f.frame, satellite.Clock(engine.Now()))
	return nil
}

// gwFrame addresses an inbound Frame to a GW's forwarding queue; sent to
// the satellite's down channel by the transport layer once wired.
type gwFrame struct {
	gwId  int
	class satellite.Class
	frame satellite.Frame
}

const (
	defaultSalohaSlots         = 10
	defaultSalohaReplicas      = 2
	defaultSalohaTimeoutFrames = 20
	defaultSalohaMaxRetx       = 10
	defaultSalohaBackoffMin    = 1
	defaultSalohaBackoffMax    = 10
	defaultCraKbps             = 128
	defaultMaxRbdcKbps         = 512
	defaultMaxVbdcKb           = 256
	defaultRbdcTimeoutFrames   = 20
	rbdcPriority               = macfifo.Priority(0)
	vbdcPriority               = macfifo.Priority(1)
)

func macfifoSetFor() *macfifo.Set {
	s := macfifo.NewSet()
	s.Add(rbdcPriority, defaultFifoMaxBytes)
	s.Add(vbdcPriority, defaultFifoMaxBytes)
	return s
}

const defaultFifoMaxBytes = 1 << 20

func maxFmtOr(table *fmtdef.Table, cat *bandplan.Category) fmtdef.Id {
	for _, g := range cat.Groups {
		if id, ok := g.MaxFmt(table); ok {
			return id
		}
	}
	id, _ := table.GetMaxId()
	return id
}

func fatal(log *charmlog.Logger, err error) {
	log.Fatal(err)
	os.Exit(1)
}
