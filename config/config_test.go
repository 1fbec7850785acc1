package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsRequiresAll(t *testing.T) {
	_, err := ParseFlags([]string{"--conf", "a.xml"})
	require.Error(t, err)
}

func TestParseFlagsEntity(t *testing.T) {
	f, err := ParseFlags([]string{"--conf", "a.xml", "--infrastructure", "b.xml", "--entity", "st:5", "--spot", "2"})
	require.NoError(t, err)
	require.Equal(t, EntityTerminal, f.Entity.Kind)
	require.Equal(t, 5, f.Entity.Id)
	require.Equal(t, 2, f.SpotId)
}

func TestParseEntityRejectsUnknownKind(t *testing.T) {
	_, err := parseEntity("foo:1")
	require.Error(t, err)
}

func TestParseEntityRejectsMissingColon(t *testing.T) {
	_, err := parseEntity("gw")
	require.Error(t, err)
}

func TestLoadTopology(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.xml")
	xmlDoc := `<topology>
  <spot id="1" default_category="rbdc1">
    <bandwidth_khz>1000</bandwidth_khz>
    <roll_off>0.2</roll_off>
    <superframe_duration_sec>0.01</superframe_duration_sec>
    <carrier_line category="rbdc1" access="DAMA">
      <symbol_rate>1000000</symbol_rate>
      <fmt_group>1-3</fmt_group>
      <ratio>100</ratio>
    </carrier_line>
    <fmt_table>
      <definition id="1"><modulation>QPSK</modulation><coding_rate>1/2</coding_rate><spectral_efficiency>1.0</spectral_efficiency><required_esn0>1.0</required_esn0></definition>
    </fmt_table>
    <terminal tal_id="5" category="rbdc1"/>
  </spot>
</topology>`
	require.NoError(t, os.WriteFile(path, []byte(xmlDoc), 0644))

	topo, err := LoadTopology(path)
	require.NoError(t, err)
	require.Len(t, topo.Spots, 1)
	require.Equal(t, "rbdc1", topo.Spots[0].DefaultCategory)
	require.Len(t, topo.Spots[0].CarrierLines, 1)
	require.Equal(t, 1000000.0, topo.Spots[0].CarrierLines[0].SymbolRate)
	require.Len(t, topo.Spots[0].FmtDefs, 1)
	require.Len(t, topo.Spots[0].Terminals, 1)
	require.EqualValues(t, 5, topo.Spots[0].Terminals[0].TalId)
}

func TestLoadInfrastructure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infra.xml")
	xmlDoc := `<infrastructure>
  <frame_duration_sec>0.01</frame_duration_sec>
  <rbdc_timeout_frames>20</rbdc_timeout_frames>
  <sof_timeout_sec>1.0</sof_timeout_sec>
  <logon_timeout_sec>5.0</logon_timeout_sec>
</infrastructure>`
	require.NoError(t, os.WriteFile(path, []byte(xmlDoc), 0644))

	infra, err := LoadInfrastructure(path)
	require.NoError(t, err)
	require.Equal(t, 0.01, infra.FrameDurationSec)
	require.Equal(t, 20, infra.RbdcTimeoutFrames)
	require.Equal(t, 5.0, infra.LogonTimeoutSec)
}

func TestLoadTopologyMissingFile(t *testing.T) {
	_, err := LoadTopology("/nonexistent/path.xml")
	require.Error(t, err)
}
