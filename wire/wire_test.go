package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSOFRoundTrip(t *testing.T) {
	s := SOF{SuperFrameNumber: 1234}
	got, err := DecodeSOF(s.Encode())
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestLogonRequestRoundTrip(t *testing.T) {
	l := LogonRequest{Mac: 5, CraKbps: 128, MaxRbdcKbps: 512, MaxVbdcKb: 0, IsSCPC: false}
	got, err := DecodeLogonRequest(l.Encode())
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestLogonResponseRoundTrip(t *testing.T) {
	l := LogonResponse{LogonId: 5, GroupId: 1}
	got, err := DecodeLogonResponse(l.Encode())
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestTTPRoundTrip(t *testing.T) {
	ttp := TTP{
		SuperFrameNumber: 7,
		Assignments: []Assignment{
			{TalId: 5, Access: AccessDAMA, RateKbps: 896, VolumeKb: 0, StartSlot: 0, Count: 0},
			{TalId: 6, Access: AccessALOHA, RateKbps: 0, VolumeKb: 200, StartSlot: 12, Count: 4},
		},
	}
	got, err := DecodeTTP(ttp.Encode())
	require.NoError(t, err)
	require.Equal(t, ttp, got)
}

func TestDvbRcs2BurstRoundTrip(t *testing.T) {
	d := DvbRcs2Burst{Modcod: 3, NbPackets: 2, Payload: []byte("hello")}
	got, err := DecodeDvbRcs2Burst(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestBBFrameRoundTrip(t *testing.T) {
	f := BBFrame{Modcod: 5, RealModcod: 5, Payload: []byte("payload")}
	got, err := DecodeBBFrame(f.Encode())
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestSalohaDataRoundTrip(t *testing.T) {
	d := SalohaData{TalId: 2, Qos: 1, PduSeq: 10, PduCount: 1, Replicas: []uint16{3, 7}, Payload: []byte("x")}
	got, err := DecodeSalohaData(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestSalohaAckRoundTrip(t *testing.T) {
	a := SalohaAck{Entries: []SalohaAckEntry{{TalId: 1, PduSeq: 2}, {TalId: 3, PduSeq: 4}}}
	got, err := DecodeSalohaAck(a.Encode())
	require.NoError(t, err)
	require.Equal(t, a, got)
}

// R1: Encode(SAC) then Decode recovers the original fields, with
// |c_out - c| <= 0.01 dB.
func TestSACRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := SAC{
			TalId:    uint16(rapid.IntRange(0, 65535).Draw(rt, "talId")),
			GroupId:  uint16(rapid.IntRange(0, 65535).Draw(rt, "groupId")),
			RbdcKbps: uint16(rapid.IntRange(0, 65535).Draw(rt, "rbdc")),
			VbdcKb:   uint16(rapid.IntRange(0, 65535).Draw(rt, "vbdc")),
			CnDB:     rapid.Float64Range(-327.68, 327.67).Draw(rt, "cn"),
		}
		got, err := DecodeSAC(s.Encode())
		require.NoError(rt, err)
		require.Equal(rt, s.TalId, got.TalId)
		require.Equal(rt, s.GroupId, got.GroupId)
		require.Equal(rt, s.RbdcKbps, got.RbdcKbps)
		require.Equal(rt, s.VbdcKb, got.VbdcKb)
		require.LessOrEqual(rt, math.Abs(got.CnDB-s.CnDB), 0.01)
	})
}

// R2: hcnton . ncntoh is identity on representable C/N values.
func TestCNEncodeDecodeIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		// restrict to values representable at 0.01 dB granularity so the
		// fixed-point round-trip is exact.
		centi := rapid.IntRange(-32768, 32767).Draw(rt, "centi")
		cn := float64(centi) / 100
		raw := EncodeCN(cn)
		got := DecodeCN(raw)
		require.InDelta(rt, cn, got, 1e-9)
	})
}
