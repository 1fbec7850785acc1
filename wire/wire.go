// Package wire implements the return-link control-plane wire codec: the
// fixed binary layouts of §6, all multi-byte integers in network byte
// order. Every control frame also carries a carrier envelope (carrierId,
// spotId, corrupted, cn) set by the lower (out-of-scope) carrier layer; see
// Envelope.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/heistp/opensand-return-mac/errkind"
)

// MsgType identifies the frame variant on the wire.
type MsgType uint8

const (
	MsgSOF          MsgType = 0x01
	MsgSAC          MsgType = 0x10
	MsgTTP          MsgType = 0x20
	MsgDvbRcs2Burst MsgType = 0x42
	MsgLogonReq     MsgType = 0x50
	MsgLogonResp    MsgType = 0x52
	MsgBBFrame      MsgType = 0x70
)

// Envelope is the carrier-layer metadata attached to every frame, set by the
// (out of scope) UDP carrier I/O layer.
type Envelope struct {
	CarrierId  uint8
	SpotId     uint8
	Corrupted  bool
	CnOverNoise float64 // dB
}

// EncodeCN encodes a C/N value in dB as the big-endian fixed-point u32 field
// defined in §6: htonl((i16)round(cn*100)), sign-extended to 32 bits.
// Representable range is -327.68..327.67 dB (R2).
func EncodeCN(cnDB float64) uint32 {
	v := int16(math.Round(cnDB * 100))
	return uint32(int32(v))
}

// DecodeCN is the inverse of EncodeCN.
func DecodeCN(raw uint32) float64 {
	v := int16(int32(raw))
	return float64(v) / 100
}

// SOF is the Start-of-Frame message (GW->ST), 8 bytes on the wire.
type SOF struct {
	SuperFrameNumber uint16
}

// Encode writes the SOF wire format: msgType | reserved | sfn:u16 | reserved[4].
func (s SOF) Encode() []byte {
	b := make([]byte, 8)
	b[0] = byte(MsgSOF)
	binary.BigEndian.PutUint16(b[2:4], s.SuperFrameNumber)
	return b
}

// DecodeSOF parses an SOF frame.
func DecodeSOF(b []byte) (SOF, error) {
	if len(b) < 8 {
		return SOF{}, errkind.New(errkind.FrameMalformed, "SOF frame too short")
	}
	if MsgType(b[0]) != MsgSOF {
		return SOF{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for SOF")
	}
	return SOF{SuperFrameNumber: binary.BigEndian.Uint16(b[2:4])}, nil
}

// LogonRequest is sent ST->GW.
type LogonRequest struct {
	Mac         uint16
	CraKbps     uint16
	MaxRbdcKbps uint16
	MaxVbdcKb   uint16
	IsSCPC      bool
}

const logonReqFlagSCPC = 1 << 0

// Encode writes the logon-request wire format.
func (l LogonRequest) Encode() []byte {
	b := make([]byte, 12)
	b[0] = byte(MsgLogonReq)
	binary.BigEndian.PutUint16(b[2:4], l.Mac)
	binary.BigEndian.PutUint16(b[4:6], l.CraKbps)
	binary.BigEndian.PutUint16(b[6:8], l.MaxRbdcKbps)
	binary.BigEndian.PutUint16(b[8:10], l.MaxVbdcKb)
	if l.IsSCPC {
		b[10] = logonReqFlagSCPC
	}
	return b
}

// DecodeLogonRequest parses a logon-request frame.
func DecodeLogonRequest(b []byte) (LogonRequest, error) {
	if len(b) < 12 {
		return LogonRequest{}, errkind.New(errkind.FrameMalformed, "logon request too short")
	}
	if MsgType(b[0]) != MsgLogonReq {
		return LogonRequest{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for logon request")
	}
	return LogonRequest{
		Mac:         binary.BigEndian.Uint16(b[2:4]),
		CraKbps:     binary.BigEndian.Uint16(b[4:6]),
		MaxRbdcKbps: binary.BigEndian.Uint16(b[6:8]),
		MaxVbdcKb:   binary.BigEndian.Uint16(b[8:10]),
		IsSCPC:      b[10]&logonReqFlagSCPC != 0,
	}, nil
}

// LogonResponse is sent GW->ST.
type LogonResponse struct {
	LogonId uint16
	GroupId uint16
}

// Encode writes the logon-response wire format.
func (l LogonResponse) Encode() []byte {
	b := make([]byte, 6)
	b[0] = byte(MsgLogonResp)
	binary.BigEndian.PutUint16(b[2:4], l.LogonId)
	binary.BigEndian.PutUint16(b[4:6], l.GroupId)
	return b
}

// DecodeLogonResponse parses a logon-response frame.
func DecodeLogonResponse(b []byte) (LogonResponse, error) {
	if len(b) < 6 {
		return LogonResponse{}, errkind.New(errkind.FrameMalformed, "logon response too short")
	}
	if MsgType(b[0]) != MsgLogonResp {
		return LogonResponse{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for logon response")
	}
	return LogonResponse{
		LogonId: binary.BigEndian.Uint16(b[2:4]),
		GroupId: binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// SAC is the Satellite Access Control message (ST->GW): an aggregated
// capacity request plus the forward-link ACM C/N.
type SAC struct {
	TalId   uint16
	GroupId uint16
	RbdcKbps uint16
	VbdcKb   uint16
	CnDB     float64
}

// Encode writes the SAC wire format.
func (s SAC) Encode() []byte {
	b := make([]byte, 14)
	b[0] = byte(MsgSAC)
	binary.BigEndian.PutUint16(b[2:4], s.TalId)
	binary.BigEndian.PutUint16(b[4:6], s.GroupId)
	binary.BigEndian.PutUint16(b[6:8], s.RbdcKbps)
	binary.BigEndian.PutUint16(b[8:10], s.VbdcKb)
	binary.BigEndian.PutUint32(b[10:14], EncodeCN(s.CnDB))
	return b
}

// DecodeSAC parses a SAC frame.
func DecodeSAC(b []byte) (SAC, error) {
	if len(b) < 14 {
		return SAC{}, errkind.New(errkind.FrameMalformed, "SAC frame too short")
	}
	if MsgType(b[0]) != MsgSAC {
		return SAC{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for SAC")
	}
	return SAC{
		TalId:    binary.BigEndian.Uint16(b[2:4]),
		GroupId:  binary.BigEndian.Uint16(b[4:6]),
		RbdcKbps: binary.BigEndian.Uint16(b[6:8]),
		VbdcKb:   binary.BigEndian.Uint16(b[8:10]),
		CnDB:     DecodeCN(binary.BigEndian.Uint32(b[10:14])),
	}, nil
}

// Access identifies the access scheme an Assignment grants.
type Access uint8

const (
	AccessDAMA Access = iota
	AccessTDM
	AccessALOHA
	AccessSCPC
)

// Assignment is a single terminal's TTP entry.
type Assignment struct {
	TalId     uint16
	Access    Access
	RateKbps  uint16
	VolumeKb  uint16
	StartSlot uint16
	Count     uint16
}

const assignmentLen = 11

func (a Assignment) encode(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], a.TalId)
	b[2] = byte(a.Access)
	binary.BigEndian.PutUint16(b[3:5], a.RateKbps)
	binary.BigEndian.PutUint16(b[5:7], a.VolumeKb)
	binary.BigEndian.PutUint16(b[7:9], a.StartSlot)
	binary.BigEndian.PutUint16(b[9:11], a.Count)
}

func decodeAssignment(b []byte) Assignment {
	return Assignment{
		TalId:     binary.BigEndian.Uint16(b[0:2]),
		Access:    Access(b[2]),
		RateKbps:  binary.BigEndian.Uint16(b[3:5]),
		VolumeKb:  binary.BigEndian.Uint16(b[5:7]),
		StartSlot: binary.BigEndian.Uint16(b[7:9]),
		Count:     binary.BigEndian.Uint16(b[9:11]),
	}
}

// TTP is the Terminal Burst Time Plan broadcast (GW->ST).
type TTP struct {
	SuperFrameNumber uint16
	Assignments      []Assignment
}

// Encode writes the TTP wire format.
func (t TTP) Encode() []byte {
	b := make([]byte, 6+assignmentLen*len(t.Assignments))
	b[0] = byte(MsgTTP)
	binary.BigEndian.PutUint16(b[2:4], t.SuperFrameNumber)
	binary.BigEndian.PutUint16(b[4:6], uint16(len(t.Assignments)))
	for i, a := range t.Assignments {
		a.encode(b[6+i*assignmentLen : 6+(i+1)*assignmentLen])
	}
	return b
}

// DecodeTTP parses a TTP frame.
func DecodeTTP(b []byte) (TTP, error) {
	if len(b) < 6 {
		return TTP{}, errkind.New(errkind.FrameMalformed, "TTP frame too short")
	}
	if MsgType(b[0]) != MsgTTP {
		return TTP{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for TTP")
	}
	n := int(binary.BigEndian.Uint16(b[4:6]))
	need := 6 + assignmentLen*n
	if len(b) < need {
		return TTP{}, errkind.New(errkind.FrameMalformed, "TTP frame truncated assignment list")
	}
	t := TTP{SuperFrameNumber: binary.BigEndian.Uint16(b[2:4])}
	for i := 0; i < n; i++ {
		t.Assignments = append(t.Assignments, decodeAssignment(b[6+i*assignmentLen:6+(i+1)*assignmentLen]))
	}
	return t, nil
}

// DvbRcs2Burst carries a DVB-RCS2 return-link burst (ST->GW).
type DvbRcs2Burst struct {
	Modcod    uint8
	NbPackets uint16
	Payload   []byte
}

// Encode writes the DVB-RCS2 burst wire format.
func (d DvbRcs2Burst) Encode() []byte {
	b := make([]byte, 6+len(d.Payload))
	b[0] = byte(MsgDvbRcs2Burst)
	binary.BigEndian.PutUint16(b[1:3], uint16(3+len(d.Payload)))
	b[3] = d.Modcod
	binary.BigEndian.PutUint16(b[4:6], d.NbPackets)
	copy(b[6:], d.Payload)
	return b
}

// DecodeDvbRcs2Burst parses a DVB-RCS2 burst frame.
func DecodeDvbRcs2Burst(b []byte) (DvbRcs2Burst, error) {
	if len(b) < 6 {
		return DvbRcs2Burst{}, errkind.New(errkind.FrameMalformed, "DVB-RCS2 burst too short")
	}
	if MsgType(b[0]) != MsgDvbRcs2Burst {
		return DvbRcs2Burst{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for DVB-RCS2 burst")
	}
	length := int(binary.BigEndian.Uint16(b[1:3]))
	if length < 3 || len(b) < 3+length {
		return DvbRcs2Burst{}, errkind.New(errkind.FrameMalformed, "DVB-RCS2 burst length mismatch")
	}
	payload := append([]byte(nil), b[6:3+length]...)
	return DvbRcs2Burst{
		Modcod:    b[3],
		NbPackets: binary.BigEndian.Uint16(b[4:6]),
		Payload:   payload,
	}, nil
}

// BBFrame carries a DVB-S2 Base-Band Frame (GW->ST, or GW->SCPC ST).
type BBFrame struct {
	Modcod     uint8
	RealModcod uint8
	Payload    []byte
}

// Encode writes the BBFrame wire format.
func (f BBFrame) Encode() []byte {
	b := make([]byte, 5+len(f.Payload))
	b[0] = byte(MsgBBFrame)
	binary.BigEndian.PutUint16(b[1:3], uint16(2+len(f.Payload)))
	b[3] = f.Modcod
	b[4] = f.RealModcod
	copy(b[5:], f.Payload)
	return b
}

// DecodeBBFrame parses a BBFrame.
func DecodeBBFrame(b []byte) (BBFrame, error) {
	if len(b) < 5 {
		return BBFrame{}, errkind.New(errkind.FrameMalformed, "BBFrame too short")
	}
	if MsgType(b[0]) != MsgBBFrame {
		return BBFrame{}, errkind.New(errkind.FrameMalformed, "unexpected msgType for BBFrame")
	}
	length := int(binary.BigEndian.Uint16(b[1:3]))
	if length < 2 || len(b) < 3+length {
		return BBFrame{}, errkind.New(errkind.FrameMalformed, "BBFrame length mismatch")
	}
	payload := append([]byte(nil), b[5:3+length]...)
	return BBFrame{
		Modcod:     b[3],
		RealModcod: b[4],
		Payload:    payload,
	}, nil
}
