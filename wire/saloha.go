package wire

import (
	"encoding/binary"

	"github.com/heistp/opensand-return-mac/errkind"
)

// SalohaData is a single Slotted-ALOHA data packet header plus payload.
type SalohaData struct {
	TalId     uint16
	Qos       uint8
	PduSeq    uint16
	PduCount  uint16
	Replicas  []uint16 // nbReplicas = len(Replicas)
	Payload   []byte
}

// Encode writes the SALOHA data wire format:
// talId:u16 | qos:u8 | pduSeq:u16 | pduCount:u16 | nbReplicas:u8 | replicas:u16[n] | payload.
func (s SalohaData) Encode() []byte {
	hdr := 2 + 1 + 2 + 2 + 1 + 2*len(s.Replicas)
	b := make([]byte, hdr+len(s.Payload))
	binary.BigEndian.PutUint16(b[0:2], s.TalId)
	b[2] = s.Qos
	binary.BigEndian.PutUint16(b[3:5], s.PduSeq)
	binary.BigEndian.PutUint16(b[5:7], s.PduCount)
	b[7] = uint8(len(s.Replicas))
	off := 8
	for _, r := range s.Replicas {
		binary.BigEndian.PutUint16(b[off:off+2], r)
		off += 2
	}
	copy(b[off:], s.Payload)
	return b
}

// DecodeSalohaData parses a SALOHA data packet.
func DecodeSalohaData(b []byte) (SalohaData, error) {
	if len(b) < 8 {
		return SalohaData{}, errkind.New(errkind.FrameMalformed, "SALOHA data header too short")
	}
	n := int(b[7])
	need := 8 + 2*n
	if len(b) < need {
		return SalohaData{}, errkind.New(errkind.FrameMalformed, "SALOHA data replica list truncated")
	}
	s := SalohaData{
		TalId:    binary.BigEndian.Uint16(b[0:2]),
		Qos:      b[2],
		PduSeq:   binary.BigEndian.Uint16(b[3:5]),
		PduCount: binary.BigEndian.Uint16(b[5:7]),
	}
	off := 8
	for i := 0; i < n; i++ {
		s.Replicas = append(s.Replicas, binary.BigEndian.Uint16(b[off:off+2]))
		off += 2
	}
	s.Payload = append([]byte(nil), b[off:]...)
	return s, nil
}

// SalohaAckEntry is a single accepted (talId, pduSeq) pair.
type SalohaAckEntry struct {
	TalId  uint16
	PduSeq uint16
}

// SalohaAck is the list of accepted packets for a Slotted-ALOHA frame.
type SalohaAck struct {
	Entries []SalohaAckEntry
}

// Encode writes the SALOHA ack wire format: a flat list of (talId, pduSeq)
// pairs prefixed by a u16 count.
func (a SalohaAck) Encode() []byte {
	b := make([]byte, 2+4*len(a.Entries))
	binary.BigEndian.PutUint16(b[0:2], uint16(len(a.Entries)))
	off := 2
	for _, e := range a.Entries {
		binary.BigEndian.PutUint16(b[off:off+2], e.TalId)
		binary.BigEndian.PutUint16(b[off+2:off+4], e.PduSeq)
		off += 4
	}
	return b
}

// DecodeSalohaAck parses a SALOHA ack frame.
func DecodeSalohaAck(b []byte) (SalohaAck, error) {
	if len(b) < 2 {
		return SalohaAck{}, errkind.New(errkind.FrameMalformed, "SALOHA ack too short")
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	need := 2 + 4*n
	if len(b) < need {
		return SalohaAck{}, errkind.New(errkind.FrameMalformed, "SALOHA ack list truncated")
	}
	var a SalohaAck
	off := 2
	for i := 0; i < n; i++ {
		a.Entries = append(a.Entries, SalohaAckEntry{
			TalId:  binary.BigEndian.Uint16(b[off : off+2]),
			PduSeq: binary.BigEndian.Uint16(b[off+2 : off+4]),
		})
		off += 4
	}
	return a, nil
}
