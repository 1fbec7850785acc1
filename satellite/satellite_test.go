package satellite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickDeliversAfterDelay(t *testing.T) {
	d := NewDownlink(10)
	d.Enqueue(1, ClassData, Frame{CarrierId: 2, Payload: []byte("a")}, 0)
	require.Empty(t, d.Tick(5))
	out := d.Tick(10)
	require.Len(t, out[1], 1)
	require.Equal(t, []byte("a"), out[1][0].Payload)
}

func TestTickPreservesFifoOrderPerClass(t *testing.T) {
	d := NewDownlink(5)
	d.Enqueue(1, ClassData, Frame{Payload: []byte("first")}, 0)
	d.Enqueue(1, ClassData, Frame{Payload: []byte("second")}, 1)
	out := d.Tick(10)
	require.Len(t, out[1], 2)
	require.Equal(t, []byte("first"), out[1][0].Payload)
	require.Equal(t, []byte("second"), out[1][1].Payload)
}

func TestTickOrdersClassesLogonControlData(t *testing.T) {
	d := NewDownlink(0)
	d.Enqueue(1, ClassData, Frame{Payload: []byte("data")}, 0)
	d.Enqueue(1, ClassLogon, Frame{Payload: []byte("logon")}, 0)
	d.Enqueue(1, ClassControl, Frame{Payload: []byte("control")}, 0)
	out := d.Tick(0)
	require.Len(t, out[1], 3)
	require.Equal(t, []byte("logon"), out[1][0].Payload)
	require.Equal(t, []byte("control"), out[1][1].Payload)
	require.Equal(t, []byte("data"), out[1][2].Payload)
}

func TestMultipleGwsOrderedDeterministically(t *testing.T) {
	d := NewDownlink(0)
	d.Enqueue(2, ClassData, Frame{Payload: []byte("gw2")}, 0)
	d.Enqueue(1, ClassData, Frame{Payload: []byte("gw1")}, 0)
	out := d.Tick(0)
	require.Len(t, out, 2)
	require.Equal(t, []byte("gw1"), out[1][0].Payload)
	require.Equal(t, []byte("gw2"), out[2][0].Payload)
}

func TestSOFBypassImmediate(t *testing.T) {
	d := NewDownlink(100)
	f := d.SOFBypass(Frame{Payload: []byte("sof")})
	require.Equal(t, []byte("sof"), f.Payload)
}
