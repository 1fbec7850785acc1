package macfifo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushFullDropsAndCounts(t *testing.T) {
	f := NewFifo(2)
	require.NoError(t, f.Push(Element{Payload: []byte("ab")}))
	require.NoError(t, f.Push(Element{Payload: []byte("cd")}))
	err := f.Push(Element{Payload: []byte("ef")})
	require.Error(t, err)
	require.EqualValues(t, 1, f.Stats.DropPktNbr)
	require.EqualValues(t, 2, f.Stats.DropBytes)
	require.Equal(t, 2, f.Len())
}

func TestPopOrdering(t *testing.T) {
	f := NewFifo(10)
	require.NoError(t, f.Push(Element{Payload: []byte("a")}))
	require.NoError(t, f.Push(Element{Payload: []byte("b")}))
	e, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, "a", string(e.Payload))
	e, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, "b", string(e.Payload))
	_, ok = f.Pop()
	require.False(t, ok)
}

// I6: 0 <= current_pkt_nbr <= maxSize; current_length_bytes equals the sum
// of enqueued payload sizes.
func TestFifoInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := rapid.IntRange(1, 20).Draw(rt, "maxSize")
		f := NewFifo(maxSize)
		nOps := rapid.IntRange(0, 100).Draw(rt, "nOps")
		var enqueued uint64
		for i := 0; i < nOps; i++ {
			if rapid.Bool().Draw(rt, "doPop") && f.Len() > 0 {
				e, ok := f.Pop()
				require.True(rt, ok)
				enqueued -= uint64(len(e.Payload))
			} else {
				n := rapid.IntRange(1, 8).Draw(rt, "payloadLen")
				err := f.Push(Element{Payload: make([]byte, n)})
				if err == nil {
					enqueued += uint64(n)
				}
			}
			require.GreaterOrEqual(rt, f.Len(), 0)
			require.LessOrEqual(rt, f.Len(), maxSize)
			require.Equal(rt, enqueued, f.Stats.CurrentLengthBytes)
		}
	})
}

func TestDrainBudgetRespectsOrder(t *testing.T) {
	s := NewSet()
	hi := s.Add(0, 10)
	lo := s.Add(1, 10)
	require.NoError(t, hi.Push(Element{Payload: []byte("aaaa")}))
	require.NoError(t, lo.Push(Element{Payload: []byte("bb")}))
	out := s.DrainBudget(100)
	require.Len(t, out, 2)
	require.Equal(t, "aaaa", string(out[0].Payload))
	require.Equal(t, "bb", string(out[1].Payload))
}

func TestDrainBudgetStopsWhenExhausted(t *testing.T) {
	s := NewSet()
	f := s.Add(0, 10)
	require.NoError(t, f.Push(Element{Payload: make([]byte, 5)}))
	require.NoError(t, f.Push(Element{Payload: make([]byte, 5)}))
	out := s.DrainBudget(5)
	require.Len(t, out, 1)
	require.Equal(t, 1, f.Len())
}
