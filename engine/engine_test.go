package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) Handle(msg Message, ch *Channel) error {
	r.mu.Lock()
	r.got = append(r.got, msg.(string))
	r.mu.Unlock()
	if msg == "shutdown" {
		ch.Shutdown()
	}
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestChannelProcessesMessagesInOrder(t *testing.T) {
	r := &recorder{}
	ch := NewChannel("test", r)
	go ch.Run()
	ch.Send("a")
	ch.Send("b")
	ch.Send("shutdown")

	require.Eventually(t, func() bool {
		got := r.snapshot()
		return len(got) == 3
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"a", "b", "shutdown"}, r.snapshot())
}

type dingHandler struct {
	ch   chan any
}

func (d *dingHandler) Handle(msg Message, ch *Channel) error { return nil }
func (d *dingHandler) Ding(data any, ch *Channel) error {
	d.ch <- data
	return nil
}

func TestTimerDeliversDing(t *testing.T) {
	h := &dingHandler{ch: make(chan any, 1)}
	ch := NewChannel("timer", h)
	go ch.Run()
	ch.Timer(10*time.Millisecond, "fired")

	select {
	case got := <-h.ch:
		require.Equal(t, "fired", got)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	ch.Shutdown()
}

func TestCancelTimerPreventsDing(t *testing.T) {
	h := &dingHandler{ch: make(chan any, 1)}
	ch := NewChannel("timer", h)
	go ch.Run()
	id := ch.Timer(20*time.Millisecond, "fired")
	ch.CancelTimer(id)

	select {
	case <-h.ch:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
	ch.Shutdown()
}

type shareHandler struct {
	received chan Message
	corr     chan CorrelationId
}

func (s *shareHandler) Handle(msg Message, ch *Channel) error {
	s.received <- msg
	s.corr <- ch.CorrelationId()
	return nil
}

func TestShareMessageCrossesToPairedChannel(t *testing.T) {
	upRecv := &shareHandler{received: make(chan Message, 1), corr: make(chan CorrelationId, 1)}
	downRecv := &shareHandler{received: make(chan Message, 1), corr: make(chan CorrelationId, 1)}
	b := NewBlock("block", upRecv, downRecv)
	go b.Up.Run()
	go b.Down.Run()

	id := b.Up.ShareMessage("from-up")
	select {
	case m := <-downRecv.received:
		require.Equal(t, "from-up", m)
	case <-time.After(time.Second):
		t.Fatal("shareMessage did not cross")
	}
	require.Equal(t, id, <-downRecv.corr)
	b.Shutdown()
}

func TestCorrelationIdZeroOutsideShareMessage(t *testing.T) {
	r := &shareHandler{received: make(chan Message, 1), corr: make(chan CorrelationId, 1)}
	ch := NewChannel("direct", r)
	go ch.Run()
	ch.Send("direct-send")

	require.Equal(t, Message("direct-send"), <-r.received)
	require.Equal(t, CorrelationId{}, <-r.corr)
	ch.Shutdown()
}
