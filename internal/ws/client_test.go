package ws

import "testing"

func TestClientOffer_NewestFrameWins(t *testing.T) {
	c := newClient(nil)

	c.offer([]byte("a"))
	c.offer([]byte("b"))
	if got := string(<-c.pending); got != "b" {
		t.Errorf("pending frame: got %q, want b", got)
	}
	if n := len(c.pending); n != 0 {
		t.Errorf("pending after read: got %d, want 0", n)
	}
}

func TestClientOffer_SkipsRepeat(t *testing.T) {
	c := newClient(nil)

	c.offer([]byte(`{"event":"waiting","data":null}`))
	<-c.pending
	c.offer([]byte(`{"event":"waiting","data":null}`))
	if n := len(c.pending); n != 0 {
		t.Errorf("repeat frame queued: got %d pending, want 0", n)
	}

	c.offer([]byte(`{"event":"output","data":{}}`))
	if n := len(c.pending); n != 1 {
		t.Errorf("changed frame: got %d pending, want 1", n)
	}
}

func TestClientStop_Idempotent(t *testing.T) {
	c := newClient(nil)
	c.stop()
	c.stop()
	select {
	case <-c.done:
	default:
		t.Error("done not closed after stop")
	}
}
