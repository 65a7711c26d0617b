package botmaster

import (
	"fmt"
	"testing"
	"time"
)

func queueTestBots(n int, clk *fakeClock, host string) []*Bot {
	bots := make([]*Bot, n)
	for i := range bots {
		b := NewBot(fmt.Sprintf("Bot_%d", i), BotDeps{Transport: NewLoopbackTransport(), Clock: clk.Now})
		b.SetServer(host, 7777)
		bots[i] = b
	}
	return bots
}

func TestQueuePolicyQueuedOnePerServer(t *testing.T) {
	clk := newFakeClock()
	bots := queueTestBots(3, clk, "127.0.0.1")
	clk.Advance(time.Millisecond)

	q := NewConnectionQueue(PolicyQueued)
	if got := q.Process(bots); got != 1 {
		t.Fatalf("first pass admitted %d, want 1", got)
	}

	connecting := 0
	for _, b := range bots {
		if b.Status() == StatusConnecting {
			connecting++
		}
	}
	if connecting != 1 {
		t.Errorf("%d bots connecting, want 1", connecting)
	}

	// The joining bot blocks its server until InitGame.
	if got := q.Process(bots); got != 0 {
		t.Errorf("second pass admitted %d while one bot is mid-handshake", got)
	}
}

func TestQueuePolicyAggressive(t *testing.T) {
	clk := newFakeClock()
	bots := queueTestBots(3, clk, "127.0.0.1")
	clk.Advance(time.Millisecond)

	q := NewConnectionQueue(PolicyAggressive)
	if got := q.Process(bots); got != 3 {
		t.Errorf("admitted %d, want all 3", got)
	}
}

func TestQueueServersIndependent(t *testing.T) {
	clk := newFakeClock()
	bots := append(queueTestBots(1, clk, "127.0.0.1"), queueTestBots(1, clk, "10.0.0.1")...)
	clk.Advance(time.Millisecond)

	q := NewConnectionQueue(PolicyQueued)
	if got := q.Process(bots); got != 2 {
		t.Errorf("admitted %d, want one per server", got)
	}
}

func TestQueueReconnectThrottle(t *testing.T) {
	clk := newFakeClock()
	bots := queueTestBots(1, clk, "127.0.0.1")
	clk.Advance(time.Millisecond)
	bots[0].Disconnect()

	q := NewConnectionQueue(PolicyQueued)
	if got := q.Process(bots); got != 0 {
		t.Errorf("admitted %d right after a disconnect, want 0", got)
	}

	clk.Advance(connectionDelay + time.Millisecond)
	if got := q.Process(bots); got != 1 {
		t.Errorf("admitted %d after the throttle elapsed, want 1", got)
	}
}

func TestQueueBlockedByExistingJoiner(t *testing.T) {
	clk := newFakeClock()
	bots := queueTestBots(2, clk, "127.0.0.1")
	clk.Advance(time.Millisecond)
	if err := bots[0].Connect(); err != nil {
		t.Fatal(err)
	}

	q := NewConnectionQueue(PolicyQueued)
	if got := q.Process(bots); got != 0 {
		t.Errorf("admitted %d while another bot is joining, want 0", got)
	}
}
