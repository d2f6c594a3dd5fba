package signaling

import (
	"fmt"
	"testing"
)

// drain returns every message currently queued on out without blocking.
func drain(out <-chan []byte) [][]byte {
	var got [][]byte
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, msg)
		default:
			return got
		}
	}
}

// TestRelayBroadcastSkipsSender verifies that, for any sequence of messages, a
// sender never receives its own message and every other participant receives
// each message exactly once.
func TestRelayBroadcastSkipsSender(t *testing.T) {
	r := NewRelay()

	ids := make([]string, 3)
	outs := make([]<-chan []byte, 3)
	for i := range ids {
		ids[i], outs[i] = r.Join()
	}

	sequence := []int{0, 1, 0, 2, 2, 1}
	for n, from := range sequence {
		msg := []byte(fmt.Sprintf(`{"type":"offer","data":{"n":%d}}`, n))
		if got := r.Broadcast(ids[from], msg); got != 2 {
			t.Fatalf("Broadcast #%d reached %d participants, want 2", n, got)
		}
	}

	for i := range ids {
		got := drain(outs[i])

		var want []string
		for n, from := range sequence {
			if from != i {
				want = append(want, fmt.Sprintf(`{"type":"offer","data":{"n":%d}}`, n))
			}
		}

		if len(got) != len(want) {
			t.Fatalf("participant %d received %d messages, want %d", i, len(got), len(want))
		}
		for k := range want {
			if string(got[k]) != want[k] {
				t.Errorf("participant %d message %d = %s, want %s", i, k, got[k], want[k])
			}
		}
	}
}

// TestRelayDoesNotBufferForLateJoiners verifies that a participant joining
// after a message was sent never receives it.
func TestRelayDoesNotBufferForLateJoiners(t *testing.T) {
	r := NewRelay()

	a, _ := r.Join()
	if got := r.Broadcast(a, []byte("early")); got != 0 {
		t.Fatalf("Broadcast with no other participants reached %d, want 0", got)
	}

	_, outB := r.Join()
	if got := drain(outB); len(got) != 0 {
		t.Fatalf("late joiner received %d messages, want 0", len(got))
	}

	r.Broadcast(a, []byte("late"))
	got := drain(outB)
	if len(got) != 1 || string(got[0]) != "late" {
		t.Fatalf("late joiner received %q, want [late]", got)
	}
}

func TestRelayLeaveClosesQueue(t *testing.T) {
	r := NewRelay()

	a, _ := r.Join()
	b, outB := r.Join()
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	r.Leave(b)
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after Leave, want 1", r.Len())
	}
	if _, ok := <-outB; ok {
		t.Fatal("queue still open after Leave")
	}

	// Leaving twice is harmless, and the relay no longer targets b.
	r.Leave(b)
	if got := r.Broadcast(a, []byte("x")); got != 0 {
		t.Fatalf("Broadcast reached %d participants after Leave, want 0", got)
	}
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	r := NewRelay()

	a, _ := r.Join()
	_, outB := r.Join()

	for i := 0; i < outboxSize; i++ {
		if got := r.Broadcast(a, []byte("fill")); got != 1 {
			t.Fatalf("Broadcast #%d reached %d, want 1", i, got)
		}
	}
	if got := r.Broadcast(a, []byte("overflow")); got != 0 {
		t.Fatalf("Broadcast into full queue reached %d, want 0", got)
	}
	if got := len(drain(outB)); got != outboxSize {
		t.Fatalf("queued %d messages, want %d", got, outboxSize)
	}
}
