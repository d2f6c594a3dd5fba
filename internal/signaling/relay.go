package signaling

import (
	"sync"

	"github.com/google/uuid"

	"github.com/1ureka/duocall/internal/util"
)

// outboxSize is the per-participant queue capacity. A full queue drops the
// message for that participant only.
const outboxSize = 32

// Relay is a stateless fan-out broadcaster: every message from one participant
// is forwarded verbatim to every other currently connected participant. It
// never inspects payloads, never buffers for late joiners and sends no notice
// when a participant leaves.
type Relay struct {
	mu    sync.Mutex
	peers map[string]chan []byte
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{
		peers: make(map[string]chan []byte),
	}
}

// Join registers a new participant and returns its transport-assigned id
// together with the queue of messages addressed to it. The queue is closed by
// Leave.
func (r *Relay) Join() (string, <-chan []byte) {
	id := uuid.NewString()
	out := make(chan []byte, outboxSize)

	r.mu.Lock()
	r.peers[id] = out
	r.mu.Unlock()

	util.Stats.Join()
	return id, out
}

// Leave removes a participant and closes its queue. Unknown ids are ignored.
func (r *Relay) Leave(id string) {
	r.mu.Lock()
	out, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()

	if ok {
		close(out)
		util.Stats.Leave()
	}
}

// Broadcast forwards msg to every participant except from and returns the
// number of participants it was queued for. Delivery is best-effort.
func (r *Relay) Broadcast(from string, msg []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for id, out := range r.peers {
		if id == from {
			continue
		}

		select {
		case out <- msg:
			sent++
			util.Stats.AddRelayed(len(msg))
		default:
			util.Stats.AddDropped()
			util.LogWarning("[%s] outbox full, dropping message", shortID(id))
		}
	}
	return sent
}

// Len returns the number of connected participants.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// shortID trims a participant id for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
