package app

import (
	"sync"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/util"
)

// monitor is a terminal rendering sink. It logs what it is told to play and
// drains remote RTP into the stats counters.
type monitor struct {
	name string

	mu     sync.Mutex
	tracks map[string]struct{}
}

func newMonitor(name string) *monitor {
	return &monitor{name: name, tracks: make(map[string]struct{})}
}

func (m *monitor) Render(t media.Track, out media.Output) {
	m.mu.Lock()
	_, seen := m.tracks[t.ID()]
	m.tracks[t.ID()] = struct{}{}
	m.mu.Unlock()

	if out.Muted {
		util.LogInfo("%s: %s track %s (muted)", m.name, t.Kind(), t.ID())
	} else {
		util.LogInfo("%s: %s track %s (volume %.0f%%)", m.name, t.Kind(), t.ID(), out.Volume*100)
	}

	if rt, ok := t.(*media.RemoteTrack); ok && !seen {
		go m.drain(rt)
	}
}

func (m *monitor) Clear() {
	m.mu.Lock()
	n := len(m.tracks)
	m.tracks = make(map[string]struct{})
	m.mu.Unlock()

	if n > 0 {
		util.LogDebug("%s: cleared", m.name)
	}
}

func (m *monitor) drain(t *media.RemoteTrack) {
	for {
		pkt, err := t.ReadRTP()
		if err != nil {
			util.LogDebug("%s: track %s ended: %v", m.name, t.ID(), err)
			return
		}
		util.Stats.AddRTP(len(pkt.Payload))
	}
}
