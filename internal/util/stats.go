package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide relay/media counter.
var Stats = &stats{}

type stats struct {
	Participants    atomic.Int64 // currently connected relay participants
	RelayedMessages atomic.Int64 // cumulative messages fanned out by the relay (per recipient)
	RelayedBytes    atomic.Int64 // cumulative bytes fanned out by the relay (per recipient)
	DroppedMessages atomic.Int64 // cumulative messages dropped because a recipient queue was full
	RTPPackets      atomic.Int64 // cumulative RTP packets read from remote tracks
	RTPBytes        atomic.Int64 // cumulative RTP payload bytes read from remote tracks
}

func (s *stats) Join()  { s.Participants.Add(1) }
func (s *stats) Leave() { s.Participants.Add(-1) }
func (s *stats) AddRelayed(n int) {
	s.RelayedMessages.Add(1)
	s.RelayedBytes.Add(int64(n))
}
func (s *stats) AddDropped() { s.DroppedMessages.Add(1) }
func (s *stats) AddRTP(n int) {
	s.RTPPackets.Add(1)
	s.RTPBytes.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs relay and media statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevMsgs, prevRelayed, prevDropped, prevRTP int64
		for {
			select {
			case <-ticker.C:
				msgs := Stats.RelayedMessages.Load()
				relayed := Stats.RelayedBytes.Load()
				dropped := Stats.DroppedMessages.Load()
				rtp := Stats.RTPBytes.Load()

				relayS := float64(relayed-prevRelayed) / 10.0
				mediaS := float64(rtp-prevRTP) / 10.0
				msgC := msgs - prevMsgs
				dropC := dropped - prevDropped

				if msgC > 0 || dropC > 0 || mediaS > 10 {
					pterm.DefaultLogger.Info(formatStats(Stats.Participants.Load(), relayS, mediaS, msgC, dropC))
				}

				prevMsgs = msgs
				prevRelayed = relayed
				prevDropped = dropped
				prevRTP = rtp

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(peers int64, relayS, mediaS float64, msgC, dropC int64) string {
	return fmt.Sprintf("Peers: %2d | Relay: %s/s | Media: %s/s | Msg: %3d↑ %2d✗",
		peers,
		formatBytes(relayS),
		formatBytes(mediaS),
		msgC,
		dropC,
	)
}
