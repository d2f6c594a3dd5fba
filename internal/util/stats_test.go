package util

import (
	"strings"
	"testing"
)

func TestFormatBytesFixedWidth(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		if got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(got) != 8 {
			t.Errorf("formatBytes(%v) has width %d, want 8", tc.in, len(got))
		}
	}
}

func TestFormatStatsIncludesCounters(t *testing.T) {
	got := formatStats(2, 1536, 0, 7, 1)
	for _, want := range []string{"Peers:  2", "Relay:  1.5 KiB/s", "Msg:   7↑"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatStats() = %q, missing %q", got, want)
		}
	}
}

func TestStatsCounters(t *testing.T) {
	s := &stats{}
	s.Join()
	s.Join()
	s.Leave()
	s.AddRelayed(10)
	s.AddRelayed(5)
	s.AddDropped()
	s.AddRTP(100)

	if got := s.Participants.Load(); got != 1 {
		t.Errorf("Participants = %d, want 1", got)
	}
	if got := s.RelayedMessages.Load(); got != 2 {
		t.Errorf("RelayedMessages = %d, want 2", got)
	}
	if got := s.RelayedBytes.Load(); got != 15 {
		t.Errorf("RelayedBytes = %d, want 15", got)
	}
	if got := s.DroppedMessages.Load(); got != 1 {
		t.Errorf("DroppedMessages = %d, want 1", got)
	}
	if got := s.RTPBytes.Load(); got != 100 {
		t.Errorf("RTPBytes = %d, want 100", got)
	}
}
