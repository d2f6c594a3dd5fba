// Package media owns local capture and rendering: the tracks handed to the
// negotiator, the on/off status of audio and video, and the sinks that remote
// tracks are routed to.
package media

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Kind classifies a track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is the common view of local and remote tracks.
type Track interface {
	ID() string
	Kind() Kind
}

// ---------------------------------------------------------------------------
// Local tracks
// ---------------------------------------------------------------------------

// LocalTrack is a captured track backed by a pion sample track. Stop releases
// it; a stopped track accepts no more samples.
type LocalTrack struct {
	kind     Kind
	deviceID string
	track    *webrtc.TrackLocalStaticSample

	stopOnce sync.Once
	done     chan struct{}
}

// NewLocalTrack creates an Opus (audio) or VP8 (video) sample track.
func NewLocalTrack(kind Kind, deviceID, streamID string) (*LocalTrack, error) {
	var codec webrtc.RTPCodecCapability
	switch kind {
	case KindAudio:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	case KindVideo:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	default:
		return nil, fmt.Errorf("unknown track kind %q", kind)
	}

	id := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
	track, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}

	return &LocalTrack{
		kind:     kind,
		deviceID: deviceID,
		track:    track,
		done:     make(chan struct{}),
	}, nil
}

func (t *LocalTrack) ID() string       { return t.track.ID() }
func (t *LocalTrack) Kind() Kind       { return t.kind }
func (t *LocalTrack) StreamID() string { return t.track.StreamID() }
func (t *LocalTrack) DeviceID() string { return t.deviceID }

// Local exposes the pion track for attaching to a PeerConnection.
func (t *LocalTrack) Local() webrtc.TrackLocal { return t.track }

// WriteSample pushes one media sample to every bound PeerConnection.
func (t *LocalTrack) WriteSample(s pionmedia.Sample) error {
	if t.Stopped() {
		return fmt.Errorf("track %s stopped", t.ID())
	}
	return t.track.WriteSample(s)
}

// Stop releases the track. Safe to call multiple times.
func (t *LocalTrack) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// Done is closed once the track is stopped.
func (t *LocalTrack) Done() <-chan struct{} { return t.done }

func (t *LocalTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Remote tracks
// ---------------------------------------------------------------------------

// RemoteTrack is an inbound track reported by the media path.
type RemoteTrack struct {
	id       string
	streamID string
	kind     Kind
	read     func() (*rtp.Packet, error)
}

// NewRemoteTrack wraps an inbound track. read returns the next RTP packet and
// fails once the track ends.
func NewRemoteTrack(id, streamID string, kind Kind, read func() (*rtp.Packet, error)) *RemoteTrack {
	return &RemoteTrack{id: id, streamID: streamID, kind: kind, read: read}
}

func (t *RemoteTrack) ID() string       { return t.id }
func (t *RemoteTrack) Kind() Kind       { return t.kind }
func (t *RemoteTrack) StreamID() string { return t.streamID }

// ReadRTP blocks until the next packet arrives.
func (t *RemoteTrack) ReadRTP() (*rtp.Packet, error) {
	if t.read == nil {
		return nil, fmt.Errorf("track %s is not readable", t.id)
	}
	return t.read()
}

// ---------------------------------------------------------------------------
// Streams
// ---------------------------------------------------------------------------

// Stream groups the local tracks produced by one capture.
type Stream struct {
	ID     string
	Tracks []*LocalTrack
}

// Audio returns the first audio track, or nil.
func (s *Stream) Audio() *LocalTrack { return s.first(KindAudio) }

// Video returns the first video track, or nil.
func (s *Stream) Video() *LocalTrack { return s.first(KindVideo) }

func (s *Stream) first(kind Kind) *LocalTrack {
	if s == nil {
		return nil
	}
	for _, t := range s.Tracks {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

// Stop stops every track in the stream.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	for _, t := range s.Tracks {
		t.Stop()
	}
}
