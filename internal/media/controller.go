package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/1ureka/duocall/internal/util"
)

// Status is the process-wide on/off state of local audio and video.
type Status struct {
	Audio bool
	Video bool
}

func (s Status) String() string {
	return fmt.Sprintf("camera: %s, mic: %s", onOff(s.Video), onOff(s.Audio))
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Output is how a sink should play a track.
type Output struct {
	Volume float64
	Muted  bool
}

// Sink renders tracks: a local monitor or a remote player.
type Sink interface {
	Render(t Track, out Output)
	Clear()
}

// Sinks are the three rendering targets the controller drives.
type Sinks struct {
	Local       Sink // local preview, always muted
	RemoteVideo Sink
	RemoteAudio Sink
}

type discardSink struct{}

func (discardSink) Render(Track, Output) {}
func (discardSink) Clear()               {}

var (
	localOutput  = Output{Volume: 0, Muted: true}
	remoteOutput = Output{Volume: 1, Muted: false}
)

// Controller manages capture device selection and audio/video toggling, and
// routes remote tracks to the rendering sinks. Status is the single source of
// truth for what gets captured. Methods are safe for concurrent use: user
// intents and the negotiator run on different goroutines.
type Controller struct {
	capturer Capturer
	sinks    Sinks

	mu     sync.Mutex
	status Status
	camera CameraOptions
	stream *Stream

	// detached holds replaced tracks that may still be attached to a session.
	detached []*LocalTrack
}

// NewController creates a controller with everything off. Nil sinks discard.
func NewController(capturer Capturer, sinks Sinks) *Controller {
	if sinks.Local == nil {
		sinks.Local = discardSink{}
	}
	if sinks.RemoteVideo == nil {
		sinks.RemoteVideo = discardSink{}
	}
	if sinks.RemoteAudio == nil {
		sinks.RemoteAudio = discardSink{}
	}
	return &Controller{capturer: capturer, sinks: sinks}
}

// Status returns the current media status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Camera returns the current video constraint.
func (c *Controller) Camera() CameraOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// Devices lists the selectable video inputs.
func (c *Controller) Devices(ctx context.Context) ([]Device, error) {
	return c.capturer.Devices(ctx)
}

// ToggleAudio flips the microphone and recaptures. On capture failure the
// status is reset to all-off and the error wraps ErrCaptureFailed.
func (c *Controller) ToggleAudio(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Audio = !c.status.Audio
	return c.refresh(ctx, c.disabled)
}

// ToggleVideo flips the camera and recaptures. On capture failure the status
// is reset to all-off and the error wraps ErrCaptureFailed.
func (c *Controller) ToggleVideo(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Video = !c.status.Video
	return c.refresh(ctx, c.disabled)
}

// SelectCamera changes the video constraint. The stream is recaptured only
// when video is currently on; the previous video track is stopped once the
// new one is live.
func (c *Controller) SelectCamera(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.camera = CameraOptionsFor(deviceID)
	util.LogDebug("camera set to %+v", c.camera)

	if c.stream == nil || !c.status.Video {
		return nil
	}

	old := c.stream.Video()
	if _, err := c.refresh(ctx, nil); err != nil {
		return err
	}
	c.stopDetached(old)
	return nil
}

// CurrentStream returns the stream matching the current status, or nil when
// both audio and video are off.
func (c *Controller) CurrentStream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// OnRemoteTrack routes an inbound track to the remote sink for its kind.
func (c *Controller) OnRemoteTrack(t Track) {
	switch t.Kind() {
	case KindVideo:
		util.LogInfo("enabling remote video (%s)", t.ID())
		c.sinks.RemoteVideo.Render(t, remoteOutput)
	case KindAudio:
		util.LogInfo("enabling remote audio (%s)", t.ID())
		c.sinks.RemoteAudio.Render(t, remoteOutput)
	default:
		util.LogWarning("ignoring remote track %s of kind %q", t.ID(), t.Kind())
	}
}

// ClearRemote detaches whatever the remote sinks are playing.
func (c *Controller) ClearRemote() {
	c.sinks.RemoteVideo.Clear()
	c.sinks.RemoteAudio.Clear()
}

// ReleaseTracks stops the given tracks if they are no longer part of the
// current stream. The negotiator calls it with a session's tracks once that
// session is closed.
func (c *Controller) ReleaseTracks(tracks []*LocalTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range tracks {
		c.stopDetached(t)
	}
}

// Close stops every local track, current and detached.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stream.Stop()
	c.stream = nil
	for _, t := range c.detached {
		t.Stop()
	}
	c.detached = nil
	c.sinks.Local.Clear()
}

// refresh captures a stream matching the status and swaps it in. Tracks of
// the current stream matching stop are stopped first. The rest of the old
// stream is detached but keeps running: a live session may still be sending
// it. A failed capture stops nothing else. Caller holds c.mu.
func (c *Controller) refresh(ctx context.Context, stop func(*LocalTrack) bool) (Status, error) {
	util.LogInfo("media status: %s", c.status)

	c.stopWhere(stop)

	if !c.status.Audio && !c.status.Video {
		c.detach()
		return c.status, nil
	}

	util.LogDebug("setting streams...")
	stream, err := c.capturer.Capture(ctx, Constraints{
		Audio:  c.status.Audio,
		Video:  c.status.Video,
		Camera: c.camera,
	})
	if err != nil {
		c.status = Status{}
		c.detach()
		util.LogError("capture failed, media status reset (%s): %v", c.status, err)
		return c.status, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	c.detach()
	c.stream = stream
	for _, t := range stream.Tracks {
		c.sinks.Local.Render(t, localOutput)
	}
	util.LogDebug("stream set successfully")
	return c.status, nil
}

// disabled reports whether t's kind is switched off.
func (c *Controller) disabled(t *LocalTrack) bool {
	return (t.Kind() == KindVideo && !c.status.Video) || (t.Kind() == KindAudio && !c.status.Audio)
}

// stopWhere stops and removes the current stream's tracks matching pred.
func (c *Controller) stopWhere(pred func(*LocalTrack) bool) {
	if c.stream == nil || pred == nil {
		return
	}

	kept := make([]*LocalTrack, 0, len(c.stream.Tracks))
	for _, t := range c.stream.Tracks {
		if pred(t) {
			util.LogInfo("%s stopped", t.Kind())
			t.Stop()
			continue
		}
		kept = append(kept, t)
	}
	// Callers may still hold the old Stream.
	c.stream = &Stream{ID: c.stream.ID, Tracks: kept}
}

// detach moves the current stream's running tracks to the detached set and
// clears the local preview.
func (c *Controller) detach() {
	if c.stream == nil {
		return
	}
	for _, t := range c.stream.Tracks {
		if !t.Stopped() {
			c.detached = append(c.detached, t)
		}
	}
	c.stream = nil
	c.sinks.Local.Clear()
}

// stopDetached stops t if it is detached. Tracks of the current stream are
// left alone.
func (c *Controller) stopDetached(t *LocalTrack) {
	if t == nil {
		return
	}
	for i, d := range c.detached {
		if d == t {
			t.Stop()
			c.detached = append(c.detached[:i], c.detached[i+1:]...)
			return
		}
	}
}
