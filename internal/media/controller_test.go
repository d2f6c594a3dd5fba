package media

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Compile-time interface check.
var _ Capturer = (*fakeCapturer)(nil)

// fakeCapturer records every capture request and can be told to fail.
type fakeCapturer struct {
	mu       sync.Mutex
	requests []Constraints
	fail     error
}

func (f *fakeCapturer) Devices(ctx context.Context) ([]Device, error) {
	return DefaultDevices, nil
}

func (f *fakeCapturer) Capture(ctx context.Context, c Constraints) (*Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	if f.fail != nil {
		return nil, f.fail
	}

	stream := &Stream{ID: "fake"}
	if c.Audio {
		t, err := NewLocalTrack(KindAudio, "mic", stream.ID)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, t)
	}
	if c.Video {
		t, err := NewLocalTrack(KindVideo, c.Camera.DeviceID, stream.ID)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, t)
	}
	return stream, nil
}

func (f *fakeCapturer) last() (Constraints, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return Constraints{}, 0
	}
	return f.requests[len(f.requests)-1], len(f.requests)
}

// recordingSink remembers what it was last asked to render.
type recordingSink struct {
	mu      sync.Mutex
	tracks  []Track
	outputs []Output
	clears  int
}

func (s *recordingSink) Render(t Track, out Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
	s.outputs = append(s.outputs, out)
}

func (s *recordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = nil
	s.outputs = nil
	s.clears++
}

// TestToggleRequestsFollowStatus verifies that with video on, toggling audio
// off then on always requests {video: true, audio: latest toggle}.
func TestToggleRequestsFollowStatus(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	c := NewController(capturer, Sinks{})
	defer c.Close()

	if _, err := c.ToggleVideo(ctx); err != nil {
		t.Fatalf("ToggleVideo: %v", err)
	}

	wantAudio := []bool{true, false, true, false}
	for i, want := range wantAudio {
		status, err := c.ToggleAudio(ctx)
		if err != nil {
			t.Fatalf("ToggleAudio #%d: %v", i, err)
		}
		if status != (Status{Audio: want, Video: true}) {
			t.Fatalf("ToggleAudio #%d status = %+v", i, status)
		}

		req, _ := capturer.last()
		if !req.Video || req.Audio != want {
			t.Errorf("ToggleAudio #%d requested %+v, want video=true audio=%v", i, req, want)
		}

		stream := c.CurrentStream()
		if (stream.Audio() != nil) != want || stream.Video() == nil {
			t.Errorf("ToggleAudio #%d stream tracks do not match status", i)
		}
	}
}

// TestToggleTwiceRestoresStatus verifies repeated identical toggles return the
// status to its previous value.
func TestToggleTwiceRestoresStatus(t *testing.T) {
	ctx := context.Background()
	c := NewController(&fakeCapturer{}, Sinks{})
	defer c.Close()

	before := c.Status()
	for i := 0; i < 2; i++ {
		if _, err := c.ToggleVideo(ctx); err != nil {
			t.Fatalf("ToggleVideo: %v", err)
		}
	}
	if got := c.Status(); got != before {
		t.Errorf("status after two toggles = %+v, want %+v", got, before)
	}
	if c.CurrentStream() != nil {
		t.Error("stream still present with everything off")
	}
}

func TestToggleOffStopsTracks(t *testing.T) {
	ctx := context.Background()
	c := NewController(&fakeCapturer{}, Sinks{})
	defer c.Close()

	c.ToggleAudio(ctx)
	first := c.CurrentStream().Audio()
	if first == nil {
		t.Fatal("no audio track after enabling audio")
	}

	c.ToggleAudio(ctx)
	if !first.Stopped() {
		t.Error("audio track still running after disabling audio")
	}
}

func TestBothOffCapturesNothing(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	c := NewController(capturer, Sinks{})

	c.ToggleAudio(ctx)
	_, before := capturer.last()
	c.ToggleAudio(ctx)
	if _, after := capturer.last(); after != before {
		t.Errorf("capture requested with everything off (%d -> %d requests)", before, after)
	}
}

func TestCaptureFailureResetsStatus(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	c := NewController(capturer, Sinks{})

	c.ToggleVideo(ctx)
	capturer.fail = errors.New("device busy")

	status, err := c.ToggleAudio(ctx)
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("ToggleAudio error = %v, want ErrCaptureFailed", err)
	}
	if status != (Status{}) || c.Status() != (Status{}) {
		t.Errorf("status after failure = %+v, want all off", c.Status())
	}
	if c.CurrentStream() != nil {
		t.Error("stream kept after failed capture")
	}
}

func TestSelectCamera(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	c := NewController(capturer, Sinks{})
	defer c.Close()

	// Video off: only the preference changes.
	if err := c.SelectCamera(ctx, "cam-2"); err != nil {
		t.Fatalf("SelectCamera: %v", err)
	}
	if _, n := capturer.last(); n != 0 {
		t.Fatalf("capture requested while video off")
	}
	if got := c.Camera(); got.DeviceID != "cam-2" {
		t.Errorf("camera = %+v, want device cam-2", got)
	}

	c.ToggleVideo(ctx)
	old := c.CurrentStream().Video()

	if err := c.SelectCamera(ctx, FacingEnvironment); err != nil {
		t.Fatalf("SelectCamera: %v", err)
	}
	req, _ := capturer.last()
	if req.Camera != (CameraOptions{FacingMode: FacingEnvironment, Exact: true}) {
		t.Errorf("recapture used %+v, want exact environment facing mode", req.Camera)
	}
	if !old.Stopped() {
		t.Error("previous video track not stopped on camera switch")
	}
}

func TestRemoteTrackRouting(t *testing.T) {
	video := &recordingSink{}
	audio := &recordingSink{}
	c := NewController(&fakeCapturer{}, Sinks{RemoteVideo: video, RemoteAudio: audio})

	c.OnRemoteTrack(NewRemoteTrack("v1", "s", KindVideo, nil))
	c.OnRemoteTrack(NewRemoteTrack("a1", "s", KindAudio, nil))

	if len(video.tracks) != 1 || video.tracks[0].ID() != "v1" {
		t.Fatalf("video sink got %v", video.tracks)
	}
	if len(audio.tracks) != 1 || audio.tracks[0].ID() != "a1" {
		t.Fatalf("audio sink got %v", audio.tracks)
	}
	for _, out := range append(video.outputs, audio.outputs...) {
		if out != (Output{Volume: 1}) {
			t.Errorf("remote output = %+v, want full volume unmuted", out)
		}
	}

	c.ClearRemote()
	if video.clears != 1 || audio.clears != 1 {
		t.Errorf("ClearRemote cleared video=%d audio=%d, want 1 each", video.clears, audio.clears)
	}
}

func TestLocalPreviewIsMuted(t *testing.T) {
	local := &recordingSink{}
	c := NewController(&fakeCapturer{}, Sinks{Local: local})
	defer c.Close()

	c.ToggleAudio(context.Background())
	if len(local.outputs) != 1 || local.outputs[0] != (Output{Volume: 0, Muted: true}) {
		t.Errorf("local preview outputs = %+v, want one muted output", local.outputs)
	}
}

// TestToggleKeepsOtherKindRunning verifies a toggle stops only the kind that
// was switched off; a session may still be sending the other one.
func TestToggleKeepsOtherKindRunning(t *testing.T) {
	ctx := context.Background()
	c := NewController(&fakeCapturer{}, Sinks{})
	defer c.Close()

	c.ToggleVideo(ctx)
	video := c.CurrentStream().Video()

	c.ToggleAudio(ctx)
	audio := c.CurrentStream().Audio()
	if video.Stopped() {
		t.Fatal("video track stopped after enabling audio")
	}

	c.ToggleAudio(ctx)
	if !audio.Stopped() {
		t.Error("audio track still running after disabling audio")
	}
	if video.Stopped() {
		t.Error("video track stopped after disabling audio")
	}
}

func TestSelectCameraStopsOnlyVideo(t *testing.T) {
	ctx := context.Background()
	c := NewController(&fakeCapturer{}, Sinks{})
	defer c.Close()

	c.ToggleAudio(ctx)
	c.ToggleVideo(ctx)
	stream := c.CurrentStream()
	audio, video := stream.Audio(), stream.Video()

	if err := c.SelectCamera(ctx, "cam-2"); err != nil {
		t.Fatalf("SelectCamera: %v", err)
	}
	if !video.Stopped() {
		t.Error("previous video track still running after camera switch")
	}
	if audio.Stopped() {
		t.Error("audio track stopped by camera switch")
	}

	// Once the session using them ends, replaced tracks are released; the
	// current stream is left alone.
	current := c.CurrentStream()
	c.ReleaseTracks(append([]*LocalTrack{audio}, current.Tracks...))
	if !audio.Stopped() {
		t.Error("released audio track still running")
	}
	for _, tr := range current.Tracks {
		if tr.Stopped() {
			t.Errorf("current %s track stopped by ReleaseTracks", tr.Kind())
		}
	}
}

// TestCaptureFailureKeepsRunningTracks verifies a failed capture stops
// nothing that was already running.
func TestCaptureFailureKeepsRunningTracks(t *testing.T) {
	ctx := context.Background()

	t.Run("toggle", func(t *testing.T) {
		capturer := &fakeCapturer{}
		c := NewController(capturer, Sinks{})
		defer c.Close()

		c.ToggleVideo(ctx)
		video := c.CurrentStream().Video()
		capturer.fail = errors.New("device busy")

		if _, err := c.ToggleAudio(ctx); !errors.Is(err, ErrCaptureFailed) {
			t.Fatalf("ToggleAudio error = %v, want ErrCaptureFailed", err)
		}
		if video.Stopped() {
			t.Error("running video track stopped by failed capture")
		}
	})

	t.Run("camera switch", func(t *testing.T) {
		capturer := &fakeCapturer{}
		c := NewController(capturer, Sinks{})
		defer c.Close()

		c.ToggleAudio(ctx)
		c.ToggleVideo(ctx)
		stream := c.CurrentStream()
		capturer.fail = errors.New("device busy")

		if err := c.SelectCamera(ctx, "cam-2"); !errors.Is(err, ErrCaptureFailed) {
			t.Fatalf("SelectCamera error = %v, want ErrCaptureFailed", err)
		}
		for _, tr := range stream.Tracks {
			if tr.Stopped() {
				t.Errorf("running %s track stopped by failed camera switch", tr.Kind())
			}
		}
	})
}

func TestCloseStopsDetachedTracks(t *testing.T) {
	ctx := context.Background()
	c := NewController(&fakeCapturer{}, Sinks{})

	c.ToggleVideo(ctx)
	video := c.CurrentStream().Video()
	c.ToggleAudio(ctx)
	audio := c.CurrentStream().Audio()

	c.Close()
	if !video.Stopped() || !audio.Stopped() {
		t.Errorf("tracks running after Close: video=%v audio=%v", !video.Stopped(), !audio.Stopped())
	}
}
