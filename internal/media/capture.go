package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/1ureka/duocall/internal/util"
)

var (
	// ErrCaptureFailed wraps every capture-device failure reported by a Capturer.
	ErrCaptureFailed = errors.New("capture failed")

	// ErrUnknownDevice is returned when a constraint names a device the
	// capturer does not have.
	ErrUnknownDevice = errors.New("unknown capture device")
)

// Facing modes used by handheld devices instead of device ids.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Device is one video input the user can pick.
type Device struct {
	ID    string
	Label string
}

// CameraOptions is the video constraint: either a device id or a facing mode.
type CameraOptions struct {
	DeviceID   string
	FacingMode string
	Exact      bool // facing mode must match exactly
}

// CameraOptionsFor maps a selected device id to a video constraint. The
// pseudo devices "user" and "environment" select a facing mode.
func CameraOptionsFor(deviceID string) CameraOptions {
	switch deviceID {
	case FacingUser:
		return CameraOptions{FacingMode: FacingUser}
	case FacingEnvironment:
		return CameraOptions{FacingMode: FacingEnvironment, Exact: true}
	default:
		return CameraOptions{DeviceID: deviceID}
	}
}

// Constraints describe what a capture should produce.
type Constraints struct {
	Audio  bool
	Video  bool
	Camera CameraOptions // ignored when Video is false
}

// Capturer acquires local tracks from capture devices.
type Capturer interface {
	Devices(ctx context.Context) ([]Device, error)
	Capture(ctx context.Context, c Constraints) (*Stream, error)
}

// ---------------------------------------------------------------------------
// Synthetic capturer
// ---------------------------------------------------------------------------

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceInterval = 20 * time.Millisecond

// SyntheticCapturer produces tracks without hardware. Audio tracks carry Opus
// silence; video tracks negotiate but stay idle.
type SyntheticCapturer struct {
	devices []Device
}

// DefaultDevices is the device list of a SyntheticCapturer built without one.
var DefaultDevices = []Device{
	{ID: "synthetic-0", Label: "Synthetic camera"},
	{ID: FacingUser, Label: "Front camera"},
	{ID: FacingEnvironment, Label: "Back camera"},
}

// NewSyntheticCapturer creates a capturer exposing devices (DefaultDevices when empty).
func NewSyntheticCapturer(devices ...Device) *SyntheticCapturer {
	if len(devices) == 0 {
		devices = DefaultDevices
	}
	return &SyntheticCapturer{devices: devices}
}

func (s *SyntheticCapturer) Devices(ctx context.Context) ([]Device, error) {
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

func (s *SyntheticCapturer) Capture(ctx context.Context, c Constraints) (*Stream, error) {
	if !c.Audio && !c.Video {
		return nil, errors.New("nothing to capture")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deviceID := ""
	if c.Video {
		var err error
		if deviceID, err = s.resolve(c.Camera); err != nil {
			return nil, err
		}
	}

	stream := &Stream{ID: uuid.NewString()}

	if c.Audio {
		t, err := NewLocalTrack(KindAudio, "synthetic-mic", stream.ID)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, t)
		go pumpSilence(t)
	}

	if c.Video {
		t, err := NewLocalTrack(KindVideo, deviceID, stream.ID)
		if err != nil {
			stream.Stop()
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, t)
	}

	return stream, nil
}

// resolve picks the device matching the camera options. An empty constraint
// selects the first device.
func (s *SyntheticCapturer) resolve(opts CameraOptions) (string, error) {
	if len(s.devices) == 0 {
		return "", fmt.Errorf("%w: no video input", ErrUnknownDevice)
	}

	want := opts.DeviceID
	if opts.FacingMode != "" {
		want = opts.FacingMode
	}
	if want == "" {
		return s.devices[0].ID, nil
	}

	for _, d := range s.devices {
		if d.ID == want {
			return d.ID, nil
		}
	}
	if opts.FacingMode != "" && !opts.Exact {
		return s.devices[0].ID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDevice, want)
}

// pumpSilence feeds Opus silence into t until it is stopped.
func pumpSilence(t *LocalTrack) {
	ticker := time.NewTicker(silenceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: silenceInterval}); err != nil {
				if !t.Stopped() {
					util.LogDebug("[%s] sample write failed: %v", t.ID(), err)
				}
				return
			}
		case <-t.Done():
			return
		}
	}
}
