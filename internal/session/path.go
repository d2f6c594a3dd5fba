package session

import (
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/signaling"
)

// MediaPath is the media-transport capability a handle configures and
// observes. Descriptions are opaque; validation beyond the discriminant is the
// path's job (SetRemoteDescription fails on anything it cannot apply).
type MediaPath interface {
	AddTrack(t *media.LocalTrack) error
	CreateOffer() (signaling.Description, error)
	CreateAnswer() (signaling.Description, error)
	SetLocalDescription(desc signaling.Description) error
	SetRemoteDescription(desc signaling.Description) error

	// LocalDescription returns the current local description including every
	// candidate gathered so far.
	LocalDescription() (signaling.Description, bool)

	Close() error
}

// PathEvents are the callbacks a media path fires. They may run on any
// goroutine; the negotiator turns each into an event on its loop.
type PathEvents struct {
	GatheringComplete func()
	Track             func(t *media.RemoteTrack)
	ConnectionState   func(state ConnectionState)
}

// PathFactory creates the media path for a new handle.
type PathFactory func(events PathEvents) (MediaPath, error)
