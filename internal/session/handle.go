package session

import (
	"fmt"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/signaling"
)

// Handle is one negotiation session with the remote peer. It is owned by the
// negotiator loop and never touched from another goroutine.
type Handle struct {
	id   string
	role Role
	path MediaPath

	phase      Phase
	signaling  SignalingState
	gathering  GatheringState
	connection ConnectionState

	local  *signaling.Description
	remote *signaling.Description

	localTracks  []*media.LocalTrack
	remoteTracks []media.Track

	// sent is set once the complete local description has been relayed.
	sent bool
}

func newHandle(id string, role Role, path MediaPath) *Handle {
	return &Handle{
		id:   id,
		role: role,
		path: path,
	}
}

// ID returns the session id.
func (h *Handle) ID() string { return h.id }

// attach adds every track of the current local stream to the media path.
func (h *Handle) attach(stream *media.Stream) error {
	if stream == nil {
		return nil
	}
	for _, t := range stream.Tracks {
		if err := h.path.AddTrack(t); err != nil {
			return fmt.Errorf("%w: add %s track: %w", ErrMediaPathFailed, t.Kind(), err)
		}
		h.localTracks = append(h.localTracks, t)
	}
	return nil
}

func (h *Handle) setLocal(desc signaling.Description) error {
	if err := h.path.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("%w: set local %s: %w", ErrMediaPathFailed, desc.Type, err)
	}
	h.local = &desc
	if h.gathering == GatheringNew {
		h.gathering = GatheringInProgress
	}

	switch desc.Type {
	case "offer":
		h.signaling = SignalingHaveLocalOffer
	case "pranswer":
		h.signaling = SignalingHaveLocalPranswer
	default:
		h.signaling = SignalingStable
	}
	return nil
}

// setRemote validates and applies a remote description. It returns the
// number of candidates the description carried.
func (h *Handle) setRemote(desc signaling.Description, want signaling.MessageType) (int, error) {
	candidates, err := validateRemote(desc, want)
	if err != nil {
		return 0, err
	}
	if err := h.path.SetRemoteDescription(desc); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedRemoteDescription, err)
	}
	h.remote = &desc

	switch desc.Type {
	case "offer":
		h.signaling = SignalingHaveRemoteOffer
	case "pranswer":
		h.signaling = SignalingHaveRemotePranswer
	default:
		h.signaling = SignalingStable
	}
	return candidates, nil
}

// established reports whether the handle may move to PhaseEstablished.
func (h *Handle) established() bool {
	return h.phase == PhaseNegotiating &&
		h.local != nil && h.remote != nil &&
		h.connection == ConnectionConnected
}

// close releases the media path and detaches all tracks. Local tracks belong
// to the media controller and keep running.
func (h *Handle) close() error {
	if h.phase == PhaseClosed {
		return nil
	}
	h.phase = PhaseClosed
	h.signaling = SignalingClosed
	h.localTracks = nil
	h.remoteTracks = nil
	return h.path.Close()
}

// Snapshot is a point-in-time copy of a handle for observers.
type Snapshot struct {
	ID           string
	Role         Role
	Phase        Phase
	Signaling    SignalingState
	Gathering    GatheringState
	Connection   ConnectionState
	Local        *signaling.Description
	Remote       *signaling.Description
	LocalTracks  int
	RemoteTracks int
}

func (h *Handle) snapshot() Snapshot {
	s := Snapshot{
		ID:           h.id,
		Role:         h.role,
		Phase:        h.phase,
		Signaling:    h.signaling,
		Gathering:    h.gathering,
		Connection:   h.connection,
		LocalTracks:  len(h.localTracks),
		RemoteTracks: len(h.remoteTracks),
	}
	if h.local != nil {
		d := *h.local
		s.Local = &d
	}
	if h.remote != nil {
		d := *h.remote
		s.Remote = &d
	}
	return s
}

func (s Snapshot) String() string {
	if s.ID == "" {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s %s (%s, signaling %s, ice %s, %s)",
		s.Role, shortID(s.ID), s.Phase, s.Signaling, s.Gathering, s.Connection)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
