// Package transport implements the media path on top of a pion
// PeerConnection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/session"
	"github.com/1ureka/duocall/internal/signaling"
	"github.com/1ureka/duocall/internal/util"
)

// Path wraps a single PeerConnection. Callbacks are delivered through the
// session.PathEvents given at construction.
//
// The local description is only complete once GatheringComplete has fired;
// there is no trickle ICE.
type Path struct {
	pc     *webrtc.PeerConnection
	events session.PathEvents

	ctx    context.Context
	cancel context.CancelFunc

	gatherOnce sync.Once

	mu      sync.Mutex
	sending map[webrtc.RTPCodecType]bool
}

// NewPath creates a Path backed by a new PeerConnection.
func NewPath(api *webrtc.API, iceServers []webrtc.ICEServer, events session.PathEvents) (*Path, error) {
	pc, err := newPeerConnection(api, iceServers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Path{
		pc:      pc,
		events:  events,
		ctx:     ctx,
		cancel:  cancel,
		sending: make(map[webrtc.RTPCodecType]bool),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		if p.events.ConnectionState != nil {
			p.events.ConnectionState(connectionState(state))
		}
	})

	pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		util.LogDebug("Remote track %s (%s, %s)", tr.ID(), tr.Kind(), tr.Codec().MimeType)
		if p.events.Track == nil {
			return
		}
		kind := media.KindVideo
		if tr.Kind() == webrtc.RTPCodecTypeAudio {
			kind = media.KindAudio
		}
		p.events.Track(media.NewRemoteTrack(tr.ID(), tr.StreamID(), kind, func() (*rtp.Packet, error) {
			pkt, _, err := tr.ReadRTP()
			return pkt, err
		}))
	})

	return p, nil
}

// Factory returns a session.PathFactory creating pion-backed paths.
func Factory(api *webrtc.API, iceServers []webrtc.ICEServer) session.PathFactory {
	return func(events session.PathEvents) (session.MediaPath, error) {
		return NewPath(api, iceServers, events)
	}
}

// ---------------------------------------------------------------------------
// Tracks
// ---------------------------------------------------------------------------

// AddTrack sends a local track to the peer.
func (p *Path) AddTrack(t *media.LocalTrack) error {
	sender, err := p.pc.AddTrack(t.Local())
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.sending[codecType(t.Kind())] = true
	p.mu.Unlock()

	// RTCP must be read for interceptors to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an offer. Kinds without a local track get a
// receive-only transceiver so the peer can still send them.
func (p *Path) CreateOffer() (signaling.Description, error) {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		p.mu.Lock()
		sending := p.sending[kind]
		p.mu.Unlock()
		if sending {
			continue
		}
		if _, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return signaling.Description{}, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
		p.mu.Lock()
		p.sending[kind] = true
		p.mu.Unlock()
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Description{}, err
	}
	return signaling.DescriptionFromPion(offer), nil
}

// CreateAnswer generates an answer.
func (p *Path) CreateAnswer() (signaling.Description, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Description{}, err
	}
	return signaling.DescriptionFromPion(answer), nil
}

// SetLocalDescription applies the local description and starts gathering.
// GatheringComplete fires once every candidate is known.
func (p *Path) SetLocalDescription(desc signaling.Description) error {
	sd, err := desc.ToPion()
	if err != nil {
		return err
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(sd); err != nil {
		return err
	}

	go func() {
		select {
		case <-gathered:
			p.gatherOnce.Do(func() {
				if p.events.GatheringComplete != nil {
					p.events.GatheringComplete()
				}
			})
		case <-p.ctx.Done():
		}
	}()
	return nil
}

// SetRemoteDescription applies the remote description.
func (p *Path) SetRemoteDescription(desc signaling.Description) error {
	sd, err := desc.ToPion()
	if err != nil {
		return err
	}
	return p.pc.SetRemoteDescription(sd)
}

// LocalDescription returns the local description with every candidate
// gathered so far.
func (p *Path) LocalDescription() (signaling.Description, bool) {
	ld := p.pc.LocalDescription()
	if ld == nil {
		return signaling.Description{}, false
	}
	return signaling.DescriptionFromPion(*ld), true
}

// Close shuts down the PeerConnection.
func (p *Path) Close() error {
	p.cancel()
	if err := p.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func connectionState(s webrtc.PeerConnectionState) session.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return session.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return session.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return session.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return session.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return session.ConnectionClosed
	default:
		return session.ConnectionNew
	}
}

func codecType(k media.Kind) webrtc.RTPCodecType {
	if k == media.KindAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}
