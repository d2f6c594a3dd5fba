package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/util"
)

// DefaultSTUNServers are used when no ICE servers are configured. No TURN:
// calls rely on direct connectivity.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// NewAPI builds a pion API with the default codecs (Opus, VP8, ...) and the
// pion logs routed through util.
func NewAPI() (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = util.PionLoggerFactory{}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(se),
	), nil
}

// newPeerConnection creates a PeerConnection with the given ICE servers.
func newPeerConnection(api *webrtc.API, iceServers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
}
