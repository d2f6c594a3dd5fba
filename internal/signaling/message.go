// Package signaling carries session descriptions between participants: the
// wire message, the relay that fans it out, and the WebSocket server and client
// that move it over the network.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer  MessageType = "offer"
	MsgTypeAnswer MessageType = "answer"
)

// Description is an opaque session description. Only Type is inspected by the
// protocol layer; SDP is handed untouched to the media path. The JSON shape
// matches a browser RTCSessionDescription.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Message is the JSON structure relayed between participants. There is no
// candidate kind: candidates travel inside Data once gathering is complete.
type Message struct {
	Type MessageType `json:"type"`
	Data Description `json:"data"`
}

// Validate checks that the message kind is known. The payload is not inspected.
func (m Message) Validate() error {
	switch m.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		return nil
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
}

// ParseMessage decodes and validates a raw relay message.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode signaling message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DescriptionFromPion converts a pion session description to its wire form.
func DescriptionFromPion(desc webrtc.SessionDescription) Description {
	return Description{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

// ToPion converts the wire form back into a pion session description.
func (d Description) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch d.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	case "pranswer":
		t = webrtc.SDPTypePranswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", d.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}, nil
}
