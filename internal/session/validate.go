package session

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/1ureka/duocall/internal/signaling"
)

// validateRemote checks the discriminant and that the payload parses as SDP.
// It returns the number of candidates folded into the description.
func validateRemote(desc signaling.Description, want signaling.MessageType) (int, error) {
	if desc.Type != string(want) {
		return 0, fmt.Errorf("%w: description type %q in %s message", ErrMalformedRemoteDescription, desc.Type, want)
	}
	if strings.TrimSpace(desc.SDP) == "" {
		return 0, fmt.Errorf("%w: empty sdp", ErrMalformedRemoteDescription)
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedRemoteDescription, err)
	}
	return countCandidates(&parsed), nil
}

func countCandidates(s *sdp.SessionDescription) int {
	n := 0
	for _, a := range s.Attributes {
		if a.Key == "candidate" {
			n++
		}
	}
	for _, m := range s.MediaDescriptions {
		for _, a := range m.Attributes {
			if a.Key == "candidate" {
				n++
			}
		}
	}
	return n
}
