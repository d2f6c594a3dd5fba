package session

import (
	"errors"
	"testing"

	"github.com/1ureka/duocall/internal/signaling"
)

func TestRegistryCapacity(t *testing.T) {
	r := NewRegistry(0)

	a := newHandle("a", RoleCaller, &fakePath{})
	b := newHandle("b", RoleCallee, &fakePath{})

	if err := r.Add(a); err != nil {
		t.Fatalf("Add(a): %v", err)
	}
	if err := r.Add(b); !errors.Is(err, ErrAlreadyNegotiating) {
		t.Fatalf("Add(b) error = %v, want ErrAlreadyNegotiating", err)
	}
	if r.Active() != a {
		t.Error("Active() is not the registered handle")
	}

	if !r.Remove("a") {
		t.Fatal("Remove(a) = false")
	}
	if r.Remove("a") {
		t.Error("second Remove(a) = true")
	}
	if r.Active() != nil || r.Len() != 0 {
		t.Errorf("registry not empty after remove: len %d", r.Len())
	}

	if err := r.Add(b); err != nil {
		t.Fatalf("Add(b) after remove: %v", err)
	}
	if r.Get("b") != b {
		t.Error("Get(b) did not return b")
	}
}

func TestRegistryActiveIsOldest(t *testing.T) {
	r := NewRegistry(3)
	for _, id := range []string{"x", "y", "z"} {
		if err := r.Add(newHandle(id, RoleCaller, &fakePath{})); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	if err := r.Add(newHandle("x", RoleCaller, &fakePath{})); err == nil {
		t.Error("duplicate id accepted")
	}

	r.Remove("x")
	if got := r.Active().ID(); got != "y" {
		t.Errorf("Active() = %s, want y", got)
	}
}

func TestValidateRemote(t *testing.T) {
	testCases := []struct {
		name       string
		desc       signaling.Description
		want       signaling.MessageType
		candidates int
		ok         bool
	}{
		{"bare offer", signaling.Description{Type: "offer", SDP: bareSDP}, signaling.MsgTypeOffer, 0, true},
		{"gathered answer", signaling.Description{Type: "answer", SDP: gatheredSDP}, signaling.MsgTypeAnswer, 1, true},
		{"wrong type", signaling.Description{Type: "answer", SDP: bareSDP}, signaling.MsgTypeOffer, 0, false},
		{"blank", signaling.Description{Type: "offer", SDP: "  "}, signaling.MsgTypeOffer, 0, false},
		{"garbage", signaling.Description{Type: "offer", SDP: "hello"}, signaling.MsgTypeOffer, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := validateRemote(tc.desc, tc.want)
			if tc.ok {
				if err != nil {
					t.Fatalf("validateRemote: %v", err)
				}
				if n != tc.candidates {
					t.Errorf("candidates = %d, want %d", n, tc.candidates)
				}
				return
			}
			if !errors.Is(err, ErrMalformedRemoteDescription) {
				t.Errorf("error = %v, want ErrMalformedRemoteDescription", err)
			}
		})
	}
}
