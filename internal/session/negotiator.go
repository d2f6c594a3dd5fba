// Package session drives the offer/answer negotiation with the remote peer.
// All session state lives on a single goroutine (Negotiator.Run); relay
// messages, local intents and media-path callbacks reach it as events.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/signaling"
	"github.com/1ureka/duocall/internal/util"
)

const eventQueueSize = 64

// Relay sends a signaling message to the other participant.
type Relay interface {
	Send(ctx context.Context, msg signaling.Message) error
}

// Media is the part of the media controller the negotiator needs.
type Media interface {
	CurrentStream() *media.Stream
	OnRemoteTrack(t media.Track)
	ClearRemote()

	// ReleaseTracks is handed a closed session's local tracks. Tracks no
	// longer in the current stream may be stopped.
	ReleaseTracks(tracks []*media.LocalTrack)
}

// Config wires a Negotiator. Registry defaults to a capacity-1 registry.
type Config struct {
	Relay    Relay
	NewPath  PathFactory
	Media    Media
	Registry *Registry
}

// Negotiator owns the connection handle and the vanilla-ICE exchange.
type Negotiator struct {
	relay    Relay
	newPath  PathFactory
	media    Media
	registry *Registry

	events chan event
	done   chan struct{}

	// last is the most recently closed handle, kept for Snapshot.
	last *Handle
}

// NewNegotiator creates a negotiator. Call Run to start processing.
func NewNegotiator(cfg Config) *Negotiator {
	reg := cfg.Registry
	if reg == nil {
		reg = NewRegistry(1)
	}
	return &Negotiator{
		relay:    cfg.Relay,
		newPath:  cfg.NewPath,
		media:    cfg.Media,
		registry: reg,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────────────────────────────────

type event interface{ isEvent() }

type connectIntent struct{ reply chan error }
type hangupIntent struct{ reply chan error }
type relayMessage struct {
	msg   signaling.Message
	reply chan error
}
type snapshotQuery struct{ reply chan Snapshot }

type gatheringDone struct{ session string }
type trackArrived struct {
	session string
	track   *media.RemoteTrack
}
type connectionChanged struct {
	session string
	state   ConnectionState
}

func (connectIntent) isEvent()     {}
func (hangupIntent) isEvent()      {}
func (relayMessage) isEvent()      {}
func (snapshotQuery) isEvent()     {}
func (gatheringDone) isEvent()     {}
func (trackArrived) isEvent()      {}
func (connectionChanged) isEvent() {}

// ──────────────────────────────────────────────────────────────────────────────
// Public API
// ──────────────────────────────────────────────────────────────────────────────

// Run processes events until ctx is cancelled, then closes any live handle.
// It must be called exactly once.
func (n *Negotiator) Run(ctx context.Context) error {
	defer close(n.done)
	for {
		select {
		case ev := <-n.events:
			n.dispatch(ctx, ev)
		case <-ctx.Done():
			if h := n.registry.Active(); h != nil {
				n.close(h, "shutting down")
			}
			return ctx.Err()
		}
	}
}

// Connect starts a session as the caller. It fails with ErrAlreadyNegotiating
// if a handle exists. The offer is relayed once gathering completes.
func (n *Negotiator) Connect(ctx context.Context) error {
	reply := make(chan error, 1)
	return n.request(ctx, connectIntent{reply: reply}, reply)
}

// HandleMessage feeds one relay message to the state machine. The returned
// error reports how the message was handled; the caller only logs it.
func (n *Negotiator) HandleMessage(ctx context.Context, msg signaling.Message) error {
	reply := make(chan error, 1)
	return n.request(ctx, relayMessage{msg: msg, reply: reply}, reply)
}

// Hangup closes the live handle. It fails with ErrNoActiveConnection if there
// is none.
func (n *Negotiator) Hangup(ctx context.Context) error {
	reply := make(chan error, 1)
	return n.request(ctx, hangupIntent{reply: reply}, reply)
}

// Snapshot returns the state of the live handle, or of the last closed one.
// With no session ever started the phase is PhaseUnbound.
func (n *Negotiator) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := n.post(ctx, snapshotQuery{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-n.done:
		return Snapshot{}, ErrStopped
	}
}

func (n *Negotiator) request(ctx context.Context, ev event, reply chan error) error {
	if err := n.post(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-n.done:
		return ErrStopped
	}
}

func (n *Negotiator) post(ctx context.Context, ev event) error {
	select {
	case n.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-n.done:
		return ErrStopped
	}
}

// pathEvents binds media-path callbacks to session id so that callbacks from
// a closed path are recognised and ignored.
func (n *Negotiator) pathEvents(id string) PathEvents {
	bg := context.Background()
	return PathEvents{
		GatheringComplete: func() {
			_ = n.post(bg, gatheringDone{session: id})
		},
		Track: func(t *media.RemoteTrack) {
			_ = n.post(bg, trackArrived{session: id, track: t})
		},
		ConnectionState: func(s ConnectionState) {
			_ = n.post(bg, connectionChanged{session: id, state: s})
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Event loop
// ──────────────────────────────────────────────────────────────────────────────

func (n *Negotiator) dispatch(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case connectIntent:
		ev.reply <- n.connect()
	case hangupIntent:
		ev.reply <- n.hangup()
	case relayMessage:
		ev.reply <- n.receive(ev.msg)
	case snapshotQuery:
		ev.reply <- n.snapshot()
	case gatheringDone:
		n.onGatheringDone(ctx, ev.session)
	case trackArrived:
		n.onTrack(ev.session, ev.track)
	case connectionChanged:
		n.onConnectionState(ev.session, ev.state)
	}
}

// open creates and registers a handle in the given role.
func (n *Negotiator) open(role Role) (*Handle, error) {
	if h := n.registry.Active(); h != nil {
		return nil, fmt.Errorf("%w: session %s is %s", ErrAlreadyNegotiating, shortID(h.id), h.phase)
	}

	id := uuid.NewString()
	path, err := n.newPath(n.pathEvents(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediaPathFailed, err)
	}

	h := newHandle(id, role, path)
	if err := n.registry.Add(h); err != nil {
		_ = path.Close()
		return nil, err
	}
	h.phase = PhaseNegotiating
	util.LogDebug("Session %s opened as %s", shortID(id), role)
	return h, nil
}

func (n *Negotiator) connect() error {
	h, err := n.open(RoleCaller)
	if err != nil {
		return err
	}
	util.LogInfo("Calling peer (session %s)...", shortID(h.id))

	if err := h.attach(n.media.CurrentStream()); err != nil {
		return n.fail(h, err)
	}
	offer, err := h.path.CreateOffer()
	if err != nil {
		return n.fail(h, fmt.Errorf("%w: create offer: %w", ErrMediaPathFailed, err))
	}
	if err := h.setLocal(offer); err != nil {
		return n.fail(h, err)
	}
	util.LogDebug("Local offer set, gathering candidates")
	return nil
}

func (n *Negotiator) hangup() error {
	h := n.registry.Active()
	if h == nil {
		return ErrNoActiveConnection
	}
	n.close(h, "hung up")
	return nil
}

func (n *Negotiator) receive(msg signaling.Message) error {
	var err error
	switch msg.Type {
	case signaling.MsgTypeOffer:
		err = n.receiveOffer(msg.Data)
	case signaling.MsgTypeAnswer:
		err = n.receiveAnswer(msg.Data)
	default:
		err = fmt.Errorf("%w: unsupported message type %q", ErrStaleMessage, msg.Type)
	}

	if err != nil && !isFatal(err) {
		util.LogWarning("Ignoring %s: %v", msg.Type, err)
	}
	return err
}

func (n *Negotiator) receiveOffer(desc signaling.Description) error {
	if h := n.registry.Active(); h != nil {
		return fmt.Errorf("%w: %w: session %s is %s",
			ErrStaleMessage, ErrAlreadyNegotiating, shortID(h.id), h.signaling)
	}

	h, err := n.open(RoleCallee)
	if err != nil {
		return err
	}
	util.LogInfo("Incoming call (session %s)", shortID(h.id))

	candidates, err := h.setRemote(desc, signaling.MsgTypeOffer)
	if err != nil {
		return n.fail(h, err)
	}
	util.LogDebug("Remote offer applied (%d candidates)", candidates)

	if err := h.attach(n.media.CurrentStream()); err != nil {
		return n.fail(h, err)
	}
	answer, err := h.path.CreateAnswer()
	if err != nil {
		return n.fail(h, fmt.Errorf("%w: create answer: %w", ErrMediaPathFailed, err))
	}
	if err := h.setLocal(answer); err != nil {
		return n.fail(h, err)
	}
	util.LogDebug("Local answer set, gathering candidates")
	return nil
}

func (n *Negotiator) receiveAnswer(desc signaling.Description) error {
	h := n.registry.Active()
	if h == nil {
		return fmt.Errorf("%w: answer without a session", ErrNoActiveConnection)
	}
	if h.signaling != SignalingHaveLocalOffer {
		return fmt.Errorf("%w: answer in state %s", ErrStaleMessage, h.signaling)
	}

	candidates, err := h.setRemote(desc, signaling.MsgTypeAnswer)
	if err != nil {
		return n.fail(h, err)
	}
	util.LogInfo("Answer received (%d candidates)", candidates)
	n.maybeEstablish(h)
	return nil
}

func (n *Negotiator) onGatheringDone(ctx context.Context, id string) {
	h := n.registry.Get(id)
	if h == nil {
		util.LogDebug("Gathering finished for closed session %s", shortID(id))
		return
	}
	h.gathering = GatheringComplete
	if h.sent {
		return
	}

	desc, ok := h.path.LocalDescription()
	if !ok {
		util.LogWarning("Gathering finished before a local description was set")
		return
	}

	var kind signaling.MessageType
	switch desc.Type {
	case "offer":
		kind = signaling.MsgTypeOffer
	case "answer":
		kind = signaling.MsgTypeAnswer
	default:
		util.LogWarning("Not relaying local %q description", desc.Type)
		return
	}

	h.local = &desc
	h.sent = true
	if err := n.relay.Send(ctx, signaling.Message{Type: kind, Data: desc}); err != nil {
		util.LogError("Failed to send %s: %v", kind, err)
		return
	}
	util.LogInfo("Sent %s with gathered candidates", kind)
}

func (n *Negotiator) onTrack(id string, t *media.RemoteTrack) {
	h := n.registry.Get(id)
	if h == nil {
		return
	}
	h.remoteTracks = append(h.remoteTracks, t)
	util.LogInfo("Remote %s track received", t.Kind())
	n.media.OnRemoteTrack(t)
}

func (n *Negotiator) onConnectionState(id string, state ConnectionState) {
	h := n.registry.Get(id)
	if h == nil {
		return
	}
	h.connection = state
	util.LogDebug("Session %s connection %s", shortID(id), state)

	switch state {
	case ConnectionConnected:
		n.maybeEstablish(h)
	case ConnectionDisconnected:
		util.LogWarning("Connection to peer interrupted")
	case ConnectionFailed:
		_ = n.fail(h, fmt.Errorf("%w: connection failed", ErrMediaPathFailed))
	case ConnectionClosed:
		n.close(h, "connection closed")
	}
}

func (n *Negotiator) maybeEstablish(h *Handle) {
	if !h.established() {
		return
	}
	h.phase = PhaseEstablished
	util.LogSuccess("Call established with peer")
}

// fail logs a fatal error, closes h and returns err.
func (n *Negotiator) fail(h *Handle, err error) error {
	util.LogError("Session %s failed: %v", shortID(h.id), err)
	n.close(h, "negotiation failed")
	return err
}

func (n *Negotiator) close(h *Handle, reason string) {
	if !n.registry.Remove(h.id) {
		return
	}
	tracks := h.localTracks
	if err := h.close(); err != nil {
		util.LogDebug("Close media path: %v", err)
	}
	n.last = h
	n.media.ClearRemote()
	n.media.ReleaseTracks(tracks)
	util.LogInfo("Session %s closed: %s", shortID(h.id), reason)
}

func (n *Negotiator) snapshot() Snapshot {
	if h := n.registry.Active(); h != nil {
		return h.snapshot()
	}
	if n.last != nil {
		return n.last.snapshot()
	}
	return Snapshot{Phase: PhaseUnbound}
}

func isFatal(err error) bool {
	return errors.Is(err, ErrMalformedRemoteDescription) || errors.Is(err, ErrMediaPathFailed)
}
