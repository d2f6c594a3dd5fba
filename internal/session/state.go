package session

// Role is decided per session by who acts first.
type Role int

const (
	RoleCaller Role = iota + 1 // created by a local connect intent
	RoleCallee                 // created by an inbound offer
)

func (r Role) String() string {
	switch r {
	case RoleCaller:
		return "caller"
	case RoleCallee:
		return "callee"
	default:
		return "none"
	}
}

// Phase is the handle lifecycle: Unbound → Negotiating → Established → Closed.
type Phase int

const (
	PhaseUnbound Phase = iota
	PhaseNegotiating
	PhaseEstablished
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnbound:
		return "unbound"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseEstablished:
		return "established"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SignalingState follows the standard offer/answer state machine.
type SignalingState int

const (
	SignalingStable SignalingState = iota
	SignalingHaveLocalOffer
	SignalingHaveRemoteOffer
	SignalingHaveLocalPranswer
	SignalingHaveRemotePranswer
	SignalingClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStable:
		return "stable"
	case SignalingHaveLocalOffer:
		return "have-local-offer"
	case SignalingHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingHaveLocalPranswer:
		return "have-local-pranswer"
	case SignalingHaveRemotePranswer:
		return "have-remote-pranswer"
	case SignalingClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// GatheringState tracks local candidate gathering. The local description is
// relayed only once it reaches GatheringComplete.
type GatheringState int

const (
	GatheringNew GatheringState = iota
	GatheringInProgress
	GatheringComplete
)

func (g GatheringState) String() string {
	switch g {
	case GatheringNew:
		return "new"
	case GatheringInProgress:
		return "gathering"
	case GatheringComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ConnectionState is the network state reported by the media path.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

func (c ConnectionState) String() string {
	switch c {
	case ConnectionNew:
		return "new"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}
