package model

// ConnState tracks the two connectivity layers: link association below,
// broker session on top. SESSION_UP implies an associated link.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateAssociating
	StateLinkUp
	StateSessionUp
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateAssociating:
		return "ASSOCIATING"
	case StateLinkUp:
		return "LINK_UP"
	case StateSessionUp:
		return "SESSION_UP"
	default:
		return "UNKNOWN"
	}
}
