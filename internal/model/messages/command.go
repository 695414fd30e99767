package messages

// Command is an inbound instruction delivered on the node's command topic
// at QoS 1. RequestID deduplicates broker redeliveries; it may be empty,
// in which case the consumer falls back to hashing the payload.
type Command struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
}

// Actions a node understands. Anything else is logged and dropped.
const (
	ActionSample = "sample"
)
