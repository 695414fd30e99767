package model

// DeviceIdentity is the node's stable identifier: the hardware network
// address reported by the link driver, captured once after the first
// successful association and never rewritten. Empty until then.
type DeviceIdentity string

func (d DeviceIdentity) Empty() bool { return d == "" }

func (d DeviceIdentity) String() string { return string(d) }
