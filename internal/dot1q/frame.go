package dot1q

import (
	"net"
	"time"
)

// IfaceRef is the minimal view of an interface a Frame needs to carry.
// internal/iface.Record satisfies it; dot1q never imports internal/iface
// so that iface can depend on dot1q's TCIOverride without a cycle.
type IfaceRef interface {
	Name() string
	MTU() int
}

// Frame is the value that flows through one loop iteration: a capture
// plus whatever an egress pass has mutated. It is deliberately
// value-semantics — copying it is cheap and safe, and every egress peer
// gets its own copy before ApplyEgressTCI mutates the copy's current
// fields.
type Frame struct {
	Timestamp time.Time

	CurrentIface  IfaceRef
	OriginalIface IfaceRef

	Length     int
	LengthOrig int

	Dest   net.HardwareAddr
	Source net.HardwareAddr

	VLANValid     bool
	VLANValidOrig bool
	TCI           TCI
	TCIOrig       TCI

	// Type is the EAPOL packet type extracted from MPDU byte 3.
	Type uint8
	// Code is the EAP code extracted from MPDU byte 4, valid only when
	// Type is the EAPOL-EAP type (0); zero otherwise.
	Code uint8

	// MPDU borrows the Buffer's interior slice: EtherType onward, as
	// captured. It is never copied except by os/exec script plumbing,
	// which reads it through Reconstruct's Base64-encoded snapshot.
	MPDU []byte
}

// ApplyEgressTCI applies an egress VLAN policy to a copy of the frame's
// current fields, adjusting Length by ±4 when the VLAN-valid state
// changes relative to what was captured. A policy whose sub-fields are
// all Untouched leaves an untagged frame untagged. It must be called on a
// per-peer copy of the Frame, never on the captured original.
func (f *Frame) ApplyEgressTCI(override TCIOverride) {
	wasTagged := f.VLANValid
	if !wasTagged && !override.Strip && override.PCP.Untouched && override.DEI.Untouched && override.VID.Untouched {
		return
	}
	newTCI, tagged := override.Apply(f.TCI)
	f.TCI = newTCI
	f.VLANValid = tagged

	switch {
	case wasTagged && !tagged:
		f.Length -= 4
	case !wasTagged && tagged:
		f.Length += 4
	}
}
