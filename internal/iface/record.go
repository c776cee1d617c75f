// Package iface manages the raw-capture sockets and lifecycle of the
// physical interfaces a proxy relays EAPOL frames between.
package iface

import (
	"net"

	"github.com/netrelay/peapod/internal/action"
	"github.com/netrelay/peapod/internal/dot1q"
)

// IngressPolicy is the optional policy attached to the interface a frame
// arrives on: a one-shot MAC-learning rule, a drop filter, and a script
// action table.
type IngressPolicy struct {
	// SetMACFromIndex, when non-negative, names a peer interface (by its
	// position in the configured table) whose first captured source MAC
	// should be applied to this interface. Cleared to -1 on the first
	// attempt, whether or not the MAC change succeeds.
	SetMACFromIndex int
	Filter          *action.Filter
	Actions         action.ActionTable
}

// NoSetMACFrom is the sentinel IngressPolicy.SetMACFromIndex value
// meaning "no set-mac-from peer configured."
const NoSetMACFrom = -1

// EgressPolicy is the optional policy applied when a frame leaves on this
// interface: a VLAN tag rewrite, a drop filter, and a script action
// table.
type EgressPolicy struct {
	TCI     dot1q.TCIOverride
	Filter  *action.Filter
	Actions action.ActionTable
}

// Record is one configured interface: its kernel identity, capture
// socket, and policy. A Record satisfies dot1q.IfaceRef so Frame values
// can carry a reference to it without dot1q importing this package.
type Record struct {
	name  string
	Index int
	mtu   int

	// FD is the open raw capture socket, or 0 if not open.
	FD int

	RecvCtr uint32
	SendCtr uint32

	Ingress IngressPolicy
	Egress  EgressPolicy
	Promisc bool

	CurrentMAC    net.HardwareAddr
	DesiredMAC    net.HardwareAddr
	HasDesiredMAC bool

	// IgnoreEPollErr suppresses the "unexpected epoll event" log for the
	// next non-readable event on this socket (the loop still restarts),
	// set right after a set-mac-from change knocks this socket down and
	// cleared the next time it is consulted.
	IgnoreEPollErr bool
}

// NewRecord returns a Record for the named interface with no policy
// configured yet; internal/config populates the policy fields after
// resolving set-mac-from references to table indices.
func NewRecord(name string) *Record {
	return &Record{
		name:    name,
		Ingress: IngressPolicy{SetMACFromIndex: NoSetMACFrom},
	}
}

// Name implements dot1q.IfaceRef.
func (r *Record) Name() string { return r.name }

// MTU implements dot1q.IfaceRef.
func (r *Record) MTU() int { return r.mtu }
