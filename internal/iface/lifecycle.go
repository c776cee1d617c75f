package iface

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// Registrar registers an open, filtered, membership-joined socket with a
// readiness multiplexer. internal/proxy's Loop implements it; iface does
// not import internal/proxy to avoid a dependency cycle (proxy already
// depends on iface).
type Registrar interface {
	Register(fd int, cookie *Record) error
}

// BringUp validates one interface (must be up, must be Ethernet), records
// its kernel index and MTU, applies a pending static MAC override if one
// is configured and differs from the current address, then opens and
// configures its raw capture socket via the Socket Manager steps.
// Failure at any step closes whatever socket was opened and returns an
// error; the caller marks the interface not-ready rather than aborting
// the whole bring-up pass.
func BringUp(ifi *Record, reg Registrar) error {
	netif, err := net.InterfaceByName(ifi.name)
	if err != nil {
		return fmt.Errorf("iface %s: not found: %w", ifi.name, err)
	}
	if netif.Flags&net.FlagUp == 0 {
		return fmt.Errorf("iface %s: not up", ifi.name)
	}
	if netif.Flags&net.FlagLoopback != 0 || len(netif.HardwareAddr) != 6 {
		return fmt.Errorf("iface %s: not an Ethernet interface", ifi.name)
	}

	ifi.Index = netif.Index
	ifi.mtu = netif.MTU
	ifi.CurrentMAC = netif.HardwareAddr

	if ifi.HasDesiredMAC && !macEqual(ifi.CurrentMAC, ifi.DesiredMAC) {
		if err := SetMAC(ifi, ifi.DesiredMAC); err != nil {
			return fmt.Errorf("iface %s: applying configured MAC: %w", ifi.name, err)
		}
	}

	fd, err := OpenSocket(ifi)
	if err != nil {
		return err
	}
	if err := AttachEAPOLFilter(fd); err != nil {
		unix.Close(fd)
		return err
	}
	if err := JoinMembership(fd, ifi); err != nil {
		unix.Close(fd)
		return err
	}
	if err := EnableAuxdata(fd); err != nil {
		// Best-effort: VLAN recovery degrades but bring-up continues.
		_ = err
	}
	if err := reg.Register(fd, ifi); err != nil {
		unix.Close(fd)
		return fmt.Errorf("iface %s: registering with multiplexer: %w", ifi.name, err)
	}

	ifi.FD = fd
	return nil
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// InitAll brings up every configured interface, logging and skipping
// (not aborting on) individual failures, and returns how many came up
// ready. The proxy loop treats ready < len(ifaces) as fatal: a partially
// ready table is never allowed to run.
func InitAll(ifaces []*Record, reg Registrar, log logr.Logger) (ready int) {
	for _, ifi := range ifaces {
		if err := BringUp(ifi, reg); err != nil {
			log.Error(err, "interface bring-up failed", "iface", ifi.name)
			continue
		}
		ready++
	}
	return ready
}
