package iface

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/netrelay/peapod/internal/eapol"
)

// eapolGroupMACs are the three IEEE 802.1X reserved multicast destination
// addresses a non-promiscuous interface must join to receive EAPOL
// traffic that never reaches it unicast: the nearest-bridge, PAE, and
// LLDP group addresses.
var eapolGroupMACs = [3]net.HardwareAddr{
	{0x01, 0x80, 0xC2, 0x00, 0x00, 0x00},
	{0x01, 0x80, 0xC2, 0x00, 0x00, 0x03},
	{0x01, 0x80, 0xC2, 0x00, 0x00, 0x0E},
}

func htons(h uint16) uint16 { return h<<8 | h>>8 }

// OpenSocket opens an AF_PACKET/SOCK_RAW socket bound to ifi's kernel
// index with the protocol wildcard so the BPF filter attached by
// AttachEAPOLFilter — not the socket's bound protocol — decides what is
// delivered. Binding at ETH_P_EAPOL directly would suppress the
// PACKET_AUXDATA control message VLAN recovery depends on.
func OpenSocket(ifi *Record) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return -1, fmt.Errorf("iface %s: socket: %w", ifi.name, err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("iface %s: bind: %w", ifi.name, err)
	}
	return fd, nil
}

// AttachEAPOLFilter installs the bit-exact four-instruction BPF program:
// load the half-word at offset 12 (EtherType), accept frames whose value
// is 0x888E, reject everything else. Grounded on the original's
// eapol_sock_filter[] in iface.c.
func AttachEAPOLFilter(fd int) error {
	prog := []unix.SockFilter{
		{Code: 0x28, Jt: 0, Jf: 0, K: 12},
		{Code: 0x15, Jt: 0, Jf: 1, K: uint32(eapol.EtherType)},
		{Code: 0x06, Jt: 0, Jf: 0, K: 0xBEF001ED},
		{Code: 0x06, Jt: 0, Jf: 0, K: 0},
	}
	fprog := &unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, fprog); err != nil {
		return fmt.Errorf("iface: SO_ATTACH_FILTER: %w", err)
	}
	return nil
}

// JoinMembership joins either promiscuous mode (if ifi.Promisc) or the
// three EAPOL reserved multicast groups, so the interface actually
// receives traffic a normal L2 switch would otherwise never forward to
// it.
func JoinMembership(fd int, ifi *Record) error {
	if ifi.Promisc {
		mreq := unix.PacketMreq{
			Ifindex: int32(ifi.Index),
			Type:    unix.PACKET_MR_PROMISC,
		}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return fmt.Errorf("iface %s: join promiscuous: %w", ifi.name, err)
		}
		return nil
	}

	for _, mac := range eapolGroupMACs {
		mreq := unix.PacketMreq{
			Ifindex: int32(ifi.Index),
			Type:    unix.PACKET_MR_MULTICAST,
			Alen:    uint16(len(mac)),
		}
		copy(mreq.Address[:], mac)
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return fmt.Errorf("iface %s: join multicast %s: %w", ifi.name, mac, err)
		}
	}
	return nil
}

// EnableAuxdata turns on PACKET_AUXDATA so that a VLAN tag the kernel
// strips before delivery arrives out-of-band in a control message. This
// is best-effort: failure degrades VLAN recovery but must not abort
// bring-up.
func EnableAuxdata(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_AUXDATA, 1)
}
