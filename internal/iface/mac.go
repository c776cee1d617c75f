package iface

import (
	"bytes"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func dgramSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, fmt.Errorf("iface: opening control socket: %w", err)
	}
	return fd, nil
}

// SetMAC performs the MAC change procedure: bring the interface down,
// write the new hardware address, bring it back up, then re-read and
// verify the address took effect. Any failure leaves the interface in
// whatever state the kernel reached; it is the caller's job to decide
// whether that warrants a restart.
func SetMAC(ifi *Record, mac net.HardwareAddr) error {
	sock, err := dgramSocket()
	if err != nil {
		return err
	}
	defer unix.Close(sock)

	req, err := unix.NewIfreq(ifi.name)
	if err != nil {
		return fmt.Errorf("iface %s: building ifreq: %w", ifi.name, err)
	}

	if err := unix.IoctlIfreq(sock, unix.SIOCGIFFLAGS, req); err != nil {
		return fmt.Errorf("iface %s: SIOCGIFFLAGS: %w", ifi.name, err)
	}
	flags := req.Uint16()

	req.SetUint16(flags &^ uint16(unix.IFF_UP))
	if err := unix.IoctlIfreq(sock, unix.SIOCSIFFLAGS, req); err != nil {
		return fmt.Errorf("iface %s: bringing down: %w", ifi.name, err)
	}

	if err := req.SetHardwareAddr(mac); err != nil {
		return fmt.Errorf("iface %s: encoding new hwaddr: %w", ifi.name, err)
	}
	if err := unix.IoctlIfreq(sock, unix.SIOCSIFHWADDR, req); err != nil {
		return fmt.Errorf("iface %s: SIOCSIFHWADDR: %w", ifi.name, err)
	}

	req.SetUint16(flags | uint16(unix.IFF_UP))
	if err := unix.IoctlIfreq(sock, unix.SIOCSIFFLAGS, req); err != nil {
		return fmt.Errorf("iface %s: bringing up: %w", ifi.name, err)
	}

	if err := unix.IoctlIfreq(sock, unix.SIOCGIFHWADDR, req); err != nil {
		return fmt.Errorf("iface %s: verifying SIOCGIFHWADDR: %w", ifi.name, err)
	}
	got, err := req.HardwareAddr()
	if err != nil {
		return fmt.Errorf("iface %s: decoding verified hwaddr: %w", ifi.name, err)
	}
	if !bytes.Equal(got, mac) {
		return fmt.Errorf("iface %s: MAC verify mismatch: kernel reports %s, wanted %s", ifi.name, got, mac)
	}

	ifi.CurrentMAC = got
	ifi.HasDesiredMAC = false
	ifi.DesiredMAC = nil
	return nil
}
