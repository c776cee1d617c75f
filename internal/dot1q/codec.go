package dot1q

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/netrelay/peapod/internal/eapol"
)

// Capture-path error sentinels. Runt and Giant are retryable drop
// conditions; Receive wraps the underlying recvmsg(2) failure.
var (
	ErrReceive = errors.New("dot1q: receive failed")
	ErrRunt    = errors.New("dot1q: runt frame")
	ErrGiant   = errors.New("dot1q: giant frame")
)

// minFrameLen is the smallest legal Ethernet frame: a frame shorter than
// this on the wire cannot carry a complete EAPOL header and is dropped as
// a runt.
const minFrameLen = 60

// tpStatusVLANValid mirrors TP_STATUS_VLAN_VALID from linux/if_packet.h:
// the kernel stripped an 802.1Q tag and reports it via PACKET_AUXDATA.
const tpStatusVLANValid = 0x10

// sizeofTPacketAuxdata is sizeof(struct tpacket_auxdata) on Linux: three
// uint32 and four uint16 fields packed in host byte order, as written by the kernel
// into the PACKET_AUXDATA control message.
const sizeofTPacketAuxdata = 20

type tpacketAuxdata struct {
	tpStatus   uint32
	tpLen      uint32
	tpSnaplen  uint32
	tpMac      uint16
	tpNet      uint16
	tpVlanTCI  uint16
	tpVlanTPID uint16
}

func parseAuxdata(b []byte) (tpacketAuxdata, bool) {
	if len(b) < sizeofTPacketAuxdata {
		return tpacketAuxdata{}, false
	}
	return tpacketAuxdata{
		tpStatus:   binary.NativeEndian.Uint32(b[0:4]),
		tpLen:      binary.NativeEndian.Uint32(b[4:8]),
		tpSnaplen:  binary.NativeEndian.Uint32(b[8:12]),
		tpMac:      binary.NativeEndian.Uint16(b[12:14]),
		tpNet:      binary.NativeEndian.Uint16(b[14:16]),
		tpVlanTCI:  binary.NativeEndian.Uint16(b[16:18]),
		tpVlanTPID: binary.NativeEndian.Uint16(b[18:20]),
	}, true
}

// Capture performs one recvmsg-style receive: a three-segment gather
// vector (destination MAC, source MAC, and buf's MPDU slice) plus a
// control-message buffer sized for a single PACKET_AUXDATA record. It
// never sets MSG_TRUNC; the kernel delivers at most the buffer's capacity.
func Capture(fd int, buf *Buffer) (Frame, error) {
	dest := make([]byte, macLen)
	src := make([]byte, macLen)
	mpdu := buf.MPDUSlice()
	oob := make([]byte, unix.CmsgSpace(sizeofTPacketAuxdata))

	n, oobn, _, _, err := unix.RecvmsgBuffers(fd, [][]byte{dest, src, mpdu}, oob, 0)
	if err != nil {
		return Frame{}, errWrap(ErrReceive, err)
	}
	if n < minFrameLen {
		return Frame{}, ErrRunt
	}

	f := Frame{
		Timestamp: captureTimestamp(fd),
		Length:    n,
		Dest:      net.HardwareAddr(append([]byte(nil), dest...)),
		Source:    net.HardwareAddr(append([]byte(nil), src...)),
	}

	if oobn > 0 {
		cmsgs, cerr := unix.ParseSocketControlMessage(oob[:oobn])
		if cerr == nil {
			for _, cmsg := range cmsgs {
				if cmsg.Header.Level != unix.SOL_PACKET || cmsg.Header.Type != unix.PACKET_AUXDATA {
					continue
				}
				aux, ok := parseAuxdata(cmsg.Data)
				if !ok {
					continue
				}
				if aux.tpLen > 0 && int(aux.tpLen) > len(buf.arena) {
					return Frame{}, ErrGiant
				}
				if aux.tpStatus&tpStatusVLANValid != 0 && uint32(aux.tpVlanTPID) == uint32(eapol.VLANEtherType) {
					f.VLANValid = true
					f.TCI = DecodeTCI(uint32(aux.tpVlanTCI))
					f.Length += 4
				}
			}
		}
	}

	mpduLen := n - 2*macLen
	if mpduLen > eapol.OffsetType {
		f.Type = mpdu[eapol.OffsetType]
		if f.Type == eapol.TypeEAP && mpduLen > eapol.OffsetEAPCode {
			f.Code = mpdu[eapol.OffsetEAPCode]
		}
	}
	f.MPDU = mpdu[:mpduLen]

	f.LengthOrig = f.Length
	f.VLANValidOrig = f.VLANValid
	f.TCIOrig = f.TCI

	return f, nil
}

// captureTimestamp asks the kernel for the socket's packet-reception
// timestamp via SIOCGSTAMP, falling back to the wall clock if the ioctl
// is unavailable (e.g. the frame arrived before any timestamp was
// latched).
func captureTimestamp(fd int) time.Time {
	tv, err := unix.IoctlGetTimeval(fd, unix.SIOCGSTAMP)
	if err != nil {
		return time.Now()
	}
	return time.Unix(tv.Sec, tv.Usec*1000)
}

func errWrap(sentinel, cause error) error {
	return &wrappedError{sentinel: sentinel, cause: cause}
}

type wrappedError struct {
	sentinel error
	cause    error
}

func (e *wrappedError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *wrappedError) Unwrap() error { return e.sentinel }
func (e *wrappedError) Cause() error  { return e.cause }

// Decode renders a wire value using an eapol decode table. It is a thin
// re-export so callers outside internal/eapol never need to import it
// just to log a frame.
func Decode(val uint8, table eapol.DecodeTable) string {
	return eapol.Decode(val, table)
}
