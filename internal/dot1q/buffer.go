package dot1q

const (
	macLen   = 6
	tagLen   = 4 // TPID + TCI
	etherLen = 2 // EtherType, read as part of the MPDU itself
	scratch  = 2*macLen + tagLen  // 16 bytes ahead of the MPDU
	untagged = scratch - 2*macLen // offset for a frame with no 802.1Q tag
)

// Buffer is the single process-lifetime scratch arena a Loop reuses for
// every captured frame. recvmsg deposits the EAPOL MPDU at a fixed offset
// (MPDUSlice); Reconstruct writes an Ethernet (and optional 802.1Q) header
// into the 16 bytes immediately preceding it so a send never needs to copy
// the MPDU payload itself.
type Buffer struct {
	arena  []byte
	maxMTU int
}

// NewBuffer allocates an arena sized to hold the largest frame any
// configured interface can receive: 2 MAC addresses, a 4-byte tag, a
// 2-byte EtherType, and up to maxMTU bytes of EAPOL body.
func NewBuffer(maxMTU int) *Buffer {
	return &Buffer{
		arena:  make([]byte, scratch+etherLen+maxMTU),
		maxMTU: maxMTU,
	}
}

// MPDUSlice returns the interior slice a capture should read the EAPOL
// MPDU into: EtherType onward, starting at byte 16.
func (b *Buffer) MPDUSlice() []byte {
	return b.arena[scratch : scratch+etherLen+b.maxMTU]
}

// Reconstruct writes the destination MAC, source MAC, and (if the relevant
// VLAN-valid flag is set) the 4-byte TPID+TCI into the scratch region, then
// returns the slice ready to hand to write(2): starting either at the
// beginning of the arena (tag present) or 4 bytes in (no tag), with length
// equal to the frame's total on-wire size. Reconstruct is idempotent for
// the same (frame, useOriginal) pair since it only overwrites scratch
// bytes that are about to be read back out immediately.
func (b *Buffer) Reconstruct(f Frame, useOriginal bool) []byte {
	dest, src := f.Dest, f.Source
	vlanValid, tci, length := f.VLANValid, f.TCI, f.Length
	if useOriginal {
		vlanValid, tci, length = f.VLANValidOrig, f.TCIOrig, f.LengthOrig
	}

	if vlanValid {
		copy(b.arena[0:macLen], dest)
		copy(b.arena[macLen:2*macLen], src)
		putUint32(b.arena[2*macLen:2*macLen+tagLen], tci.Encode())
		return b.arena[0:length]
	}

	copy(b.arena[untagged:untagged+macLen], dest)
	copy(b.arena[untagged+macLen:untagged+2*macLen], src)
	return b.arena[untagged : untagged+length]
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
