package dot1q

import (
	"bytes"
	"net"
	"testing"
)

func TestBufferMPDUSliceSizedForMaxMTU(t *testing.T) {
	b := NewBuffer(1500)
	if got, want := len(b.MPDUSlice()), 2+1500; got != want {
		t.Fatalf("MPDUSlice length = %d, want %d", got, want)
	}
}

func TestReconstructUntagged(t *testing.T) {
	b := NewBuffer(1500)
	mpdu := b.MPDUSlice()
	copy(mpdu, []byte{0x88, 0x8e, 0x01, 0x01, 0x00, 0x00})

	f := Frame{
		Dest:   net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x03},
		Source: net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		Length: 12 + 6,
	}
	out := b.Reconstruct(f, false)
	if len(out) != f.Length {
		t.Fatalf("Reconstruct length = %d, want %d", len(out), f.Length)
	}
	if !bytes.Equal(out[0:6], f.Dest) {
		t.Errorf("dest = % x, want % x", out[0:6], f.Dest)
	}
	if !bytes.Equal(out[6:12], f.Source) {
		t.Errorf("source = % x, want % x", out[6:12], f.Source)
	}
	if !bytes.Equal(out[12:], mpdu[:6]) {
		t.Errorf("mpdu = % x, want % x", out[12:], mpdu[:6])
	}
}

func TestReconstructTagged(t *testing.T) {
	b := NewBuffer(1500)
	mpdu := b.MPDUSlice()
	copy(mpdu, []byte{0x88, 0x8e, 0x01, 0x01, 0x00, 0x00})

	f := Frame{
		Dest:      net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x03},
		Source:    net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		VLANValid: true,
		TCI:       TCI{PCP: 5, DEI: false, VID: 100},
		Length:    16 + 6,
	}
	out := b.Reconstruct(f, false)
	if len(out) != f.Length {
		t.Fatalf("Reconstruct length = %d, want %d", len(out), f.Length)
	}
	if out[12] != 0x81 || out[13] != 0x00 {
		t.Errorf("TPID = % x, want 81 00", out[12:14])
	}
	gotTCI := DecodeTCI(uint32(out[14])<<8 | uint32(out[15]))
	if gotTCI != f.TCI {
		t.Errorf("decoded TCI = %+v, want %+v", gotTCI, f.TCI)
	}
	if !bytes.Equal(out[16:], mpdu[:6]) {
		t.Errorf("mpdu = % x, want % x", out[16:], mpdu[:6])
	}
}

func TestReconstructIsIdempotent(t *testing.T) {
	b := NewBuffer(1500)
	f := Frame{
		Dest:      net.HardwareAddr{1, 2, 3, 4, 5, 6},
		Source:    net.HardwareAddr{6, 5, 4, 3, 2, 1},
		VLANValid: true,
		TCI:       TCI{PCP: 1, VID: 1},
		Length:    16,
	}
	first := append([]byte(nil), b.Reconstruct(f, false)...)
	second := append([]byte(nil), b.Reconstruct(f, false)...)
	if !bytes.Equal(first, second) {
		t.Errorf("Reconstruct not idempotent: %x != %x", first, second)
	}
}

func TestReconstructUsesOriginalFields(t *testing.T) {
	b := NewBuffer(1500)
	f := Frame{
		Dest:          net.HardwareAddr{1, 1, 1, 1, 1, 1},
		Source:        net.HardwareAddr{2, 2, 2, 2, 2, 2},
		VLANValid:     false,
		VLANValidOrig: true,
		TCIOrig:       TCI{PCP: 2, VID: 7},
		Length:        12,
		LengthOrig:    16,
	}
	out := b.Reconstruct(f, true)
	if len(out) != 16 {
		t.Fatalf("Reconstruct(useOriginal=true) length = %d, want 16", len(out))
	}
	if out[12] != 0x81 || out[13] != 0x00 {
		t.Errorf("expected original tag to be written, got % x", out[12:14])
	}
}
