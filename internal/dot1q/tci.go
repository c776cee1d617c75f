package dot1q

// TCI is the 802.1Q Tag Control Information: priority code point, the
// drop-eligible indicator, and VLAN identifier. Together with the fixed
// TPID 0x8100 it round-trips to a 4-byte big-endian wire value.
type TCI struct {
	PCP uint8  // 3 bits, 0-7
	DEI bool   // 1 bit
	VID uint16 // 12 bits, 0-4094
}

// dot1qTPID is the 802.1Q EtherType that precedes a TCI on the wire.
const dot1qTPID uint32 = 0x8100

// Encode packs t into the big-endian uint32 that would sit at the tag
// position on the wire: TPID in the high 16 bits, then PCP(3)|DEI(1)|VID(12).
func (t TCI) Encode() uint32 {
	tci := uint32(t.PCP&0x7)<<13 | uint32(dei(t.DEI))<<12 | uint32(t.VID&0x0FFF)
	return dot1qTPID<<16 | tci
}

// DecodeTCI reconstructs a TCI from the low 16 bits of a wire tag value as
// produced by Encode (or from a kernel-reported tp_vlan_tci field, which
// already excludes the TPID).
func DecodeTCI(raw uint32) TCI {
	return TCI{
		PCP: uint8((raw >> 13) & 0x7),
		DEI: (raw>>12)&0x1 != 0,
		VID: uint16(raw & 0x0FFF),
	}
}

func dei(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// FieldOverride is a generic "keep the captured value, or replace it"
// policy slot. The zero value replaces the captured value with T's zero
// value; Keep builds the Untouched variant. It exists so the YAML
// sentinel bytes (0xFF, 0xFFFF) used by the original wire format never
// have to appear outside internal/config.
type FieldOverride[T any] struct {
	Untouched bool
	Value     T
}

// Keep returns an override that preserves the captured sub-field value.
func Keep[T any]() FieldOverride[T] {
	return FieldOverride[T]{Untouched: true}
}

// Set returns an override that replaces the captured sub-field value.
func Set[T any](v T) FieldOverride[T] {
	return FieldOverride[T]{Value: v}
}

// Resolve returns the override's value, or current if the override is
// Untouched.
func (f FieldOverride[T]) Resolve(current T) T {
	if f.Untouched {
		return current
	}
	return f.Value
}

// TCIOverride is an egress VLAN policy. Strip drops the 802.1Q tag
// entirely regardless of the per-field overrides, mirroring the original
// PCP==NO_DOT1Q sentinel. When Strip is false, each sub-field is applied
// independently via FieldOverride.
type TCIOverride struct {
	Strip bool
	PCP   FieldOverride[uint8]
	DEI   FieldOverride[bool]
	VID   FieldOverride[uint16]
}

// UntouchedTCIOverride is the policy that changes nothing: every sub-field
// keeps the captured value and the tag is never stripped.
func UntouchedTCIOverride() TCIOverride {
	return TCIOverride{
		PCP: Keep[uint8](),
		DEI: Keep[bool](),
		VID: Keep[uint16](),
	}
}

// Apply computes the egress TCI for a captured tci, reporting whether the
// resulting frame should carry a tag at all. It does not know whether the
// frame was captured with a tag; Frame.ApplyEgressTCI keeps an untagged
// frame untagged when every sub-field is Untouched.
func (o TCIOverride) Apply(captured TCI) (out TCI, tagged bool) {
	if o.Strip {
		return TCI{}, false
	}
	return TCI{
		PCP: o.PCP.Resolve(captured.PCP),
		DEI: o.DEI.Resolve(captured.DEI),
		VID: o.VID.Resolve(captured.VID),
	}, true
}
