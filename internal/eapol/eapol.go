// Package eapol defines the wire-format constants and human-readable
// decoding tables for IEEE 802.1X EAPOL frames and the EAP packets they may
// encapsulate.
package eapol

// EAPOL frame Type values.
// See IEEE Std 802.1X-2010, 11.3.2, Table 11-3.
const (
	TypeEAP           uint8 = 0
	TypeStart         uint8 = 1
	TypeLogoff        uint8 = 2
	TypeKey           uint8 = 3
	TypeEncapASFAlert uint8 = 4
	// Types 5-8 are reserved by later revisions of 802.1X and are carried
	// purely so the 16-bit filter mask in internal/action can address them.
)

// EAP-Packet Code values.
// See RFC 3748 §4.
const (
	CodeRequest uint8 = 1
	CodeResponse uint8 = 2
	CodeSuccess uint8 = 3
	CodeFailure uint8 = 4
)

// EAP-Request/Response Type values.
// See RFC 3748 §5 and the RFCs cited per constant.
const (
	ReqRespIdentity      uint8 = 1
	ReqRespNotification  uint8 = 2
	ReqRespNak           uint8 = 3
	ReqRespMD5Challenge  uint8 = 4
	ReqRespOTP           uint8 = 5
	ReqRespGTC           uint8 = 6
	ReqRespTLS           uint8 = 13  // RFC 2716 §4.1
	ReqRespSIM           uint8 = 18  // RFC 4186 §8.1
	ReqRespTTLS          uint8 = 21  // RFC 5281 §9.1
	ReqRespAKA           uint8 = 23  // RFC 4187 §8.1
	ReqRespPEAP          uint8 = 25
	ReqRespMSCHAPV2      uint8 = 26
	ReqRespMSCHAPV2Old   uint8 = 29
	ReqRespFAST          uint8 = 43  // RFC 4851 §4.1
	ReqRespIKEv2         uint8 = 49  // RFC 5106 §8
	ReqRespExpandedTypes uint8 = 254
	ReqRespExperimental  uint8 = 255
)

// EAPOL-Key Descriptor Type values.
// See IEEE Std 802.1X-2001 §7.6.1. Only the deprecated RC4 descriptor is
// decoded; IEEE 802.11 key data is merely labeled (see Open Question in
// SPEC_FULL.md §11).
const (
	KeyDescriptorRC4 uint8 = 1
)

// Unknown is returned by Decode when a value has no matching description.
const Unknown = "Unknown"

// decodeEntry pairs a single-byte wire value with its human description.
type decodeEntry struct {
	val  uint8
	desc string
}

// DecodeTable is an ordered, first-match-wins value-to-description table,
// as used for EAPOL types, EAP codes, EAP request/response types, and
// EAPOL-Key descriptor types.
type DecodeTable []decodeEntry

// Decode returns the first matching description for val in table, or
// Unknown if none match. Used only for log rendering and script
// environment variables.
func Decode(val uint8, table DecodeTable) string {
	for _, e := range table {
		if e.val == val {
			return e.desc
		}
	}
	return Unknown
}

// TypeTable describes EAPOL frame Type values.
var TypeTable = DecodeTable{
	{TypeEAP, "EAP-Packet"},
	{TypeStart, "EAPOL-Start"},
	{TypeLogoff, "EAPOL-Logoff"},
	{TypeKey, "EAPOL-Key"},
	{TypeEncapASFAlert, "EAPOL-Encapsulated-ASF-Alert"},
}

// CodeTable describes EAP-Packet Code values.
var CodeTable = DecodeTable{
	{CodeRequest, "Request"},
	{CodeResponse, "Response"},
	{CodeSuccess, "Success"},
	{CodeFailure, "Failure"},
}

// ReqRespTable describes EAP-Request/Response Type values, with text as
// stated in the relevant RFCs.
var ReqRespTable = DecodeTable{
	{ReqRespIdentity, "Identity"},
	{ReqRespNotification, "Notification"},
	{ReqRespNak, "Nak (Response only)"},
	{ReqRespMD5Challenge, "MD5-Challenge"},
	{ReqRespOTP, "One Time Password (OTP)"},
	{ReqRespGTC, "Generic Token Card (GTC)"},
	{ReqRespTLS, "EAP TLS"},
	{ReqRespSIM, "EAP-SIM"},
	{ReqRespTTLS, "EAP-TTLS"},
	{ReqRespAKA, "EAP-AKA"},
	{ReqRespPEAP, "PEAP"},
	{ReqRespMSCHAPV2, "EAP MS-CHAP-V2"},
	{ReqRespMSCHAPV2Old, "EAP MS-CHAP V2"},
	{ReqRespFAST, "EAP-FAST"},
	{ReqRespIKEv2, "EAP-IKEv2"},
	{ReqRespExpandedTypes, "Expanded Types"},
	{ReqRespExperimental, "Experimental use"},
}

// KeyDescriptorTable describes EAPOL-Key Descriptor Type values.
var KeyDescriptorTable = DecodeTable{
	{KeyDescriptorRC4, "RC4"},
}

// Wire layout offsets within an EAPOL MPDU (EtherType onward).
const (
	// OffsetType is the packet Type byte, after the 2-byte EtherType and
	// 1-byte protocol version.
	OffsetType = 3
	// OffsetEAPCode is the EAP Code byte, present only when the EAPOL
	// Type is TypeEAP.
	OffsetEAPCode = 4
	// OffsetEAPID is the EAP Identifier byte.
	OffsetEAPID = 5
	// OffsetEAPReqRespType is the EAP Type byte, present only for
	// CodeRequest/CodeResponse.
	OffsetEAPReqRespType = 8
	// HeaderLen is the fixed EAPOL header length: EtherType, version,
	// type, body length.
	HeaderLen = 4
)

// EtherType is the EAPOL Ethernet Type, IEEE 802.1X.
const EtherType uint16 = 0x888E

// VLANEtherType is the 802.1Q TPID.
const VLANEtherType uint16 = 0x8100
