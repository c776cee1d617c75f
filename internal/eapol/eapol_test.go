package eapol

import "testing"

func TestDecodeKnownAndUnknown(t *testing.T) {
	if got := Decode(TypeKey, TypeTable); got != "EAPOL-Key" {
		t.Errorf("Decode(TypeKey) = %q", got)
	}
	if got := Decode(200, TypeTable); got != Unknown {
		t.Errorf("Decode(200) = %q, want %q", got, Unknown)
	}
}

func TestDecodeFirstMatchWins(t *testing.T) {
	table := DecodeTable{
		{5, "first"},
		{5, "second"},
	}
	if got := Decode(5, table); got != "first" {
		t.Errorf("Decode = %q, want first match %q", got, "first")
	}
}

func TestCodeTableCoversRFC3748(t *testing.T) {
	cases := map[uint8]string{
		CodeRequest:  "Request",
		CodeResponse: "Response",
		CodeSuccess:  "Success",
		CodeFailure:  "Failure",
	}
	for code, want := range cases {
		if got := Decode(code, CodeTable); got != want {
			t.Errorf("Decode(%d) = %q, want %q", code, got, want)
		}
	}
}
