package dot1q

import "testing"

func TestTCIRoundTrip(t *testing.T) {
	cases := []TCI{
		{PCP: 0, DEI: false, VID: 0},
		{PCP: 7, DEI: true, VID: 4094},
		{PCP: 5, DEI: false, VID: 100},
	}
	for _, want := range cases {
		raw := want.Encode()
		if raw>>16 != dot1qTPID {
			t.Fatalf("Encode(%+v) TPID = %#x, want %#x", want, raw>>16, dot1qTPID)
		}
		got := DecodeTCI(raw & 0xFFFF)
		if got != want {
			t.Errorf("DecodeTCI(Encode(%+v)) = %+v", want, got)
		}
	}
}

func TestTCIOverrideStrip(t *testing.T) {
	o := TCIOverride{Strip: true}
	out, tagged := o.Apply(TCI{PCP: 3, DEI: true, VID: 50})
	if tagged {
		t.Fatal("Strip override reported tagged = true")
	}
	if out != (TCI{}) {
		t.Errorf("Strip override left TCI = %+v, want zero value", out)
	}
}

func TestTCIOverrideUntouchedPreservesCaptured(t *testing.T) {
	captured := TCI{PCP: 4, DEI: true, VID: 200}
	out, tagged := UntouchedTCIOverride().Apply(captured)
	if !tagged {
		t.Fatal("untouched override reported tagged = false")
	}
	if out != captured {
		t.Errorf("untouched override changed TCI: got %+v, want %+v", out, captured)
	}
}

func TestTCIOverridePerField(t *testing.T) {
	captured := TCI{PCP: 4, DEI: true, VID: 200}
	o := TCIOverride{
		PCP: Set[uint8](7),
		DEI: Keep[bool](),
		VID: Set[uint16](10),
	}
	out, tagged := o.Apply(captured)
	if !tagged {
		t.Fatal("expected tagged output")
	}
	want := TCI{PCP: 7, DEI: true, VID: 10}
	if out != want {
		t.Errorf("got %+v, want %+v", out, want)
	}
}
