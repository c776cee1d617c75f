package action

import (
	"testing"

	"github.com/netrelay/peapod/internal/eapol"
)

func TestTypeMaskDrops(t *testing.T) {
	m := TypeMask(1<<eapol.TypeStart | 1<<eapol.TypeLogoff)
	cases := map[uint8]bool{
		eapol.TypeStart:  true,
		eapol.TypeLogoff: true,
		eapol.TypeEAP:    false,
		eapol.TypeKey:    false,
	}
	for typ, want := range cases {
		if got := m.Drops(typ); got != want {
			t.Errorf("Drops(%d) = %v, want %v", typ, got, want)
		}
	}
}

func TestCodeMaskDrops(t *testing.T) {
	m := CodeMask(1 << eapol.CodeFailure)
	if !m.Drops(eapol.CodeFailure) {
		t.Error("expected CodeFailure to be dropped")
	}
	if m.Drops(eapol.CodeSuccess) {
		t.Error("did not expect CodeSuccess to be dropped")
	}
}

func TestShouldDropNilFilterNeverDrops(t *testing.T) {
	if ShouldDrop(nil, eapol.TypeStart, 0) {
		t.Error("nil filter dropped a frame")
	}
}

func TestShouldDropByTypeOrByCode(t *testing.T) {
	f := &Filter{
		Types: TypeMask(1 << eapol.TypeLogoff),
		Codes: CodeMask(1 << eapol.CodeFailure),
	}
	tests := []struct {
		name string
		typ  uint8
		code uint8
		want bool
	}{
		{"type match", eapol.TypeLogoff, 0, true},
		{"code match on EAP", eapol.TypeEAP, eapol.CodeFailure, true},
		{"code set but type not EAP", eapol.TypeKey, eapol.CodeFailure, false},
		{"no match", eapol.TypeEAP, eapol.CodeSuccess, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldDrop(f, tc.typ, tc.code); got != tc.want {
				t.Errorf("ShouldDrop(type=%d, code=%d) = %v, want %v", tc.typ, tc.code, got, tc.want)
			}
		})
	}
}

func TestSelectScriptByTypeWinsOverByCode(t *testing.T) {
	tbl := ActionTable{}
	tbl.ByType[eapol.TypeEAP] = "/opt/peapod/on-eap.sh"
	tbl.ByCode[eapol.CodeFailure] = "/opt/peapod/on-failure.sh"

	got := SelectScript(tbl, eapol.TypeEAP, eapol.CodeFailure)
	if got != tbl.ByType[eapol.TypeEAP] {
		t.Errorf("SelectScript = %q, want by-type entry %q", got, tbl.ByType[eapol.TypeEAP])
	}
}

func TestSelectScriptFallsBackToByCode(t *testing.T) {
	tbl := ActionTable{}
	tbl.ByCode[eapol.CodeFailure] = "/opt/peapod/on-failure.sh"

	got := SelectScript(tbl, eapol.TypeEAP, eapol.CodeFailure)
	if got != tbl.ByCode[eapol.CodeFailure] {
		t.Errorf("SelectScript = %q, want by-code entry %q", got, tbl.ByCode[eapol.CodeFailure])
	}
}

func TestSelectScriptNoMatch(t *testing.T) {
	tbl := ActionTable{}
	if got := SelectScript(tbl, eapol.TypeStart, 0); got != "" {
		t.Errorf("SelectScript = %q, want empty", got)
	}
}
