package iface

import "testing"

func TestNewRecordHasNoSetMACFromByDefault(t *testing.T) {
	r := NewRecord("eth0")
	if r.Name() != "eth0" {
		t.Errorf("Name() = %q, want eth0", r.Name())
	}
	if r.Ingress.SetMACFromIndex != NoSetMACFrom {
		t.Errorf("SetMACFromIndex = %d, want %d", r.Ingress.SetMACFromIndex, NoSetMACFrom)
	}
}

func TestMacEqual(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5, 6}
	b := []byte{1, 2, 3, 4, 5, 6}
	c := []byte{1, 2, 3, 4, 5, 7}
	if !macEqual(a, b) {
		t.Error("expected equal MACs to compare equal")
	}
	if macEqual(a, c) {
		t.Error("expected differing MACs to compare unequal")
	}
	if macEqual(a, nil) {
		t.Error("expected different-length MACs to compare unequal")
	}
}
