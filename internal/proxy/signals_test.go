package proxy

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestAddSignalSetsExpectedBit(t *testing.T) {
	var set unix.Sigset_t
	addSignal(&set, unix.SIGINT)

	idx := (uint(unix.SIGINT) - 1) / 64
	bit := (uint(unix.SIGINT) - 1) % 64
	if set.Val[idx]&(1<<bit) == 0 {
		t.Fatalf("expected bit %d of word %d to be set for SIGINT", bit, idx)
	}
}

func TestSigsetCoversAllWatchedSignals(t *testing.T) {
	set := sigset()
	for _, s := range watchedSignals {
		idx := (uint(s) - 1) / 64
		bit := (uint(s) - 1) % 64
		if set.Val[idx]&(1<<bit) == 0 {
			t.Errorf("signal %v not present in sigset", s)
		}
	}
}
