package proxy

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/netrelay/peapod/internal/iface"
)

// errInterrupted is returned by waitEvent when the wait woke up because a
// signal arrived on the signalfd, mirroring the original's "spurious
// wake, drain counters, continue" path.
var errInterrupted = errors.New("proxy: interrupted")

// watchedSignals is the fixed signal set the loop handles: advisory
// HANGUP and USER1, and the two fatal signals INTERRUPT and TERMINATE.
var watchedSignals = []unix.Signal{unix.SIGHUP, unix.SIGINT, unix.SIGTERM, unix.SIGUSR1}

func sigset() unix.Sigset_t {
	var set unix.Sigset_t
	for _, s := range watchedSignals {
		addSignal(&set, s)
	}
	return set
}

// addSignal sets sig's bit in a Linux kernel sigset_t: a fixed array of
// machine words, bit (sig-1) overall. x/sys/unix does not expose a
// sigaddset helper, so this mirrors what the C macro does directly.
func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	idx := (uint(sig) - 1) / 64
	bit := (uint(sig) - 1) % 64
	set.Val[idx] |= 1 << bit
}

// createEpoll opens the epoll instance and a signalfd for the watched
// signal set, then registers the signalfd. It is called both at startup
// and after every restart, since the original tears down and rebuilds
// its epoll instance on each error-restart cycle.
func (l *Loop) createEpoll() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("proxy: epoll_create1: %w", err)
	}
	set := sigset()
	sigfd, err := unix.Signalfd(-1, &set, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return fmt.Errorf("proxy: signalfd: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, sigfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(sigfd),
	}); err != nil {
		unix.Close(sigfd)
		unix.Close(epfd)
		return fmt.Errorf("proxy: registering signalfd: %w", err)
	}

	l.epfd = epfd
	l.sigfd = sigfd
	l.byFD = make(map[int32]*iface.Record)
	return nil
}

func (l *Loop) closeEpoll() {
	if l.sigfd != 0 {
		unix.Close(l.sigfd)
		l.sigfd = 0
	}
	if l.epfd != 0 {
		unix.Close(l.epfd)
		l.epfd = 0
	}
}

// Register implements iface.Registrar: it adds fd to the epoll instance,
// keyed by fd since unix.EpollEvent carries no user-data pointer field in
// Go (unlike the C epoll_data union the original relies on).
func (l *Loop) Register(fd int, ifi *iface.Record) error {
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		return fmt.Errorf("proxy: epoll_ctl add fd %d: %w", fd, err)
	}
	l.byFD[int32(fd)] = ifi
	return nil
}

// blockSignals pins the watched signal set to this goroutine's OS thread.
// The caller must have called runtime.LockOSThread() first: Linux signal
// masks are per-thread, and Go's scheduler would otherwise move the
// goroutine to an unblocked thread between calls.
func (l *Loop) blockSignals() error {
	set := sigset()
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return fmt.Errorf("proxy: blocking signals: %w", err)
	}
	return nil
}

func (l *Loop) unblockSignals() error {
	set := sigset()
	if err := unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil); err != nil {
		return fmt.Errorf("proxy: unblocking signals: %w", err)
	}
	return nil
}

// waitEvent blocks for exactly one readiness event, translating EINTR
// into errInterrupted. Because the signal set is permanently blocked
// outside of this call and delivered instead via the registered
// signalfd, there is no separate atomic-sigmask-swap step to perform —
// signalfd folds "wake on signal" into the same readiness multiplexer
// used for socket events, which is the Go-idiomatic reading of
// epoll_pwait's sigmask swap (see DESIGN.md).
func (l *Loop) waitEvent() (unix.EpollEvent, error) {
	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], -1)
	if err != nil {
		if err == unix.EINTR {
			return unix.EpollEvent{}, errInterrupted
		}
		return unix.EpollEvent{}, fmt.Errorf("proxy: epoll_wait: %w", err)
	}
	if n == 0 {
		return unix.EpollEvent{}, errInterrupted
	}
	return events[0], nil
}

// readSignals drains every pending signalfd_siginfo record, incrementing
// the loop's counters. It never blocks: the signalfd is opened
// SFD_NONBLOCK, so a drained read returns EAGAIN.
func (l *Loop) readSignals() {
	var info unix.SignalfdSiginfo
	buf := (*[unsafe.Sizeof(info)]byte)(unsafe.Pointer(&info))[:]
	for {
		n, err := unix.Read(l.sigfd, buf)
		if err != nil || n != len(buf) {
			return
		}
		switch unix.Signal(info.Signo) {
		case unix.SIGHUP:
			l.sigHup++
		case unix.SIGUSR1:
			l.sigUsr1++
		case unix.SIGINT, unix.SIGTERM:
			l.sigFatal++
		}
	}
}
