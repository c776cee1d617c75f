// Package proxy implements the single-threaded capture/relay event loop:
// one epoll instance multiplexing every interface's raw socket plus a
// signalfd, exactly one frame in flight at a time.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/netrelay/peapod/internal/action"
	"github.com/netrelay/peapod/internal/dot1q"
	"github.com/netrelay/peapod/internal/iface"
	"github.com/netrelay/peapod/internal/metrics"
)

// restartDelay is how long the loop sleeps before rebuilding its
// multiplexer after a non-fatal error, matching the original's fixed
// 10-second backoff.
const restartDelay = 10 * time.Second

// Loop owns the capture/relay event loop for one process run.
type Loop struct {
	ifaces  []*iface.Record
	buf     *dot1q.Buffer
	oneshot bool
	log     logr.Logger
	metrics *metrics.Set

	epfd  int
	sigfd int
	byFD  map[int32]*iface.Record

	sigHup   uint32
	sigUsr1  uint32
	sigFatal uint32
}

// NewLoop constructs a Loop over the given interface table. Call Run to
// bring every interface up and begin relaying.
func NewLoop(ifaces []*iface.Record, buf *dot1q.Buffer, oneshot bool, log logr.Logger, m *metrics.Set) *Loop {
	return &Loop{
		ifaces:  ifaces,
		buf:     buf,
		oneshot: oneshot,
		log:     log,
		metrics: m,
	}
}

// Run locks the calling goroutine to its OS thread (signal masks are
// per-thread), brings every interface up, and relays frames until a
// fatal signal arrives or, in one-shot mode, until any error occurs.
func (l *Loop) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := l.blockSignals(); err != nil {
		return err
	}
	if err := l.createEpoll(); err != nil {
		return err
	}
	defer l.closeEpoll()

	if err := l.bringUpAll(); err != nil {
		return err
	}

	for {
		event, err := l.waitEvent()
		if err != nil {
			if errors.Is(err, errInterrupted) {
				l.readSignals()
				l.checkSignals()
				continue
			}
			return err
		}

		if int(event.Fd) == l.sigfd {
			l.readSignals()
			l.checkSignals()
			continue
		}

		ifi, ok := l.byFD[event.Fd]
		if !ok {
			continue // spurious: fd we no longer track
		}

		if event.Events&unix.EPOLLIN == 0 {
			ignore := ifi.IgnoreEPollErr
			ifi.IgnoreEPollErr = false
			if !ignore {
				l.log.Info("unexpected epoll event", "iface", ifi.Name(), "events", event.Events)
			}
			if err := l.restart(); err != nil {
				return err
			}
			continue
		}

		if err := l.handleReadable(ifi); err != nil {
			return err
		}
	}
}

// handleReadable runs one full capture-filter-fanout cycle for a single
// readiness event on ifi.
func (l *Loop) handleReadable(ifi *iface.Record) error {
	frame, err := dot1q.Capture(ifi.FD, l.buf)
	if err != nil {
		switch {
		case errors.Is(err, dot1q.ErrRunt), errors.Is(err, dot1q.ErrGiant):
			return nil
		default:
			l.log.Error(err, "capture failed", "iface", ifi.Name())
			return l.restart()
		}
	}
	l.metrics.FramesReceived.Inc()

	frame.CurrentIface = ifi
	frame.OriginalIface = ifi

	ifi.RecvCtr++
	if ifi.RecvCtr == 1 {
		l.applySetMACFrom(ifi, frame.Source)
	}

	if err := action.RunAction(ifi.Ingress.Actions, frame, l.buf, action.Ingress, l.log); err != nil {
		l.log.Error(err, "ingress script failed", "iface", ifi.Name())
		l.metrics.ScriptsFailed.Inc()
	} else if action.SelectScript(ifi.Ingress.Actions, frame.Type, frame.Code) != "" {
		l.metrics.ScriptsRun.Inc()
	}

	if action.ShouldDrop(ifi.Ingress.Filter, frame.Type, frame.Code) {
		l.metrics.FramesDropped.WithLabelValues("ingress").Inc()
		return nil
	}

	for _, peer := range l.ifaces {
		if peer == ifi {
			continue
		}
		if err := l.sendTo(peer, frame); err != nil {
			l.log.Error(err, "egress failed", "iface", peer.Name())
			return l.restart()
		}
	}
	return nil
}

// sendTo evaluates peer's egress filter and, if the frame survives,
// applies the VLAN override, runs the egress script, and writes the
// reconstructed bytes to peer's socket.
func (l *Loop) sendTo(peer *iface.Record, frame dot1q.Frame) error {
	if action.ShouldDrop(peer.Egress.Filter, frame.Type, frame.Code) {
		l.metrics.FramesDropped.WithLabelValues("egress").Inc()
		return nil
	}

	egress := frame
	egress.CurrentIface = peer
	egress.ApplyEgressTCI(peer.Egress.TCI)

	if err := action.RunAction(peer.Egress.Actions, egress, l.buf, action.Egress, l.log); err != nil {
		l.log.Error(err, "egress script failed", "iface", peer.Name())
		l.metrics.ScriptsFailed.Inc()
	} else if action.SelectScript(peer.Egress.Actions, egress.Type, egress.Code) != "" {
		l.metrics.ScriptsRun.Inc()
	}

	out := l.buf.Reconstruct(egress, false)
	n, err := unix.Write(peer.FD, out)
	if err != nil {
		return fmt.Errorf("write to %s: %w", peer.Name(), err)
	}
	if n != len(out) {
		return fmt.Errorf("short write to %s: %d of %d bytes", peer.Name(), n, len(out))
	}

	peer.SendCtr++
	l.metrics.FramesSent.Inc()
	return nil
}

// applySetMACFrom walks every peer whose ingress policy names ifi as its
// set-mac-from source and applies src to it, one-shot. A successful set
// effectively restarts that peer's capture socket, so its next epoll
// error is expected: Run restarts the loop for it without logging it as
// unexpected.
func (l *Loop) applySetMACFrom(ifi *iface.Record, src net.HardwareAddr) {
	for _, peer := range l.ifaces {
		if peer.Ingress.SetMACFromIndex < 0 {
			continue
		}
		if l.ifaces[peer.Ingress.SetMACFromIndex] != ifi {
			continue
		}
		peer.Ingress.SetMACFromIndex = iface.NoSetMACFrom
		if err := iface.SetMAC(peer, src); err != nil {
			l.log.Info("set-mac-from failed", "iface", peer.Name(), "source", ifi.Name(), "error", err.Error())
			continue
		}
		peer.IgnoreEPollErr = true
		l.log.Info("applied set-mac-from", "iface", peer.Name(), "source", ifi.Name(), "mac", src.String())
	}
}

// checkSignals acts on whatever readSignals has accumulated, exactly
// where the original's check_signals() does: HANGUP and USER1 are
// advisory and only logged, while a fatal signal terminates the process
// directly from here rather than unwinding back through Run. A second
// fatal signal arriving before the first was acted on aborts immediately
// as a double-signal safety net; this function never returns once a
// fatal signal has been counted.
func (l *Loop) checkSignals() {
	if l.sigHup > 0 {
		l.log.Info("received SIGHUP", "count", l.sigHup)
		l.metrics.Signals.WithLabelValues("HUP").Add(float64(l.sigHup))
		l.sigHup = 0
	}
	if l.sigUsr1 > 0 {
		l.log.Info("received SIGUSR1", "count", l.sigUsr1)
		l.metrics.Signals.WithLabelValues("USR1").Add(float64(l.sigUsr1))
		l.sigUsr1 = 0
	}
	if l.sigFatal >= 2 {
		l.log.Info("second fatal signal received before the first was handled, aborting")
		l.metrics.Signals.WithLabelValues("FATAL").Add(float64(l.sigFatal))
		os.Exit(1)
	}
	if l.sigFatal == 1 {
		l.log.Info("fatal signal received, exiting")
		l.metrics.Signals.WithLabelValues("FATAL").Inc()
		os.Exit(0)
	}
}

func (l *Loop) bringUpAll() error {
	ready := iface.InitAll(l.ifaces, l, l.log)
	if ready != len(l.ifaces) {
		return fmt.Errorf("proxy: only %d of %d interfaces came up ready", ready, len(l.ifaces))
	}
	return nil
}

// restart tears the multiplexer down, sleeps, and rebuilds it along with
// every interface's socket. In one-shot mode it instead reports a fatal
// error so the caller (cmd/peapod) exits with failure.
func (l *Loop) restart() error {
	l.metrics.Restarts.Inc()
	if l.oneshot {
		return errors.New("proxy: fatal error in one-shot mode")
	}

	if err := l.unblockSignals(); err != nil {
		return err
	}
	l.readSignals()
	l.checkSignals()

	l.closeEpoll()
	for _, ifi := range l.ifaces {
		if ifi.FD != 0 {
			unix.Close(ifi.FD)
			ifi.FD = 0
		}
	}

	time.Sleep(restartDelay)

	l.readSignals()
	l.checkSignals()

	if err := l.createEpoll(); err != nil {
		return err
	}
	if err := l.bringUpAll(); err != nil {
		return err
	}
	return l.blockSignals()
}
