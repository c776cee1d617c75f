// Package action implements the filter and script engine: deciding
// whether a frame is dropped at a given phase, and running the
// configured script (if any) with the frame's details in its
// environment.
package action

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"

	"github.com/netrelay/peapod/internal/b64"
	"github.com/netrelay/peapod/internal/dot1q"
	"github.com/netrelay/peapod/internal/eapol"
)

// Phase identifies which side of a relay a filter or action table applies
// to: the interface a frame arrived on, or one it is about to leave on.
type Phase int

const (
	Ingress Phase = iota
	Egress
)

func (p Phase) String() string {
	if p == Egress {
		return "egress"
	}
	return "ingress"
}

// TypeMask is a 16-bit bitmask over EAPOL packet types 0-8. Bit n set
// means "drop frames whose type equals n".
type TypeMask uint16

// Drops reports whether typ's bit is set in the mask.
func (m TypeMask) Drops(typ uint8) bool {
	if typ > 15 {
		return false
	}
	return m&(1<<typ) != 0
}

// CodeMask is an 8-bit bitmask over EAP codes 1-4 (bit 0 is unused, as in
// the original's dead code[0] slot).
type CodeMask uint8

// Drops reports whether code's bit is set in the mask.
func (m CodeMask) Drops(code uint8) bool {
	if code > 7 {
		return false
	}
	return m&(1<<code) != 0
}

// Filter pairs the two independent masks that hang off one phase of one
// interface's policy. A nil *Filter means "no filter configured" (never
// drops).
type Filter struct {
	Types TypeMask
	Codes CodeMask
}

// ShouldDrop reports whether a frame with the given EAPOL type and EAP
// code should be dropped at the given phase, per f. A nil Filter never
// drops.
func ShouldDrop(f *Filter, typ, code uint8) bool {
	if f == nil {
		return false
	}
	if f.Types.Drops(typ) {
		return true
	}
	if typ == eapol.TypeEAP && f.Codes.Drops(code) {
		return true
	}
	return false
}

// ActionTable holds the optional script paths consulted for a phase:
// ByType is indexed by EAPOL type (0..8), ByCode by EAP code (1..4, slot
// 0 unused). A present (non-empty) ByType entry always wins over ByCode.
type ActionTable struct {
	ByType [9]string
	ByCode [5]string
}

// SelectScript returns the script path the action table selects for a
// frame with the given EAPOL type and EAP code, or "" if none applies.
func SelectScript(tbl ActionTable, typ, code uint8) string {
	if typ <= 8 && tbl.ByType[typ] != "" {
		return tbl.ByType[typ]
	}
	if typ == eapol.TypeEAP && code >= 1 && code <= 4 && tbl.ByCode[code] != "" {
		return tbl.ByCode[code]
	}
	return ""
}

// RunAction selects and, if one applies, synchronously runs the script
// for a frame at the given phase. The call blocks until the script exits,
// matching the original's waitpid-based back-pressure: the proxy loop
// deliberately does not proceed to the next frame until the script
// finishes. A non-zero exit or signal termination is logged but never
// returned as an error — the frame is relayed (or dropped by the filter
// stage) regardless of what the script did.
func RunAction(tbl ActionTable, f dot1q.Frame, buf *dot1q.Buffer, phase Phase, log logr.Logger) error {
	script := SelectScript(tbl, f.Type, f.Code)
	if script == "" {
		return nil
	}

	env, err := buildEnv(f, buf)
	if err != nil {
		return fmt.Errorf("action: building script environment: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("action: opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(script)
	cmd.Env = env
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	runErr := cmd.Run()
	switch {
	case runErr == nil:
		log.V(1).Info("script exited", "phase", phase, "script", script, "iface", f.CurrentIface.Name())
	default:
		var exitErr *exec.ExitError
		if ok := errorsAsExitError(runErr, &exitErr); ok {
			if exitErr.ProcessState.Exited() {
				log.Info("script exited non-zero", "phase", phase, "script", script, "code", exitErr.ExitCode())
			} else {
				log.Info("script terminated by signal", "phase", phase, "script", script, "state", exitErr.ProcessState.String())
			}
		} else {
			log.Error(runErr, "script could not be run", "phase", phase, "script", script)
		}
	}
	return nil
}

func errorsAsExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// buildEnv assembles the PKT_* script environment in the exact order and
// naming the original uses, plus a PATH carried through from the proxy
// process. No other inherited environment variable is passed to the
// child.
func buildEnv(f dot1q.Frame, buf *dot1q.Buffer) ([]string, error) {
	env := []string{"PATH=" + os.Getenv("PATH")}
	set := func(k, v string) { env = append(env, k+"="+v) }

	sec := f.Timestamp.Unix()
	usec := f.Timestamp.Nanosecond() / int(time.Microsecond)
	set("PKT_TIME", fmt.Sprintf("%d.%06d", sec, usec))
	set("PKT_DEST", f.Dest.String())
	set("PKT_SOURCE", f.Source.String())
	set("PKT_TYPE", fmt.Sprintf("%d", f.Type))
	set("PKT_TYPE_DESC", eapol.Decode(f.Type, eapol.TypeTable))

	if f.Type == eapol.TypeEAP {
		set("PKT_CODE", fmt.Sprintf("%d", f.Code))
		set("PKT_CODE_DESC", eapol.Decode(f.Code, eapol.CodeTable))
		if len(f.MPDU) > eapol.OffsetEAPID {
			set("PKT_ID", fmt.Sprintf("%d", f.MPDU[eapol.OffsetEAPID]))
		}
		if (f.Code == eapol.CodeRequest || f.Code == eapol.CodeResponse) && len(f.MPDU) > eapol.OffsetEAPReqRespType {
			reqResp := f.MPDU[eapol.OffsetEAPReqRespType]
			set("PKT_REQRESP_TYPE", fmt.Sprintf("%d", reqResp))
			set("PKT_REQRESP_DESC", eapol.Decode(reqResp, eapol.ReqRespTable))
		}
	}

	set("PKT_LENGTH_ORIG", fmt.Sprintf("%d", f.LengthOrig))
	set("PKT_ORIG", b64.Encode(buf.Reconstruct(f, true)))
	set("PKT_IFACE_ORIG", f.OriginalIface.Name())
	set("PKT_IFACE_MTU_ORIG", fmt.Sprintf("%d", f.OriginalIface.MTU()))
	if f.VLANValidOrig {
		set("PKT_DOT1Q_TCI_ORIG", fmt.Sprintf("%04x", f.TCIOrig.Encode()&0xFFFF))
	}

	set("PKT_LENGTH", fmt.Sprintf("%d", f.Length))
	set("PKT", b64.Encode(buf.Reconstruct(f, false)))
	set("PKT_IFACE", f.CurrentIface.Name())
	set("PKT_IFACE_MTU", fmt.Sprintf("%d", f.CurrentIface.MTU()))
	if f.VLANValid {
		set("PKT_DOT1Q_TCI", fmt.Sprintf("%04x", f.TCI.Encode()&0xFFFF))
	}

	return env, nil
}
