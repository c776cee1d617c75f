// Package config loads the interface table from a YAML document into the
// types internal/iface, internal/action, and internal/dot1q operate on.
// It is the only place in the module that ever materializes the
// original's sentinel bytes (here spelled "strip"/"untouched") into the
// TCIOverride sum type.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netrelay/peapod/internal/action"
	"github.com/netrelay/peapod/internal/dot1q"
	"github.com/netrelay/peapod/internal/iface"
)

type fileDocument struct {
	Interfaces []fileInterface `yaml:"interfaces"`
}

type fileInterface struct {
	Name    string       `yaml:"name"`
	Promisc bool         `yaml:"promisc"`
	SetMAC  string       `yaml:"set_mac,omitempty"`
	Ingress *fileIngress `yaml:"ingress,omitempty"`
	Egress  *fileEgress  `yaml:"egress,omitempty"`
}

type fileIngress struct {
	SetMACFrom string       `yaml:"set_mac_from,omitempty"`
	Filter     *fileFilter  `yaml:"filter,omitempty"`
	Actions    *fileActions `yaml:"actions,omitempty"`
}

type fileEgress struct {
	TCI     *fileTCI     `yaml:"tci,omitempty"`
	Filter  *fileFilter  `yaml:"filter,omitempty"`
	Actions *fileActions `yaml:"actions,omitempty"`
}

type fileFilter struct {
	Types []uint8 `yaml:"types"`
	Codes []uint8 `yaml:"codes"`
}

type fileActions struct {
	ByType map[int]string `yaml:"by_type"`
	ByCode map[int]string `yaml:"by_code"`
}

type fileTCI struct {
	PCP tciField `yaml:"pcp"`
	DEI tciField `yaml:"dei"`
	VID tciField `yaml:"vid"`
}

// tciField decodes either an integer/boolean VLAN sub-field value or one
// of the two policy sentinels ("untouched", "strip"). It never holds the
// original wire bytes (0xFF, 0xFFFF, 0xEF); those only ever existed in
// the format this config loader replaces.
type tciField struct {
	untouched bool
	strip     bool
	set       bool
	intValue  int
	boolValue bool
}

func (f *tciField) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		switch v {
		case "untouched":
			f.untouched = true
		case "strip":
			f.strip = true
		default:
			return fmt.Errorf("invalid TCI field sentinel %q (want \"untouched\" or \"strip\")", v)
		}
	case bool:
		f.boolValue = v
		f.set = true
	case int:
		f.intValue = v
		f.set = true
	default:
		return fmt.Errorf("unsupported TCI field value %v", raw)
	}
	return nil
}

// toOverride builds a TCIOverride from an optional egress TCI block. A
// nil *fileTCI (egress has no tci: entry) means "leave the tag alone."
func (t *fileTCI) toOverride() (dot1q.TCIOverride, error) {
	if t == nil {
		return dot1q.UntouchedTCIOverride(), nil
	}
	if t.PCP.strip {
		return dot1q.TCIOverride{Strip: true}, nil
	}

	var o dot1q.TCIOverride
	if t.PCP.untouched {
		o.PCP = dot1q.Keep[uint8]()
	} else if t.PCP.set {
		o.PCP = dot1q.Set(uint8(t.PCP.intValue))
	} else {
		return o, fmt.Errorf("egress tci.pcp must be set")
	}
	if t.DEI.untouched {
		o.DEI = dot1q.Keep[bool]()
	} else if t.DEI.set {
		o.DEI = dot1q.Set(t.DEI.boolValue)
	} else {
		return o, fmt.Errorf("egress tci.dei must be set")
	}
	if t.VID.untouched {
		o.VID = dot1q.Keep[uint16]()
	} else if t.VID.set {
		o.VID = dot1q.Set(uint16(t.VID.intValue))
	} else {
		return o, fmt.Errorf("egress tci.vid must be set")
	}
	return o, nil
}

func buildFilter(f *fileFilter) *action.Filter {
	if f == nil {
		return nil
	}
	filter := &action.Filter{}
	for _, t := range f.Types {
		filter.Types |= action.TypeMask(1) << t
	}
	for _, c := range f.Codes {
		filter.Codes |= action.CodeMask(1) << c
	}
	return filter
}

func buildActions(a *fileActions) action.ActionTable {
	var tbl action.ActionTable
	if a == nil {
		return tbl
	}
	for k, v := range a.ByType {
		if k >= 0 && k < len(tbl.ByType) {
			tbl.ByType[k] = v
		}
	}
	for k, v := range a.ByCode {
		if k >= 0 && k < len(tbl.ByCode) {
			tbl.ByCode[k] = v
		}
	}
	return tbl
}

// Load reads and validates the interface table at path, resolving every
// set_mac_from reference to a stable index into the returned slice (per
// the original spec's "entity resolved at configuration time" rule) and
// wiring each interface's filter/action/TCI policy into the types the
// core packages consume.
func Load(path string) ([]*iface.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(doc.Interfaces) == 0 {
		return nil, fmt.Errorf("config: %s: no interfaces configured", path)
	}

	byName := make(map[string]int, len(doc.Interfaces))
	for i, fi := range doc.Interfaces {
		if _, dup := byName[fi.Name]; dup {
			return nil, fmt.Errorf("config: interface %q configured more than once", fi.Name)
		}
		byName[fi.Name] = i
	}

	records := make([]*iface.Record, len(doc.Interfaces))
	for i, fi := range doc.Interfaces {
		r := iface.NewRecord(fi.Name)
		r.Promisc = fi.Promisc

		if fi.SetMAC != "" {
			mac, err := net.ParseMAC(fi.SetMAC)
			if err != nil {
				return nil, fmt.Errorf("config: interface %s: invalid set_mac %q: %w", fi.Name, fi.SetMAC, err)
			}
			r.DesiredMAC = mac
			r.HasDesiredMAC = true
		}

		if fi.Ingress != nil {
			if fi.Ingress.SetMACFrom != "" && r.HasDesiredMAC {
				return nil, fmt.Errorf("config: interface %s: set_mac and ingress.set_mac_from are mutually exclusive", fi.Name)
			}
			r.Ingress.Filter = buildFilter(fi.Ingress.Filter)
			r.Ingress.Actions = buildActions(fi.Ingress.Actions)
		}

		tci, err := fi.Egress.tciOf()
		if err != nil {
			return nil, fmt.Errorf("config: interface %s: %w", fi.Name, err)
		}
		r.Egress.TCI = tci
		if fi.Egress != nil {
			r.Egress.Filter = buildFilter(fi.Egress.Filter)
			r.Egress.Actions = buildActions(fi.Egress.Actions)
		}

		records[i] = r
	}

	for i, fi := range doc.Interfaces {
		if fi.Ingress == nil || fi.Ingress.SetMACFrom == "" {
			continue
		}
		idx, ok := byName[fi.Ingress.SetMACFrom]
		if !ok {
			return nil, fmt.Errorf("config: interface %s: set_mac_from %q: no such interface", fi.Name, fi.Ingress.SetMACFrom)
		}
		if idx == i {
			return nil, fmt.Errorf("config: interface %s: set_mac_from cannot reference itself", fi.Name)
		}
		records[i].Ingress.SetMACFromIndex = idx
	}

	return records, nil
}

// tciOf returns e.TCI's override, or the untouched override if e itself
// (or e.TCI) is absent.
func (e *fileEgress) tciOf() (dot1q.TCIOverride, error) {
	if e == nil {
		return dot1q.UntouchedTCIOverride(), nil
	}
	return e.TCI.toOverride()
}
