package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
interfaces:
  - name: eth0
    promisc: true
    ingress:
      filter: { types: [1, 2], codes: [] }
    egress:
      tci: { pcp: untouched, dei: untouched, vid: untouched }
  - name: eth1
    ingress:
      set_mac_from: eth0
    egress:
      tci: { pcp: 5, dei: false, vid: 100 }
      filter: { types: [], codes: [4] }
      actions: { by_type: {0: "/opt/peapod/on-eap.sh"} }
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peapod.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadResolvesSetMACFromToIndex(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	ifaces, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ifaces, 2)

	require.Equal(t, "eth0", ifaces[0].Name())
	require.Equal(t, "eth1", ifaces[1].Name())
	require.Equal(t, 0, ifaces[1].Ingress.SetMACFromIndex)
}

func TestLoadBuildsEgressTCIOverride(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	ifaces, err := Load(path)
	require.NoError(t, err)

	untouched := ifaces[0].Egress.TCI
	require.True(t, untouched.PCP.Untouched)
	require.True(t, untouched.DEI.Untouched)
	require.True(t, untouched.VID.Untouched)

	override := ifaces[1].Egress.TCI
	require.False(t, override.PCP.Untouched)
	require.Equal(t, uint8(5), override.PCP.Value)
	require.False(t, override.VID.Untouched)
	require.Equal(t, uint16(100), override.VID.Value)
}

func TestLoadBuildsFilterMasksAndActions(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	ifaces, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, ifaces[0].Ingress.Filter)
	require.True(t, ifaces[0].Ingress.Filter.Types.Drops(1))
	require.True(t, ifaces[0].Ingress.Filter.Types.Drops(2))
	require.False(t, ifaces[0].Ingress.Filter.Types.Drops(3))

	require.NotNil(t, ifaces[1].Egress.Filter)
	require.True(t, ifaces[1].Egress.Filter.Codes.Drops(4))
	require.Equal(t, "/opt/peapod/on-eap.sh", ifaces[1].Egress.Actions.ByType[0])
}

func TestLoadRejectsUnknownSetMACFrom(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: eth0
    ingress:
      set_mac_from: nonexistent
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsSetMACAndSetMACFromTogether(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: eth0
    set_mac: "aa:bb:cc:dd:ee:ff"
    ingress:
      set_mac_from: eth1
  - name: eth1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadStripIgnoresOtherSubFields(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: eth0
    egress:
      tci: { pcp: strip, dei: untouched, vid: untouched }
`)
	ifaces, err := Load(path)
	require.NoError(t, err)
	require.True(t, ifaces[0].Egress.TCI.Strip)
}
