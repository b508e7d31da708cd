package flighttask

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRaisesAlt1(t *testing.T) {
	p := DefaultParams()
	p.LandAlt1 = 5
	p.LandAlt2 = 10
	p.Sanitize()

	assert.Equal(t, 10.0, p.LandAlt1)
	assert.Equal(t, 10.0, p.LandAlt2)
}

func TestSanitizeKeepsValidThresholds(t *testing.T) {
	p := DefaultParams()
	p.LandAlt1 = 12
	p.LandAlt2 = 4
	p.Sanitize()

	assert.Equal(t, 12.0, p.LandAlt1)
	assert.Equal(t, 4.0, p.LandAlt2)
}

func TestParseFlightParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.xml")
	content := `<?xml version="1.0"?>
<vehicle>
  <paramlist>
    <param name="LAND_SPEED" value="1.2"/>
    <param name="TKO_SPEED" value="2.0"/>
    <param name="LAND_ALT1" value="3"/>
    <param name="LAND_ALT2" value="8"/>
    <param name="UNKNOWN" value="99"/>
    <param name="XY_CRUISE" value="not-a-number"/>
  </paramlist>
</vehicle>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := ParseFlightParams(path, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1.2, p.LandSpeed)
	assert.Equal(t, 2.0, p.TakeoffSpeed)
	// alt1 < alt2 in the file; the invariant fix raises alt1.
	assert.Equal(t, 8.0, p.LandAlt1)
	assert.Equal(t, 8.0, p.LandAlt2)
	// Malformed value keeps the base setting.
	assert.Equal(t, DefaultCruiseSpeed, p.CruiseSpeed)
}

func TestParseFlightParamsMissingFile(t *testing.T) {
	_, err := ParseFlightParams("does-not-exist.xml", DefaultParams())
	assert.Error(t, err)
}

func TestParseCtlSenders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vehicle.xml")
	content := `<?xml version="1.0"?>
<vehicle>
  <txlist>
    <transferItem addr="10.0.0.5" port="9200" type="UDP" data="1"/>
    <transferItem addr="10.0.0.6" port="9300" type="TCP" data="3"/>
  </txlist>
  <transferItem addr="ignored" port="1" type="UDP" data="1"/>
</vehicle>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	configs := ParseCtlSenders(path)
	require.Len(t, configs, 2)
	assert.Equal(t, CtlSenderConfig{Addr: "10.0.0.5", Port: 9200, Type: "UDP", Mask: 1}, configs[0])
	assert.Equal(t, CtlSenderConfig{Addr: "10.0.0.6", Port: 9300, Type: "TCP", Mask: 3}, configs[1])
}
