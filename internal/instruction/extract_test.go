package instruction

import (
	"testing"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTemperatures(t *testing.T) {
	temps, ok := ExtractTemperatures("T0:205.0 /210.0 B:60.0/60.0")
	require.True(t, ok)
	assert.Equal(t, map[string]map[string]float64{
		"tool0": {"current": 205.0, "target": 210.0},
		"bed":   {"current": 60.0, "target": 60.0},
	}, temps.AsMap())

	t.Run("marlin report", func(t *testing.T) {
		temps, ok := ExtractTemperatures("ok T:21.5 /0.0 B:22.1 /0.0 T0:21.5 /0.0 T1:23.0 /200.0 @:0 B@:0")
		require.True(t, ok)
		assert.Equal(t, state.Reading{Current: 21.5, Target: 0}, temps.Tools[0])
		assert.Equal(t, state.Reading{Current: 23.0, Target: 200}, temps.Tools[1])
		assert.Equal(t, []string{"bed", "tool0", "tool1"}, temps.Heaters())
	})

	t.Run("nothing to read", func(t *testing.T) {
		_, ok := ExtractTemperatures("ok")
		assert.False(t, ok)
	})
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		ok       bool
	}{
		{"equals form", "WiFi module is connected to access point X, IP address = 192.168.1.20", "192.168.1.20", true},
		{"space form", "IP address 10.0.0.7", "10.0.0.7", true},
		{"colon form", "Network: up IP: 172.16.0.2", "172.16.0.2", true},
		{"bare address", "listening on 192.168.0.99 port 80", "192.168.0.99", true},
		{"prefers labelled", "gw 10.0.0.1 IP: 10.0.0.5", "10.0.0.5", true},
		{"none", "network disabled", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, ok := ExtractIP(tt.response)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestExtractNetwork(t *testing.T) {
	info, ok := ExtractNetwork("Network is enabled, IP address = 192.168.1.20")
	require.True(t, ok)
	assert.Equal(t, state.NetworkInfo{IP: "192.168.1.20", State: "connected"}, info)

	info, ok = ExtractNetwork("Network is disabled")
	require.True(t, ok)
	assert.Equal(t, "disconnected", info.State)
}

func TestExtractPosition(t *testing.T) {
	pos, ok := ExtractPosition("X:10.00 Y:-20.50 Z:0.20 E:3.00 Count X:800 Y:1600 Z:80")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"X": 10, "Y": -20.5, "Z": 0.2, "E": 3}, pos)

	pos, ok = ExtractPosition("ok X:1 U:5")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"X": 1, "U": 5}, pos)

	_, ok = ExtractPosition("ok")
	assert.False(t, ok)
}

func TestExtractFirmware(t *testing.T) {
	t.Run("key value tokens", func(t *testing.T) {
		fw, ok := ExtractFirmware("FIRMWARE_NAME:Marlin 2.1.2 (Github) SOURCE_CODE_URL:github.com/MarlinFirmware/Marlin PROTOCOL_VERSION:1.0 MACHINE_TYPE:Ender-3 EXTRUDER_COUNT:1\nok")
		require.True(t, ok)
		assert.Equal(t, "Marlin 2.1.2 (Github)", fw.Name)
		assert.Equal(t, "1.0", fw.Protocol)
		assert.Equal(t, "Ender-3", fw.Machine)
		assert.Equal(t, "1", fw.Extra["EXTRUDER_COUNT"])
	})

	t.Run("json line wins", func(t *testing.T) {
		fw, ok := ExtractFirmware("FIRMWARE_NAME:ignored\n{\"firmwareName\":\"RepRapFirmware\",\"firmwareVersion\":\"3.4.5\",\"boardName\":\"Duet 3\"}\nok")
		require.True(t, ok)
		assert.Equal(t, "RepRapFirmware", fw.Name)
		assert.Equal(t, "3.4.5", fw.Version)
		assert.Equal(t, "Duet 3", fw.Machine)
	})

	t.Run("malformed json falls back", func(t *testing.T) {
		fw, ok := ExtractFirmware("FIRMWARE_VERSION:2.0\n{broken}")
		require.True(t, ok)
		assert.Equal(t, "2.0", fw.Version)
	})
}

func TestFactsUsesDeclaredExtractors(t *testing.T) {
	r := NewBuiltinRegistry()
	resp := "X:1.00 Y:2.00 Z:3.00 T:200.0 /200.0"

	m114, err := r.New("M114", nil, "")
	require.NoError(t, err)
	f := Facts(m114, resp)
	assert.Len(t, f.Position, 3)
	assert.Nil(t, f.Tools)

	g1, err := r.New("G1", nil, "")
	require.NoError(t, err)
	assert.True(t, Facts(g1, resp).Empty())
}
