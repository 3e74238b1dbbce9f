package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blegov/pkg/bluetooth"
)

func TestTransportBuilder_Fluent(t *testing.T) {
	source := NewTransportBuilder().
		WithAdapter("hci0").WithPowered(true).
		WithDevice("AA:BB:CC:DD:EE:FF").WithDeviceName("HRM").WithRSSI(-60).
		WithService("180D").
		WithCharacteristic("2A37", "read,notify", []byte{80}).
		Build()

	adapter, ok := source.Adapter(bluetooth.ForAdapter("hci0"))
	require.True(t, ok)
	powered, err := adapter.Powered()
	require.NoError(t, err)
	assert.True(t, powered)

	device, ok := source.Device(bluetooth.ForDevice("hci0", "AA:BB:CC:DD:EE:FF"))
	require.True(t, ok)
	name, err := device.Name()
	require.NoError(t, err)
	assert.Equal(t, "HRM", name)
	rssi, err := device.RSSI()
	require.NoError(t, err)
	assert.Equal(t, int16(-60), rssi)

	services, err := device.Services()
	require.NoError(t, err)
	require.Len(t, services, 1)
	chars := services[0].Characteristics()
	require.Len(t, chars, 1)
	assert.Equal(t, []string{"read", "notify"}, chars[0].Flags())

	char, ok := source.Characteristic(bluetooth.ForCharacteristic("hci0", "AA:BB:CC:DD:EE:FF", "180D", "2A37"))
	require.True(t, ok)
	value, err := char.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{80}, value)
}

func TestTransportBuilder_FromJSON(t *testing.T) {
	source := CreateTransportFromJSON(`
	{
		"adapters": [
			{
				"address": "hci0",
				"powered": true,
				"devices": [
					{
						"address": "f4:04:15:ad:e0:b4",
						"name": "%s",
						"services": [
							{
								"uuid": "180F",
								"characteristics": [
									{ "uuid": "2A19", "flags": "read", "value": [50] }
								]
							}
						]
					}
				]
			}
		]
	}`, "Battery Beacon").Build()

	// Device components normalize to upper case, UUIDs to lower case
	device, ok := source.Device(bluetooth.MustParseAddress("/hci0/F4:04:15:AD:E0:B4"))
	require.True(t, ok)
	name, err := device.Name()
	require.NoError(t, err)
	assert.Equal(t, "Battery Beacon", name)

	char, ok := source.Characteristic(bluetooth.MustParseAddress("/hci0/F4:04:15:AD:E0:B4/180f/2a19"))
	require.True(t, ok)
	assert.Equal(t, []string{"read"}, char.Flags())
}

func TestTransportBuilder_DefaultFlags(t *testing.T) {
	source := NewTransportBuilder().
		WithAdapter("hci0").
		WithDevice("11:22:33:44:55:66").
		WithService("180F").
		WithCharacteristic("2A19", "", nil).
		Build()

	char, ok := source.Characteristic(bluetooth.ForCharacteristic("hci0", "11:22:33:44:55:66", "180F", "2A19"))
	require.True(t, ok)
	assert.Equal(t, []string{"read", "write", "notify"}, char.Flags())
}

func TestTransportBuilder_PanicsWithoutParent(t *testing.T) {
	assert.Panics(t, func() {
		NewTransportBuilder().WithDevice("11:22:33:44:55:66")
	})
	assert.Panics(t, func() {
		NewTransportBuilder().WithAdapter("hci0").WithDevice("11:22:33:44:55:66").
			WithCharacteristic("2A19", "read", nil)
	})
	assert.Panics(t, func() {
		NewTransportBuilder().FromJSON(`{"adapters": [}`)
	})
}

func TestFakeSource_Offline(t *testing.T) {
	addr := bluetooth.ForDevice("hci0", "11:22:33:44:55:66")
	source := NewTransportBuilder().
		WithAdapter("hci0").
		WithDevice("11:22:33:44:55:66").
		Build()

	_, ok := source.Device(addr)
	require.True(t, ok)

	source.SetOffline(addr, true)
	_, ok = source.Device(addr)
	assert.False(t, ok, "offline device must not resolve")

	source.SetOffline(addr, false)
	_, ok = source.Device(addr)
	assert.True(t, ok, "device must resolve again after coming back")
}
