package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/srg/blegov/pkg/bluetooth"
)

// CharacteristicConfig describes a GATT characteristic fixture.
type CharacteristicConfig struct {
	UUID  string `json:"uuid"`
	Flags string `json:"flags,omitempty"` // e.g., "read,write,notify"
	Value []byte `json:"value,omitempty"`
}

// ServiceConfig describes a GATT service fixture.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceConfig describes a remote device fixture. Devices are BLE capable
// unless marked classic.
type DeviceConfig struct {
	Address  string          `json:"address"` // MAC, e.g. "11:22:33:44:55:66"
	Name     string          `json:"name,omitempty"`
	Alias    string          `json:"alias,omitempty"`
	Classic  bool            `json:"classic,omitempty"`
	Class    uint32          `json:"class,omitempty"`
	RSSI     int16           `json:"rssi,omitempty"`
	Services []ServiceConfig `json:"services,omitempty"`
}

// AdapterConfig describes a local adapter fixture.
type AdapterConfig struct {
	Address string         `json:"address"` // adapter id, e.g. "hci0"
	Name    string         `json:"name,omitempty"`
	Alias   string         `json:"alias,omitempty"`
	Powered bool           `json:"powered,omitempty"`
	Devices []DeviceConfig `json:"devices,omitempty"`
}

// TransportConfig is the complete fixture tree.
type TransportConfig struct {
	Adapters []AdapterConfig `json:"adapters"`
}

// TransportBuilder assembles a FakeSource tree fluently or from JSON. The
// With* methods attach to the last added parent.
type TransportBuilder struct {
	config TransportConfig
}

func NewTransportBuilder() *TransportBuilder {
	return &TransportBuilder{}
}

// WithAdapter adds an adapter fixture.
func (b *TransportBuilder) WithAdapter(address string) *TransportBuilder {
	b.config.Adapters = append(b.config.Adapters, AdapterConfig{Address: address})
	return b
}

// WithPowered sets the powered state of the last added adapter.
func (b *TransportBuilder) WithPowered(powered bool) *TransportBuilder {
	b.lastAdapter().Powered = powered
	return b
}

// WithDevice adds a device fixture under the last added adapter.
func (b *TransportBuilder) WithDevice(mac string) *TransportBuilder {
	a := b.lastAdapter()
	a.Devices = append(a.Devices, DeviceConfig{Address: mac})
	return b
}

// WithDeviceName sets the name of the last added device.
func (b *TransportBuilder) WithDeviceName(name string) *TransportBuilder {
	b.lastDevice().Name = name
	return b
}

// WithAlias sets the alias of the last added device.
func (b *TransportBuilder) WithAlias(alias string) *TransportBuilder {
	b.lastDevice().Alias = alias
	return b
}

// WithClassic marks the last added device as classic-only.
func (b *TransportBuilder) WithClassic() *TransportBuilder {
	b.lastDevice().Classic = true
	return b
}

// WithRSSI sets the signal strength of the last added device.
func (b *TransportBuilder) WithRSSI(rssi int16) *TransportBuilder {
	b.lastDevice().RSSI = rssi
	return b
}

// WithService adds a service fixture to the last added device.
func (b *TransportBuilder) WithService(uuid string) *TransportBuilder {
	d := b.lastDevice()
	d.Services = append(d.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic fixture to the last added service.
func (b *TransportBuilder) WithCharacteristic(uuid, flags string, value []byte) *TransportBuilder {
	d := b.lastDevice()
	if len(d.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	svc := &d.Services[len(d.Services)-1]
	svc.Characteristics = append(svc.Characteristics, CharacteristicConfig{
		UUID:  uuid,
		Flags: flags,
		Value: value,
	})
	return b
}

// FromJSON fills the fixture tree from JSON.
func (b *TransportBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *TransportBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config TransportConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("TransportBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.config = config
	return b
}

// Build materializes the configured tree as a FakeSource. Every device and
// characteristic is registered for native lookup by its hierarchical address.
func (b *TransportBuilder) Build() *FakeSource {
	source := NewFakeSource()
	for _, ac := range b.config.Adapters {
		source.AddAdapter(&FakeAdapter{
			addr:    bluetooth.ForAdapter(ac.Address),
			name:    ac.Name,
			alias:   ac.Alias,
			powered: ac.Powered,
		})
		for _, dc := range ac.Devices {
			device := &FakeDevice{
				addr:  bluetooth.ForDevice(ac.Address, dc.Address),
				name:  dc.Name,
				alias: dc.Alias,
				ble:   !dc.Classic,
				class: dc.Class,
				rssi:  dc.RSSI,
			}
			for _, sc := range dc.Services {
				svc := &FakeService{addr: bluetooth.ForService(ac.Address, dc.Address, sc.UUID)}
				for _, cc := range sc.Characteristics {
					char := &FakeCharacteristic{
						addr:  bluetooth.ForCharacteristic(ac.Address, dc.Address, sc.UUID, cc.UUID),
						flags: parseFlags(cc.Flags),
						value: cc.Value,
					}
					svc.chars = append(svc.chars, char)
					source.AddCharacteristic(char)
				}
				device.services = append(device.services, svc)
			}
			source.AddDevice(device)
		}
	}
	return source
}

func (b *TransportBuilder) lastAdapter() *AdapterConfig {
	if len(b.config.Adapters) == 0 {
		panic("no adapter added yet, call WithAdapter first")
	}
	return &b.config.Adapters[len(b.config.Adapters)-1]
}

func (b *TransportBuilder) lastDevice() *DeviceConfig {
	a := b.lastAdapter()
	if len(a.Devices) == 0 {
		panic("no device added yet, call WithDevice first")
	}
	return &a.Devices[len(a.Devices)-1]
}

// parseFlags splits a comma separated flag list, defaulting to
// read|write|notify.
func parseFlags(flags string) []string {
	if flags == "" {
		return []string{"read", "write", "notify"}
	}
	parts := strings.Split(flags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
