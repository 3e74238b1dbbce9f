// Package bluetooth provides the hierarchical addressing model shared by all
// governor and transport layers.
package bluetooth

import (
	"fmt"
	"strings"
)

// Kind identifies which level of the Bluetooth object hierarchy an Address
// points at.
type Kind int

const (
	KindUnknown Kind = iota
	KindAdapter
	KindDevice
	KindService
	KindCharacteristic
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAdapter:
		return "adapter"
	case KindDevice:
		return "device"
	case KindService:
		return "service"
	case KindCharacteristic:
		return "characteristic"
	default:
		return "unknown"
	}
}

// Address is the hierarchical identifier of a Bluetooth entity:
//
//	/adapter
//	/adapter/device
//	/adapter/device/service
//	/adapter/device/service/characteristic
//
// The canonical string form uses a leading slash and one path component per
// level, e.g. "/hci0/F4:04:15:AD:E0:B4/0000180f/00002a19". Device components
// are normalized to upper case (MAC convention), service and characteristic
// components to lower case (UUID convention). Address is a comparable value
// type; equality is component-wise on the normalized form.
type Address struct {
	adapter        string
	device         string
	service        string
	characteristic string
}

// ForAdapter builds an adapter-level address.
func ForAdapter(adapter string) Address {
	return Address{adapter: adapter}
}

// ForDevice builds a device-level address.
func ForDevice(adapter, device string) Address {
	return Address{adapter: adapter, device: strings.ToUpper(device)}
}

// ForService builds a service-level address.
func ForService(adapter, device, service string) Address {
	return Address{
		adapter: adapter,
		device:  strings.ToUpper(device),
		service: strings.ToLower(service),
	}
}

// ForCharacteristic builds a characteristic-level address.
func ForCharacteristic(adapter, device, service, characteristic string) Address {
	return Address{
		adapter:        adapter,
		device:         strings.ToUpper(device),
		service:        strings.ToLower(service),
		characteristic: strings.ToLower(characteristic),
	}
}

// ParseAddress parses the canonical string form. A leading slash is optional;
// between one and four non-empty components are accepted.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "/")
	if trimmed == "" {
		return Address{}, fmt.Errorf("address %q: empty", s)
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > 4 {
		return Address{}, fmt.Errorf("address %q: more than 4 components", s)
	}
	for i, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("address %q: empty component at position %d", s, i)
		}
	}

	addr := Address{adapter: parts[0]}
	if len(parts) > 1 {
		addr.device = strings.ToUpper(parts[1])
	}
	if len(parts) > 2 {
		addr.service = strings.ToLower(parts[2])
	}
	if len(parts) > 3 {
		addr.characteristic = strings.ToLower(parts[3])
	}
	return addr, nil
}

// MustParseAddress parses the canonical string form, panicking on malformed
// input. Intended for fixtures and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Kind reports the hierarchy level this address points at.
func (a Address) Kind() Kind {
	switch {
	case a.characteristic != "":
		return KindCharacteristic
	case a.service != "":
		return KindService
	case a.device != "":
		return KindDevice
	case a.adapter != "":
		return KindAdapter
	default:
		return KindUnknown
	}
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Adapter returns the adapter component.
func (a Address) Adapter() string { return a.adapter }

// Device returns the device component, empty for adapter-level addresses.
func (a Address) Device() string { return a.device }

// Service returns the service component, empty above service level.
func (a Address) Service() string { return a.service }

// Characteristic returns the characteristic component, empty above
// characteristic level.
func (a Address) Characteristic() string { return a.characteristic }

// AdapterAddress projects the address onto its adapter level.
func (a Address) AdapterAddress() Address {
	return Address{adapter: a.adapter}
}

// DeviceAddress projects the address onto its device level. Zero for
// adapter-level addresses.
func (a Address) DeviceAddress() Address {
	if a.device == "" {
		return Address{}
	}
	return Address{adapter: a.adapter, device: a.device}
}

// ServiceAddress projects the address onto its service level. Zero above
// service level.
func (a Address) ServiceAddress() Address {
	if a.service == "" {
		return Address{}
	}
	return Address{adapter: a.adapter, device: a.device, service: a.service}
}

// IsDescendantOf reports whether a is strictly below parent in the
// hierarchy: same prefix components and at least one level deeper.
func (a Address) IsDescendantOf(parent Address) bool {
	if parent.IsZero() || a == parent {
		return false
	}
	if a.adapter != parent.adapter {
		return false
	}
	if parent.device != "" && a.device != parent.device {
		return false
	}
	if parent.service != "" && a.service != parent.service {
		return false
	}
	if parent.characteristic != "" {
		return false // characteristics have no children
	}
	return a.Kind() > parent.Kind()
}

// String renders the canonical form with a leading slash; empty for the zero
// address.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('/')
	sb.WriteString(a.adapter)
	if a.device != "" {
		sb.WriteByte('/')
		sb.WriteString(a.device)
	}
	if a.service != "" {
		sb.WriteByte('/')
		sb.WriteString(a.service)
	}
	if a.characteristic != "" {
		sb.WriteByte('/')
		sb.WriteString(a.characteristic)
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
