package manager

import (
	"encoding/json"

	"github.com/srg/blegov/pkg/bluetooth"
)

// GattService is an immutable snapshot of a resolved GATT service, built at
// resolution time. It never aliases transport-layer state.
type GattService struct {
	address         bluetooth.Address
	characteristics []GattCharacteristic
}

// NewGattService builds a service snapshot, copying the characteristic list.
func NewGattService(address bluetooth.Address, characteristics []GattCharacteristic) GattService {
	snap := make([]GattCharacteristic, len(characteristics))
	copy(snap, characteristics)
	return GattService{address: address, characteristics: snap}
}

// Address returns the service address.
func (s GattService) Address() bluetooth.Address { return s.address }

// Characteristics returns a copy of the characteristic snapshots.
func (s GattService) Characteristics() []GattCharacteristic {
	out := make([]GattCharacteristic, len(s.characteristics))
	copy(out, s.characteristics)
	return out
}

// MarshalJSON renders the snapshot for diagnostics and test assertions.
func (s GattService) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Address         bluetooth.Address    `json:"address"`
		Characteristics []GattCharacteristic `json:"characteristics"`
	}{s.address, s.characteristics})
}

// GattCharacteristic is an immutable snapshot of a resolved characteristic.
type GattCharacteristic struct {
	address bluetooth.Address
	flags   []string
}

// NewGattCharacteristic builds a characteristic snapshot, copying the flags.
func NewGattCharacteristic(address bluetooth.Address, flags []string) GattCharacteristic {
	snap := make([]string, len(flags))
	copy(snap, flags)
	return GattCharacteristic{address: address, flags: snap}
}

// Address returns the characteristic address.
func (c GattCharacteristic) Address() bluetooth.Address { return c.address }

// Flags returns a copy of the GATT property flags.
func (c GattCharacteristic) Flags() []string {
	out := make([]string, len(c.flags))
	copy(out, c.flags)
	return out
}

// MarshalJSON renders the snapshot for diagnostics and test assertions.
func (c GattCharacteristic) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Address bluetooth.Address `json:"address"`
		Flags   []string          `json:"flags"`
	}{c.address, c.flags})
}
