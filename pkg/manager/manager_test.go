package manager

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blegov/pkg/bluetooth"
)

func TestNotReadyError_Matching(t *testing.T) {
	addr := bluetooth.MustParseAddress("/hci0/11:22:33:44:55:66")
	var err error = &NotReadyError{Address: addr}

	assert.EqualError(t, err, "bluetooth object is not ready: /hci0/11:22:33:44:55:66")
	assert.ErrorIs(t, err, ErrNotReady)

	var notReady *NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, addr, notReady.Address)

	// the sentinel itself carries no address
	assert.EqualError(t, ErrNotReady, "bluetooth object is not ready")

	wrapped := fmt.Errorf("failed to read flags: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotReady)
}

func TestGattSnapshotsAreImmutable(t *testing.T) {
	svcAddr := bluetooth.MustParseAddress("/hci0/11:22:33:44:55:66/180f")
	charAddr := bluetooth.MustParseAddress("/hci0/11:22:33:44:55:66/180f/2a19")

	flags := []string{"read", "notify"}
	ch := NewGattCharacteristic(charAddr, flags)
	flags[0] = "mutated"
	assert.Equal(t, []string{"read", "notify"}, ch.Flags())

	ch.Flags()[1] = "mutated"
	assert.Equal(t, []string{"read", "notify"}, ch.Flags())

	chars := []GattCharacteristic{ch}
	svc := NewGattService(svcAddr, chars)
	chars[0] = GattCharacteristic{}
	require.Len(t, svc.Characteristics(), 1)
	assert.Equal(t, charAddr, svc.Characteristics()[0].Address())
}

func TestGattServiceJSON(t *testing.T) {
	svc := NewGattService(
		bluetooth.MustParseAddress("/hci0/11:22:33:44:55:66/180f"),
		[]GattCharacteristic{
			NewGattCharacteristic(
				bluetooth.MustParseAddress("/hci0/11:22:33:44:55:66/180f/2a19"),
				[]string{"read", "notify"},
			),
		},
	)

	data, err := json.Marshal(svc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"address": "/hci0/11:22:33:44:55:66/180f",
		"characteristics": [
			{"address": "/hci0/11:22:33:44:55:66/180f/2a19", "flags": ["read", "notify"]}
		]
	}`, string(data))
}
