package bluetooth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		kind     Kind
		wantErr  bool
	}{
		{
			name:     "adapter only",
			input:    "/hci0",
			expected: "/hci0",
			kind:     KindAdapter,
		},
		{
			name:     "adapter and device",
			input:    "/hci0/f4:04:15:ad:e0:b4",
			expected: "/hci0/F4:04:15:AD:E0:B4",
			kind:     KindDevice,
		},
		{
			name:     "device with service",
			input:    "/hci0/F4:04:15:AD:E0:B4/0000180F",
			expected: "/hci0/F4:04:15:AD:E0:B4/0000180f",
			kind:     KindService,
		},
		{
			name:     "full characteristic path",
			input:    "/hci0/F4:04:15:AD:E0:B4/0000180f/00002A19",
			expected: "/hci0/F4:04:15:AD:E0:B4/0000180f/00002a19",
			kind:     KindCharacteristic,
		},
		{
			name:     "no leading slash",
			input:    "hci0/11:22:33:44:55:66",
			expected: "/hci0/11:22:33:44:55:66",
			kind:     KindDevice,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only slash",
			input:   "/",
			wantErr: true,
		},
		{
			name:    "empty component",
			input:   "/hci0//0000180f",
			wantErr: true,
		},
		{
			name:    "too deep",
			input:   "/a/b/c/d/e",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr.String())
			assert.Equal(t, tt.kind, addr.Kind())
		})
	}
}

func TestAddressConstructors(t *testing.T) {
	char := ForCharacteristic("hci0", "f4:04:15:ad:e0:b4", "0000180F", "00002A19")

	assert.Equal(t, "hci0", char.Adapter())
	assert.Equal(t, "F4:04:15:AD:E0:B4", char.Device())
	assert.Equal(t, "0000180f", char.Service())
	assert.Equal(t, "00002a19", char.Characteristic())
	assert.Equal(t, KindCharacteristic, char.Kind())

	// Constructors and parsing agree on normalization
	parsed := MustParseAddress("/hci0/F4:04:15:AD:E0:B4/0000180f/00002a19")
	assert.Equal(t, parsed, char)
}

func TestAddressProjections(t *testing.T) {
	char := MustParseAddress("/hci0/11:22:33:44:55:66/0000180f/00002a19")

	assert.Equal(t, "/hci0", char.AdapterAddress().String())
	assert.Equal(t, "/hci0/11:22:33:44:55:66", char.DeviceAddress().String())
	assert.Equal(t, "/hci0/11:22:33:44:55:66/0000180f", char.ServiceAddress().String())

	adapter := ForAdapter("hci0")
	assert.True(t, adapter.DeviceAddress().IsZero())
	assert.True(t, adapter.ServiceAddress().IsZero())
}

func TestAddressIsDescendantOf(t *testing.T) {
	adapter := MustParseAddress("/hci0")
	device := MustParseAddress("/hci0/11:22:33:44:55:66")
	otherDevice := MustParseAddress("/hci0/AA:BB:CC:DD:EE:FF")
	service := MustParseAddress("/hci0/11:22:33:44:55:66/0000180f")
	char := MustParseAddress("/hci0/11:22:33:44:55:66/0000180f/00002a19")

	tests := []struct {
		name   string
		addr   Address
		parent Address
		want   bool
	}{
		{"device under adapter", device, adapter, true},
		{"service under device", service, device, true},
		{"characteristic under device", char, device, true},
		{"characteristic under service", char, service, true},
		{"characteristic under adapter", char, adapter, true},
		{"self is not descendant", device, device, false},
		{"parent not descendant of child", device, char, false},
		{"sibling device", service, otherDevice, false},
		{"nothing under characteristic", device, char, false},
		{"zero parent", device, Address{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.IsDescendantOf(tt.parent))
		})
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	type payload struct {
		URL Address `json:"url"`
	}

	in := payload{URL: MustParseAddress("/hci0/11:22:33:44:55:66/0000180f")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"/hci0/11:22:33:44:55:66/0000180f"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.URL, out.URL)

	var zero payload
	require.NoError(t, json.Unmarshal([]byte(`{"url":""}`), &zero))
	assert.True(t, zero.URL.IsZero())
}
