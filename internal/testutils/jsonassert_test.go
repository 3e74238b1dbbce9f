package testutils

import (
	"strings"
	"testing"

	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
)

func TestJSONAsserter_PresencePlaceholder(t *testing.T) {
	t.Run("allows presence placeholder when enabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithAllowPresencePlaceholder(true),
		)

		actualJSON := `{"address": "/hci0", "last_activity": 1758348286}`
		expectedJSON := `{"address": "/hci0", "last_activity": "<<PRESENCE>>"}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff != "" {
			t.Errorf("Expected no diff with presence placeholder enabled, got: %s", diff)
		}
	})

	t.Run("rejects presence placeholder when disabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithAllowPresencePlaceholder(false),
		)

		actualJSON := `{"address": "/hci0", "last_activity": 1758348286}`
		expectedJSON := `{"address": "/hci0", "last_activity": "<<PRESENCE>>"}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff == "" {
			t.Error("Expected diff with presence placeholder disabled, got no diff")
		}
		if !strings.Contains(diff, "<<PRESENCE>>") {
			t.Errorf("Expected diff to contain <<PRESENCE>>, got: %s", diff)
		}
	})
}

func TestJSONAsserter_IgnoreExtraKeys(t *testing.T) {
	t.Run("ignores extra keys when enabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoreExtraKeys(true),
		)

		actualJSON := `{"address": "/hci0", "name": "test", "extra": "value"}`
		expectedJSON := `{"address": "/hci0", "name": "test"}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff != "" {
			t.Errorf("Expected no diff with IgnoreExtraKeys enabled, got: %s", diff)
		}
	})

	t.Run("detects extra keys when disabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoreExtraKeys(false),
		)

		actualJSON := `{"address": "/hci0", "name": "test", "extra": "value"}`
		expectedJSON := `{"address": "/hci0", "name": "test"}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff == "" {
			t.Error("Expected diff with IgnoreExtraKeys disabled, got no diff")
		}
	})
}

func TestJSONAsserter_NilToEmptyArray(t *testing.T) {
	t.Run("null equals null regardless of option", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{})

		diff := ja.diff(`{"services": null}`, `{"services": null}`)
		if diff != "" {
			t.Errorf("null should equal null, got diff: %s", diff)
		}
	})

	t.Run("null normalizes to empty array when enabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{})

		diff := ja.diff(`{"services": null}`, `{"services": []}`)
		if diff != "" {
			t.Errorf("null should be normalized to [] when NilToEmptyArray=true, got diff: %s", diff)
		}
	})

	t.Run("null stays distinct from empty array when disabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithNilToEmptyArray(false),
		)

		diff := ja.diff(`{"services": null}`, `{"services": []}`)
		if diff == "" {
			t.Error("null should NOT equal [] when NilToEmptyArray=false")
		}
	})

	t.Run("null never matches a non-empty array", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{})

		diff := ja.diff(`{"services": null}`, `{"services": ["180f"]}`)
		if diff == "" {
			t.Error("null must not match a populated array")
		}
	})
}

func TestJSONAsserter_IgnoredFields(t *testing.T) {
	t.Run("ignores specified fields at top level", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoredFields("time", "details"),
		)

		actualJSON := `{"address": "/hci0", "time": 1758348286, "details": "a"}`
		expectedJSON := `{"address": "/hci0", "time": 9999999999, "details": "b"}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff != "" {
			t.Errorf("Expected no diff with ignored fields, got: %s", diff)
		}
	})

	t.Run("still detects differences in non-ignored fields", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoredFields("time"),
		)

		actualJSON := `{"address": "/hci1", "time": 1}`
		expectedJSON := `{"address": "/hci0", "time": 2}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff == "" {
			t.Error("Expected diff for non-ignored field differences, got no diff")
		}
		if !strings.Contains(diff, "address") {
			t.Errorf("Expected diff to mention 'address' field, got: %s", diff)
		}
	})

	t.Run("ignores fields in nested objects and arrays", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoredFields("time"),
		)

		actualJSON := `{"events": [{"kind": "ready", "time": 1}, {"kind": "online", "time": 2}]}`
		expectedJSON := `{"events": [{"kind": "ready", "time": 8}, {"kind": "online", "time": 9}]}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff != "" {
			t.Errorf("Expected no diff with ignored nested fields, got: %s", diff)
		}
	})
}

func TestJSONAsserter_IgnoreArrayOrder(t *testing.T) {
	t.Run("same elements in different order match when enabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoreArrayOrder(true),
		)

		diff := ja.diff(`{"flags": ["notify", "read"]}`, `{"flags": ["read", "notify"]}`)
		if diff != "" {
			t.Errorf("Expected no diff with IgnoreArrayOrder enabled, got: %s", diff)
		}
	})

	t.Run("same elements in different order fail when disabled", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{})

		diff := ja.diff(`{"flags": ["notify", "read"]}`, `{"flags": ["read", "notify"]}`)
		if diff == "" {
			t.Error("Expected diff with IgnoreArrayOrder disabled, got no diff")
		}
	})

	t.Run("different elements fail regardless of option", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoreArrayOrder(true),
		)

		diff := ja.diff(`{"flags": ["read", "write"]}`, `{"flags": ["read", "notify"]}`)
		if diff == "" {
			t.Error("Expected diff for different array elements, got no diff")
		}
	})

	t.Run("ignored fields do not leak into the sort key", func(t *testing.T) {
		ja := NewJSONAsserter(&testing.T{}).WithOptions(
			WithIgnoreArrayOrder(true),
			WithIgnoredFields("time"),
		)

		actualJSON := `{"events": [{"kind": "b", "time": 1}, {"kind": "a", "time": 2}]}`
		expectedJSON := `{"events": [{"kind": "a", "time": 9}, {"kind": "b", "time": 8}]}`

		diff := ja.diff(actualJSON, expectedJSON)
		if diff != "" {
			t.Errorf("Expected no diff with IgnoreArrayOrder + IgnoredFields, got: %s", diff)
		}
	})
}

func TestJSONAsserter_RootLevelArrays(t *testing.T) {
	ja := NewJSONAsserter(&testing.T{}).WithOptions(
		WithIgnoreArrayOrder(true),
	)

	actualJSON := `[{"address": "/hci0/AA:BB:CC:DD:EE:FF"}, {"address": "/hci0/11:22:33:44:55:66"}]`
	expectedJSON := `[{"address": "/hci0/11:22:33:44:55:66"}, {"address": "/hci0/AA:BB:CC:DD:EE:FF"}]`

	diff := ja.diff(actualJSON, expectedJSON)
	if diff != "" {
		t.Errorf("Expected no diff for root-level arrays, got: %s", diff)
	}
}

func TestJSONAsserter_InvalidJSON(t *testing.T) {
	ja := NewJSONAsserter(&testing.T{})

	t.Run("invalid expected JSON", func(t *testing.T) {
		diff := ja.diff(`{"valid": "json"}`, `{"invalid": json}`)
		if !strings.Contains(diff, "invalid expected JSON") {
			t.Errorf("Expected error about invalid expected JSON, got: %s", diff)
		}
	})

	t.Run("invalid actual JSON", func(t *testing.T) {
		diff := ja.diff(`{"invalid": json}`, `{"valid": "json"}`)
		if !strings.Contains(diff, "invalid actual JSON") {
			t.Errorf("Expected error about invalid actual JSON, got: %s", diff)
		}
	})
}

func TestJSONAsserter_AssertServices(t *testing.T) {
	battery := manager.NewGattService(
		bluetooth.ForService("hci0", "11:22:33:44:55:66", "180F"),
		[]manager.GattCharacteristic{
			manager.NewGattCharacteristic(
				bluetooth.ForCharacteristic("hci0", "11:22:33:44:55:66", "180F", "2A19"),
				[]string{"read", "notify"},
			),
		},
	)

	ja := NewJSONAsserter(t)
	ja.AssertServices([]manager.GattService{battery}, `[
		{
			"address": "/hci0/11:22:33:44:55:66/180f",
			"characteristics": [
				{
					"address": "/hci0/11:22:33:44:55:66/180f/2a19",
					"flags": ["read", "notify"]
				}
			]
		}
	]`)
}
