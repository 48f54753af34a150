package tracker

import (
	"encoding/json"
	"strconv"
)

// accessor reads one candidate location of a logical field.
type accessor func(map[string]any) any

func field(key string) accessor {
	return func(m map[string]any) any {
		return m[key]
	}
}

func nested(parent, key string) accessor {
	return func(m map[string]any) any {
		inner, ok := m[parent].(map[string]any)
		if !ok {
			return nil
		}
		return inner[key]
	}
}

// Firmware variants name the same field differently; first truthy candidate wins.
var (
	deviceIdentityFields = []accessor{field("ident"), field("device.id")}
	timestampFields      = []accessor{field("timestamp"), field("server.timestamp")}
	beaconListFields     = []accessor{field("ble.beacons"), field("ble.beacons.list")}
	beaconIdentityFields = []accessor{field("id"), field("uuid"), field("mac")}
	batteryVoltageFields = []accessor{field("battery.voltage"), nested("battery", "voltage")}
	latitudeFields       = []accessor{field("position.latitude")}
	longitudeFields      = []accessor{field("position.longitude")}
)

func firstPresent(m map[string]any, chain []accessor) (any, bool) {
	for _, get := range chain {
		if v := get(m); truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// truthy treats zero values and empty containers as missing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

func identity(m map[string]any, chain []accessor) string {
	v, ok := firstPresent(m, chain)
	if !ok {
		return unknownID
	}

	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return unknownID
	}
}
