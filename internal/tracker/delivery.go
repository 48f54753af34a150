package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
)

var (
	// ErrNotJSON is returned for a delivery body that does not decode to a JSON value.
	ErrNotJSON = errors.New("no json")
	// ErrRejectedPayload is returned when a delivery cannot be iterated as telemetry messages.
	ErrRejectedPayload = errors.New("payload is neither a message object nor a list of messages")
)

// SplitDelivery decodes a webhook or MQTT delivery into its individual messages.
// An object carrying a "messages" or "result" list is unwrapped; any other object is a
// single message; a top-level array is taken as is.
func SplitDelivery(body []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil || data == nil {
		return nil, ErrNotJSON
	}

	switch v := data.(type) {
	case []any:
		return v, nil
	case map[string]any:
		list, ok := firstPresent(v, []accessor{field("messages"), field("result")})
		if !ok {
			return []any{v}, nil
		}
		entries, ok := list.([]any)
		if !ok {
			return nil, ErrRejectedPayload
		}
		return entries, nil
	default:
		return nil, ErrRejectedPayload
	}
}
