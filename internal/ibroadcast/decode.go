package ibroadcast

import (
	"encoding/json"
	"fmt"
	"math"
)

// Decode normalizes a compact collection payload.
//
// The server compresses each collection by sending every record as a
// positional array plus a single "map" entry assigning a field name to each
// index. For example:
//
//	{
//	   "244526": ["Starter Songs", [134082068, 134082066], "1234-1234", false],
//	   "map": {"name": 0, "tracks": 1, "uid": 2, "system_created": 3}
//	}
//
// decodes to:
//
//	{
//	   "244526": {
//	      "name": "Starter Songs",
//	      "tracks": [134082068, 134082066],
//	      "uid": "1234-1234",
//	      "system_created": false
//	   }
//	}
//
// A payload without a "map" object is already expanded and is returned
// unchanged. Records shorter than the field map simply omit the trailing
// fields. A field map that assigns two names to the same index, or uses a
// non-integer index, is malformed and rejected.
func Decode(data map[string]any) (map[string]any, error) {
	raw, ok := data["map"]
	if !ok {
		return data, nil
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return data, nil
	}

	keymap := make(map[int]string, len(fields))
	for name, idx := range fields {
		i, ok := fieldIndex(idx)
		if !ok {
			return nil, fmt.Errorf("field map entry %q has invalid index %v", name, idx)
		}
		if prev, dup := keymap[i]; dup {
			return nil, fmt.Errorf("field map assigns index %d to both %q and %q", i, prev, name)
		}
		keymap[i] = name
	}

	result := make(map[string]any, len(data)-1)
	for id, value := range data {
		seq, ok := value.([]any)
		if !ok {
			continue
		}
		record := make(map[string]any, len(seq))
		for i, name := range keymap {
			if i < len(seq) {
				record[name] = seq[i]
			}
		}
		result[id] = record
	}
	return result, nil
}

// fieldIndex converts a field map index to a non-negative int.
// JSON numbers arrive as float64; plain ints are accepted for callers that
// build maps programmatically.
func fieldIndex(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// decodeCollection decodes a raw collection payload into typed records
// keyed by their decimal-string ID.
func decodeCollection[T any](raw json.RawMessage) (map[string]T, error) {
	if len(raw) == 0 {
		return map[string]T{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse collection: %w", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(decoded))
	for id, record := range decoded {
		buf, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode record %s: %w", id, err)
		}
		var v T
		if err := json.Unmarshal(buf, &v); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
		}
		out[id] = v
	}
	return out, nil
}
