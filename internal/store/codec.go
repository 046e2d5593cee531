package store

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a value to JSON text. Values JSON cannot represent
// (funcs, channels, cyclic structures, NaN) fail with ErrSerialization.
func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// Decode parses JSON text into the generic form: map[string]any, []any,
// float64, string, bool or nil.
func Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding stored value: %w", err)
	}
	return v, nil
}

// Normalize returns the value as it would read back after a JSON round trip.
func Normalize(value any) (any, error) {
	data, err := Encode(value)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Convert re-decodes a generic value into dest, a pointer to a caller type.
func Convert(value, dest any) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding into %T: %w", dest, err)
	}
	return nil
}
