package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"careline/internal/model"
)

// envelopeKeys are tried in priority order when the upstream wraps its record
// array in an object. First present array-valued candidate wins.
var envelopeKeys = []string{"data", "patients", "results", "records"}

// Unwrap locates the record array inside an arbitrary upstream payload.
// Shape detectors run in a fixed order: bare array, well-known wrapper key,
// first array-of-objects member in document order, whole object as a
// single-element set. A payload that is neither object nor array is the one
// hard failure and reports model.ErrMalformedResponse.
func Unwrap(envelope json.RawMessage) ([]model.RawRecord, error) {
	trimmed := bytes.TrimSpace(envelope)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", model.ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var items []interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
		}
		return objectsOf(items), nil
	case '{':
		return unwrapObject(trimmed)
	default:
		return nil, fmt.Errorf("%w: top-level value is neither object nor array", model.ErrMalformedResponse)
	}
}

func unwrapObject(trimmed []byte) ([]model.RawRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	for _, key := range envelopeKeys {
		raw, ok := fields[key]
		if !ok || !isArray(raw) {
			continue
		}
		var items []interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		return objectsOf(items), nil
	}

	// No known wrapper key: walk members in document order and take the
	// first array whose elements are all objects.
	if records, ok := firstObjectArray(trimmed); ok {
		return records, nil
	}

	// Whole object as a one-element result set.
	var single model.RawRecord
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}
	return []model.RawRecord{single}, nil
}

// firstObjectArray scans an object's members in the order they appear in the
// document, which map decoding would lose.
func firstObjectArray(trimmed []byte) ([]model.RawRecord, bool) {
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil { // member key
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if !isArray(bytes.TrimSpace(value)) {
			continue
		}
		var records []model.RawRecord
		if err := json.Unmarshal(value, &records); err != nil {
			continue // array with non-object elements; keep scanning
		}
		return records, true
	}
	return nil, false
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func objectsOf(items []interface{}) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			records = append(records, model.RawRecord(obj))
		}
	}
	return records
}
